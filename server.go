package walletgate

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/walletgate/authz"
	"github.com/outofforest/walletgate/dispatcher"
	"github.com/outofforest/walletgate/envelope"
	"github.com/outofforest/walletgate/keys"
	"github.com/outofforest/walletgate/pool"
	"github.com/outofforest/walletgate/router"
	"github.com/outofforest/walletgate/transport"
)

// Listeners are the listeners server accepts connections on. Nil listeners are skipped.
type Listeners struct {
	Websocket net.Listener
	Resonance net.Listener
}

// ServerConfig defines server configuration.
type ServerConfig struct {
	Key                   keys.PrivateKey
	WebsocketPath         string
	MaxMessageSize        uint64
	MaxConcurrentRequests int
	WorkerPoolSize        int
	RateLimit             rate.Limit
	RateBurst             int

	// Registerer is used to register prometheus collectors. If nil, collectors are not registered.
	Registerer prometheus.Registerer

	// Authorization configures transaction authorization handler. If nil, handler is not installed.
	// Pool is set by the server.
	Authorization *authz.Config

	// Mappings are additional handlers.
	Mappings []router.Mapping
}

// RunServer runs server.
func RunServer(ctx context.Context, ls Listeners, config ServerConfig) error {
	if ls.Websocket == nil && ls.Resonance == nil {
		return errors.New("no listeners provided")
	}

	log := logger.Get(ctx)

	p, err := pool.New(config.WorkerPoolSize, log)
	if err != nil {
		return err
	}
	defer p.Close()

	mappings := config.Mappings
	if config.Authorization != nil {
		authzConfig := *config.Authorization
		authzConfig.Pool = p
		mappings = append([]router.Mapping{authz.NewHandler(authzConfig).Mapping()}, mappings...)
	}
	r, err := router.New(mappings...)
	if err != nil {
		return err
	}

	collectors, err := dispatcher.NewCollectors(config.Registerer)
	if err != nil {
		return err
	}

	d := dispatcher.New(dispatcher.Config{
		MaxConcurrentRequests: config.MaxConcurrentRequests,
		RateLimit:             config.RateLimit,
		RateBurst:             config.RateBurst,
	}, envelope.NewCodec(config.Key, p), r, collectors)

	log.Info("Server started",
		zap.String("signingKey", keys.EncodeSigningKey(config.Key.SigningKey())),
		zap.String("encryptionKey", keys.EncodeEncryptionKey(config.Key.EncryptionKey())))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		if ls.Websocket != nil {
			spawn("websocket", parallel.Fail, func(ctx context.Context) error {
				log.Info("Websocket listener started", zap.Stringer("address", ls.Websocket.Addr()))
				return transport.ServeWebsocket(ctx, ls.Websocket, transport.WebsocketConfig{
					Path:           config.WebsocketPath,
					MaxMessageSize: int64(config.MaxMessageSize),
				}, d.Serve)
			})
		}
		if ls.Resonance != nil {
			spawn("resonance", parallel.Fail, func(ctx context.Context) error {
				log.Info("Resonance listener started", zap.Stringer("address", ls.Resonance.Addr()))
				return transport.ServeResonance(ctx, ls.Resonance, transport.ResonanceConfig{
					MaxMessageSize: config.MaxMessageSize,
				}, d.Serve)
			})
		}
		return nil
	})
}
