package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/walletgate"
	"github.com/outofforest/walletgate/authz"
	"github.com/outofforest/walletgate/config"
	"github.com/outofforest/walletgate/keys"
	"github.com/outofforest/walletgate/service"
)

func main() {
	flags := pflag.NewFlagSet("walletgate", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to the yaml config file")
	generateKey := flags.Bool("generate-key", false, "print new private key and exit")
	_ = flags.Parse(os.Args[1:])

	if *generateKey {
		if err := printKey(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logger.New(logger.DefaultConfig)
	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Application failed", zap.Error(err))
		os.Exit(1)
	}
}

func printKey() error {
	key, err := keys.Generate()
	if err != nil {
		return err
	}
	mnemonic, err := key.Mnemonic()
	if err != nil {
		return err
	}

	fmt.Printf("privateKey:    %s\n", key)
	fmt.Printf("mnemonic:      %s\n", mnemonic)
	fmt.Printf("signingKey:    %s\n", keys.EncodeSigningKey(key.SigningKey()))
	fmt.Printf("encryptionKey: %s\n", keys.EncodeEncryptionKey(key.EncryptionKey()))
	return nil
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	key, err := cfg.Key()
	if err != nil {
		return err
	}
	standalone, err := cfg.Registry.Build()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var ls walletgate.Listeners
	svc := service.New("walletgate", service.Hooks{
		Start: func(ctx context.Context) error {
			var err error
			ls, err = listen(cfg)
			return err
		},
	}, service.MemoryCheck(cfg.Health.MemoryYellowPercent, cfg.Health.MemoryRedPercent, cfg.Health.Interval))

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Get(ctx).Error("Stopping service failed", zap.Error(err))
		}
	}()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			return walletgate.RunServer(ctx, ls, walletgate.ServerConfig{
				Key:                   key,
				WebsocketPath:         cfg.Websocket.Path,
				MaxMessageSize:        cfg.MaxMessageSize,
				MaxConcurrentRequests: cfg.MaxConcurrentRequests,
				WorkerPoolSize:        cfg.WorkerPoolSize,
				RateLimit:             rate.Limit(cfg.RateLimit),
				RateBurst:             cfg.RateBurst,
				Registerer:            registry,
				Authorization: &authz.Config{
					Registry:             standalone.Registry,
					Activities:           standalone.Catalog,
					Authorizer:           standalone.Authorizer,
					Signer:               authz.DryRunSigner{},
					AuthorizationTimeout: cfg.AuthorizationTimeout,
				},
			})
		})
		if cfg.MetricsAddress != "" {
			spawn("metrics", parallel.Fail, func(ctx context.Context) error {
				return serveMetrics(ctx, cfg.MetricsAddress, registry, svc)
			})
		}
		return nil
	})
}

func listen(cfg config.Config) (walletgate.Listeners, error) {
	var ls walletgate.Listeners
	if cfg.Websocket.Address != "" {
		l, err := net.Listen("tcp", cfg.Websocket.Address)
		if err != nil {
			return walletgate.Listeners{}, errors.WithStack(err)
		}
		ls.Websocket = l
	}
	if cfg.Resonance.Address != "" {
		l, err := net.Listen("tcp", cfg.Resonance.Address)
		if err != nil {
			if ls.Websocket != nil {
				_ = ls.Websocket.Close()
			}
			return walletgate.Listeners{}, errors.WithStack(err)
		}
		ls.Resonance = l
	}
	return ls, nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, svc *service.Service) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		for _, r := range svc.Health() {
			fmt.Fprintf(w, "%s %s %s\n", r.Name, r.Status, r.Timestamp.UTC().Format(time.RFC3339))
		}
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			logger.Get(ctx).Info("Metrics endpoint started", zap.String("address", addr))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(err)
			}
			return errors.WithStack(ctx.Err())
		})
		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.WithStack(err)
			}
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}
