package dispatcher

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/walletgate/envelope"
	"github.com/outofforest/walletgate/router"
	"github.com/outofforest/walletgate/wire"
)

// ErrNotRunning is returned when message is dispatched outside of the session's Run.
var ErrNotRunning = errors.New("session is not running")

// DefaultMaxConcurrentRequests is the default limit of concurrently handled requests per connection.
const DefaultMaxConcurrentRequests = 1000

// Config is the config of dispatcher.
type Config struct {
	// MaxConcurrentRequests limits handlers running concurrently on single connection.
	// Messages received above the limit are handled inline by the reader.
	MaxConcurrentRequests int

	// RateLimit limits frames read per second from single connection. Zero disables the limit.
	RateLimit rate.Limit
	RateBurst int
}

// Dispatcher reads envelopes from connections and dispatches them to handlers.
type Dispatcher struct {
	config     Config
	codec      *envelope.Codec
	router     *router.Router
	collectors *Collectors
}

// New creates dispatcher.
func New(config Config, codec *envelope.Codec, r *router.Router, collectors *Collectors) *Dispatcher {
	if config.MaxConcurrentRequests <= 0 {
		config.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}
	return &Dispatcher{
		config:     config,
		codec:      codec,
		router:     r,
		collectors: collectors,
	}
}

// Serve serves the connection until it is closed.
func (d *Dispatcher) Serve(ctx context.Context, conn Conn) error {
	return d.NewSession(conn).Run(ctx)
}

// NewSession creates session for the connection.
func (d *Dispatcher) NewSession(conn Conn) *Session {
	s := &Session{
		d:    d,
		conn: conn,
		metrics: &connMetrics{
			collectors: d.collectors,
		},
	}
	if d.config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(d.config.RateLimit, d.config.RateBurst)
	}
	return s
}

// Session dispatches messages received over single connection.
type Session struct {
	d       *Dispatcher
	conn    Conn
	metrics *connMetrics
	limiter *rate.Limiter

	spawn     parallel.SpawnFn
	closeOnce sync.Once
}

// Metrics returns current metrics of the connection.
func (s *Session) Metrics() Metrics {
	return s.metrics.Snapshot()
}

// Run reads frames from the connection and dispatches them until connection is closed.
func (s *Session) Run(ctx context.Context) error {
	log := logger.Get(ctx).With(zap.String("remote", s.conn.RemoteAddr()))
	ctx = logger.WithLogger(ctx, log)

	s.d.collectors.connections.Inc()
	defer s.d.collectors.connections.Dec()

	log.Debug("Connection opened")
	defer func() {
		m := s.Metrics()
		log.Debug("Connection closed",
			zap.Uint64("received", m.Received),
			zap.Uint64("succeeded", m.Succeeded),
			zap.Uint64("failed", m.Failed),
			zap.Uint64("throttled", m.Throttled))
	}()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		s.spawn = spawn

		// Blocked reads are released by closing the connection.
		context.AfterFunc(ctx, func() {
			s.close(ctx, CloseGoingAway, "")
		})

		spawn("reader", parallel.Continue, func(ctx context.Context) error {
			for {
				if s.limiter != nil {
					if err := s.limiter.Wait(ctx); err != nil {
						return errors.WithStack(err)
					}
				}

				frame, err := s.conn.ReadFrame(ctx)
				if err != nil {
					if IsClosed(err) {
						return nil
					}
					return err
				}

				if err := s.Dispatch(ctx, frame); err != nil {
					return err
				}
			}
		})
		return nil
	})
}

// Dispatch opens the frame, routes the message and executes the handler.
// Handler is executed concurrently if concurrency limit is not reached, otherwise it runs inline.
// It must be called only from within Run.
// Returned error means that connection has been closed.
func (s *Session) Dispatch(ctx context.Context, frame Frame) error {
	if s.spawn == nil {
		return errors.WithStack(ErrNotRunning)
	}

	s.metrics.Received()

	if frame.Type != FrameBinary {
		return s.fail(ctx, ReasonInvalidMessage, errors.New("non-binary frame received"))
	}

	opened, err := s.d.codec.Open(ctx, frame.Data)
	if err != nil {
		return s.fail(ctx, ReasonInvalidMessage, err)
	}

	handler, ok := s.d.router.Route(opened.Message.Type)
	if !ok {
		return s.fail(ctx, ReasonUnsupportedMsgType,
			errors.Wrapf(router.ErrUnsupportedMessageType, "message type %s", opened.Message.Type))
	}

	req := router.Request{
		Message:       opened.Message,
		SigningKey:    opened.SigningKey,
		EncryptionKey: opened.EncryptionKey,
		Replier: replier{
			session:   s,
			recipient: opened.EncryptionKey,
		},
	}

	if s.metrics.TryStart(s.d.config.MaxConcurrentRequests) {
		s.spawn("handler", parallel.Continue, func(ctx context.Context) error {
			defer s.metrics.Done()
			return s.handle(ctx, handler, req)
		})
		return nil
	}

	s.metrics.Throttled()
	logger.Get(ctx).Debug("Concurrency limit reached, handling message inline", zap.Stringer("msgID", req.Message.ID))
	return s.handle(ctx, handler, req)
}

func (s *Session) handle(ctx context.Context, h router.Handler, req router.Request) error {
	if err := h.Handle(ctx, req); err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return s.fail(ctx, ReasonHandlerFailed, err)
	}
	s.metrics.Succeeded()
	return nil
}

func (s *Session) fail(ctx context.Context, reason string, err error) error {
	s.metrics.Failed(reason)
	logger.Get(ctx).Warn("Closing connection", zap.String("reason", reason), zap.Error(err))
	s.close(ctx, CloseCodeHandler, reason)
	return errors.Wrap(err, reason)
}

func (s *Session) close(ctx context.Context, code int, reason string) {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(code, reason); err != nil && !IsClosed(err) {
			logger.Get(ctx).Debug("Closing connection failed", zap.Error(err))
		}
	})
}

type replier struct {
	session   *Session
	recipient wire.EncryptionKey
}

func (r replier) Reply(ctx context.Context, msg *wire.Message) error {
	frame, err := r.session.d.codec.Seal(ctx, r.recipient, msg)
	if err != nil {
		return err
	}
	return r.session.conn.WriteFrame(ctx, frame)
}
