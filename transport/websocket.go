package transport

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/walletgate/dispatcher"
)

const (
	defaultWriteTimeout = 10 * time.Second
	closeTimeout        = time.Second
)

// Handler serves accepted connection.
type Handler func(ctx context.Context, conn dispatcher.Conn) error

// WebsocketConfig is the config of websocket transport.
type WebsocketConfig struct {
	Path           string
	MaxMessageSize int64
	WriteTimeout   time.Duration
}

// ServeWebsocket accepts websocket connections and runs handler for each of them.
func ServeWebsocket(ctx context.Context, ls net.Listener, config WebsocketConfig, handler Handler) error {
	if config.Path == "" {
		config.Path = "/"
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		log := logger.Get(ctx)

		mux := http.NewServeMux()
		mux.HandleFunc(config.Path, func(w http.ResponseWriter, r *http.Request) {
			wg.Add(1)
			defer wg.Done()

			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Debug("Websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
				return
			}

			conn := newWebsocketConn(c, config)
			defer conn.Close(dispatcher.CloseNormal, "")

			if err := handler(ctx, conn); err != nil && ctx.Err() == nil {
				log.Debug("Websocket connection terminated", zap.String("remote", conn.RemoteAddr()), zap.Error(err))
			}
		})

		server := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		}

		spawn("server", parallel.Fail, func(ctx context.Context) error {
			if err := server.Serve(ls); !errors.Is(err, http.ErrServerClosed) {
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

// DialWebsocket connects to the websocket server.
func DialWebsocket(ctx context.Context, url string, config WebsocketConfig) (*WebsocketConn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", url)
	}
	return newWebsocketConn(c, config), nil
}

// WebsocketConn is the websocket connection.
type WebsocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWebsocketConn(c *websocket.Conn, config WebsocketConfig) *WebsocketConn {
	if config.MaxMessageSize > 0 {
		c.SetReadLimit(config.MaxMessageSize)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	return &WebsocketConn{
		conn:         c,
		writeTimeout: config.WriteTimeout,
	}
}

// ReadFrame reads next frame.
func (c *WebsocketConn) ReadFrame(_ context.Context) (dispatcher.Frame, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return dispatcher.Frame{}, &dispatcher.CloseError{Code: closeErr.Code, Reason: closeErr.Text}
		}
		return dispatcher.Frame{}, errors.WithStack(err)
	}

	if msgType == websocket.BinaryMessage {
		return dispatcher.Frame{Type: dispatcher.FrameBinary, Data: data}, nil
	}
	return dispatcher.Frame{Type: dispatcher.FrameText, Data: data}, nil
}

// WriteFrame writes binary frame.
func (c *WebsocketConn) WriteFrame(ctx context.Context, data []byte) error {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.conn.WriteMessage(websocket.BinaryMessage, data))
}

// WriteText writes text frame.
func (c *WebsocketConn) WriteText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.conn.WriteMessage(websocket.TextMessage, data))
}

// Close sends close frame and closes the connection.
func (c *WebsocketConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		err = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason),
			time.Now().Add(closeTimeout))
		c.writeMu.Unlock()

		if err2 := c.conn.Close(); err == nil {
			err = err2
		}
	})
	return errors.WithStack(err)
}

// RemoteAddr returns the address of the peer.
func (c *WebsocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
