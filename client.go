package walletgate

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/dispatcher"
	"github.com/outofforest/walletgate/envelope"
	"github.com/outofforest/walletgate/keys"
	"github.com/outofforest/walletgate/transport"
	"github.com/outofforest/walletgate/wire"
)

// ClientConfig is the config of client.
// Exactly one of WebsocketURL and ResonanceAddress must be set.
type ClientConfig struct {
	Key            keys.PrivateKey
	ServerKey      wire.EncryptionKey
	MaxMessageSize uint64

	WebsocketURL     string
	ResonanceAddress string
}

// Client exchanges secure messages with the server.
type Client struct {
	codec  *envelope.Codec
	server wire.EncryptionKey
	conn   dispatcher.Conn

	closeOnce sync.Once
	stop      func()
}

// Dial connects to the server.
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	switch {
	case config.WebsocketURL != "" && config.ResonanceAddress != "":
		return nil, errors.New("both websocket and resonance addresses provided")
	case config.WebsocketURL != "":
		conn, err := transport.DialWebsocket(ctx, config.WebsocketURL, transport.WebsocketConfig{
			MaxMessageSize: int64(config.MaxMessageSize),
		})
		if err != nil {
			return nil, err
		}
		return newClient(config, conn, func() {}), nil
	case config.ResonanceAddress != "":
		return dialResonance(ctx, config)
	default:
		return nil, errors.New("no server address provided")
	}
}

// WithSession connects to the server, runs fn and closes the connection once fn returns.
func WithSession(ctx context.Context, config ClientConfig, fn func(ctx context.Context, c *Client) error) error {
	c, err := Dial(ctx, config)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func dialResonance(ctx context.Context, config ClientConfig) (*Client, error) {
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	connCh := make(chan *transport.ResonanceConn, 1)
	doneCh := make(chan error, 1)

	go func() {
		doneCh <- transport.RunResonanceClient(connCtx, config.ResonanceAddress, transport.ResonanceConfig{
			MaxMessageSize: config.MaxMessageSize,
		}, func(ctx context.Context, conn *transport.ResonanceConn) error {
			connCh <- conn
			<-ctx.Done()
			return errors.WithStack(ctx.Err())
		})
	}()

	stop := func() {
		cancel()
		<-doneCh
	}

	select {
	case <-ctx.Done():
		stop()
		return nil, errors.WithStack(ctx.Err())
	case err := <-doneCh:
		cancel()
		if err == nil {
			err = errors.New("connection closed")
		}
		return nil, errors.Wrapf(err, "connecting to %s", config.ResonanceAddress)
	case conn := <-connCh:
		return newClient(config, conn, stop), nil
	}
}

func newClient(config ClientConfig, conn dispatcher.Conn, stop func()) *Client {
	return &Client{
		codec:  envelope.NewCodec(config.Key, nil),
		server: config.ServerKey,
		conn:   conn,
		stop:   stop,
	}
}

// Send seals the message and sends it to the server.
func (c *Client) Send(ctx context.Context, msg *wire.Message) error {
	frame, err := c.codec.Seal(ctx, c.server, msg)
	if err != nil {
		return err
	}
	return c.conn.WriteFrame(ctx, frame)
}

// Receive receives next message from the server.
// If server closed the connection, *dispatcher.CloseError is returned.
// Client is closed if ctx is done before message arrives.
func (c *Client) Receive(ctx context.Context) (*wire.Message, error) {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	frame, err := c.conn.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, err
	}
	if frame.Type != dispatcher.FrameBinary {
		return nil, errors.New("non-binary frame received")
	}

	opened, err := c.codec.Open(ctx, frame.Data)
	if err != nil {
		return nil, err
	}
	if opened.EncryptionKey != c.server {
		return nil, errors.Errorf("message received from unexpected sender %s",
			keys.EncodeEncryptionKey(opened.EncryptionKey))
	}
	return opened.Message, nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(dispatcher.CloseNormal, "")
		c.stop()
	})
}
