package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/walletgate/dispatcher"
)

// Opcodes prefixing frames sent over resonance connection.
const (
	opText   byte = 0x01
	opBinary byte = 0x02
	opClose  byte = 0x08
)

// ResonanceConfig is the config of resonance transport.
type ResonanceConfig struct {
	MaxMessageSize uint64
}

// ServeResonance accepts resonance connections and runs handler for each of them.
func ServeResonance(ctx context.Context, ls net.Listener, config ResonanceConfig, handler Handler) error {
	connConfig := resonance.Config{
		MaxMessageSize: config.MaxMessageSize + 1,
	}

	var connCounter atomic.Uint64
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			return resonance.RunServer(ctx, ls, connConfig,
				func(ctx context.Context, c *resonance.Connection) error {
					conn := newResonanceConn(c, fmt.Sprintf("%s/%d", ls.Addr(), connCounter.Add(1)))
					defer conn.Close(dispatcher.CloseNormal, "")

					if err := handler(ctx, conn); err != nil && ctx.Err() == nil {
						logger.Get(ctx).Debug("Resonance connection terminated",
							zap.String("remote", conn.RemoteAddr()), zap.Error(err))
					}
					return nil
				})
		})
		return nil
	})
}

// RunResonanceClient connects to the resonance server and runs fn with the connection.
func RunResonanceClient(
	ctx context.Context,
	addr string,
	config ResonanceConfig,
	fn func(ctx context.Context, conn *ResonanceConn) error,
) error {
	connConfig := resonance.Config{
		MaxMessageSize: config.MaxMessageSize + 1,
	}

	return resonance.RunClient(ctx, addr, connConfig, func(ctx context.Context, c *resonance.Connection) error {
		conn := newResonanceConn(c, addr)
		defer conn.Close(dispatcher.CloseNormal, "")

		return fn(ctx, conn)
	})
}

// ResonanceConn is the resonance connection carrying opcode-prefixed frames.
type ResonanceConn struct {
	conn   *resonance.Connection
	remote string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newResonanceConn(c *resonance.Connection, remote string) *ResonanceConn {
	return &ResonanceConn{
		conn:   c,
		remote: remote,
	}
}

// ReadFrame reads next frame.
func (c *ResonanceConn) ReadFrame(_ context.Context) (dispatcher.Frame, error) {
	data, err := c.conn.ReceiveRawBytes()
	if err != nil {
		return dispatcher.Frame{}, errors.WithStack(err)
	}
	if len(data) == 0 {
		return dispatcher.Frame{}, errors.New("empty frame received")
	}

	switch data[0] {
	case opBinary:
		return dispatcher.Frame{Type: dispatcher.FrameBinary, Data: append([]byte(nil), data[1:]...)}, nil
	case opText:
		return dispatcher.Frame{Type: dispatcher.FrameText, Data: append([]byte(nil), data[1:]...)}, nil
	case opClose:
		closeErr := &dispatcher.CloseError{Code: dispatcher.CloseNormal}
		if len(data) >= 3 {
			closeErr.Code = int(binary.BigEndian.Uint16(data[1:3]))
			closeErr.Reason = string(data[3:])
		}
		return dispatcher.Frame{}, closeErr
	default:
		return dispatcher.Frame{}, errors.Errorf("unknown opcode 0x%02x", data[0])
	}
}

// WriteFrame writes binary frame.
func (c *ResonanceConn) WriteFrame(_ context.Context, data []byte) error {
	return c.write(opBinary, data)
}

// WriteText writes text frame.
func (c *ResonanceConn) WriteText(data []byte) error {
	return c.write(opText, data)
}

// Close sends close frame and closes the connection.
func (c *ResonanceConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		body := make([]byte, 2, 2+len(reason))
		binary.BigEndian.PutUint16(body, uint16(code))
		body = append(body, reason...)

		err = c.write(opClose, body)
		c.conn.Close()
	})
	return err
}

// RemoteAddr returns the address of the peer.
func (c *ResonanceConn) RemoteAddr() string {
	return c.remote
}

func (c *ResonanceConn) write(op byte, data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, op)
	buf = append(buf, data...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return errors.WithStack(c.conn.SendRawBytes(buf))
}
