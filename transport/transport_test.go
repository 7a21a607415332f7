package transport_test

import (
	"context"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/walletgate/dispatcher"
	"github.com/outofforest/walletgate/transport"
)

func echo(ctx context.Context, conn dispatcher.Conn) error {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			if dispatcher.IsClosed(err) {
				return nil
			}
			return err
		}
		if frame.Type != dispatcher.FrameBinary {
			return conn.Close(dispatcher.CloseCodeHandler, dispatcher.ReasonInvalidMessage)
		}
		if err := conn.WriteFrame(ctx, frame.Data); err != nil {
			return err
		}
	}
}

func TestWebsocket(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)
	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	config := transport.WebsocketConfig{
		Path:           "/ws",
		MaxMessageSize: 1024,
	}

	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return transport.ServeWebsocket(ctx, ls, config, echo)
	})

	conn, err := transport.DialWebsocket(ctx, "ws://"+ls.Addr().String()+"/ws", config)
	requireT.NoError(err)
	defer conn.Close(dispatcher.CloseNormal, "")

	requireT.NoError(conn.WriteFrame(ctx, []byte("hello")))
	frame, err := conn.ReadFrame(ctx)
	requireT.NoError(err)
	requireT.Equal(dispatcher.FrameBinary, frame.Type)
	requireT.Equal([]byte("hello"), frame.Data)

	requireT.NoError(conn.WriteText([]byte("text")))
	_, err = conn.ReadFrame(ctx)
	requireT.True(dispatcher.IsClosed(err))

	var closeErr *dispatcher.CloseError
	requireT.True(errors.As(err, &closeErr))
	requireT.Equal(dispatcher.CloseCodeHandler, closeErr.Code)
	requireT.Equal(dispatcher.ReasonInvalidMessage, closeErr.Reason)
}

func TestWebsocketMessageTooLarge(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)
	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return transport.ServeWebsocket(ctx, ls, transport.WebsocketConfig{MaxMessageSize: 16}, echo)
	})

	conn, err := transport.DialWebsocket(ctx, "ws://"+ls.Addr().String(), transport.WebsocketConfig{})
	requireT.NoError(err)
	defer conn.Close(dispatcher.CloseNormal, "")

	requireT.NoError(conn.WriteFrame(ctx, make([]byte, 100)))
	_, err = conn.ReadFrame(ctx)
	requireT.Error(err)
}

func TestResonance(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)
	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	config := transport.ResonanceConfig{MaxMessageSize: 1024}

	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return transport.ServeResonance(ctx, ls, config, echo)
	})

	var received [][]byte
	requireT.NoError(transport.RunResonanceClient(ctx, ls.Addr().String(), config,
		func(ctx context.Context, conn *transport.ResonanceConn) error {
			for _, msg := range []string{"first", "second"} {
				if err := conn.WriteFrame(ctx, []byte(msg)); err != nil {
					return err
				}
				frame, err := conn.ReadFrame(ctx)
				if err != nil {
					return err
				}
				if frame.Type != dispatcher.FrameBinary {
					return errors.New("binary frame expected")
				}
				received = append(received, frame.Data)
			}
			return nil
		}))
	requireT.Equal([][]byte{[]byte("first"), []byte("second")}, received)
}
