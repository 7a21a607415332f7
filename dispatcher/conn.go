package dispatcher

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
)

// Close codes sent to the peer.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001

	// CloseCodeHandler is used whenever the handler layer terminates the connection.
	CloseCodeHandler = 4000
)

// Close reasons sent together with CloseCodeHandler.
const (
	ReasonInvalidMessage     = "invalid message"
	ReasonUnsupportedMsgType = "unsupported msg type"
	ReasonHandlerFailed      = "message handler failed"
)

// FrameType is the type of the transport frame.
type FrameType uint8

// Frame types.
const (
	FrameBinary FrameType = iota
	FrameText
)

// Frame is the unit of data read from the transport.
type Frame struct {
	Type FrameType
	Data []byte
}

// CloseError is returned by the connection when peer closed it.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by peer, code: %d, reason: %q", e.Code, e.Reason)
}

// IsClosed checks if error means that connection has been closed.
func IsClosed(err error) bool {
	var closeErr *CloseError
	return errors.As(err, &closeErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// Conn is the persistent bidirectional connection with the peer.
type Conn interface {
	// ReadFrame reads next frame. It must be called from single goroutine.
	ReadFrame(ctx context.Context) (Frame, error)

	// WriteFrame writes binary frame. It is safe for concurrent use.
	WriteFrame(ctx context.Context, data []byte) error

	// Close sends close code and reason to the peer and closes the connection.
	// Only the first call has an effect.
	Close(code int, reason string) error

	// RemoteAddr returns the address of the peer.
	RemoteAddr() string
}
