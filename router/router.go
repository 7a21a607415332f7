package router

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/wire"
)

var (
	// ErrDuplicateTypeRegistration is returned when router cannot be built from the provided mappings.
	ErrDuplicateTypeRegistration = errors.New("duplicate type registration")

	// ErrUnsupportedMessageType is returned by the handler of unknown message types.
	ErrUnsupportedMessageType = errors.New("unsupported message type")
)

// Replier sends responses back to the peer a request came from.
type Replier interface {
	Reply(ctx context.Context, msg *wire.Message) error
}

// Request is the message being handled.
type Request struct {
	Message       *wire.Message
	SigningKey    wire.SigningKey
	EncryptionKey wire.EncryptionKey
	Replier       Replier
}

// Handler handles messages.
type Handler interface {
	Handle(ctx context.Context, req Request) error
}

// HandlerFunc adapts function to Handler interface.
type HandlerFunc func(ctx context.Context, req Request) error

// Handle calls the function.
func (f HandlerFunc) Handle(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Mapping assigns message types to the handler.
type Mapping struct {
	Handler Handler
	Types   []wire.MessageType
}

type unsupportedHandler struct{}

func (unsupportedHandler) Handle(_ context.Context, req Request) error {
	return errors.Wrapf(ErrUnsupportedMessageType, "message type %s", req.Message.Type)
}

// Unsupported is the handler returned for message types no handler is registered for.
var Unsupported Handler = unsupportedHandler{}

// Router routes messages to handlers by message type. It is immutable and safe for concurrent use.
type Router struct {
	handlers map[wire.MessageType]Handler
	types    []wire.MessageType
}

// New creates router.
func New(mappings ...Mapping) (*Router, error) {
	if len(mappings) == 0 {
		return nil, errors.Wrap(ErrDuplicateTypeRegistration, "no mappings provided")
	}

	r := &Router{
		handlers: map[wire.MessageType]Handler{},
	}
	for _, m := range mappings {
		if m.Handler == nil {
			return nil, errors.New("nil handler")
		}
		for _, t := range m.Types {
			if _, exists := r.handlers[t]; exists {
				return nil, errors.Wrapf(ErrDuplicateTypeRegistration, "message type %s", t)
			}
			r.handlers[t] = m.Handler
			r.types = append(r.types, t)
		}
	}
	return r, nil
}

// Route returns the handler of the message type.
// If type is not registered, Unsupported handler and false are returned.
func (r *Router) Route(t wire.MessageType) (Handler, bool) {
	if h, exists := r.handlers[t]; exists {
		return h, true
	}
	return Unsupported, false
}

// Types returns registered message types in registration order.
func (r *Router) Types() []wire.MessageType {
	return append([]wire.MessageType(nil), r.types...)
}
