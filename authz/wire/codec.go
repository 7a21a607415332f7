package wire

import (
	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/wire"
)

var marshaller = NewMarshaller()

// Encode returns the message type and payload of the message.
func Encode(msg any) (wire.MessageType, []byte, error) {
	var msgType wire.MessageType
	switch msg.(type) {
	case *AuthorizeTransactionsRequest:
		msgType = AuthorizeTransactionsRequestType
	case *RequestAccepted:
		msgType = RequestAcceptedType
	case *AuthorizeTransactionsSuccess:
		msgType = AuthorizeTransactionsSuccessType
	case *AuthorizeTransactionsFailure:
		msgType = AuthorizeTransactionsFailureType
	default:
		return wire.MessageType{}, nil, errors.Errorf("unknown message %T", msg)
	}

	size, err := marshaller.Size(msg)
	if err != nil {
		return wire.MessageType{}, nil, err
	}
	buf := make([]byte, size)
	_, n, err := marshaller.Marshal(msg, buf)
	if err != nil {
		return wire.MessageType{}, nil, err
	}
	return msgType, buf[:n], nil
}

// Decode decodes the payload of the message type.
func Decode(msgType wire.MessageType, data []byte) (any, error) {
	switch msgType {
	case AuthorizeTransactionsRequestType:
		return unmarshal[AuthorizeTransactionsRequest](data)
	case RequestAcceptedType:
		return unmarshal[RequestAccepted](data)
	case AuthorizeTransactionsSuccessType:
		return unmarshal[AuthorizeTransactionsSuccess](data)
	case AuthorizeTransactionsFailureType:
		return unmarshal[AuthorizeTransactionsFailure](data)
	default:
		return nil, errors.Errorf("unknown message type %s", msgType)
	}
}

// NewMessage builds the message carrying msg.
func NewMessage(id wire.MessageID, msg any) (*wire.Message, error) {
	msgType, data, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return &wire.Message{
		Type: msgType,
		ID:   id,
		Data: data,
	}, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	id, err := marshaller.ID(new(T))
	if err != nil {
		return nil, err
	}
	msg, n, err := marshaller.Unmarshal(id, data)
	if err != nil {
		return nil, err
	}
	if n != uint64(len(data)) {
		return nil, errors.Errorf("%d trailing bytes", uint64(len(data))-n)
	}
	return msg.(*T), nil
}
