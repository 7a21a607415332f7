package wire

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewMessageID generates new time-sortable message ID.
func NewMessageID() (MessageID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return MessageID{}, errors.WithStack(err)
	}
	return MessageID(id), nil
}

// String returns the canonical representation of message ID.
func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

// MustMessageType parses message type and panics if it is invalid.
// It is meant to be used for package-level constants only.
func MustMessageType(s string) MessageType {
	return MessageType(uuid.MustParse(s))
}

// String returns the canonical representation of message type.
func (t MessageType) String() string {
	return uuid.UUID(t).String()
}
