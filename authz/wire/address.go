package wire

import (
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

func (a Address) String() string {
	return base58.Encode(a[:])
}

// ParseAddress parses base58 representation of the address.
func ParseAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, errors.Wrapf(err, "decoding address %q", s)
	}
	if len(b) != len(Address{}) {
		return Address{}, errors.Errorf("address %q has invalid length %d", s, len(b))
	}
	return Address(b), nil
}

func (id ActivityID) String() string {
	return base58.Encode(id[:])
}

// ParseActivityID parses base58 representation of the activity ID.
func ParseActivityID(s string) (ActivityID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return ActivityID{}, errors.Wrapf(err, "decoding activity ID %q", s)
	}
	if len(b) != len(ActivityID{}) {
		return ActivityID{}, errors.Errorf("activity ID %q has invalid length %d", s, len(b))
	}
	return ActivityID(b), nil
}
