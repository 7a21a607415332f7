package wire

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id1 uint64 = iota + 1
	id2
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any {
		Message{},
		SignedEncryptedMessage{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Message:
		return id1, nil
	case *SignedEncryptedMessage:
		return id2, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Message:
		return size1(msg2), nil
	case *SignedEncryptedMessage:
		return size2(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Message:
		return id1, marshal1(msg2, buf), nil
	case *SignedEncryptedMessage:
		return id2, marshal2(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id1:
		msg := &Message{}
		return msg, unmarshal1(msg, buf), nil
	case id2:
		msg := &SignedEncryptedMessage{}
		return msg, unmarshal2(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *Message:
		return id1, makePatch1(msg2, msgSrc.(*Message), buf), nil
	case *SignedEncryptedMessage:
		return id2, makePatch2(msg2, msgSrc.(*SignedEncryptedMessage), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Message:
		return applyPatch1(msg2, buf), nil
	case *SignedEncryptedMessage:
		return applyPatch2(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size1(m *Message) uint64 {
	var n uint64 = 33
	{
		// Data

		l := uint64(len(m.Data))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal1(m *Message, b []byte) uint64 {
	var o uint64
	{
		// Type

		copy(b[o:o+16], unsafe.Slice(&m.Type[0], 16))
		o += 16
	}
	{
		// ID

		copy(b[o:o+16], unsafe.Slice(&m.ID[0], 16))
		o += 16
	}
	{
		// Data

		l := uint64(len(m.Data))
		helpers.UInt64Marshal(l, b, &o)
		copy(b[o:o+l], m.Data)
		o += l
	}

	return o
}

func unmarshal1(m *Message, b []byte) uint64 {
	var o uint64
	{
		// Type

		copy(unsafe.Slice(&m.Type[0], 16), b[o:o+16])
		o += 16
	}
	{
		// ID

		copy(unsafe.Slice(&m.ID[0], 16), b[o:o+16])
		o += 16
	}
	{
		// Data

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Data = append([]byte(nil), b[o:o+l]...)
			o += l
		}
	}

	return o
}

func makePatch1(m, mSrc *Message, b []byte) uint64 {
	var o uint64 = 1
	{
		// Type

		if reflect.DeepEqual(m.Type, mSrc.Type) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			copy(b[o:o+16], unsafe.Slice(&m.Type[0], 16))
			o += 16
		}
	}
	{
		// ID

		if reflect.DeepEqual(m.ID, mSrc.ID) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			copy(b[o:o+16], unsafe.Slice(&m.ID[0], 16))
			o += 16
		}
	}
	{
		// Data

		if reflect.DeepEqual(m.Data, mSrc.Data) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			l := uint64(len(m.Data))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Data)
			o += l
		}
	}

	return o
}

func applyPatch1(m *Message, b []byte) uint64 {
	var o uint64 = 1
	{
		// Type

		if b[0]&0x01 != 0 {
			copy(unsafe.Slice(&m.Type[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// ID

		if b[0]&0x02 != 0 {
			copy(unsafe.Slice(&m.ID[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// Data

		if b[0]&0x04 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Data = append([]byte(nil), b[o:o+l]...)
				o += l
			}
		}
	}

	return o
}

func size0(m *EncryptedMessage) uint64 {
	var n uint64 = 65
	{
		// Ciphertext

		l := uint64(len(m.Ciphertext))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal0(m *EncryptedMessage, b []byte) uint64 {
	var o uint64
	{
		// Sender

		copy(b[o:o+32], unsafe.Slice(&m.Sender[0], 32))
		o += 32
	}
	{
		// Recipient

		copy(b[o:o+32], unsafe.Slice(&m.Recipient[0], 32))
		o += 32
	}
	{
		// Ciphertext

		l := uint64(len(m.Ciphertext))
		helpers.UInt64Marshal(l, b, &o)
		copy(b[o:o+l], m.Ciphertext)
		o += l
	}

	return o
}

func unmarshal0(m *EncryptedMessage, b []byte) uint64 {
	var o uint64
	{
		// Sender

		copy(unsafe.Slice(&m.Sender[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Recipient

		copy(unsafe.Slice(&m.Recipient[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Ciphertext

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Ciphertext = append([]byte(nil), b[o:o+l]...)
			o += l
		}
	}

	return o
}

func size2(m *SignedEncryptedMessage) uint64 {
	var n uint64 = 96
	{
		// Encrypted

		n += size0(&m.Encrypted)
	}
	return n
}

func marshal2(m *SignedEncryptedMessage, b []byte) uint64 {
	var o uint64
	{
		// Signer

		copy(b[o:o+32], unsafe.Slice(&m.Signer[0], 32))
		o += 32
	}
	{
		// Signature

		copy(b[o:o+64], unsafe.Slice(&m.Signature[0], 64))
		o += 64
	}
	{
		// Encrypted

		o += marshal0(&m.Encrypted, b[o:])
	}

	return o
}

func unmarshal2(m *SignedEncryptedMessage, b []byte) uint64 {
	var o uint64
	{
		// Signer

		copy(unsafe.Slice(&m.Signer[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Signature

		copy(unsafe.Slice(&m.Signature[0], 64), b[o:o+64])
		o += 64
	}
	{
		// Encrypted

		o += unmarshal0(&m.Encrypted, b[o:])
	}

	return o
}

func makePatch2(m, mSrc *SignedEncryptedMessage, b []byte) uint64 {
	var o uint64 = 1
	{
		// Signer

		if reflect.DeepEqual(m.Signer, mSrc.Signer) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			copy(b[o:o+32], unsafe.Slice(&m.Signer[0], 32))
			o += 32
		}
	}
	{
		// Signature

		if reflect.DeepEqual(m.Signature, mSrc.Signature) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			copy(b[o:o+64], unsafe.Slice(&m.Signature[0], 64))
			o += 64
		}
	}
	{
		// Encrypted

		if reflect.DeepEqual(m.Encrypted, mSrc.Encrypted) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			o += marshal0(&m.Encrypted, b[o:])
		}
	}

	return o
}

func applyPatch2(m *SignedEncryptedMessage, b []byte) uint64 {
	var o uint64 = 1
	{
		// Signer

		if b[0]&0x01 != 0 {
			copy(unsafe.Slice(&m.Signer[0], 32), b[o:o+32])
			o += 32
		}
	}
	{
		// Signature

		if b[0]&0x02 != 0 {
			copy(unsafe.Slice(&m.Signature[0], 64), b[o:o+64])
			o += 64
		}
	}
	{
		// Encrypted

		if b[0]&0x04 != 0 {
			o += unmarshal0(&m.Encrypted, b[o:])
		}
	}

	return o
}
