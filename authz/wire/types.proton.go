package wire

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id2 uint64 = iota + 1
	id3
	id4
	id5
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
		AuthorizeTransactionsRequest{},
		RequestAccepted{},
		AuthorizeTransactionsSuccess{},
		AuthorizeTransactionsFailure{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *AuthorizeTransactionsRequest:
		return id2, nil
	case *RequestAccepted:
		return id3, nil
	case *AuthorizeTransactionsSuccess:
		return id4, nil
	case *AuthorizeTransactionsFailure:
		return id5, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *AuthorizeTransactionsRequest:
		return size2(msg2), nil
	case *RequestAccepted:
		return size3(msg2), nil
	case *AuthorizeTransactionsSuccess:
		return size4(msg2), nil
	case *AuthorizeTransactionsFailure:
		return size5(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *AuthorizeTransactionsRequest:
		return id2, marshal2(msg2, buf), nil
	case *RequestAccepted:
		return id3, marshal3(msg2, buf), nil
	case *AuthorizeTransactionsSuccess:
		return id4, marshal4(msg2, buf), nil
	case *AuthorizeTransactionsFailure:
		return id5, marshal5(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id2:
		msg := &AuthorizeTransactionsRequest{}
		return msg, unmarshal2(msg, buf), nil
	case id3:
		msg := &RequestAccepted{}
		return msg, unmarshal3(msg, buf), nil
	case id4:
		msg := &AuthorizeTransactionsSuccess{}
		return msg, unmarshal4(msg, buf), nil
	case id5:
		msg := &AuthorizeTransactionsFailure{}
		return msg, unmarshal5(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *AuthorizeTransactionsRequest:
		return id2, makePatch2(msg2, msgSrc.(*AuthorizeTransactionsRequest), buf), nil
	case *RequestAccepted:
		return id3, makePatch3(msg2, msgSrc.(*RequestAccepted), buf), nil
	case *AuthorizeTransactionsSuccess:
		return id4, makePatch4(msg2, msgSrc.(*AuthorizeTransactionsSuccess), buf), nil
	case *AuthorizeTransactionsFailure:
		return id5, makePatch5(msg2, msgSrc.(*AuthorizeTransactionsFailure), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *AuthorizeTransactionsRequest:
		return applyPatch2(msg2, buf), nil
	case *RequestAccepted:
		return applyPatch3(msg2, buf), nil
	case *AuthorizeTransactionsSuccess:
		return applyPatch4(msg2, buf), nil
	case *AuthorizeTransactionsFailure:
		return applyPatch5(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size0(m *Transaction) uint64 {
	var n uint64 = 65
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal0(m *Transaction, b []byte) uint64 {
	var o uint64
	{
		// Sender

		copy(b[o:o+32], unsafe.Slice(&m.Sender[0], 32))
		o += 32
	}
	{
		// Group

		copy(b[o:o+32], unsafe.Slice(&m.Group[0], 32))
		o += 32
	}
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Marshal(l, b, &o)
		copy(b[o:o+l], m.Payload)
		o += l
	}

	return o
}

func unmarshal0(m *Transaction, b []byte) uint64 {
	var o uint64
	{
		// Sender

		copy(unsafe.Slice(&m.Sender[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Group

		copy(unsafe.Slice(&m.Group[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Payload

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Payload = append([]byte(nil), b[o:o+l]...)
			o += l
		}
	}

	return o
}

func size1(m *TxnRequest) uint64 {
	var n uint64 = 16
	{
		// Txn

		n += size0(&m.Txn)
	}
	return n
}

func marshal1(m *TxnRequest, b []byte) uint64 {
	var o uint64
	{
		// Txn

		o += marshal0(&m.Txn, b[o:])
	}
	{
		// ActivityID

		copy(b[o:o+16], unsafe.Slice(&m.ActivityID[0], 16))
		o += 16
	}

	return o
}

func unmarshal1(m *TxnRequest, b []byte) uint64 {
	var o uint64
	{
		// Txn

		o += unmarshal0(&m.Txn, b[o:])
	}
	{
		// ActivityID

		copy(unsafe.Slice(&m.ActivityID[0], 16), b[o:o+16])
		o += 16
	}

	return o
}

func size2(m *AuthorizeTransactionsRequest) uint64 {
	var n uint64 = 50
	{
		// AppID

		helpers.UInt64Size(m.AppID, &n)
	}
	{
		// Transactions

		l := uint64(len(m.Transactions))
		helpers.UInt64Size(l, &n)
		for _, sv1 := range m.Transactions {
			n += size1(&sv1)
		}
	}
	return n
}

func marshal2(m *AuthorizeTransactionsRequest, b []byte) uint64 {
	var o uint64
	{
		// AppID

		helpers.UInt64Marshal(m.AppID, b, &o)
	}
	{
		// Authorizer

		copy(b[o:o+32], unsafe.Slice(&m.Authorizer[0], 32))
		o += 32
	}
	{
		// Transactions

		helpers.UInt64Marshal(uint64(len(m.Transactions)), b, &o)
		for _, sv1 := range m.Transactions {
			o += marshal1(&sv1, b[o:])
		}
	}
	{
		// AppActivityID

		copy(b[o:o+16], unsafe.Slice(&m.AppActivityID[0], 16))
		o += 16
	}

	return o
}

func unmarshal2(m *AuthorizeTransactionsRequest, b []byte) uint64 {
	var o uint64
	{
		// AppID

		helpers.UInt64Unmarshal(&m.AppID, b, &o)
	}
	{
		// Authorizer

		copy(unsafe.Slice(&m.Authorizer[0], 32), b[o:o+32])
		o += 32
	}
	{
		// Transactions

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			_ = b[o : o+l]
			m.Transactions = make([]TxnRequest, l)
			for i1 := range l {
				o += unmarshal1(&m.Transactions[i1], b[o:])
			}
		}
	}
	{
		// AppActivityID

		copy(unsafe.Slice(&m.AppActivityID[0], 16), b[o:o+16])
		o += 16
	}

	return o
}

func makePatch2(m, mSrc *AuthorizeTransactionsRequest, b []byte) uint64 {
	var o uint64 = 1
	{
		// AppID

		if reflect.DeepEqual(m.AppID, mSrc.AppID) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.AppID, b, &o)
		}
	}
	{
		// Authorizer

		if reflect.DeepEqual(m.Authorizer, mSrc.Authorizer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			copy(b[o:o+32], unsafe.Slice(&m.Authorizer[0], 32))
			o += 32
		}
	}
	{
		// Transactions

		if reflect.DeepEqual(m.Transactions, mSrc.Transactions) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(uint64(len(m.Transactions)), b, &o)
			for _, sv1 := range m.Transactions {
				o += marshal1(&sv1, b[o:])
			}
		}
	}
	{
		// AppActivityID

		if reflect.DeepEqual(m.AppActivityID, mSrc.AppActivityID) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			copy(b[o:o+16], unsafe.Slice(&m.AppActivityID[0], 16))
			o += 16
		}
	}

	return o
}

func applyPatch2(m *AuthorizeTransactionsRequest, b []byte) uint64 {
	var o uint64 = 1
	{
		// AppID

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.AppID, b, &o)
		}
	}
	{
		// Authorizer

		if b[0]&0x02 != 0 {
			copy(unsafe.Slice(&m.Authorizer[0], 32), b[o:o+32])
			o += 32
		}
	}
	{
		// Transactions

		if b[0]&0x04 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				_ = b[o : o+l]
				m.Transactions = make([]TxnRequest, l)
				for i1 := range l {
					o += unmarshal1(&m.Transactions[i1], b[o:])
				}
			}
		}
	}
	{
		// AppActivityID

		if b[0]&0x08 != 0 {
			copy(unsafe.Slice(&m.AppActivityID[0], 16), b[o:o+16])
			o += 16
		}
	}

	return o
}

func size3(m *RequestAccepted) uint64 {
	var n uint64
	return n
}

func marshal3(m *RequestAccepted, b []byte) uint64 {
	var o uint64

	return o
}

func unmarshal3(m *RequestAccepted, b []byte) uint64 {
	var o uint64

	return o
}

func makePatch3(m, mSrc *RequestAccepted, b []byte) uint64 {
	var o uint64

	return o
}

func applyPatch3(m *RequestAccepted, b []byte) uint64 {
	var o uint64

	return o
}

func size4(m *AuthorizeTransactionsSuccess) uint64 {
	var n uint64 = 1
	{
		// TransactionIDs

		l := uint64(len(m.TransactionIDs))
		helpers.UInt64Size(l, &n)
		n += l
		for _, sv1 := range m.TransactionIDs {
			l := uint64(len(sv1))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal4(m *AuthorizeTransactionsSuccess, b []byte) uint64 {
	var o uint64
	{
		// TransactionIDs

		helpers.UInt64Marshal(uint64(len(m.TransactionIDs)), b, &o)
		for _, sv1 := range m.TransactionIDs {
			l := uint64(len(sv1))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], sv1)
			o += l
		}
	}

	return o
}

func unmarshal4(m *AuthorizeTransactionsSuccess, b []byte) uint64 {
	var o uint64
	{
		// TransactionIDs

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			_ = b[o : o+l]
			m.TransactionIDs = make([]string, l)
			for i1 := range l {
				var l2 uint64
				helpers.UInt64Unmarshal(&l2, b, &o)
				if l2 > 0 {
					m.TransactionIDs[i1] = string(b[o : o+l2])
					o += l2
				}
			}
		}
	}

	return o
}

func makePatch4(m, mSrc *AuthorizeTransactionsSuccess, b []byte) uint64 {
	var o uint64 = 1
	{
		// TransactionIDs

		if reflect.DeepEqual(m.TransactionIDs, mSrc.TransactionIDs) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(uint64(len(m.TransactionIDs)), b, &o)
			for _, sv1 := range m.TransactionIDs {
				l := uint64(len(sv1))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], sv1)
				o += l
			}
		}
	}

	return o
}

func applyPatch4(m *AuthorizeTransactionsSuccess, b []byte) uint64 {
	var o uint64 = 1
	{
		// TransactionIDs

		if b[0]&0x01 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				_ = b[o : o+l]
				m.TransactionIDs = make([]string, l)
				for i1 := range l {
					var l2 uint64
					helpers.UInt64Unmarshal(&l2, b, &o)
					if l2 > 0 {
						m.TransactionIDs[i1] = string(b[o : o+l2])
						o += l2
					}
				}
			}
		}
	}

	return o
}

func size5(m *AuthorizeTransactionsFailure) uint64 {
	var n uint64 = 2
	{
		// Code

		helpers.UInt64Size(m.Code, &n)
	}
	{
		// Message

		{
			l := uint64(len(m.Message))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal5(m *AuthorizeTransactionsFailure, b []byte) uint64 {
	var o uint64
	{
		// Code

		helpers.UInt64Marshal(m.Code, b, &o)
	}
	{
		// Message

		{
			l := uint64(len(m.Message))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Message)
			o += l
		}
	}

	return o
}

func unmarshal5(m *AuthorizeTransactionsFailure, b []byte) uint64 {
	var o uint64
	{
		// Code

		helpers.UInt64Unmarshal(&m.Code, b, &o)
	}
	{
		// Message

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Message = string(b[o : o+l])
				o += l
			}
		}
	}

	return o
}

func makePatch5(m, mSrc *AuthorizeTransactionsFailure, b []byte) uint64 {
	var o uint64 = 1
	{
		// Code

		if reflect.DeepEqual(m.Code, mSrc.Code) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Code, b, &o)
		}
	}
	{
		// Message

		if reflect.DeepEqual(m.Message, mSrc.Message) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.Message))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Message)
				o += l
			}
		}
	}

	return o
}

func applyPatch5(m *AuthorizeTransactionsFailure, b []byte) uint64 {
	var o uint64 = 1
	{
		// Code

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Code, b, &o)
		}
	}
	{
		// Message

		if b[0]&0x02 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Message = string(b[o : o+l])
					o += l
				}
			}
		}
	}

	return o
}
