package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/wire"
)

func TestEncodeDecode(t *testing.T) {
	requireT := require.New(t)

	request := &authzwire.AuthorizeTransactionsRequest{
		AppID:      300,
		Authorizer: authzwire.Address{0x01, 0x02},
		Transactions: []authzwire.TxnRequest{
			{
				Txn: authzwire.Transaction{
					Sender:  authzwire.Address{0x03},
					Group:   authzwire.GroupID{0x04},
					Payload: []byte("payment"),
				},
				ActivityID: authzwire.ActivityID{0x05},
			},
			{
				Txn: authzwire.Transaction{
					Sender:  authzwire.Address{0x06},
					Group:   authzwire.GroupID{0x04},
					Payload: []byte("asset transfer"),
				},
				ActivityID: authzwire.ActivityID{0x07},
			},
		},
		AppActivityID: authzwire.ActivityID{0x08},
	}

	for _, msg := range []any{
		request,
		&authzwire.RequestAccepted{},
		&authzwire.AuthorizeTransactionsSuccess{TransactionIDs: []string{"TX123", "TX456"}},
		&authzwire.AuthorizeTransactionsFailure{Code: authzwire.AppNotRegistered, Message: "app 42 is not registered"},
	} {
		msgType, data, err := authzwire.Encode(msg)
		requireT.NoError(err)

		decoded, err := authzwire.Decode(msgType, data)
		requireT.NoError(err)
		requireT.Equal(msg, decoded)
	}
}

func TestNewMessage(t *testing.T) {
	requireT := require.New(t)

	id, err := wire.NewMessageID()
	requireT.NoError(err)

	msg, err := authzwire.NewMessage(id, &authzwire.RequestAccepted{})
	requireT.NoError(err)
	requireT.Equal(authzwire.RequestAcceptedType, msg.Type)
	requireT.Equal(id, msg.ID)
	requireT.Empty(msg.Data)

	_, err = authzwire.NewMessage(id, &wire.Message{})
	requireT.Error(err)
}

func TestDecodeInvalid(t *testing.T) {
	requireT := require.New(t)

	msgType, data, err := authzwire.Encode(&authzwire.AuthorizeTransactionsFailure{
		Code:    authzwire.Rejected,
		Message: "rejected",
	})
	requireT.NoError(err)

	_, err = authzwire.Decode(msgType, data[:len(data)-1])
	requireT.Error(err)

	_, err = authzwire.Decode(msgType, append(data, 0x00))
	requireT.Error(err)

	_, err = authzwire.Decode(wire.MustMessageType("0198a1c4-7d2e-7b61-9c30-5f3c1d2e4d01"), data)
	requireT.Error(err)

	// Number of transactions exceeding the payload size.
	_, err = authzwire.Decode(authzwire.AuthorizeTransactionsRequestType,
		[]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0xff, 0xff, 0xff, 0xff, 0x0f})
	requireT.Error(err)
}

func TestErrorCodeString(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal("AppNotRegistered", authzwire.AppNotRegistered.String())
	requireT.Equal("InvalidTxnActivityId", authzwire.InvalidTxnActivityID.String())
	requireT.Equal("ErrorCode(1000)", authzwire.ErrorCode(1000).String())
}
