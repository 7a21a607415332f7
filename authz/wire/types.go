package wire

import (
	"github.com/outofforest/walletgate/wire"
)

// MaxGroupSize is the maximum number of transactions in atomic group.
const MaxGroupSize = 16

// Message types of authorization protocol.
var (
	AuthorizeTransactionsRequestType = wire.MustMessageType("0186f3a1-37e7-7c90-b2d0-8f49a3b2c101")
	RequestAcceptedType              = wire.MustMessageType("0187231f-f849-7b3e-9c51-3a7e0d5c4102")
	AuthorizeTransactionsSuccessType = wire.MustMessageType("0186f8f4-6bb7-7e2c-a4f3-6cd1e5a2c103")
	AuthorizeTransactionsFailureType = wire.MustMessageType("0186f8f7-2a4c-7d66-9e1b-47a8b0f3c104")
)

type (
	// AppID identifies registered app.
	AppID uint64

	// Address is the ledger account address.
	Address [32]byte

	// GroupID identifies atomic group of transactions.
	GroupID [32]byte

	// ActivityID identifies activity spec.
	ActivityID [16]byte
)

// Transaction is the opaque ledger transaction.
type Transaction struct {
	Sender  Address
	Group   GroupID
	Payload []byte
}

// TxnRequest is the transaction together with the activity it is validated against.
type TxnRequest struct {
	Txn        Transaction
	ActivityID ActivityID
}

// AuthorizeTransactionsRequest requests the authorizer to approve and sign transactions.
type AuthorizeTransactionsRequest struct {
	AppID         AppID
	Authorizer    Address
	Transactions  []TxnRequest
	AppActivityID ActivityID
}

// RequestAccepted is sent when request passed the validation and is being processed.
type RequestAccepted struct{}

// AuthorizeTransactionsSuccess is sent when transactions were signed and submitted.
type AuthorizeTransactionsSuccess struct {
	TransactionIDs []string
}

// AuthorizeTransactionsFailure is sent when request failed.
type AuthorizeTransactionsFailure struct {
	Code    ErrorCode
	Message string
}
