package wire

import "strconv"

// ErrorCode is the code reported to the client in failure responses. Values must never change.
type ErrorCode uint64

// Error codes.
const (
	MalformedEnvelope ErrorCode = iota + 1
	SignatureVerificationFailed
	DecryptionFailed
	UnsupportedMessageType
	InvalidMessage
	AppNotRegistered
	AppDisabled
	AccountNotRegistered
	AccountSubscriptionExpired
	WalletDisconnected
	InvalidAppActivityID
	AppActivityNotRegistered
	InvalidTxnActivityID
	InvalidTxnActivity
	InvalidAppActivity
	Rejected
	Timeout
	Failure
	UnauthorizedMessage
)

var errorCodeNames = map[ErrorCode]string{
	MalformedEnvelope:           "MalformedEnvelope",
	SignatureVerificationFailed: "SignatureVerificationFailed",
	DecryptionFailed:            "DecryptionFailed",
	UnsupportedMessageType:      "UnsupportedMessageType",
	InvalidMessage:              "InvalidMessage",
	AppNotRegistered:            "AppNotRegistered",
	AppDisabled:                 "AppDisabled",
	AccountNotRegistered:        "AccountNotRegistered",
	AccountSubscriptionExpired:  "AccountSubscriptionExpired",
	WalletDisconnected:          "WalletDisconnected",
	InvalidAppActivityID:        "InvalidAppActivityId",
	AppActivityNotRegistered:    "AppActivityNotRegistered",
	InvalidTxnActivityID:        "InvalidTxnActivityId",
	InvalidTxnActivity:          "InvalidTxnActivity",
	InvalidAppActivity:          "InvalidAppActivity",
	Rejected:                    "Rejected",
	Timeout:                     "Timeout",
	Failure:                     "Failure",
	UnauthorizedMessage:         "UnauthorizedMessage",
}

func (c ErrorCode) String() string {
	if name, exists := errorCodeNames[c]; exists {
		return name
	}
	return "ErrorCode(" + strconv.FormatUint(uint64(c), 10) + ")"
}
