package authz

import (
	"crypto/sha512"
	"encoding/base32"

	authzwire "github.com/outofforest/walletgate/authz/wire"
)

var (
	txIDPrefix    = []byte("TX")
	groupIDPrefix = []byte("TG")

	txIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// TxHash computes the hash identifying transaction. Group ID is not included.
func TxHash(txn authzwire.Transaction) [32]byte {
	buf := make([]byte, 0, len(txIDPrefix)+len(txn.Sender)+len(txn.Payload))
	buf = append(buf, txIDPrefix...)
	buf = append(buf, txn.Sender[:]...)
	buf = append(buf, txn.Payload...)
	return sha512.Sum512_256(buf)
}

// TxID returns the printable transaction ID.
func TxID(txn authzwire.Transaction) string {
	h := TxHash(txn)
	return txIDEncoding.EncodeToString(h[:])
}

// ComputeGroupID computes group ID of the transactions in the provided order.
func ComputeGroupID(txns []authzwire.Transaction) authzwire.GroupID {
	buf := make([]byte, 0, len(groupIDPrefix)+32*len(txns))
	buf = append(buf, groupIDPrefix...)
	for _, txn := range txns {
		h := TxHash(txn)
		buf = append(buf, h[:]...)
	}
	return sha512.Sum512_256(buf)
}

// AssignGroupID sets group ID of the transactions.
func AssignGroupID(txns []authzwire.Transaction) {
	groupID := ComputeGroupID(txns)
	for i := range txns {
		txns[i].Group = groupID
	}
}
