package main

import (
	"github.com/outofforest/proton"
	"github.com/outofforest/walletgate/authz/wire"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message(wire.AuthorizeTransactionsRequest{}),
		proton.Message(wire.RequestAccepted{}),
		proton.Message(wire.AuthorizeTransactionsSuccess{}),
		proton.Message(wire.AuthorizeTransactionsFailure{}),
	)
}
