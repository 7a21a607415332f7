package main

import (
	"github.com/outofforest/proton"
	"github.com/outofforest/walletgate/wire"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message(wire.Message{}),
		proton.Message(wire.SignedEncryptedMessage{}),
	)
}
