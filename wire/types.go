package wire

type (
	// MessageID identifies single logical message, it is used to correlate responses with requests.
	MessageID [16]byte

	// MessageType identifies the schema of the message payload.
	MessageType [16]byte

	// SigningKey is the ed25519 public key used to verify envelope signatures.
	SigningKey [32]byte

	// EncryptionKey is the curve25519 public key used to encrypt messages.
	EncryptionKey [32]byte

	// Signature is the ed25519 signature of the ciphertext.
	Signature [64]byte
)

// Message is the plaintext logical message.
type Message struct {
	Type MessageType
	ID   MessageID
	Data []byte
}

// EncryptedMessage is the result of encrypting packed message.
type EncryptedMessage struct {
	Sender     EncryptionKey
	Recipient  EncryptionKey
	Ciphertext []byte
}

// SignedEncryptedMessage is the envelope sent over the wire.
type SignedEncryptedMessage struct {
	Signer    SigningKey
	Signature Signature
	Encrypted EncryptedMessage
}
