package envelope

import (
	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/keys"
	"github.com/outofforest/walletgate/wire"
)

var (
	// ErrMalformedEnvelope is returned when frame cannot be decoded as an envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrSignatureVerificationFailed is returned when envelope signature does not match the ciphertext.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrDecryptionFailed is returned when ciphertext cannot be decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedMessage is returned when decrypted bytes are not a message.
	ErrMalformedMessage = errors.New("malformed message")
)

var marshaller = wire.NewMarshaller()

// Seal encrypts the message for the recipient and signs the ciphertext.
func Seal(sender keys.PrivateKey, recipient wire.EncryptionKey, msg *wire.Message) (*wire.SignedEncryptedMessage, error) {
	plaintext, err := marshal(msg)
	if err != nil {
		return nil, err
	}

	ciphertext, err := sender.Encrypt(recipient, plaintext)
	if err != nil {
		return nil, err
	}

	return &wire.SignedEncryptedMessage{
		Signer:    sender.SigningKey(),
		Signature: sender.Sign(ciphertext),
		Encrypted: wire.EncryptedMessage{
			Sender:     sender.EncryptionKey(),
			Recipient:  recipient,
			Ciphertext: ciphertext,
		},
	}, nil
}

// Open verifies the signature, decrypts the ciphertext and decodes the message.
// Decryption is never attempted if signature is invalid.
func Open(recipient keys.PrivateKey, env *wire.SignedEncryptedMessage) (*wire.Message, error) {
	if !keys.Verify(env.Signer, env.Encrypted.Ciphertext, env.Signature) {
		return nil, errors.WithStack(ErrSignatureVerificationFailed)
	}
	if env.Encrypted.Recipient != recipient.EncryptionKey() {
		return nil, errors.Wrap(ErrDecryptionFailed, "envelope addressed to another recipient")
	}

	plaintext, ok := recipient.Decrypt(env.Encrypted.Sender, env.Encrypted.Ciphertext)
	if !ok {
		return nil, errors.WithStack(ErrDecryptionFailed)
	}

	msg, err := unmarshal[wire.Message](plaintext)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	return msg, nil
}

// Pack encodes the envelope into a frame.
func Pack(env *wire.SignedEncryptedMessage) ([]byte, error) {
	return marshal(env)
}

// Unpack decodes the envelope from a frame.
func Unpack(frame []byte) (*wire.SignedEncryptedMessage, error) {
	env, err := unmarshal[wire.SignedEncryptedMessage](frame)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	return env, nil
}

func marshal(msg any) ([]byte, error) {
	size, err := marshaller.Size(msg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	_, n, err := marshaller.Marshal(msg, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func unmarshal[T any](buf []byte) (*T, error) {
	id, err := marshaller.ID(new(T))
	if err != nil {
		return nil, err
	}
	msg, n, err := marshaller.Unmarshal(id, buf)
	if err != nil {
		return nil, err
	}
	if n != uint64(len(buf)) {
		return nil, errors.Errorf("%d trailing bytes", uint64(len(buf))-n)
	}
	return msg.(*T), nil
}
