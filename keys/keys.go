package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/outofforest/walletgate/wire"
)

// SeedSize is the size of the seed private key is derived from.
const SeedSize = ed25519.SeedSize

const nonceSize = 24

// ErrInvalidSeed is returned when seed has invalid length.
var ErrInvalidSeed = errors.New("invalid seed")

// PrivateKey holds the key material of a peer.
// The same seed is used as the ed25519 seed and as the curve25519 private key.
type PrivateKey struct {
	seed          [SeedSize]byte
	signing       ed25519.PrivateKey
	signingKey    wire.SigningKey
	encryptionKey wire.EncryptionKey
}

// Generate generates new random private key.
func Generate() (PrivateKey, error) {
	var seed [SeedSize]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return PrivateKey{}, errors.WithStack(err)
	}
	return FromSeed(seed[:])
}

// FromSeed derives private key from seed.
func FromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != SeedSize {
		return PrivateKey{}, errors.Wrapf(ErrInvalidSeed, "expected %d bytes, got %d", SeedSize, len(seed))
	}

	k := PrivateKey{
		signing: ed25519.NewKeyFromSeed(seed),
	}
	copy(k.seed[:], seed)
	copy(k.signingKey[:], k.signing.Public().(ed25519.PublicKey))

	pub, err := curve25519.X25519(seed, curve25519.Basepoint)
	if err != nil {
		return PrivateKey{}, errors.WithStack(err)
	}
	copy(k.encryptionKey[:], pub)

	return k, nil
}

// FromMnemonic restores private key from its bip39 mnemonic.
func FromMnemonic(mnemonic string) (PrivateKey, error) {
	seed, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return PrivateKey{}, errors.Wrap(ErrInvalidSeed, err.Error())
	}
	return FromSeed(seed)
}

// FromString restores private key from its base58 representation.
func FromString(s string) (PrivateKey, error) {
	seed, err := base58.Decode(s)
	if err != nil {
		return PrivateKey{}, errors.Wrap(ErrInvalidSeed, err.Error())
	}
	return FromSeed(seed)
}

// Mnemonic returns the bip39 mnemonic encoding the seed.
func (k PrivateKey) Mnemonic() (string, error) {
	m, err := bip39.NewMnemonic(k.seed[:])
	return m, errors.WithStack(err)
}

// String returns the base58 encoded seed.
func (k PrivateKey) String() string {
	return base58.Encode(k.seed[:])
}

// SigningKey returns the public signing key.
func (k PrivateKey) SigningKey() wire.SigningKey {
	return k.signingKey
}

// EncryptionKey returns the public encryption key.
func (k PrivateKey) EncryptionKey() wire.EncryptionKey {
	return k.encryptionKey
}

// Sign signs the data.
func (k PrivateKey) Sign(data []byte) wire.Signature {
	var sig wire.Signature
	copy(sig[:], ed25519.Sign(k.signing, data))
	return sig
}

// Encrypt encrypts and authenticates data for the recipient.
// Fresh random nonce is generated for every call and prepended to the ciphertext.
func (k PrivateKey) Encrypt(recipient wire.EncryptionKey, data []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.WithStack(err)
	}

	peer := [32]byte(recipient)
	return box.Seal(nonce[:], data, &nonce, &peer, &k.seed), nil
}

// Decrypt verifies and decrypts ciphertext produced by the sender.
func (k PrivateKey) Decrypt(sender wire.EncryptionKey, ciphertext []byte) ([]byte, bool) {
	if len(ciphertext) < nonceSize+box.Overhead {
		return nil, false
	}

	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	peer := [32]byte(sender)
	return box.Open(nil, ciphertext[nonceSize:], &nonce, &peer, &k.seed)
}

// Verify verifies the signature of data.
func Verify(signer wire.SigningKey, data []byte, sig wire.Signature) bool {
	return ed25519.Verify(signer[:], data, sig[:])
}

// EncodeSigningKey returns base58 representation of the signing key.
func EncodeSigningKey(k wire.SigningKey) string {
	return base58.Encode(k[:])
}

// ParseSigningKey parses base58 representation of the signing key.
func ParseSigningKey(s string) (wire.SigningKey, error) {
	var k wire.SigningKey
	if err := decodeKey(s, k[:]); err != nil {
		return wire.SigningKey{}, err
	}
	return k, nil
}

// EncodeEncryptionKey returns base58 representation of the encryption key.
func EncodeEncryptionKey(k wire.EncryptionKey) string {
	return base58.Encode(k[:])
}

// ParseEncryptionKey parses base58 representation of the encryption key.
func ParseEncryptionKey(s string) (wire.EncryptionKey, error) {
	var k wire.EncryptionKey
	if err := decodeKey(s, k[:]); err != nil {
		return wire.EncryptionKey{}, err
	}
	return k, nil
}

func decodeKey(s string, dst []byte) error {
	b, err := base58.Decode(s)
	if err != nil {
		return errors.Wrapf(err, "decoding key %q", s)
	}
	if len(b) != len(dst) {
		return errors.Errorf("key %q has invalid length %d", s, len(b))
	}
	copy(dst, b)
	return nil
}
