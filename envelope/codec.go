package envelope

import (
	"context"

	"github.com/outofforest/walletgate/keys"
	"github.com/outofforest/walletgate/pool"
	"github.com/outofforest/walletgate/wire"
)

// Opened is the message received from the peer together with the peer's public keys.
type Opened struct {
	Message       *wire.Message
	SigningKey    wire.SigningKey
	EncryptionKey wire.EncryptionKey
}

// Codec seals and opens frames on the worker pool using the local private key.
type Codec struct {
	key  keys.PrivateKey
	pool *pool.Pool
}

// NewCodec creates new codec.
func NewCodec(key keys.PrivateKey, p *pool.Pool) *Codec {
	return &Codec{
		key:  key,
		pool: p,
	}
}

// SigningKey returns the local public signing key.
func (c *Codec) SigningKey() wire.SigningKey {
	return c.key.SigningKey()
}

// EncryptionKey returns the local public encryption key.
func (c *Codec) EncryptionKey() wire.EncryptionKey {
	return c.key.EncryptionKey()
}

// Seal seals the message for the recipient and packs it into a frame.
func (c *Codec) Seal(ctx context.Context, recipient wire.EncryptionKey, msg *wire.Message) ([]byte, error) {
	return pool.Run(ctx, c.pool, func() ([]byte, error) {
		env, err := Seal(c.key, recipient, msg)
		if err != nil {
			return nil, err
		}
		return Pack(env)
	})
}

// Open unpacks and opens the frame.
func (c *Codec) Open(ctx context.Context, frame []byte) (*Opened, error) {
	return pool.Run(ctx, c.pool, func() (*Opened, error) {
		env, err := Unpack(frame)
		if err != nil {
			return nil, err
		}
		msg, err := Open(c.key, env)
		if err != nil {
			return nil, err
		}
		return &Opened{
			Message:       msg,
			SigningKey:    env.Signer,
			EncryptionKey: env.Encrypted.Sender,
		}, nil
	})
}
