package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/walletgate/authz"
	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/keys"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	requireT := require.New(t)

	config, err := Load("")
	requireT.NoError(err)
	requireT.Equal(Default(), config)
}

func TestYamlAndEnv(t *testing.T) {
	requireT := require.New(t)

	path := writeFile(t, `
websocket:
  address: localhost:1000
  path: /ws
resonance:
  address: localhost:2000
maxConcurrentRequests: 10
authorizationTimeout: 5s
health:
  memoryRedPercent: 99
`)
	t.Setenv("WALLETGATE_RESONANCE_ADDRESS", "localhost:3000")
	t.Setenv("WALLETGATE_MAX_CONCURRENT_REQUESTS", "20")
	t.Setenv("WALLETGATE_HEALTH_INTERVAL", "1m")

	config, err := Load(path)
	requireT.NoError(err)
	requireT.Equal("localhost:1000", config.Websocket.Address)
	requireT.Equal("/ws", config.Websocket.Path)
	requireT.Equal("localhost:3000", config.Resonance.Address)
	requireT.Equal(20, config.MaxConcurrentRequests)
	requireT.Equal(5*time.Second, config.AuthorizationTimeout)
	requireT.Equal(time.Minute, config.Health.Interval)
	requireT.InDelta(99, config.Health.MemoryRedPercent, 0)
	requireT.InDelta(80, config.Health.MemoryYellowPercent, 0)
	requireT.Equal(Default().MaxMessageSize, config.MaxMessageSize)
}

func TestUnknownField(t *testing.T) {
	requireT := require.New(t)

	_, err := Load(writeFile(t, "unknown: 1\n"))
	requireT.Error(err)
}

func TestInvalid(t *testing.T) {
	requireT := require.New(t)

	_, err := Load(writeFile(t, "websocket:\n  address: \"\"\n"))
	requireT.Error(err)

	t.Setenv("WALLETGATE_WORKER_POOL_SIZE", "0")
	_, err = Load("")
	requireT.Error(err)
}

func TestKey(t *testing.T) {
	requireT := require.New(t)

	key, err := keys.Generate()
	requireT.NoError(err)
	mnemonic, err := key.Mnemonic()
	requireT.NoError(err)

	config := Default()
	_, err = config.Key()
	requireT.Error(err)

	config.PrivateKey = key.String()
	k, err := config.Key()
	requireT.NoError(err)
	requireT.Equal(key.SigningKey(), k.SigningKey())

	config.PrivateKey = mnemonic
	k, err = config.Key()
	requireT.NoError(err)
	requireT.Equal(key.EncryptionKey(), k.EncryptionKey())
}

func TestBuildRegistry(t *testing.T) {
	requireT := require.New(t)
	ctx := context.Background()

	appKey, err := keys.Generate()
	requireT.NoError(err)
	account := authzwire.Address{0x01}
	appActivity := authzwire.ActivityID{0x02}
	txnActivity := authzwire.ActivityID{0x03}

	path := writeFile(t, `
registry:
  apps:
    - id: 5
      name: shop
      enabled: true
      keys:
        - signingKey: `+keys.EncodeSigningKey(appKey.SigningKey())+`
          encryptionKey: `+keys.EncodeEncryptionKey(appKey.EncryptionKey())+`
      activities: [`+appActivity.String()+`]
  accounts:
    - address: `+account.String()+`
      subscriptionExpires: 2100-01-01T00:00:00Z
      connectedApps: [5]
      autoApprove: true
  txnActivities:
    - id: `+txnActivity.String()+`
      maxPayloadSize: 4
  appActivities:
    - id: `+appActivity.String()+`
      maxTransactions: 2
      txnActivities: [`+txnActivity.String()+`]
`)
	config, err := Load(path)
	requireT.NoError(err)

	s, err := config.Registry.Build()
	requireT.NoError(err)

	app, exists, err := s.Registry.App(ctx, 5)
	requireT.NoError(err)
	requireT.True(exists)
	requireT.Equal(authz.App{ID: 5, Name: "shop", Enabled: true}, app)

	registered, err := s.Registry.AppKeysRegistered(ctx, 5, appKey.SigningKey(), appKey.EncryptionKey())
	requireT.NoError(err)
	requireT.True(registered)

	registered, err = s.Registry.AppActivityRegistered(ctx, 5, appActivity)
	requireT.NoError(err)
	requireT.True(registered)

	sub, exists, err := s.Registry.Subscription(ctx, account)
	requireT.NoError(err)
	requireT.True(exists)
	requireT.False(sub.Expired(time.Now()))

	connected, err := s.Registry.WalletConnected(ctx, account, 5)
	requireT.NoError(err)
	requireT.True(connected)

	approved, err := s.Authorizer.RequestApproval(ctx, &authzwire.AuthorizeTransactionsRequest{Authorizer: account})
	requireT.NoError(err)
	requireT.True(approved)

	txnSpec, exists := s.Catalog.TxnActivity(txnActivity)
	requireT.True(exists)
	requireT.NoError(txnSpec.ValidateTxn(ctx, authzwire.Transaction{Payload: []byte("abcd")}))
	requireT.Error(txnSpec.ValidateTxn(ctx, authzwire.Transaction{Payload: []byte("abcde")}))

	appSpec, exists := s.Catalog.AppActivity(appActivity)
	requireT.True(exists)
	requireT.NoError(appSpec.ValidateTxns(ctx, []authzwire.TxnRequest{{ActivityID: txnActivity}}))
	requireT.Error(appSpec.ValidateTxns(ctx, []authzwire.TxnRequest{{ActivityID: appActivity}}))
	requireT.Error(appSpec.ValidateTxns(ctx, []authzwire.TxnRequest{
		{ActivityID: txnActivity}, {ActivityID: txnActivity}, {ActivityID: txnActivity},
	}))
}
