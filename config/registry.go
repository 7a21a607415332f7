package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/authz"
	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/keys"
)

// RegistryConfig describes apps, accounts and activities of standalone deployment.
type RegistryConfig struct {
	Apps          []AppConfig         `yaml:"apps"`
	Accounts      []AccountConfig     `yaml:"accounts"`
	TxnActivities []TxnActivityConfig `yaml:"txnActivities"`
	AppActivities []AppActivityConfig `yaml:"appActivities"`
}

// AppConfig describes registered app.
type AppConfig struct {
	ID      uint64 `yaml:"id"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	Keys []AppKeyConfig `yaml:"keys"`

	// Activities lists IDs of app activities the app may use.
	Activities []string `yaml:"activities"`
}

// AppKeyConfig is the pair of public keys the app sends messages with.
type AppKeyConfig struct {
	SigningKey    string `yaml:"signingKey"`
	EncryptionKey string `yaml:"encryptionKey"`
}

// AccountConfig describes subscribed account.
type AccountConfig struct {
	Address             string    `yaml:"address"`
	SubscriptionExpires time.Time `yaml:"subscriptionExpires"`
	ConnectedApps       []uint64  `yaml:"connectedApps"`

	// AutoApprove makes the static authorizer approve all the requests of the account.
	AutoApprove bool `yaml:"autoApprove"`
}

// TxnActivityConfig describes transaction activity. Zero values disable the corresponding rule.
type TxnActivityConfig struct {
	ID             string   `yaml:"id"`
	MaxPayloadSize int      `yaml:"maxPayloadSize"`
	AllowedSenders []string `yaml:"allowedSenders"`
}

// AppActivityConfig describes app activity. Zero values disable the corresponding rule.
type AppActivityConfig struct {
	ID              string   `yaml:"id"`
	MaxTransactions int      `yaml:"maxTransactions"`
	TxnActivities   []string `yaml:"txnActivities"`
}

// Standalone contains collaborators of authorization handler built from the config.
type Standalone struct {
	Registry   *authz.MemoryRegistry
	Catalog    *authz.Catalog
	Authorizer authz.StaticAuthorizer
}

// Build builds the collaborators.
func (c RegistryConfig) Build() (Standalone, error) {
	s := Standalone{
		Registry:   authz.NewMemoryRegistry(),
		Catalog:    authz.NewCatalog(),
		Authorizer: authz.StaticAuthorizer{Approved: map[authzwire.Address]bool{}},
	}

	for _, a := range c.TxnActivities {
		if err := addTxnActivity(s.Catalog, a); err != nil {
			return Standalone{}, err
		}
	}
	for _, a := range c.AppActivities {
		if err := addAppActivity(s.Catalog, a); err != nil {
			return Standalone{}, err
		}
	}
	for _, app := range c.Apps {
		if err := addApp(s.Registry, app); err != nil {
			return Standalone{}, err
		}
	}
	for _, acc := range c.Accounts {
		address, err := authzwire.ParseAddress(acc.Address)
		if err != nil {
			return Standalone{}, err
		}
		s.Registry.SetSubscription(authz.Subscription{Account: address, Expires: acc.SubscriptionExpires})
		for _, appID := range acc.ConnectedApps {
			s.Registry.ConnectWallet(address, authzwire.AppID(appID))
		}
		if acc.AutoApprove {
			s.Authorizer.Approved[address] = true
		}
	}
	return s, nil
}

func addTxnActivity(catalog *authz.Catalog, config TxnActivityConfig) error {
	id, err := authzwire.ParseActivityID(config.ID)
	if err != nil {
		return err
	}

	specs := []authz.TxnActivitySpec{authz.AnyTxn}
	if config.MaxPayloadSize > 0 {
		specs = append(specs, authz.MaxPayloadSize(config.MaxPayloadSize))
	}
	if len(config.AllowedSenders) > 0 {
		senders := make([]authzwire.Address, 0, len(config.AllowedSenders))
		for _, s := range config.AllowedSenders {
			sender, err := authzwire.ParseAddress(s)
			if err != nil {
				return err
			}
			senders = append(senders, sender)
		}
		specs = append(specs, authz.AllowedSenders(senders...))
	}
	return catalog.AddTxnActivity(id, authz.AllTxn(specs...))
}

func addAppActivity(catalog *authz.Catalog, config AppActivityConfig) error {
	id, err := authzwire.ParseActivityID(config.ID)
	if err != nil {
		return err
	}

	specs := []authz.AppActivitySpec{authz.MaxTransactions(authzwire.MaxGroupSize)}
	if config.MaxTransactions > 0 {
		specs = append(specs, authz.MaxTransactions(config.MaxTransactions))
	}
	if len(config.TxnActivities) > 0 {
		ids, err := parseActivityIDs(config.TxnActivities)
		if err != nil {
			return err
		}
		specs = append(specs, authz.RequiredTxnActivities(ids...))
	}
	return catalog.AddAppActivity(id, authz.AllApp(specs...))
}

func addApp(registry *authz.MemoryRegistry, config AppConfig) error {
	if config.ID == 0 {
		return errors.Errorf("app %q has no ID", config.Name)
	}
	appID := authzwire.AppID(config.ID)
	registry.AddApp(authz.App{ID: appID, Name: config.Name, Enabled: config.Enabled})

	for _, k := range config.Keys {
		signingKey, err := keys.ParseSigningKey(k.SigningKey)
		if err != nil {
			return err
		}
		encryptionKey, err := keys.ParseEncryptionKey(k.EncryptionKey)
		if err != nil {
			return err
		}
		registry.AddAppKeys(appID, signingKey, encryptionKey)
	}

	ids, err := parseActivityIDs(config.Activities)
	if err != nil {
		return err
	}
	for _, id := range ids {
		registry.AddAppActivity(appID, id)
	}
	return nil
}

func parseActivityIDs(ss []string) ([]authzwire.ActivityID, error) {
	ids := make([]authzwire.ActivityID, 0, len(ss))
	for _, s := range ss {
		id, err := authzwire.ParseActivityID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
