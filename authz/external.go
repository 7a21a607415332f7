package authz

import (
	"context"
	"time"

	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/wire"
)

// App is the app registered to request transaction authorizations.
type App struct {
	ID      authzwire.AppID
	Name    string
	Enabled bool
}

// Subscription is the authorizer's subscription to the service.
type Subscription struct {
	Account authzwire.Address
	Expires time.Time
}

// Expired checks if subscription is expired at the provided time.
func (s Subscription) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}

// Registry provides read-only access to registered apps, accounts and connections.
type Registry interface {
	App(ctx context.Context, appID authzwire.AppID) (App, bool, error)
	AppKeysRegistered(
		ctx context.Context,
		appID authzwire.AppID,
		signingKey wire.SigningKey,
		encryptionKey wire.EncryptionKey,
	) (bool, error)
	AppActivityRegistered(ctx context.Context, appID authzwire.AppID, activityID authzwire.ActivityID) (bool, error)
	Subscription(ctx context.Context, account authzwire.Address) (Subscription, bool, error)
	WalletConnected(ctx context.Context, account authzwire.Address, appID authzwire.AppID) (bool, error)
}

// Authorizer obtains the decision of the account owner.
type Authorizer interface {
	RequestApproval(ctx context.Context, req *authzwire.AuthorizeTransactionsRequest) (bool, error)
}

// Signer signs transactions and submits them to the ledger.
type Signer interface {
	SignAndSubmit(ctx context.Context, txns []authzwire.Transaction) ([]string, error)
}
