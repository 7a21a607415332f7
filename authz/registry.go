package authz

import (
	"context"
	"sync"

	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/wire"
)

var _ Registry = &MemoryRegistry{}

type appKeys struct {
	SigningKey    wire.SigningKey
	EncryptionKey wire.EncryptionKey
}

type appRecord struct {
	App        App
	Keys       map[appKeys]struct{}
	Activities map[authzwire.ActivityID]struct{}
}

type walletConnection struct {
	Account authzwire.Address
	AppID   authzwire.AppID
}

// MemoryRegistry keeps registry records in memory.
type MemoryRegistry struct {
	mu            sync.RWMutex
	apps          map[authzwire.AppID]*appRecord
	subscriptions map[authzwire.Address]Subscription
	wallets       map[walletConnection]struct{}
}

// NewMemoryRegistry creates empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		apps:          map[authzwire.AppID]*appRecord{},
		subscriptions: map[authzwire.Address]Subscription{},
		wallets:       map[walletConnection]struct{}{},
	}
}

// AddApp adds or replaces the app.
func (r *MemoryRegistry) AddApp(app App) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, exists := r.apps[app.ID]; exists {
		rec.App = app
		return
	}
	r.apps[app.ID] = &appRecord{
		App:        app,
		Keys:       map[appKeys]struct{}{},
		Activities: map[authzwire.ActivityID]struct{}{},
	}
}

// AddAppKeys registers keys the app signs and encrypts messages with.
// It returns false if app does not exist.
func (r *MemoryRegistry) AddAppKeys(
	appID authzwire.AppID,
	signingKey wire.SigningKey,
	encryptionKey wire.EncryptionKey,
) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.apps[appID]
	if !exists {
		return false
	}
	rec.Keys[appKeys{SigningKey: signingKey, EncryptionKey: encryptionKey}] = struct{}{}
	return true
}

// AddAppActivity registers activity for the app.
// It returns false if app does not exist.
func (r *MemoryRegistry) AddAppActivity(appID authzwire.AppID, activityID authzwire.ActivityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.apps[appID]
	if !exists {
		return false
	}
	rec.Activities[activityID] = struct{}{}
	return true
}

// SetSubscription sets the subscription of the account.
func (r *MemoryRegistry) SetSubscription(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscriptions[sub.Account] = sub
}

// ConnectWallet connects the account's wallet to the app.
func (r *MemoryRegistry) ConnectWallet(account authzwire.Address, appID authzwire.AppID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wallets[walletConnection{Account: account, AppID: appID}] = struct{}{}
}

// DisconnectWallet disconnects the account's wallet from the app.
func (r *MemoryRegistry) DisconnectWallet(account authzwire.Address, appID authzwire.AppID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.wallets, walletConnection{Account: account, AppID: appID})
}

// App returns the app.
func (r *MemoryRegistry) App(_ context.Context, appID authzwire.AppID) (App, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.apps[appID]
	if !exists {
		return App{}, false, nil
	}
	return rec.App, true, nil
}

// AppKeysRegistered checks if keys are registered for the app.
func (r *MemoryRegistry) AppKeysRegistered(
	_ context.Context,
	appID authzwire.AppID,
	signingKey wire.SigningKey,
	encryptionKey wire.EncryptionKey,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.apps[appID]
	if !exists {
		return false, nil
	}
	_, exists = rec.Keys[appKeys{SigningKey: signingKey, EncryptionKey: encryptionKey}]
	return exists, nil
}

// AppActivityRegistered checks if activity is registered for the app.
func (r *MemoryRegistry) AppActivityRegistered(
	_ context.Context,
	appID authzwire.AppID,
	activityID authzwire.ActivityID,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.apps[appID]
	if !exists {
		return false, nil
	}
	_, exists = rec.Activities[activityID]
	return exists, nil
}

// Subscription returns the subscription of the account.
func (r *MemoryRegistry) Subscription(_ context.Context, account authzwire.Address) (Subscription, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subscriptions[account]
	return sub, exists, nil
}

// WalletConnected checks if the account's wallet is connected to the app.
func (r *MemoryRegistry) WalletConnected(
	_ context.Context,
	account authzwire.Address,
	appID authzwire.AppID,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.wallets[walletConnection{Account: account, AppID: appID}]
	return exists, nil
}
