package authz

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	authzwire "github.com/outofforest/walletgate/authz/wire"
)

// TxnActivitySpec validates single transaction.
type TxnActivitySpec interface {
	ValidateTxn(ctx context.Context, txn authzwire.Transaction) error
}

// AppActivitySpec validates the whole batch of transactions.
type AppActivitySpec interface {
	ValidateTxns(ctx context.Context, txns []authzwire.TxnRequest) error
}

// TxnActivityFunc adapts function to TxnActivitySpec interface.
type TxnActivityFunc func(ctx context.Context, txn authzwire.Transaction) error

// ValidateTxn calls the function.
func (f TxnActivityFunc) ValidateTxn(ctx context.Context, txn authzwire.Transaction) error {
	return f(ctx, txn)
}

// AppActivityFunc adapts function to AppActivitySpec interface.
type AppActivityFunc func(ctx context.Context, txns []authzwire.TxnRequest) error

// ValidateTxns calls the function.
func (f AppActivityFunc) ValidateTxns(ctx context.Context, txns []authzwire.TxnRequest) error {
	return f(ctx, txns)
}

// Activities resolves activity specs by their IDs.
type Activities interface {
	AppActivity(id authzwire.ActivityID) (AppActivitySpec, bool)
	TxnActivity(id authzwire.ActivityID) (TxnActivitySpec, bool)
}

var _ Activities = &Catalog{}

// Catalog stores activity specs.
type Catalog struct {
	mu   sync.RWMutex
	apps map[authzwire.ActivityID]AppActivitySpec
	txns map[authzwire.ActivityID]TxnActivitySpec
}

// NewCatalog creates empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		apps: map[authzwire.ActivityID]AppActivitySpec{},
		txns: map[authzwire.ActivityID]TxnActivitySpec{},
	}
}

// AddAppActivity adds app activity spec.
func (c *Catalog) AddAppActivity(id authzwire.ActivityID, spec AppActivitySpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.apps[id]; exists {
		return errors.Errorf("app activity %s already exists", id)
	}
	c.apps[id] = spec
	return nil
}

// AddTxnActivity adds transaction activity spec.
func (c *Catalog) AddTxnActivity(id authzwire.ActivityID, spec TxnActivitySpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.txns[id]; exists {
		return errors.Errorf("transaction activity %s already exists", id)
	}
	c.txns[id] = spec
	return nil
}

// AppActivity returns app activity spec.
func (c *Catalog) AppActivity(id authzwire.ActivityID) (AppActivitySpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, exists := c.apps[id]
	return spec, exists
}

// TxnActivity returns transaction activity spec.
func (c *Catalog) TxnActivity(id authzwire.ActivityID) (TxnActivitySpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, exists := c.txns[id]
	return spec, exists
}

// AnyTxn accepts every transaction.
var AnyTxn TxnActivitySpec = TxnActivityFunc(func(context.Context, authzwire.Transaction) error {
	return nil
})

// MaxPayloadSize accepts transactions with payload not larger than limit.
func MaxPayloadSize(limit int) TxnActivitySpec {
	return TxnActivityFunc(func(_ context.Context, txn authzwire.Transaction) error {
		if len(txn.Payload) > limit {
			return errors.Errorf("payload size %d exceeds limit %d", len(txn.Payload), limit)
		}
		return nil
	})
}

// AllowedSenders accepts transactions sent by one of the accounts.
func AllowedSenders(accounts ...authzwire.Address) TxnActivitySpec {
	return TxnActivityFunc(func(_ context.Context, txn authzwire.Transaction) error {
		if !lo.Contains(accounts, txn.Sender) {
			return errors.Errorf("sender %s is not allowed", txn.Sender)
		}
		return nil
	})
}

// MaxTransactions accepts batches of at most limit transactions.
func MaxTransactions(limit int) AppActivitySpec {
	return AppActivityFunc(func(_ context.Context, txns []authzwire.TxnRequest) error {
		if len(txns) > limit {
			return errors.Errorf("%d transactions exceed limit %d", len(txns), limit)
		}
		return nil
	})
}

// RequiredTxnActivities accepts batches containing only the listed transaction activities.
func RequiredTxnActivities(ids ...authzwire.ActivityID) AppActivitySpec {
	return AppActivityFunc(func(_ context.Context, txns []authzwire.TxnRequest) error {
		for i, t := range txns {
			if !lo.Contains(ids, t.ActivityID) {
				return errors.Errorf("transaction %d has activity %s not allowed by app activity", i, t.ActivityID)
			}
		}
		return nil
	})
}

// AllTxn accepts transactions accepted by all the specs.
func AllTxn(specs ...TxnActivitySpec) TxnActivitySpec {
	return TxnActivityFunc(func(ctx context.Context, txn authzwire.Transaction) error {
		for _, s := range specs {
			if err := s.ValidateTxn(ctx, txn); err != nil {
				return err
			}
		}
		return nil
	})
}

// AllApp accepts batches accepted by all the specs.
func AllApp(specs ...AppActivitySpec) AppActivitySpec {
	return AppActivityFunc(func(ctx context.Context, txns []authzwire.TxnRequest) error {
		for _, s := range specs {
			if err := s.ValidateTxns(ctx, txns); err != nil {
				return err
			}
		}
		return nil
	})
}
