package authz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/router"
	"github.com/outofforest/walletgate/wire"
)

const appID authzwire.AppID = 7

var (
	authorizer    = authzwire.Address{0x01}
	sender        = authzwire.Address{0x02}
	appActivity   = authzwire.ActivityID{0x10}
	txnActivity   = authzwire.ActivityID{0x20}
	signingKey    = wire.SigningKey{0x30}
	encryptionKey = wire.EncryptionKey{0x40}
)

type recordingReplier struct {
	mu       sync.Mutex
	messages []any
}

func (r *recordingReplier) Reply(_ context.Context, msg *wire.Message) error {
	decoded, err := authzwire.Decode(msg.Type, msg.Data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, decoded)
	return nil
}

func (r *recordingReplier) Messages() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.messages...)
}

type fakeAuthorizer struct {
	calls    atomic.Int32
	approved bool
	block    bool
}

func (a *fakeAuthorizer) RequestApproval(ctx context.Context, _ *authzwire.AuthorizeTransactionsRequest) (bool, error) {
	a.calls.Add(1)
	if a.block {
		<-ctx.Done()
		return false, errors.WithStack(ctx.Err())
	}
	return a.approved, nil
}

type fakeSigner struct {
	calls atomic.Int32
	ids   []string
	err   error
}

func (s *fakeSigner) SignAndSubmit(_ context.Context, _ []authzwire.Transaction) ([]string, error) {
	s.calls.Add(1)
	return s.ids, s.err
}

// countingRegistry counts registry calls and optionally delays app lookups ignoring cancellation.
type countingRegistry struct {
	*MemoryRegistry

	calls    atomic.Int32
	appDelay time.Duration
}

func (r *countingRegistry) App(ctx context.Context, id authzwire.AppID) (App, bool, error) {
	r.calls.Add(1)
	time.Sleep(r.appDelay)
	return r.MemoryRegistry.App(ctx, id)
}

func (r *countingRegistry) WalletConnected(ctx context.Context, account authzwire.Address, id authzwire.AppID) (bool, error) {
	r.calls.Add(1)
	return r.MemoryRegistry.WalletConnected(ctx, account, id)
}

type env struct {
	requireT   *require.Assertions
	ctx        context.Context
	registry   *countingRegistry
	catalog    *Catalog
	authorizer *fakeAuthorizer
	signer     *fakeSigner
	replier    *recordingReplier
	handler    *Handler
}

func newEnv(t *testing.T) *env {
	requireT := require.New(t)

	registry := NewMemoryRegistry()
	registry.AddApp(App{ID: appID, Name: "test", Enabled: true})
	requireT.True(registry.AddAppKeys(appID, signingKey, encryptionKey))
	requireT.True(registry.AddAppActivity(appID, appActivity))
	registry.SetSubscription(Subscription{Account: authorizer, Expires: time.Now().Add(time.Hour)})
	registry.ConnectWallet(authorizer, appID)

	catalog := NewCatalog()
	requireT.NoError(catalog.AddAppActivity(appActivity, MaxTransactions(authzwire.MaxGroupSize)))
	requireT.NoError(catalog.AddTxnActivity(txnActivity, MaxPayloadSize(8)))

	e := &env{
		requireT:   requireT,
		ctx:        qa.NewContext(t),
		registry:   &countingRegistry{MemoryRegistry: registry},
		catalog:    catalog,
		authorizer: &fakeAuthorizer{approved: true},
		signer:     &fakeSigner{ids: []string{"TX123"}},
		replier:    &recordingReplier{},
	}
	e.handler = NewHandler(Config{
		Registry:             e.registry,
		Activities:           e.catalog,
		Authorizer:           e.authorizer,
		Signer:               e.signer,
		AuthorizationTimeout: 50 * time.Millisecond,
	})
	return e
}

func newTxn(payload string) authzwire.TxnRequest {
	return authzwire.TxnRequest{
		Txn: authzwire.Transaction{
			Sender:  sender,
			Payload: []byte(payload),
		},
		ActivityID: txnActivity,
	}
}

func newRequest(txns ...authzwire.TxnRequest) *authzwire.AuthorizeTransactionsRequest {
	return &authzwire.AuthorizeTransactionsRequest{
		AppID:         appID,
		Authorizer:    authorizer,
		Transactions:  txns,
		AppActivityID: appActivity,
	}
}

func groupTxns(txns ...authzwire.TxnRequest) []authzwire.TxnRequest {
	plain := make([]authzwire.Transaction, 0, len(txns))
	for _, t := range txns {
		plain = append(plain, t.Txn)
	}
	AssignGroupID(plain)
	for i := range txns {
		txns[i].Txn = plain[i]
	}
	return txns
}

func (e *env) handle(request *authzwire.AuthorizeTransactionsRequest) error {
	id, err := wire.NewMessageID()
	e.requireT.NoError(err)
	msg, err := authzwire.NewMessage(id, request)
	e.requireT.NoError(err)

	return e.handler.Handle(e.ctx, router.Request{
		Message:       msg,
		SigningKey:    signingKey,
		EncryptionKey: encryptionKey,
		Replier:       e.replier,
	})
}

func (e *env) requireFailure(code authzwire.ErrorCode) {
	messages := e.replier.Messages()
	e.requireT.Len(messages, 1)
	failure, ok := messages[0].(*authzwire.AuthorizeTransactionsFailure)
	e.requireT.True(ok)
	e.requireT.Equal(code, failure.Code)
	e.requireT.Zero(e.authorizer.calls.Load())
	e.requireT.Zero(e.signer.calls.Load())
}

func TestSuccess(t *testing.T) {
	e := newEnv(t)

	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))

	messages := e.replier.Messages()
	e.requireT.Len(messages, 2)
	e.requireT.IsType(&authzwire.RequestAccepted{}, messages[0])
	e.requireT.Equal(&authzwire.AuthorizeTransactionsSuccess{TransactionIDs: []string{"TX123"}}, messages[1])
	e.requireT.EqualValues(1, e.authorizer.calls.Load())
	e.requireT.EqualValues(1, e.signer.calls.Load())
}

func TestGroupSuccess(t *testing.T) {
	e := newEnv(t)

	e.requireT.NoError(e.handle(newRequest(groupTxns(newTxn("a"), newTxn("b"), newTxn("c"))...)))

	messages := e.replier.Messages()
	e.requireT.Len(messages, 2)
	e.requireT.IsType(&authzwire.AuthorizeTransactionsSuccess{}, messages[1])
}

func TestAppNotRegistered(t *testing.T) {
	e := newEnv(t)

	request := newRequest(newTxn("pay"))
	request.AppID = 100
	e.requireT.NoError(e.handle(request))
	e.requireFailure(authzwire.AppNotRegistered)
}

func TestAppDisabled(t *testing.T) {
	e := newEnv(t)

	e.registry.AddApp(App{ID: appID, Name: "test"})
	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))
	e.requireFailure(authzwire.AppDisabled)
}

func TestUnregisteredKeys(t *testing.T) {
	e := newEnv(t)

	id, err := wire.NewMessageID()
	e.requireT.NoError(err)
	msg, err := authzwire.NewMessage(id, newRequest(newTxn("pay")))
	e.requireT.NoError(err)

	e.requireT.NoError(e.handler.Handle(e.ctx, router.Request{
		Message:       msg,
		SigningKey:    wire.SigningKey{0xff},
		EncryptionKey: encryptionKey,
		Replier:       e.replier,
	}))
	e.requireFailure(authzwire.UnauthorizedMessage)
}

func TestSubscription(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		e := newEnv(t)

		request := newRequest(newTxn("pay"))
		request.Authorizer = authzwire.Address{0xaa}
		e.requireT.NoError(e.handle(request))
		e.requireFailure(authzwire.AccountNotRegistered)
	})
	t.Run("expired", func(t *testing.T) {
		e := newEnv(t)

		e.registry.SetSubscription(Subscription{Account: authorizer, Expires: time.Now().Add(-time.Second)})
		e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))
		e.requireFailure(authzwire.AccountSubscriptionExpired)
	})
}

func TestWalletDisconnected(t *testing.T) {
	e := newEnv(t)

	e.registry.DisconnectWallet(authorizer, appID)
	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))
	e.requireFailure(authzwire.WalletDisconnected)
}

func TestMissingAppReportedOnce(t *testing.T) {
	e := newEnv(t)

	request := newRequest(newTxn("pay"))
	request.AppID = 100
	e.registry.ConnectWallet(authorizer, 100)
	e.requireT.NoError(e.handle(request))
	e.requireFailure(authzwire.AppNotRegistered)

	e = newEnv(t)
	request.AppID = 100
	e.requireT.NoError(e.handle(request))
	e.requireFailure(authzwire.AppNotRegistered)
}

func TestFirstObservedFailureWins(t *testing.T) {
	e := newEnv(t)

	e.registry.appDelay = 200 * time.Millisecond
	e.registry.AddApp(App{ID: appID, Name: "test"})
	e.registry.SetSubscription(Subscription{Account: authorizer, Expires: time.Now().Add(-time.Second)})

	start := time.Now()
	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))
	e.requireT.Less(time.Since(start), 150*time.Millisecond)
	e.requireFailure(authzwire.AccountSubscriptionExpired)
}

func TestInvalidMessage(t *testing.T) {
	tooMany := make([]authzwire.TxnRequest, 0, authzwire.MaxGroupSize+1)
	for range authzwire.MaxGroupSize + 1 {
		tooMany = append(tooMany, newTxn("x"))
	}

	tests := []struct {
		name    string
		request func() *authzwire.AuthorizeTransactionsRequest
	}{
		{
			name: "noTransactions",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				return newRequest()
			},
		},
		{
			name: "tooManyTransactions",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				return newRequest(groupTxns(tooMany...)...)
			},
		},
		{
			name: "noAuthorizer",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				r := newRequest(newTxn("pay"))
				r.Authorizer = authzwire.Address{}
				return r
			},
		},
		{
			name: "notGrouped",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				return newRequest(newTxn("a"), newTxn("b"))
			},
		},
		{
			name: "wrongGroupID",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				txns := groupTxns(newTxn("a"), newTxn("b"))
				txns[0].Txn.Group[0] ^= 0x01
				txns[1].Txn.Group[0] ^= 0x01
				return newRequest(txns...)
			},
		},
		{
			name: "mixedGroups",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				txns := groupTxns(newTxn("a"), newTxn("b"))
				txns[1].Txn.Group = authzwire.GroupID{0x01}
				return newRequest(txns...)
			},
		},
		{
			name: "reorderedGroup",
			request: func() *authzwire.AuthorizeTransactionsRequest {
				txns := groupTxns(newTxn("a"), newTxn("b"))
				txns[0], txns[1] = txns[1], txns[0]
				return newRequest(txns...)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)

			e.requireT.NoError(e.handle(tc.request()))
			e.requireFailure(authzwire.InvalidMessage)
			e.requireT.Zero(e.registry.calls.Load())
		})
	}
}

func TestUndecodableRequest(t *testing.T) {
	e := newEnv(t)

	id, err := wire.NewMessageID()
	e.requireT.NoError(err)
	e.requireT.NoError(e.handler.Handle(e.ctx, router.Request{
		Message: &wire.Message{
			Type: authzwire.AuthorizeTransactionsRequestType,
			ID:   id,
			Data: []byte{0xff, 0xff, 0xff},
		},
		SigningKey:    signingKey,
		EncryptionKey: encryptionKey,
		Replier:       e.replier,
	}))
	e.requireFailure(authzwire.InvalidMessage)
}

func TestActivities(t *testing.T) {
	t.Run("unknownAppActivity", func(t *testing.T) {
		e := newEnv(t)

		request := newRequest(newTxn("pay"))
		request.AppActivityID = authzwire.ActivityID{0xee}
		e.requireT.NoError(e.handle(request))
		e.requireFailure(authzwire.InvalidAppActivityID)
	})
	t.Run("appActivityNotRegistered", func(t *testing.T) {
		e := newEnv(t)

		other := authzwire.ActivityID{0x11}
		e.requireT.NoError(e.catalog.AddAppActivity(other, MaxTransactions(1)))
		request := newRequest(newTxn("pay"))
		request.AppActivityID = other
		e.requireT.NoError(e.handle(request))
		e.requireFailure(authzwire.AppActivityNotRegistered)
	})
	t.Run("unknownTxnActivity", func(t *testing.T) {
		e := newEnv(t)

		txn := newTxn("pay")
		txn.ActivityID = authzwire.ActivityID{0xee}
		e.requireT.NoError(e.handle(newRequest(txn)))
		e.requireFailure(authzwire.InvalidTxnActivityID)
	})
	t.Run("invalidTxnActivity", func(t *testing.T) {
		e := newEnv(t)

		e.requireT.NoError(e.handle(newRequest(newTxn("too long payload"))))
		e.requireFailure(authzwire.InvalidTxnActivity)
	})
	t.Run("appActivityErrorCodeIsReplaced", func(t *testing.T) {
		e := newEnv(t)

		custom := authzwire.ActivityID{0x13}
		e.requireT.NoError(e.catalog.AddAppActivity(custom,
			AppActivityFunc(func(context.Context, []authzwire.TxnRequest) error {
				return NewError(authzwire.Rejected, "batch not allowed")
			})))
		e.requireT.True(e.registry.AddAppActivity(appID, custom))

		request := newRequest(newTxn("pay"))
		request.AppActivityID = custom
		e.requireT.NoError(e.handle(request))
		e.requireFailure(authzwire.InvalidAppActivity)
	})
	t.Run("invalidAppActivity", func(t *testing.T) {
		e := newEnv(t)

		limited := authzwire.ActivityID{0x12}
		e.requireT.NoError(e.catalog.AddAppActivity(limited, MaxTransactions(1)))
		e.requireT.True(e.registry.AddAppActivity(appID, limited))

		request := newRequest(groupTxns(newTxn("a"), newTxn("b"))...)
		request.AppActivityID = limited
		e.requireT.NoError(e.handle(request))
		e.requireFailure(authzwire.InvalidAppActivity)
	})
}

func TestRejected(t *testing.T) {
	e := newEnv(t)

	e.authorizer.approved = false
	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))

	messages := e.replier.Messages()
	e.requireT.Len(messages, 2)
	e.requireT.IsType(&authzwire.RequestAccepted{}, messages[0])
	e.requireT.Equal(authzwire.Rejected, messages[1].(*authzwire.AuthorizeTransactionsFailure).Code)
	e.requireT.Zero(e.signer.calls.Load())
}

func TestTimeout(t *testing.T) {
	e := newEnv(t)

	e.authorizer.block = true
	e.requireT.NoError(e.handle(newRequest(newTxn("pay"))))

	messages := e.replier.Messages()
	e.requireT.Len(messages, 2)
	e.requireT.Equal(authzwire.Timeout, messages[1].(*authzwire.AuthorizeTransactionsFailure).Code)
	e.requireT.Zero(e.signer.calls.Load())
}

func TestSignerFailure(t *testing.T) {
	e := newEnv(t)

	e.signer.err = errors.New("ledger unavailable")
	e.requireT.Error(e.handle(newRequest(newTxn("pay"))))

	messages := e.replier.Messages()
	e.requireT.Len(messages, 2)
	e.requireT.IsType(&authzwire.RequestAccepted{}, messages[0])
	failure := messages[1].(*authzwire.AuthorizeTransactionsFailure)
	e.requireT.Equal(authzwire.Failure, failure.Code)
	e.requireT.Contains(failure.Message, "ledger unavailable")
}

func TestMapping(t *testing.T) {
	requireT := require.New(t)

	m := NewHandler(Config{}).Mapping()
	requireT.Equal([]wire.MessageType{authzwire.AuthorizeTransactionsRequestType}, m.Types)
}
