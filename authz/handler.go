package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/pool"
	"github.com/outofforest/walletgate/router"
	"github.com/outofforest/walletgate/wire"
)

// Config is the config of authorization handler.
type Config struct {
	Registry   Registry
	Activities Activities
	Authorizer Authorizer
	Signer     Signer

	// Pool is used to decode requests. If nil, requests are decoded inline.
	Pool *pool.Pool

	// AuthorizationTimeout limits the time authorizer may take. Zero means no limit.
	AuthorizationTimeout time.Duration

	// Now returns current time used to check subscriptions. Defaults to time.Now.
	Now func() time.Time
}

// Handler handles transaction authorization requests.
type Handler struct {
	config Config
}

// NewHandler creates handler.
func NewHandler(config Config) *Handler {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{config: config}
}

// Mapping returns router mapping of the handler.
func (h *Handler) Mapping() router.Mapping {
	return router.Mapping{
		Handler: h,
		Types:   []wire.MessageType{authzwire.AuthorizeTransactionsRequestType},
	}
}

// Handle handles the request.
// Failures detected before the request is accepted are reported to the client and connection survives.
// Failures after acceptance, other than rejection and timeout, are reported and returned.
func (h *Handler) Handle(ctx context.Context, req router.Request) error {
	log := logger.Get(ctx).With(zap.Stringer("msgID", req.Message.ID))

	request, err := h.validate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		log.Info("Authorization request refused", zap.Error(err))
		return reply(ctx, req, ToFailure(err))
	}

	if err := reply(ctx, req, &authzwire.RequestAccepted{}); err != nil {
		return err
	}

	txnIDs, err := h.execute(ctx, request)
	if err != nil {
		failure := ToFailure(err)
		if replyErr := reply(ctx, req, failure); replyErr != nil {
			log.Warn("Sending failure failed", zap.Error(replyErr))
			return err
		}

		switch failure.Code {
		case authzwire.Rejected, authzwire.Timeout:
			log.Info("Authorization request not approved", zap.Stringer("code", failure.Code))
			return nil
		default:
			return err
		}
	}

	log.Info("Transactions submitted", zap.Strings("txnIDs", txnIDs))
	return reply(ctx, req, &authzwire.AuthorizeTransactionsSuccess{TransactionIDs: txnIDs})
}

func (h *Handler) validate(ctx context.Context, req router.Request) (*authzwire.AuthorizeTransactionsRequest, error) {
	request, err := pool.Run(ctx, h.config.Pool, func() (*authzwire.AuthorizeTransactionsRequest, error) {
		return DecodeRequest(req.Message.Data)
	})
	if err != nil {
		return nil, err
	}

	if err := h.checkPreconditions(ctx, req, request); err != nil {
		return nil, err
	}
	if err := h.checkActivities(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// DecodeRequest decodes and validates the structure of the request.
func DecodeRequest(data []byte) (*authzwire.AuthorizeTransactionsRequest, error) {
	msg, err := authzwire.Decode(authzwire.AuthorizeTransactionsRequestType, data)
	if err != nil {
		return nil, NewError(authzwire.InvalidMessage, "decoding request failed: %s", err)
	}
	request := msg.(*authzwire.AuthorizeTransactionsRequest)

	if request.AppID == 0 {
		return nil, NewError(authzwire.InvalidMessage, "app ID is not set")
	}
	if request.Authorizer == (authzwire.Address{}) {
		return nil, NewError(authzwire.InvalidMessage, "authorizer is not set")
	}
	if len(request.Transactions) == 0 {
		return nil, NewError(authzwire.InvalidMessage, "no transactions")
	}
	if len(request.Transactions) > authzwire.MaxGroupSize {
		return nil, NewError(authzwire.InvalidMessage, "%d transactions exceed group limit %d",
			len(request.Transactions), authzwire.MaxGroupSize)
	}
	if len(request.Transactions) == 1 {
		return request, nil
	}

	groupID := request.Transactions[0].Txn.Group
	if groupID == (authzwire.GroupID{}) {
		return nil, NewError(authzwire.InvalidMessage, "transactions are not grouped")
	}
	for i, t := range request.Transactions[1:] {
		if t.Txn.Group != groupID {
			return nil, NewError(authzwire.InvalidMessage, "transaction %d belongs to another group", i+1)
		}
	}
	if ComputeGroupID(Transactions(request)) != groupID {
		return nil, NewError(authzwire.InvalidMessage, "group ID does not match transactions")
	}
	return request, nil
}

// Transactions returns the transactions of the request.
func Transactions(request *authzwire.AuthorizeTransactionsRequest) []authzwire.Transaction {
	return lo.Map(request.Transactions, func(t authzwire.TxnRequest, _ int) authzwire.Transaction {
		return t.Txn
	})
}

// checkPreconditions runs independent checks concurrently and reports the first failure observed.
// Failures observed together are reported in this order: app, app keys, authorizer subscription, wallet connection.
func (h *Handler) checkPreconditions(
	ctx context.Context,
	req router.Request,
	request *authzwire.AuthorizeTransactionsRequest,
) error {
	registry := h.config.Registry
	return firstFailure(ctx, []check{
		{
			Name: "app",
			Run: func(ctx context.Context) error {
				app, exists, err := registry.App(ctx, request.AppID)
				switch {
				case err != nil:
					return err
				case !exists:
					return NewError(authzwire.AppNotRegistered, "app %d is not registered", request.AppID)
				case !app.Enabled:
					return NewError(authzwire.AppDisabled, "app %d is disabled", request.AppID)
				}
				return nil
			},
		},
		{
			Name: "appKeys",
			Run: func(ctx context.Context) error {
				registered, err := registry.AppKeysRegistered(ctx, request.AppID, req.SigningKey, req.EncryptionKey)
				switch {
				case err != nil:
					return err
				case !registered:
					if missing, err := appMissing(ctx, registry, request.AppID); err != nil || missing {
						return err
					}
					return NewError(authzwire.UnauthorizedMessage, "message keys are not registered for app %d",
						request.AppID)
				}
				return nil
			},
		},
		{
			Name: "subscription",
			Run: func(ctx context.Context) error {
				sub, exists, err := registry.Subscription(ctx, request.Authorizer)
				switch {
				case err != nil:
					return err
				case !exists:
					return NewError(authzwire.AccountNotRegistered, "account %s is not registered", request.Authorizer)
				case sub.Expired(h.config.Now()):
					return NewError(authzwire.AccountSubscriptionExpired, "subscription of account %s expired at %s",
						request.Authorizer, sub.Expires.UTC().Format(time.RFC3339))
				}
				return nil
			},
		},
		{
			Name: "wallet",
			Run: func(ctx context.Context) error {
				connected, err := registry.WalletConnected(ctx, request.Authorizer, request.AppID)
				switch {
				case err != nil:
					return err
				case !connected:
					if missing, err := appMissing(ctx, registry, request.AppID); err != nil || missing {
						return err
					}
					return NewError(authzwire.WalletDisconnected, "wallet of account %s is not connected to app %d",
						request.Authorizer, request.AppID)
				}
				return nil
			},
		},
	})
}

// appMissing reports if app is not registered. Checks bound to the app leave reporting it to the app check,
// so missing app always results in AppNotRegistered.
func appMissing(ctx context.Context, registry Registry, appID authzwire.AppID) (bool, error) {
	_, exists, err := registry.App(ctx, appID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (h *Handler) checkActivities(ctx context.Context, request *authzwire.AuthorizeTransactionsRequest) error {
	appSpec, exists := h.config.Activities.AppActivity(request.AppActivityID)
	if !exists {
		return NewError(authzwire.InvalidAppActivityID, "app activity %s does not exist", request.AppActivityID)
	}
	registered, err := h.config.Registry.AppActivityRegistered(ctx, request.AppID, request.AppActivityID)
	if err != nil {
		return err
	}
	if !registered {
		return NewError(authzwire.AppActivityNotRegistered, "app activity %s is not registered for app %d",
			request.AppActivityID, request.AppID)
	}

	checks := make([]check, 0, len(request.Transactions))
	for i, t := range request.Transactions {
		spec, exists := h.config.Activities.TxnActivity(t.ActivityID)
		if !exists {
			return NewError(authzwire.InvalidTxnActivityID, "transaction activity %s does not exist", t.ActivityID)
		}
		checks = append(checks, check{
			Name: "txn",
			Run: func(ctx context.Context) error {
				if err := spec.ValidateTxn(ctx, t.Txn); err != nil {
					return asError(err, authzwire.InvalidTxnActivity, "transaction %d", i)
				}
				return nil
			},
		})
	}
	if err := firstFailure(ctx, checks); err != nil {
		return err
	}

	if err := appSpec.ValidateTxns(ctx, request.Transactions); err != nil {
		return NewError(authzwire.InvalidAppActivity, "app activity %s: %s", request.AppActivityID, err)
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, request *authzwire.AuthorizeTransactionsRequest) ([]string, error) {
	approveCtx := ctx
	if h.config.AuthorizationTimeout > 0 {
		var cancel context.CancelFunc
		approveCtx, cancel = context.WithTimeout(ctx, h.config.AuthorizationTimeout)
		defer cancel()
	}

	approved, err := h.config.Authorizer.RequestApproval(approveCtx, request)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(authzwire.Timeout, "authorization not received within %s", h.config.AuthorizationTimeout)
		}
		return nil, errors.Wrap(err, "requesting approval failed")
	}
	if !approved {
		return nil, NewError(authzwire.Rejected, "request rejected by account %s", request.Authorizer)
	}

	txnIDs, err := h.config.Signer.SignAndSubmit(ctx, Transactions(request))
	if err != nil {
		return nil, errors.Wrap(err, "signing transactions failed")
	}
	return txnIDs, nil
}

func asError(err error, code authzwire.ErrorCode, subject string, args ...any) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(code, "%s: %s", fmt.Sprintf(subject, args...), err)
}

func reply(ctx context.Context, req router.Request, msg any) error {
	m, err := authzwire.NewMessage(req.Message.ID, msg)
	if err != nil {
		return err
	}
	return req.Replier.Reply(ctx, m)
}
