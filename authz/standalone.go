package authz

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	authzwire "github.com/outofforest/walletgate/authz/wire"
)

var (
	_ Authorizer = StaticAuthorizer{}
	_ Signer     = DryRunSigner{}
)

// StaticAuthorizer approves requests of the listed accounts and rejects all the others.
type StaticAuthorizer struct {
	Approved map[authzwire.Address]bool
}

// RequestApproval returns the decision configured for the authorizer account.
func (a StaticAuthorizer) RequestApproval(
	ctx context.Context,
	req *authzwire.AuthorizeTransactionsRequest,
) (bool, error) {
	approved := a.Approved[req.Authorizer]
	logger.Get(ctx).Info("Authorization decided", zap.Stringer("authorizer", req.Authorizer),
		zap.Bool("approved", approved))
	return approved, nil
}

// DryRunSigner does not submit anything. It returns the IDs transactions would have on the ledger.
type DryRunSigner struct{}

// SignAndSubmit returns transaction IDs.
func (DryRunSigner) SignAndSubmit(ctx context.Context, txns []authzwire.Transaction) ([]string, error) {
	ids := lo.Map(txns, func(txn authzwire.Transaction, _ int) string {
		return TxID(txn)
	})
	logger.Get(ctx).Info("Dry run, transactions not submitted", zap.Strings("txnIDs", ids))
	return ids, nil
}
