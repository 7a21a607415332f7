package walletgate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/walletgate/authz"
	authzwire "github.com/outofforest/walletgate/authz/wire"
	"github.com/outofforest/walletgate/wire"
)

// Request sends the authorization protocol message with new ID.
func Request(ctx context.Context, c *Client, msg any) (wire.MessageID, error) {
	id, err := wire.NewMessageID()
	if err != nil {
		return wire.MessageID{}, err
	}
	m, err := authzwire.NewMessage(id, msg)
	if err != nil {
		return wire.MessageID{}, err
	}
	return id, c.Send(ctx, m)
}

// Response receives next authorization protocol message and checks that it responds to the request.
func Response(ctx context.Context, c *Client, id wire.MessageID) (any, error) {
	m, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if m.ID != id {
		return nil, errors.Errorf("response to %s expected, got %s", id, m.ID)
	}
	return authzwire.Decode(m.Type, m.Data)
}

// AuthorizeTransactions sends authorization request and waits for the final response.
// RequestAccepted is skipped.
func AuthorizeTransactions(
	ctx context.Context,
	c *Client,
	req *authzwire.AuthorizeTransactionsRequest,
) (*authzwire.AuthorizeTransactionsSuccess, error) {
	id, err := Request(ctx, c, req)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := Response(ctx, c, id)
		if err != nil {
			return nil, err
		}
		switch r := resp.(type) {
		case *authzwire.RequestAccepted:
		case *authzwire.AuthorizeTransactionsSuccess:
			return r, nil
		case *authzwire.AuthorizeTransactionsFailure:
			return nil, &authz.Error{Code: r.Code, Message: r.Message}
		default:
			return nil, errors.Errorf("unexpected response %T", resp)
		}
	}
}
