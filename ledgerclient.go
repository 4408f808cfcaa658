// Package ledgerclient is a client binding for a replicated ledger
// cluster: it encodes account and transfer batches, submits them over one
// shared connection, and correlates the cluster's asynchronous completions
// back to the callers that are waiting on them.
//
// Example usage:
//
//	cluster := memcluster.New(memcluster.Config{})
//	defer cluster.Close()
//
//	client, err := ledgerclient.New(ledgerclient.Config{
//	    ClusterID: types.U128(0),
//	    Addresses: []string{"3000"},
//	}, cluster.Factory())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	accounts, _ := batch.NewAccounts(2)
//	accounts.Append(types.Account{ID: types.U128(1), Ledger: 1, Code: 1})
//	accounts.Append(types.Account{ID: types.U128(2), Ledger: 1, Code: 1})
//	results, err := client.CreateAccounts(ctx, accounts)
//
// An empty results slice means every record in the batch succeeded.
// Production deployments pass a core.Factory bound to the native cluster
// runtime instead of the in-process cluster.
package ledgerclient

import (
	"context"

	"github.com/copperline/ledgerclient/internal/session"
	"github.com/copperline/ledgerclient/pkg/batch"
	"github.com/copperline/ledgerclient/pkg/core"
	"github.com/copperline/ledgerclient/pkg/log"
	"github.com/copperline/ledgerclient/pkg/types"
)

// Config holds the configuration for a Client.
type Config struct {
	// ClusterID identifies the cluster, as a 128-bit value.
	ClusterID types.Uint128

	// Addresses lists the cluster replica addresses.
	Addresses []string

	// MaxConcurrentRequests caps in-flight requests per client. Submits
	// beyond the cap fail fast with ErrTooManyRequests. Zero selects
	// session.DefaultMaxConcurrentRequests.
	MaxConcurrentRequests int

	// Logger receives client diagnostics. Nil silences them.
	Logger log.Logger
}

// Request-level errors surfaced by the client. Check with errors.Is.
var (
	ErrTooManyRequests = session.ErrTooManyRequests
	ErrSessionClosed   = session.ErrSessionClosed
	ErrRequestFailed   = session.ErrRequestFailed
)

// Batch construction errors, re-exported from the batch package.
var (
	ErrInvalidCapacity = batch.ErrInvalidCapacity
	ErrBatchFull       = batch.ErrBatchFull
)

// Client submits account and transfer batches to one ledger cluster.
// It is safe for concurrent use by multiple goroutines; all callers share
// the client's single underlying connection.
type Client struct {
	sess *session.Session
}

// New connects a client through the given runtime factory.
func New(cfg Config, factory core.Factory) (*Client, error) {
	sess, err := session.New(session.Config{
		ClusterID:             cfg.ClusterID,
		Addresses:             cfg.Addresses,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		Logger:                cfg.Logger,
	}, factory)
	if err != nil {
		return nil, err
	}
	return &Client{sess: sess}, nil
}

// CreateAccounts submits a create-accounts batch. The returned slice
// carries one (index, reason) pair per failed record, in ascending index
// order; an empty slice means every account was created. The batch must
// not be mutated until CreateAccounts returns.
func (c *Client) CreateAccounts(ctx context.Context, accounts *batch.AccountBatch) ([]types.AccountEventResult, error) {
	reply, err := c.sess.Submit(ctx, types.OperationCreateAccounts, accounts.Bytes())
	if err != nil {
		return nil, err
	}
	return types.DecodeAccountEventResults(reply, accounts.Len())
}

// CreateTransfers submits a create-transfers batch, with the same result
// semantics as CreateAccounts.
func (c *Client) CreateTransfers(ctx context.Context, transfers *batch.TransferBatch) ([]types.TransferEventResult, error) {
	reply, err := c.sess.Submit(ctx, types.OperationCreateTransfers, transfers.Bytes())
	if err != nil {
		return nil, err
	}
	return types.DecodeTransferEventResults(reply, transfers.Len())
}

// LookupAccounts returns the accounts that exist among the given ids.
// Missing ids are skipped, not errors: looking up nothing but unknown ids
// yields an empty slice.
func (c *Client) LookupAccounts(ctx context.Context, ids *batch.IDBatch) ([]types.Account, error) {
	reply, err := c.sess.Submit(ctx, types.OperationLookupAccounts, ids.Bytes())
	if err != nil {
		return nil, err
	}
	return types.DecodeAccounts(reply)
}

// LookupTransfers returns the transfers that exist among the given ids.
func (c *Client) LookupTransfers(ctx context.Context, ids *batch.IDBatch) ([]types.Transfer, error) {
	reply, err := c.sess.Submit(ctx, types.OperationLookupTransfers, ids.Bytes())
	if err != nil {
		return nil, err
	}
	return types.DecodeTransfers(reply)
}

// QueryAccounts returns accounts matching the filter, in cluster timestamp
// order (descending with the reversed flag), capped at filter.Limit.
func (c *Client) QueryAccounts(ctx context.Context, filter types.QueryFilter) ([]types.Account, error) {
	payload := make([]byte, types.QueryFilterSize)
	if err := filter.MarshalInto(payload); err != nil {
		return nil, err
	}
	reply, err := c.sess.Submit(ctx, types.OperationQueryAccounts, payload)
	if err != nil {
		return nil, err
	}
	return types.DecodeAccounts(reply)
}

// QueryTransfers returns transfers matching the filter.
func (c *Client) QueryTransfers(ctx context.Context, filter types.QueryFilter) ([]types.Transfer, error) {
	payload := make([]byte, types.QueryFilterSize)
	if err := filter.MarshalInto(payload); err != nil {
		return nil, err
	}
	reply, err := c.sess.Submit(ctx, types.OperationQueryTransfers, payload)
	if err != nil {
		return nil, err
	}
	return types.DecodeTransfers(reply)
}

// InFlight returns the number of requests awaiting completion.
func (c *Client) InFlight() int {
	return c.sess.InFlight()
}

// Close fails any requests still in flight with ErrSessionClosed and
// releases the connection. Close is idempotent.
func (c *Client) Close() error {
	return c.sess.Close()
}
