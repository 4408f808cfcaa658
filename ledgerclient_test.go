package ledgerclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copperline/ledgerclient"
	"github.com/copperline/ledgerclient/pkg/batch"
	"github.com/copperline/ledgerclient/pkg/memcluster"
	"github.com/copperline/ledgerclient/pkg/types"
)

func newTestClient(t *testing.T) *ledgerclient.Client {
	t.Helper()
	cluster := memcluster.New(memcluster.Config{})
	t.Cleanup(func() { cluster.Close() })

	client, err := ledgerclient.New(ledgerclient.Config{
		Addresses: []string{"3000"},
	}, cluster.Factory())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func lookupAccount(t *testing.T, client *ledgerclient.Client, id types.Uint128) types.Account {
	t.Helper()
	ids, err := batch.NewIDs(1)
	require.NoError(t, err)
	require.NoError(t, ids.Append(id))
	accounts, err := client.LookupAccounts(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	return accounts[0]
}

func TestTwoPhaseTransferFlow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	alice, bob := types.U128(1), types.U128(2)
	accounts, err := batch.NewAccounts(2)
	require.NoError(t, err)
	require.NoError(t, accounts.Append(types.Account{ID: alice, Ledger: 1, Code: 1}))
	require.NoError(t, accounts.Append(types.Account{ID: bob, Ledger: 1, Code: 1}))
	results, err := client.CreateAccounts(ctx, accounts)
	require.NoError(t, err)
	require.Empty(t, results)

	// Phase one reserves the amount.
	pendingID := types.U128(100)
	transfers, err := batch.NewTransfers(1)
	require.NoError(t, err)
	require.NoError(t, transfers.Append(types.Transfer{
		ID:              pendingID,
		DebitAccountID:  alice,
		CreditAccountID: bob,
		Amount:          types.U128(100),
		Ledger:          1,
		Code:            1,
		Flags:           types.TransferPending,
	}))
	transferResults, err := client.CreateTransfers(ctx, transfers)
	require.NoError(t, err)
	require.Empty(t, transferResults)

	a := lookupAccount(t, client, alice)
	require.Equal(t, types.U128(100), a.DebitsPending)
	require.True(t, a.DebitsPosted.IsZero())

	// Phase two posts the full reserved amount.
	post, err := batch.NewTransfers(1)
	require.NoError(t, err)
	require.NoError(t, post.Append(types.Transfer{
		ID:        types.U128(101),
		PendingID: pendingID,
		Amount:    types.Uint128Max(),
		Flags:     types.TransferPostPendingTransfer,
	}))
	transferResults, err = client.CreateTransfers(ctx, post)
	require.NoError(t, err)
	require.Empty(t, transferResults)

	a = lookupAccount(t, client, alice)
	require.True(t, a.DebitsPending.IsZero())
	require.Equal(t, types.U128(100), a.DebitsPosted)
	b := lookupAccount(t, client, bob)
	require.Equal(t, types.U128(100), b.CreditsPosted)
}

func TestCreateAccountsReportsPerRecordFailures(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	accounts, err := batch.NewAccounts(2)
	require.NoError(t, err)
	require.NoError(t, accounts.Append(types.Account{ID: types.U128(1), Ledger: 1, Code: 1}))
	require.NoError(t, accounts.Append(types.Account{ID: types.U128(2), Ledger: 0, Code: 1}))

	results, err := client.CreateAccounts(ctx, accounts)
	require.NoError(t, err)
	require.Equal(t, []types.AccountEventResult{
		{Index: 1, Result: types.AccountLedgerMustNotBeZero},
	}, results)
}

func TestLookupUnknownIDsYieldsEmpty(t *testing.T) {
	client := newTestClient(t)

	ids, err := batch.NewIDs(1)
	require.NoError(t, err)
	require.NoError(t, ids.Append(types.U128(12345)))

	accounts, err := client.LookupAccounts(context.Background(), ids)
	require.NoError(t, err)
	require.Empty(t, accounts)

	transfers, err := client.LookupTransfers(context.Background(), ids)
	require.NoError(t, err)
	require.Empty(t, transfers)
}

func TestQueryTransfersReversed(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	accounts, err := batch.NewAccounts(2)
	require.NoError(t, err)
	require.NoError(t, accounts.Append(types.Account{ID: types.U128(1), Ledger: 1, Code: 1}))
	require.NoError(t, accounts.Append(types.Account{ID: types.U128(2), Ledger: 1, Code: 1}))
	_, err = client.CreateAccounts(ctx, accounts)
	require.NoError(t, err)

	for i := uint64(0); i < 3; i++ {
		transfers, err := batch.NewTransfers(1)
		require.NoError(t, err)
		require.NoError(t, transfers.Append(types.Transfer{
			ID:              types.U128(10 + i),
			DebitAccountID:  types.U128(1),
			CreditAccountID: types.U128(2),
			Amount:          types.U128(1),
			Ledger:          1,
			Code:            1,
		}))
		results, err := client.CreateTransfers(ctx, transfers)
		require.NoError(t, err)
		require.Empty(t, results)
	}

	got, err := client.QueryTransfers(ctx, types.QueryFilter{
		Ledger: 1,
		Limit:  10,
		Flags:  types.QueryFilterReversed,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, types.U128(12), got[0].ID)
	require.Equal(t, types.U128(10), got[2].ID)
}

func TestCloseFailsInFlightAndRejectsNewWork(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())

	ids, err := batch.NewIDs(1)
	require.NoError(t, err)
	require.NoError(t, ids.Append(types.U128(1)))
	_, err = client.LookupAccounts(context.Background(), ids)
	require.ErrorIs(t, err, ledgerclient.ErrSessionClosed)
}
