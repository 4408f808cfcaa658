package memcluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copperline/ledgerclient/pkg/types"
)

func account(id uint64) types.Account {
	return types.Account{ID: types.U128(id), Ledger: 1, Code: 1}
}

func transfer(id, debit, credit, amount uint64) types.Transfer {
	return types.Transfer{
		ID:              types.U128(id),
		DebitAccountID:  types.U128(debit),
		CreditAccountID: types.U128(credit),
		Amount:          types.U128(amount),
		Ledger:          1,
		Code:            1,
	}
}

func newLedgerWithAccounts(t *testing.T, ids ...uint64) *ledger {
	t.Helper()
	l := newLedger()
	events := make([]types.Account, len(ids))
	for i, id := range ids {
		events[i] = account(id)
	}
	require.Empty(t, l.createAccounts(events))
	return l
}

func TestCreateAccounts(t *testing.T) {
	l := newLedger()

	results := l.createAccounts([]types.Account{account(1), account(2)})
	require.Empty(t, results)

	got := l.lookupAccounts([]types.Uint128{types.U128(1)})
	require.Len(t, got, 1)
	require.NotZero(t, got[0].Timestamp)

	// Identical resubmission reports exists; a changed field reports the
	// specific mismatch. Neither modifies the stored account.
	results = l.createAccounts([]types.Account{account(1)})
	require.Equal(t, []types.AccountEventResult{
		{Index: 0, Result: types.AccountExists},
	}, results)

	changed := account(1)
	changed.Ledger = 2
	results = l.createAccounts([]types.Account{changed})
	require.Equal(t, types.AccountExistsWithDifferentLedger, results[0].Result)
	require.Equal(t, uint32(1), l.lookupAccounts([]types.Uint128{types.U128(1)})[0].Ledger)
}

func TestCreateAccountsValidation(t *testing.T) {
	tests := []struct {
		name  string
		event types.Account
		want  types.CreateAccountResult
	}{
		{"zero id", types.Account{Ledger: 1, Code: 1}, types.AccountIDMustNotBeZero},
		{"int max id", types.Account{ID: types.Uint128Max(), Ledger: 1, Code: 1}, types.AccountIDMustNotBeIntMax},
		{"zero ledger", types.Account{ID: types.U128(1), Code: 1}, types.AccountLedgerMustNotBeZero},
		{"zero code", types.Account{ID: types.U128(1), Ledger: 1}, types.AccountCodeMustNotBeZero},
		{"nonzero timestamp", types.Account{ID: types.U128(1), Ledger: 1, Code: 1, Timestamp: 5}, types.AccountTimestampMustBeZero},
		{"nonzero balance", types.Account{ID: types.U128(1), Ledger: 1, Code: 1, DebitsPosted: types.U128(1)}, types.AccountDebitsPostedMustBeZero},
		{"exclusive flags", types.Account{
			ID: types.U128(1), Ledger: 1, Code: 1,
			Flags: types.AccountDebitsMustNotExceedCredits | types.AccountCreditsMustNotExceedDebits,
		}, types.AccountFlagsAreMutuallyExclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger()
			results := l.createAccounts([]types.Account{tt.event})
			require.Len(t, results, 1)
			require.Equal(t, tt.want, results[0].Result)
		})
	}
}

func TestLinkedAccountChainRollsBack(t *testing.T) {
	l := newLedger()

	first := account(1)
	first.Flags = types.AccountLinked
	second := account(2)
	second.Ledger = 0

	results := l.createAccounts([]types.Account{first, second})
	require.Equal(t, []types.AccountEventResult{
		{Index: 0, Result: types.AccountLinkedEventFailed},
		{Index: 1, Result: types.AccountLedgerMustNotBeZero},
	}, results)

	// Neither account exists: the chain is all or nothing.
	require.Empty(t, l.lookupAccounts([]types.Uint128{types.U128(1), types.U128(2)}))

	// Events after the chain are unaffected.
	results = l.createAccounts([]types.Account{first, second, account(3)})
	require.Len(t, results, 2)
	require.Len(t, l.lookupAccounts([]types.Uint128{types.U128(3)}), 1)
}

func TestLinkedChainOpenAtBatchEnd(t *testing.T) {
	l := newLedger()

	last := account(1)
	last.Flags = types.AccountLinked
	results := l.createAccounts([]types.Account{last})
	require.Equal(t, []types.AccountEventResult{
		{Index: 0, Result: types.AccountLinkedEventChainOpen},
	}, results)
	require.Empty(t, l.lookupAccounts([]types.Uint128{types.U128(1)}))
}

func TestLinkedTransferChainRollsBack(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	good := transfer(10, 1, 2, 50)
	good.Flags = types.TransferLinked
	bad := transfer(11, 1, 1, 50) // same account on both sides

	results := l.createTransfers([]types.Transfer{good, bad})
	require.Equal(t, []types.TransferEventResult{
		{Index: 0, Result: types.TransferLinkedEventFailed},
		{Index: 1, Result: types.TransferAccountsMustBeDifferent},
	}, results)

	// The applied member was undone: balances are untouched and the
	// transfer is not stored.
	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPosted.IsZero())
	require.Empty(t, l.lookupTransfers([]types.Uint128{types.U128(10)}))
}

func TestPlainTransferMovesPostedBalances(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	require.Empty(t, l.createTransfers([]types.Transfer{transfer(10, 1, 2, 75)}))

	accounts := l.lookupAccounts([]types.Uint128{types.U128(1), types.U128(2)})
	require.Equal(t, types.U128(75), accounts[0].DebitsPosted)
	require.Equal(t, types.U128(75), accounts[1].CreditsPosted)
	require.True(t, accounts[0].DebitsPending.IsZero())
	require.True(t, accounts[1].CreditsPending.IsZero())

	stored := l.lookupTransfers([]types.Uint128{types.U128(10)})
	require.Len(t, stored, 1)
	require.NotZero(t, stored[0].Timestamp)
}

func TestCreateTransfersValidation(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	missingDebit := transfer(10, 9, 2, 1)
	sameLedger := transfer(11, 1, 2, 1)
	sameLedger.Ledger = 2
	zeroAmount := transfer(12, 1, 2, 0)
	timeoutWithoutPending := transfer(13, 1, 2, 1)
	timeoutWithoutPending.Timeout = 5

	tests := []struct {
		name  string
		event types.Transfer
		want  types.CreateTransferResult
	}{
		{"debit account not found", missingDebit, types.TransferDebitAccountNotFound},
		{"ledger mismatch", sameLedger, types.TransferMustHaveTheSameLedgerAsAccounts},
		{"zero amount", zeroAmount, types.TransferAmountMustNotBeZero},
		{"timeout on single-phase", timeoutWithoutPending, types.TransferTimeoutReservedForPendingTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := l.createTransfers([]types.Transfer{tt.event})
			require.Len(t, results, 1)
			require.Equal(t, tt.want, results[0].Result)
		})
	}
}

func TestTransferExistsReportsSpecificMismatch(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)
	require.Empty(t, l.createTransfers([]types.Transfer{transfer(10, 1, 2, 50)}))

	results := l.createTransfers([]types.Transfer{transfer(10, 1, 2, 50)})
	require.Equal(t, types.TransferExists, results[0].Result)

	different := transfer(10, 1, 2, 99)
	results = l.createTransfers([]types.Transfer{different})
	require.Equal(t, types.TransferExistsWithDifferentAmount, results[0].Result)
}

func TestTwoPhasePostFullAmount(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	pending := transfer(10, 1, 2, 100)
	pending.Flags = types.TransferPending
	require.Empty(t, l.createTransfers([]types.Transfer{pending}))

	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.Equal(t, types.U128(100), a.DebitsPending)
	require.True(t, a.DebitsPosted.IsZero())

	// Amount int-max means "post the full pending amount".
	post := types.Transfer{
		ID:        types.U128(11),
		PendingID: types.U128(10),
		Amount:    types.Uint128Max(),
		Flags:     types.TransferPostPendingTransfer,
	}
	require.Empty(t, l.createTransfers([]types.Transfer{post}))

	a = l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPending.IsZero())
	require.Equal(t, types.U128(100), a.DebitsPosted)

	// The posted record inherits the pending transfer's routing.
	stored := l.lookupTransfers([]types.Uint128{types.U128(11)})[0]
	require.Equal(t, types.U128(1), stored.DebitAccountID)
	require.Equal(t, types.U128(2), stored.CreditAccountID)
	require.Equal(t, uint32(1), stored.Ledger)
	require.Equal(t, types.U128(100), stored.Amount)

	// A second completion of the same pending transfer fails.
	again := post
	again.ID = types.U128(12)
	results := l.createTransfers([]types.Transfer{again})
	require.Equal(t, types.TransferPendingTransferAlreadyPosted, results[0].Result)
}

func TestTwoPhasePostPartialAmount(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	pending := transfer(10, 1, 2, 100)
	pending.Flags = types.TransferPending
	require.Empty(t, l.createTransfers([]types.Transfer{pending}))

	over := types.Transfer{
		ID:        types.U128(11),
		PendingID: types.U128(10),
		Amount:    types.U128(150),
		Flags:     types.TransferPostPendingTransfer,
	}
	results := l.createTransfers([]types.Transfer{over})
	require.Equal(t, types.TransferExceedsPendingTransferAmount, results[0].Result)

	partial := over
	partial.Amount = types.U128(40)
	require.Empty(t, l.createTransfers([]types.Transfer{partial}))

	// The full reservation is released, only the partial amount posts.
	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPending.IsZero())
	require.Equal(t, types.U128(40), a.DebitsPosted)
}

func TestTwoPhaseVoidReleasesReservation(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	pending := transfer(10, 1, 2, 100)
	pending.Flags = types.TransferPending
	require.Empty(t, l.createTransfers([]types.Transfer{pending}))

	void := types.Transfer{
		ID:        types.U128(11),
		PendingID: types.U128(10),
		Flags:     types.TransferVoidPendingTransfer,
	}
	require.Empty(t, l.createTransfers([]types.Transfer{void}))

	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPending.IsZero())
	require.True(t, a.DebitsPosted.IsZero())

	post := void
	post.ID = types.U128(12)
	post.Flags = types.TransferPostPendingTransfer
	results := l.createTransfers([]types.Transfer{post})
	require.Equal(t, types.TransferPendingTransferAlreadyVoided, results[0].Result)
}

func TestTwoPhaseExpiry(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	pending := transfer(10, 1, 2, 100)
	pending.Flags = types.TransferPending
	pending.Timeout = 1
	require.Empty(t, l.createTransfers([]types.Transfer{pending}))

	// Age the reservation past its timeout instead of sleeping.
	l.transfers[types.U128(10)].Timestamp -= 2 * uint64(1e9)

	post := types.Transfer{
		ID:        types.U128(11),
		PendingID: types.U128(10),
		Flags:     types.TransferPostPendingTransfer,
	}
	results := l.createTransfers([]types.Transfer{post})
	require.Equal(t, types.TransferPendingTransferExpired, results[0].Result)

	// Expiry released the reservation.
	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPending.IsZero())
	require.True(t, a.DebitsPosted.IsZero())
}

func TestTwoPhasePostRejectsPostedOverflow(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	pending := transfer(10, 1, 2, 100)
	pending.Flags = types.TransferPending
	require.Empty(t, l.createTransfers([]types.Transfer{pending}))

	// Saturate the posted side so any post would wrap the 128-bit balance.
	l.accounts[types.U128(1)].DebitsPosted = types.Uint128Max()

	post := types.Transfer{
		ID:        types.U128(11),
		PendingID: types.U128(10),
		Flags:     types.TransferPostPendingTransfer,
	}
	results := l.createTransfers([]types.Transfer{post})
	require.Equal(t, types.TransferOverflowsDebitsPosted, results[0].Result)

	// The failed post left the reservation and balances untouched.
	a := l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.Equal(t, types.U128(100), a.DebitsPending)
	require.Equal(t, types.Uint128Max(), a.DebitsPosted)
	require.Empty(t, l.lookupTransfers([]types.Uint128{types.U128(11)}))

	// The pending transfer is still completable once it can settle.
	l.accounts[types.U128(1)].DebitsPosted = types.Uint128{}
	require.Empty(t, l.createTransfers([]types.Transfer{post}))
	a = l.lookupAccounts([]types.Uint128{types.U128(1)})[0]
	require.True(t, a.DebitsPending.IsZero())
	require.Equal(t, types.U128(100), a.DebitsPosted)
}

func TestCompletionValidation(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)
	require.Empty(t, l.createTransfers([]types.Transfer{transfer(10, 1, 2, 50)}))

	notPending := types.Transfer{
		ID:        types.U128(20),
		PendingID: types.U128(10),
		Flags:     types.TransferPostPendingTransfer,
	}
	results := l.createTransfers([]types.Transfer{notPending})
	require.Equal(t, types.TransferPendingTransferNotPending, results[0].Result)

	notFound := notPending
	notFound.PendingID = types.U128(99)
	results = l.createTransfers([]types.Transfer{notFound})
	require.Equal(t, types.TransferPendingTransferNotFound, results[0].Result)

	both := notPending
	both.Flags = types.TransferPostPendingTransfer | types.TransferVoidPendingTransfer
	results = l.createTransfers([]types.Transfer{both})
	require.Equal(t, types.TransferFlagsAreMutuallyExclusive, results[0].Result)
}

func TestDebitLimitEnforced(t *testing.T) {
	l := newLedger()

	limited := account(1)
	limited.Flags = types.AccountDebitsMustNotExceedCredits
	require.Empty(t, l.createAccounts([]types.Account{limited, account(2)}))

	// Fund the limited account with 50 credits.
	require.Empty(t, l.createTransfers([]types.Transfer{transfer(10, 2, 1, 50)}))

	// Debiting more than the posted credits is rejected.
	results := l.createTransfers([]types.Transfer{transfer(11, 1, 2, 60)})
	require.Equal(t, types.TransferExceedsCredits, results[0].Result)

	// Debiting within the limit succeeds.
	require.Empty(t, l.createTransfers([]types.Transfer{transfer(12, 1, 2, 50)}))
}

func TestBalancingDebitCapsAmount(t *testing.T) {
	l := newLedger()

	limited := account(1)
	limited.Flags = types.AccountDebitsMustNotExceedCredits
	require.Empty(t, l.createAccounts([]types.Account{limited, account(2)}))
	require.Empty(t, l.createTransfers([]types.Transfer{transfer(10, 2, 1, 50)}))

	// A balancing debit for more than the headroom moves what it can.
	balancing := transfer(11, 1, 2, 100)
	balancing.Flags = types.TransferBalancingDebit
	require.Empty(t, l.createTransfers([]types.Transfer{balancing}))

	stored := l.lookupTransfers([]types.Uint128{types.U128(11)})[0]
	require.Equal(t, types.U128(50), stored.Amount)

	// No headroom left: the next balancing debit cannot move anything.
	again := transfer(12, 1, 2, 1)
	again.Flags = types.TransferBalancingDebit
	results := l.createTransfers([]types.Transfer{again})
	require.Equal(t, types.TransferExceedsCredits, results[0].Result)
}

func TestClosingTransferClosesAccount(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)

	closing := transfer(10, 1, 2, 1)
	closing.Flags = types.TransferClosingDebit
	require.Empty(t, l.createTransfers([]types.Transfer{closing}))

	results := l.createTransfers([]types.Transfer{transfer(11, 1, 2, 1)})
	require.Equal(t, types.TransferDebitAccountAlreadyClosed, results[0].Result)
}

func TestLookupMissingRecordsIsNotAnError(t *testing.T) {
	l := newLedgerWithAccounts(t, 1)

	got := l.lookupAccounts([]types.Uint128{types.U128(9), types.U128(1)})
	require.Len(t, got, 1)
	require.Equal(t, types.U128(1), got[0].ID)
	require.Empty(t, l.lookupTransfers([]types.Uint128{types.U128(9)}))
}

func TestQueryTransfers(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2)
	for i := uint64(0); i < 5; i++ {
		tr := transfer(10+i, 1, 2, 1)
		if i%2 == 0 {
			tr.Code = 7
		}
		require.Empty(t, l.createTransfers([]types.Transfer{tr}))
	}

	// Zero filter fields match anything.
	all := l.queryTransfers(types.QueryFilter{Limit: 100})
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.Greater(t, all[i].Timestamp, all[i-1].Timestamp)
	}

	// Code filter narrows, reversed flips the timestamp order.
	byCode := l.queryTransfers(types.QueryFilter{Code: 7, Limit: 100, Flags: types.QueryFilterReversed})
	require.Len(t, byCode, 3)
	require.Equal(t, types.U128(14), byCode[0].ID)
	require.Equal(t, types.U128(10), byCode[2].ID)

	// Limit truncates after filtering.
	limited := l.queryTransfers(types.QueryFilter{Code: 7, Limit: 2})
	require.Len(t, limited, 2)
	require.Equal(t, types.U128(10), limited[0].ID)

	// Zero limit yields nothing.
	require.Empty(t, l.queryTransfers(types.QueryFilter{}))
}

func TestQueryAccountsByTimestampRange(t *testing.T) {
	l := newLedgerWithAccounts(t, 1, 2, 3)

	accounts := l.lookupAccounts([]types.Uint128{types.U128(2)})
	mid := accounts[0].Timestamp

	got := l.queryAccounts(types.QueryFilter{TimestampMin: mid, Limit: 100})
	require.Len(t, got, 2)
	require.Equal(t, types.U128(2), got[0].ID)

	got = l.queryAccounts(types.QueryFilter{TimestampMax: mid, Limit: 100})
	require.Len(t, got, 2)
	require.Equal(t, types.U128(1), got[0].ID)
}
