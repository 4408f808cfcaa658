package memcluster

import (
	"math/big"
	"time"

	"github.com/google/btree"

	"github.com/copperline/ledgerclient/pkg/types"
)

const btreeDegree = 16

const accountFlagsAll = types.AccountLinked |
	types.AccountDebitsMustNotExceedCredits |
	types.AccountCreditsMustNotExceedDebits |
	types.AccountHistory |
	types.AccountClosed

const transferFlagsAll = types.TransferLinked |
	types.TransferPending |
	types.TransferPostPendingTransfer |
	types.TransferVoidPendingTransfer |
	types.TransferBalancingDebit |
	types.TransferBalancingCredit |
	types.TransferClosingDebit |
	types.TransferClosingCredit

// ledger is the single-replica state machine. It is only ever touched by
// the cluster's worker goroutine.
type ledger struct {
	accounts  map[types.Uint128]*types.Account
	transfers map[types.Uint128]*types.Transfer

	// Two-phase bookkeeping: which pending transfers have been finalized.
	posted map[types.Uint128]bool
	voided map[types.Uint128]bool

	// Timestamp-ordered indexes backing the query operations.
	accountsByTime  *btree.BTreeG[*types.Account]
	transfersByTime *btree.BTreeG[*types.Transfer]

	clock uint64
}

func newLedger() *ledger {
	return &ledger{
		accounts:  make(map[types.Uint128]*types.Account),
		transfers: make(map[types.Uint128]*types.Transfer),
		posted:    make(map[types.Uint128]bool),
		voided:    make(map[types.Uint128]bool),
		accountsByTime: btree.NewG(btreeDegree, func(a, b *types.Account) bool {
			return a.Timestamp < b.Timestamp
		}),
		transfersByTime: btree.NewG(btreeDegree, func(a, b *types.Transfer) bool {
			return a.Timestamp < b.Timestamp
		}),
	}
}

// tick assigns the next cluster timestamp. Timestamps are strictly
// increasing across all records, so they double as index keys.
func (l *ledger) tick() uint64 {
	now := uint64(time.Now().UnixNano())
	if now <= l.clock {
		now = l.clock + 1
	}
	l.clock = now
	return now
}

// createAccounts applies a create-accounts batch, honoring linked chains:
// a chain commits or rolls back as a unit, and every member except the
// actual cause reports linked_event_failed.
func (l *ledger) createAccounts(events []types.Account) []types.AccountEventResult {
	results := make([]types.AccountEventResult, 0)
	for i := 0; i < len(events); {
		if events[i].Flags&types.AccountLinked == 0 {
			if res := l.applyAccount(&events[i]); res != types.AccountOK {
				results = append(results, types.AccountEventResult{Index: uint32(i), Result: res})
			}
			i++
			continue
		}

		// The chain runs through the first event without the linked flag.
		end := i
		for end < len(events) && events[end].Flags&types.AccountLinked != 0 {
			end++
		}
		if end == len(events) {
			for k := i; k < len(events); k++ {
				results = append(results, types.AccountEventResult{
					Index: uint32(k), Result: types.AccountLinkedEventChainOpen,
				})
			}
			break
		}

		created := make([]types.Uint128, 0, end-i+1)
		failAt, failRes := -1, types.AccountOK
		for k := i; k <= end; k++ {
			res := l.applyAccount(&events[k])
			if res != types.AccountOK {
				failAt, failRes = k, res
				break
			}
			created = append(created, events[k].ID)
		}
		if failAt >= 0 {
			for _, id := range created {
				l.removeAccount(id)
			}
			for k := i; k <= end; k++ {
				res := types.AccountLinkedEventFailed
				if k == failAt {
					res = failRes
				}
				results = append(results, types.AccountEventResult{Index: uint32(k), Result: res})
			}
		}
		i = end + 1
	}
	return results
}

func (l *ledger) applyAccount(a *types.Account) types.CreateAccountResult {
	switch {
	case a.Timestamp != 0:
		return types.AccountTimestampMustBeZero
	case a.Reserved != 0:
		return types.AccountReservedField
	case a.Flags&^accountFlagsAll != 0:
		return types.AccountReservedFlag
	case a.ID.IsZero():
		return types.AccountIDMustNotBeZero
	case a.ID == types.Uint128Max():
		return types.AccountIDMustNotBeIntMax
	case a.Flags&types.AccountDebitsMustNotExceedCredits != 0 &&
		a.Flags&types.AccountCreditsMustNotExceedDebits != 0:
		return types.AccountFlagsAreMutuallyExclusive
	case !a.DebitsPending.IsZero():
		return types.AccountDebitsPendingMustBeZero
	case !a.DebitsPosted.IsZero():
		return types.AccountDebitsPostedMustBeZero
	case !a.CreditsPending.IsZero():
		return types.AccountCreditsPendingMustBeZero
	case !a.CreditsPosted.IsZero():
		return types.AccountCreditsPostedMustBeZero
	case a.Ledger == 0:
		return types.AccountLedgerMustNotBeZero
	case a.Code == 0:
		return types.AccountCodeMustNotBeZero
	}

	if existing, ok := l.accounts[a.ID]; ok {
		switch {
		case existing.Flags != a.Flags:
			return types.AccountExistsWithDifferentFlags
		case existing.UserData128 != a.UserData128:
			return types.AccountExistsWithDifferentUserData128
		case existing.UserData64 != a.UserData64:
			return types.AccountExistsWithDifferentUserData64
		case existing.UserData32 != a.UserData32:
			return types.AccountExistsWithDifferentUserData32
		case existing.Ledger != a.Ledger:
			return types.AccountExistsWithDifferentLedger
		case existing.Code != a.Code:
			return types.AccountExistsWithDifferentCode
		default:
			return types.AccountExists
		}
	}

	acct := *a
	acct.Timestamp = l.tick()
	l.accounts[acct.ID] = &acct
	l.accountsByTime.ReplaceOrInsert(&acct)
	return types.AccountOK
}

func (l *ledger) removeAccount(id types.Uint128) {
	if acct, ok := l.accounts[id]; ok {
		l.accountsByTime.Delete(acct)
		delete(l.accounts, id)
	}
}

type undoFunc func()

// createTransfers applies a create-transfers batch with the same chain
// semantics as createAccounts. Applied chain members are rolled back
// through their undo closures when a later member fails.
func (l *ledger) createTransfers(events []types.Transfer) []types.TransferEventResult {
	results := make([]types.TransferEventResult, 0)
	for i := 0; i < len(events); {
		if events[i].Flags&types.TransferLinked == 0 {
			if res, _ := l.applyTransfer(&events[i]); res != types.TransferOK {
				results = append(results, types.TransferEventResult{Index: uint32(i), Result: res})
			}
			i++
			continue
		}

		end := i
		for end < len(events) && events[end].Flags&types.TransferLinked != 0 {
			end++
		}
		if end == len(events) {
			for k := i; k < len(events); k++ {
				results = append(results, types.TransferEventResult{
					Index: uint32(k), Result: types.TransferLinkedEventChainOpen,
				})
			}
			break
		}

		undos := make([]undoFunc, 0, end-i+1)
		failAt, failRes := -1, types.TransferOK
		for k := i; k <= end; k++ {
			res, undo := l.applyTransfer(&events[k])
			if res != types.TransferOK {
				failAt, failRes = k, res
				break
			}
			undos = append(undos, undo)
		}
		if failAt >= 0 {
			for k := len(undos) - 1; k >= 0; k-- {
				undos[k]()
			}
			for k := i; k <= end; k++ {
				res := types.TransferLinkedEventFailed
				if k == failAt {
					res = failRes
				}
				results = append(results, types.TransferEventResult{Index: uint32(k), Result: res})
			}
		}
		i = end + 1
	}
	return results
}

func (l *ledger) applyTransfer(t *types.Transfer) (types.CreateTransferResult, undoFunc) {
	post := t.Flags&types.TransferPostPendingTransfer != 0
	void := t.Flags&types.TransferVoidPendingTransfer != 0
	pending := t.Flags&types.TransferPending != 0
	balancing := t.Flags&(types.TransferBalancingDebit|types.TransferBalancingCredit) != 0

	switch {
	case t.Timestamp != 0:
		return types.TransferTimestampMustBeZero, nil
	case t.Flags&^transferFlagsAll != 0:
		return types.TransferReservedFlag, nil
	case t.ID.IsZero():
		return types.TransferIDMustNotBeZero, nil
	case t.ID == types.Uint128Max():
		return types.TransferIDMustNotBeIntMax, nil
	case post && void, pending && (post || void), balancing && (post || void):
		return types.TransferFlagsAreMutuallyExclusive, nil
	}

	if existing, ok := l.transfers[t.ID]; ok {
		return transferExists(existing, t), nil
	}

	if post || void {
		return l.applyCompletion(t, post)
	}
	return l.applyPlain(t, pending)
}

// transferExists compares a duplicate id's fields against the stored
// transfer to report the most specific exists result.
func transferExists(existing, t *types.Transfer) types.CreateTransferResult {
	switch {
	case existing.Flags != t.Flags:
		return types.TransferExistsWithDifferentFlags
	case !t.DebitAccountID.IsZero() && existing.DebitAccountID != t.DebitAccountID:
		return types.TransferExistsWithDifferentDebitAccountID
	case !t.CreditAccountID.IsZero() && existing.CreditAccountID != t.CreditAccountID:
		return types.TransferExistsWithDifferentCreditAccountID
	case existing.PendingID != t.PendingID:
		return types.TransferExistsWithDifferentPendingID
	case existing.UserData128 != t.UserData128:
		return types.TransferExistsWithDifferentUserData128
	case existing.UserData64 != t.UserData64:
		return types.TransferExistsWithDifferentUserData64
	case existing.UserData32 != t.UserData32:
		return types.TransferExistsWithDifferentUserData32
	case existing.Timeout != t.Timeout:
		return types.TransferExistsWithDifferentTimeout
	case t.Code != 0 && existing.Code != t.Code:
		return types.TransferExistsWithDifferentCode
	case !t.Amount.IsZero() && existing.Amount != t.Amount:
		return types.TransferExistsWithDifferentAmount
	default:
		return types.TransferExists
	}
}

// applyPlain handles single-phase and pending transfers.
func (l *ledger) applyPlain(t *types.Transfer, pending bool) (types.CreateTransferResult, undoFunc) {
	switch {
	case t.DebitAccountID.IsZero():
		return types.TransferDebitAccountIDMustNotBeZero, nil
	case t.DebitAccountID == types.Uint128Max():
		return types.TransferDebitAccountIDMustNotBeIntMax, nil
	case t.CreditAccountID.IsZero():
		return types.TransferCreditAccountIDMustNotBeZero, nil
	case t.CreditAccountID == types.Uint128Max():
		return types.TransferCreditAccountIDMustNotBeIntMax, nil
	case t.DebitAccountID == t.CreditAccountID:
		return types.TransferAccountsMustBeDifferent, nil
	case !t.PendingID.IsZero():
		return types.TransferPendingIDMustBeZero, nil
	case t.Timeout != 0 && !pending:
		return types.TransferTimeoutReservedForPendingTransfer, nil
	case t.Amount.IsZero():
		return types.TransferAmountMustNotBeZero, nil
	case t.Ledger == 0:
		return types.TransferLedgerMustNotBeZero, nil
	case t.Code == 0:
		return types.TransferCodeMustNotBeZero, nil
	}

	dr, ok := l.accounts[t.DebitAccountID]
	if !ok {
		return types.TransferDebitAccountNotFound, nil
	}
	cr, ok := l.accounts[t.CreditAccountID]
	if !ok {
		return types.TransferCreditAccountNotFound, nil
	}
	switch {
	case dr.Ledger != cr.Ledger:
		return types.TransferAccountsMustHaveTheSameLedger, nil
	case t.Ledger != dr.Ledger:
		return types.TransferMustHaveTheSameLedgerAsAccounts, nil
	case dr.Flags&types.AccountClosed != 0:
		return types.TransferDebitAccountAlreadyClosed, nil
	case cr.Flags&types.AccountClosed != 0:
		return types.TransferCreditAccountAlreadyClosed, nil
	}

	amount := t.Amount
	if t.Flags&types.TransferBalancingDebit != 0 && dr.Flags&types.AccountDebitsMustNotExceedCredits != 0 {
		capped, ok := capAmount(amount, debitHeadroom(dr))
		if !ok {
			return types.TransferExceedsCredits, nil
		}
		amount = capped
	}
	if t.Flags&types.TransferBalancingCredit != 0 && cr.Flags&types.AccountCreditsMustNotExceedDebits != 0 {
		capped, ok := capAmount(amount, creditHeadroom(cr))
		if !ok {
			return types.TransferExceedsDebits, nil
		}
		amount = capped
	}

	// Overflow before limits: the target side must stay representable.
	if pending {
		if overflows(dr.DebitsPending, amount) {
			return types.TransferOverflowsDebitsPending, nil
		}
		if overflows(cr.CreditsPending, amount) {
			return types.TransferOverflowsCreditsPending, nil
		}
	} else {
		if overflows(dr.DebitsPosted, amount) {
			return types.TransferOverflowsDebitsPosted, nil
		}
		if overflows(cr.CreditsPosted, amount) {
			return types.TransferOverflowsCreditsPosted, nil
		}
	}

	if t.Flags&types.TransferBalancingDebit == 0 && dr.Flags&types.AccountDebitsMustNotExceedCredits != 0 {
		total := new(big.Int).Add(dr.DebitsPending.BigInt(), dr.DebitsPosted.BigInt())
		total.Add(total, amount.BigInt())
		if total.Cmp(dr.CreditsPosted.BigInt()) > 0 {
			return types.TransferExceedsCredits, nil
		}
	}
	if t.Flags&types.TransferBalancingCredit == 0 && cr.Flags&types.AccountCreditsMustNotExceedDebits != 0 {
		total := new(big.Int).Add(cr.CreditsPending.BigInt(), cr.CreditsPosted.BigInt())
		total.Add(total, amount.BigInt())
		if total.Cmp(cr.DebitsPosted.BigInt()) > 0 {
			return types.TransferExceedsDebits, nil
		}
	}

	rec := *t
	rec.Amount = amount
	rec.Timestamp = l.tick()
	if pending {
		dr.DebitsPending = dr.DebitsPending.Add(amount)
		cr.CreditsPending = cr.CreditsPending.Add(amount)
	} else {
		dr.DebitsPosted = dr.DebitsPosted.Add(amount)
		cr.CreditsPosted = cr.CreditsPosted.Add(amount)
	}
	drWasClosed := dr.Flags&types.AccountClosed != 0
	crWasClosed := cr.Flags&types.AccountClosed != 0
	if t.Flags&types.TransferClosingDebit != 0 {
		dr.Flags |= types.AccountClosed
	}
	if t.Flags&types.TransferClosingCredit != 0 {
		cr.Flags |= types.AccountClosed
	}
	stored := &rec
	l.transfers[stored.ID] = stored
	l.transfersByTime.ReplaceOrInsert(stored)

	undo := func() {
		if pending {
			dr.DebitsPending = dr.DebitsPending.Sub(amount)
			cr.CreditsPending = cr.CreditsPending.Sub(amount)
		} else {
			dr.DebitsPosted = dr.DebitsPosted.Sub(amount)
			cr.CreditsPosted = cr.CreditsPosted.Sub(amount)
		}
		if !drWasClosed {
			dr.Flags &^= types.AccountClosed
		}
		if !crWasClosed {
			cr.Flags &^= types.AccountClosed
		}
		l.transfersByTime.Delete(stored)
		delete(l.transfers, stored.ID)
	}
	return types.TransferOK, undo
}

// applyCompletion handles post-pending and void-pending transfers.
func (l *ledger) applyCompletion(t *types.Transfer, post bool) (types.CreateTransferResult, undoFunc) {
	switch {
	case t.PendingID.IsZero():
		return types.TransferPendingIDMustNotBeZero, nil
	case t.PendingID == types.Uint128Max():
		return types.TransferPendingIDMustNotBeIntMax, nil
	case t.PendingID == t.ID:
		return types.TransferPendingIDMustBeDifferent, nil
	case t.Timeout != 0:
		return types.TransferTimeoutReservedForPendingTransfer, nil
	}

	pt, ok := l.transfers[t.PendingID]
	if !ok {
		return types.TransferPendingTransferNotFound, nil
	}
	switch {
	case pt.Flags&types.TransferPending == 0:
		return types.TransferPendingTransferNotPending, nil
	case !t.DebitAccountID.IsZero() && t.DebitAccountID != pt.DebitAccountID:
		return types.TransferPendingTransferHasDifferentDebitAccount, nil
	case !t.CreditAccountID.IsZero() && t.CreditAccountID != pt.CreditAccountID:
		return types.TransferPendingTransferHasDifferentCreditAccount, nil
	case t.Ledger != 0 && t.Ledger != pt.Ledger:
		return types.TransferPendingTransferHasDifferentLedger, nil
	case t.Code != 0 && t.Code != pt.Code:
		return types.TransferPendingTransferHasDifferentCode, nil
	case l.posted[pt.ID]:
		return types.TransferPendingTransferAlreadyPosted, nil
	case l.voided[pt.ID]:
		return types.TransferPendingTransferAlreadyVoided, nil
	}

	if pt.Timeout != 0 {
		expiresAt := pt.Timestamp + uint64(pt.Timeout)*uint64(time.Second)
		if uint64(time.Now().UnixNano()) >= expiresAt {
			l.expirePending(pt)
			return types.TransferPendingTransferExpired, nil
		}
	}

	amount := pt.Amount
	if post && !t.Amount.IsZero() && t.Amount != types.Uint128Max() {
		if t.Amount.Cmp(pt.Amount) > 0 {
			return types.TransferExceedsPendingTransferAmount, nil
		}
		amount = t.Amount
	}

	dr := l.accounts[pt.DebitAccountID]
	cr := l.accounts[pt.CreditAccountID]

	if post {
		if overflows(dr.DebitsPosted, amount) {
			return types.TransferOverflowsDebitsPosted, nil
		}
		if overflows(cr.CreditsPosted, amount) {
			return types.TransferOverflowsCreditsPosted, nil
		}
	}

	dr.DebitsPending = dr.DebitsPending.Sub(pt.Amount)
	cr.CreditsPending = cr.CreditsPending.Sub(pt.Amount)
	if post {
		dr.DebitsPosted = dr.DebitsPosted.Add(amount)
		cr.CreditsPosted = cr.CreditsPosted.Add(amount)
		l.posted[pt.ID] = true
	} else {
		l.voided[pt.ID] = true
	}

	rec := *t
	rec.DebitAccountID = pt.DebitAccountID
	rec.CreditAccountID = pt.CreditAccountID
	rec.Ledger = pt.Ledger
	if rec.Code == 0 {
		rec.Code = pt.Code
	}
	rec.Amount = amount
	rec.Timestamp = l.tick()
	stored := &rec
	l.transfers[stored.ID] = stored
	l.transfersByTime.ReplaceOrInsert(stored)

	undo := func() {
		dr.DebitsPending = dr.DebitsPending.Add(pt.Amount)
		cr.CreditsPending = cr.CreditsPending.Add(pt.Amount)
		if post {
			dr.DebitsPosted = dr.DebitsPosted.Sub(amount)
			cr.CreditsPosted = cr.CreditsPosted.Sub(amount)
			delete(l.posted, pt.ID)
		} else {
			delete(l.voided, pt.ID)
		}
		l.transfersByTime.Delete(stored)
		delete(l.transfers, stored.ID)
	}
	return types.TransferOK, undo
}

// expirePending releases an expired reservation and marks the pending
// transfer voided.
func (l *ledger) expirePending(pt *types.Transfer) {
	dr := l.accounts[pt.DebitAccountID]
	cr := l.accounts[pt.CreditAccountID]
	dr.DebitsPending = dr.DebitsPending.Sub(pt.Amount)
	cr.CreditsPending = cr.CreditsPending.Sub(pt.Amount)
	l.voided[pt.ID] = true
}

func overflows(balance, amount types.Uint128) bool {
	return balance.Add(amount).Cmp(balance) < 0
}

// debitHeadroom is how much the account can still debit without its
// debits exceeding its posted credits.
func debitHeadroom(a *types.Account) *big.Int {
	used := new(big.Int).Add(a.DebitsPending.BigInt(), a.DebitsPosted.BigInt())
	return new(big.Int).Sub(a.CreditsPosted.BigInt(), used)
}

// creditHeadroom is how much the account can still credit without its
// credits exceeding its posted debits.
func creditHeadroom(a *types.Account) *big.Int {
	used := new(big.Int).Add(a.CreditsPending.BigInt(), a.CreditsPosted.BigInt())
	return new(big.Int).Sub(a.DebitsPosted.BigInt(), used)
}

// capAmount limits amount to headroom. A headroom of zero or less means
// the balancing transfer cannot move anything.
func capAmount(amount types.Uint128, headroom *big.Int) (types.Uint128, bool) {
	if headroom.Sign() <= 0 {
		return amount, false
	}
	if amount.BigInt().Cmp(headroom) <= 0 {
		return amount, true
	}
	return u128FromBig(headroom), true
}

func u128FromBig(v *big.Int) types.Uint128 {
	var u types.Uint128
	be := v.Bytes()
	for i, b := range be {
		u[len(be)-1-i] = b
	}
	return u
}

func (l *ledger) lookupAccounts(ids []types.Uint128) []types.Account {
	out := make([]types.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := l.accounts[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

func (l *ledger) lookupTransfers(ids []types.Uint128) []types.Transfer {
	out := make([]types.Transfer, 0, len(ids))
	for _, id := range ids {
		if t, ok := l.transfers[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

func (l *ledger) queryAccounts(f types.QueryFilter) []types.Account {
	limit := queryLimit(f.Limit)
	out := make([]types.Account, 0)
	visit := func(a *types.Account) bool {
		if matchesAccount(a, &f) {
			out = append(out, *a)
		}
		return len(out) < limit
	}
	if limit == 0 {
		return out
	}
	if f.Flags&types.QueryFilterReversed != 0 {
		l.accountsByTime.Descend(visit)
	} else {
		l.accountsByTime.Ascend(visit)
	}
	return out
}

func (l *ledger) queryTransfers(f types.QueryFilter) []types.Transfer {
	limit := queryLimit(f.Limit)
	out := make([]types.Transfer, 0)
	visit := func(t *types.Transfer) bool {
		if matchesTransfer(t, &f) {
			out = append(out, *t)
		}
		return len(out) < limit
	}
	if limit == 0 {
		return out
	}
	if f.Flags&types.QueryFilterReversed != 0 {
		l.transfersByTime.Descend(visit)
	} else {
		l.transfersByTime.Ascend(visit)
	}
	return out
}

func queryLimit(limit uint32) int {
	if limit > types.MaxBatchSize {
		return types.MaxBatchSize
	}
	return int(limit)
}

// matchesAccount applies the filter's zero-means-any semantics.
func matchesAccount(a *types.Account, f *types.QueryFilter) bool {
	switch {
	case !f.UserData128.IsZero() && a.UserData128 != f.UserData128:
		return false
	case f.UserData64 != 0 && a.UserData64 != f.UserData64:
		return false
	case f.UserData32 != 0 && a.UserData32 != f.UserData32:
		return false
	case f.Ledger != 0 && a.Ledger != f.Ledger:
		return false
	case f.Code != 0 && a.Code != f.Code:
		return false
	case a.Timestamp < f.TimestampMin:
		return false
	case f.TimestampMax != 0 && a.Timestamp > f.TimestampMax:
		return false
	}
	return true
}

func matchesTransfer(t *types.Transfer, f *types.QueryFilter) bool {
	switch {
	case !f.UserData128.IsZero() && t.UserData128 != f.UserData128:
		return false
	case f.UserData64 != 0 && t.UserData64 != f.UserData64:
		return false
	case f.UserData32 != 0 && t.UserData32 != f.UserData32:
		return false
	case f.Ledger != 0 && t.Ledger != f.Ledger:
		return false
	case f.Code != 0 && t.Code != f.Code:
		return false
	case t.Timestamp < f.TimestampMin:
		return false
	case f.TimestampMax != 0 && t.Timestamp > f.TimestampMax:
		return false
	}
	return true
}
