package types

import "encoding/binary"

// eventResultSize is the encoded width of one (index, result) pair.
const eventResultSize = 8

// CreateAccountResult is the symbolic outcome of one account creation.
// Values are the protocol's; AccountOK is never carried on the wire since
// create replies list failures only.
type CreateAccountResult uint32

const (
	AccountOK                              CreateAccountResult = 0
	AccountLinkedEventFailed               CreateAccountResult = 1
	AccountLinkedEventChainOpen            CreateAccountResult = 2
	AccountTimestampMustBeZero             CreateAccountResult = 3
	AccountReservedField                   CreateAccountResult = 4
	AccountReservedFlag                    CreateAccountResult = 5
	AccountIDMustNotBeZero                 CreateAccountResult = 6
	AccountIDMustNotBeIntMax               CreateAccountResult = 7
	AccountFlagsAreMutuallyExclusive       CreateAccountResult = 8
	AccountDebitsPendingMustBeZero         CreateAccountResult = 9
	AccountDebitsPostedMustBeZero          CreateAccountResult = 10
	AccountCreditsPendingMustBeZero        CreateAccountResult = 11
	AccountCreditsPostedMustBeZero         CreateAccountResult = 12
	AccountLedgerMustNotBeZero             CreateAccountResult = 13
	AccountCodeMustNotBeZero               CreateAccountResult = 14
	AccountExistsWithDifferentFlags        CreateAccountResult = 15
	AccountExistsWithDifferentUserData128  CreateAccountResult = 16
	AccountExistsWithDifferentUserData64   CreateAccountResult = 17
	AccountExistsWithDifferentUserData32   CreateAccountResult = 18
	AccountExistsWithDifferentLedger       CreateAccountResult = 19
	AccountExistsWithDifferentCode         CreateAccountResult = 20
	AccountExists                          CreateAccountResult = 21
)

var createAccountResultNames = map[CreateAccountResult]string{
	AccountOK:                             "ok",
	AccountLinkedEventFailed:              "linked_event_failed",
	AccountLinkedEventChainOpen:           "linked_event_chain_open",
	AccountTimestampMustBeZero:            "timestamp_must_be_zero",
	AccountReservedField:                  "reserved_field",
	AccountReservedFlag:                   "reserved_flag",
	AccountIDMustNotBeZero:                "id_must_not_be_zero",
	AccountIDMustNotBeIntMax:              "id_must_not_be_int_max",
	AccountFlagsAreMutuallyExclusive:      "flags_are_mutually_exclusive",
	AccountDebitsPendingMustBeZero:        "debits_pending_must_be_zero",
	AccountDebitsPostedMustBeZero:         "debits_posted_must_be_zero",
	AccountCreditsPendingMustBeZero:       "credits_pending_must_be_zero",
	AccountCreditsPostedMustBeZero:        "credits_posted_must_be_zero",
	AccountLedgerMustNotBeZero:            "ledger_must_not_be_zero",
	AccountCodeMustNotBeZero:              "code_must_not_be_zero",
	AccountExistsWithDifferentFlags:       "exists_with_different_flags",
	AccountExistsWithDifferentUserData128: "exists_with_different_user_data_128",
	AccountExistsWithDifferentUserData64:  "exists_with_different_user_data_64",
	AccountExistsWithDifferentUserData32:  "exists_with_different_user_data_32",
	AccountExistsWithDifferentLedger:      "exists_with_different_ledger",
	AccountExistsWithDifferentCode:        "exists_with_different_code",
	AccountExists:                         "exists",
}

// String returns the protocol name of the result.
func (r CreateAccountResult) String() string {
	if s, ok := createAccountResultNames[r]; ok {
		return s
	}
	return "unknown"
}

// CreateTransferResult is the symbolic outcome of one transfer creation.
type CreateTransferResult uint32

const (
	TransferOK                                       CreateTransferResult = 0
	TransferLinkedEventFailed                        CreateTransferResult = 1
	TransferLinkedEventChainOpen                     CreateTransferResult = 2
	TransferTimestampMustBeZero                      CreateTransferResult = 3
	TransferReservedFlag                             CreateTransferResult = 4
	TransferIDMustNotBeZero                          CreateTransferResult = 5
	TransferIDMustNotBeIntMax                        CreateTransferResult = 6
	TransferFlagsAreMutuallyExclusive                CreateTransferResult = 7
	TransferDebitAccountIDMustNotBeZero              CreateTransferResult = 8
	TransferDebitAccountIDMustNotBeIntMax            CreateTransferResult = 9
	TransferCreditAccountIDMustNotBeZero             CreateTransferResult = 10
	TransferCreditAccountIDMustNotBeIntMax           CreateTransferResult = 11
	TransferAccountsMustBeDifferent                  CreateTransferResult = 12
	TransferPendingIDMustBeZero                      CreateTransferResult = 13
	TransferPendingIDMustNotBeZero                   CreateTransferResult = 14
	TransferPendingIDMustNotBeIntMax                 CreateTransferResult = 15
	TransferPendingIDMustBeDifferent                 CreateTransferResult = 16
	TransferTimeoutReservedForPendingTransfer        CreateTransferResult = 17
	TransferAmountMustNotBeZero                      CreateTransferResult = 18
	TransferLedgerMustNotBeZero                      CreateTransferResult = 19
	TransferCodeMustNotBeZero                        CreateTransferResult = 20
	TransferDebitAccountNotFound                     CreateTransferResult = 21
	TransferCreditAccountNotFound                    CreateTransferResult = 22
	TransferAccountsMustHaveTheSameLedger            CreateTransferResult = 23
	TransferMustHaveTheSameLedgerAsAccounts          CreateTransferResult = 24
	TransferPendingTransferNotFound                  CreateTransferResult = 25
	TransferPendingTransferNotPending                CreateTransferResult = 26
	TransferPendingTransferHasDifferentDebitAccount  CreateTransferResult = 27
	TransferPendingTransferHasDifferentCreditAccount CreateTransferResult = 28
	TransferPendingTransferHasDifferentLedger        CreateTransferResult = 29
	TransferPendingTransferHasDifferentCode          CreateTransferResult = 30
	TransferExceedsPendingTransferAmount             CreateTransferResult = 31
	TransferPendingTransferAlreadyPosted             CreateTransferResult = 32
	TransferPendingTransferAlreadyVoided             CreateTransferResult = 33
	TransferPendingTransferExpired                   CreateTransferResult = 34
	TransferExistsWithDifferentFlags                 CreateTransferResult = 35
	TransferExistsWithDifferentDebitAccountID        CreateTransferResult = 36
	TransferExistsWithDifferentCreditAccountID       CreateTransferResult = 37
	TransferExistsWithDifferentAmount                CreateTransferResult = 38
	TransferExistsWithDifferentPendingID             CreateTransferResult = 39
	TransferExistsWithDifferentUserData128           CreateTransferResult = 40
	TransferExistsWithDifferentUserData64            CreateTransferResult = 41
	TransferExistsWithDifferentUserData32            CreateTransferResult = 42
	TransferExistsWithDifferentTimeout               CreateTransferResult = 43
	TransferExistsWithDifferentCode                  CreateTransferResult = 44
	TransferExists                                   CreateTransferResult = 45
	TransferOverflowsDebitsPending                   CreateTransferResult = 46
	TransferOverflowsCreditsPending                  CreateTransferResult = 47
	TransferOverflowsDebitsPosted                    CreateTransferResult = 48
	TransferOverflowsCreditsPosted                   CreateTransferResult = 49
	TransferExceedsCredits                           CreateTransferResult = 50
	TransferExceedsDebits                            CreateTransferResult = 51
	TransferDebitAccountAlreadyClosed                CreateTransferResult = 52
	TransferCreditAccountAlreadyClosed               CreateTransferResult = 53
)

var createTransferResultNames = map[CreateTransferResult]string{
	TransferOK:                                "ok",
	TransferLinkedEventFailed:                 "linked_event_failed",
	TransferLinkedEventChainOpen:              "linked_event_chain_open",
	TransferTimestampMustBeZero:               "timestamp_must_be_zero",
	TransferReservedFlag:                      "reserved_flag",
	TransferIDMustNotBeZero:                   "id_must_not_be_zero",
	TransferIDMustNotBeIntMax:                 "id_must_not_be_int_max",
	TransferFlagsAreMutuallyExclusive:         "flags_are_mutually_exclusive",
	TransferDebitAccountIDMustNotBeZero:       "debit_account_id_must_not_be_zero",
	TransferDebitAccountIDMustNotBeIntMax:     "debit_account_id_must_not_be_int_max",
	TransferCreditAccountIDMustNotBeZero:      "credit_account_id_must_not_be_zero",
	TransferCreditAccountIDMustNotBeIntMax:    "credit_account_id_must_not_be_int_max",
	TransferAccountsMustBeDifferent:           "accounts_must_be_different",
	TransferPendingIDMustBeZero:               "pending_id_must_be_zero",
	TransferPendingIDMustNotBeZero:            "pending_id_must_not_be_zero",
	TransferPendingIDMustNotBeIntMax:          "pending_id_must_not_be_int_max",
	TransferPendingIDMustBeDifferent:          "pending_id_must_be_different",
	TransferTimeoutReservedForPendingTransfer: "timeout_reserved_for_pending_transfer",
	TransferAmountMustNotBeZero:               "amount_must_not_be_zero",
	TransferLedgerMustNotBeZero:               "ledger_must_not_be_zero",
	TransferCodeMustNotBeZero:                 "code_must_not_be_zero",
	TransferDebitAccountNotFound:              "debit_account_not_found",
	TransferCreditAccountNotFound:             "credit_account_not_found",
	TransferAccountsMustHaveTheSameLedger:     "accounts_must_have_the_same_ledger",
	TransferMustHaveTheSameLedgerAsAccounts:   "transfer_must_have_the_same_ledger_as_accounts",
	TransferPendingTransferNotFound:           "pending_transfer_not_found",
	TransferPendingTransferNotPending:         "pending_transfer_not_pending",
	TransferPendingTransferHasDifferentDebitAccount:  "pending_transfer_has_different_debit_account_id",
	TransferPendingTransferHasDifferentCreditAccount: "pending_transfer_has_different_credit_account_id",
	TransferPendingTransferHasDifferentLedger:        "pending_transfer_has_different_ledger",
	TransferPendingTransferHasDifferentCode:          "pending_transfer_has_different_code",
	TransferExceedsPendingTransferAmount:             "exceeds_pending_transfer_amount",
	TransferPendingTransferAlreadyPosted:             "pending_transfer_already_posted",
	TransferPendingTransferAlreadyVoided:             "pending_transfer_already_voided",
	TransferPendingTransferExpired:                   "pending_transfer_expired",
	TransferExistsWithDifferentFlags:                 "exists_with_different_flags",
	TransferExistsWithDifferentDebitAccountID:        "exists_with_different_debit_account_id",
	TransferExistsWithDifferentCreditAccountID:       "exists_with_different_credit_account_id",
	TransferExistsWithDifferentAmount:                "exists_with_different_amount",
	TransferExistsWithDifferentPendingID:             "exists_with_different_pending_id",
	TransferExistsWithDifferentUserData128:           "exists_with_different_user_data_128",
	TransferExistsWithDifferentUserData64:            "exists_with_different_user_data_64",
	TransferExistsWithDifferentUserData32:            "exists_with_different_user_data_32",
	TransferExistsWithDifferentTimeout:               "exists_with_different_timeout",
	TransferExistsWithDifferentCode:                  "exists_with_different_code",
	TransferExists:                                   "exists",
	TransferOverflowsDebitsPending:                   "overflows_debits_pending",
	TransferOverflowsCreditsPending:                  "overflows_credits_pending",
	TransferOverflowsDebitsPosted:                    "overflows_debits_posted",
	TransferOverflowsCreditsPosted:                   "overflows_credits_posted",
	TransferExceedsCredits:                           "exceeds_credits",
	TransferExceedsDebits:                            "exceeds_debits",
	TransferDebitAccountAlreadyClosed:                "debit_account_already_closed",
	TransferCreditAccountAlreadyClosed:               "credit_account_already_closed",
}

// String returns the protocol name of the result.
func (r CreateTransferResult) String() string {
	if s, ok := createTransferResultNames[r]; ok {
		return s
	}
	return "unknown"
}

// AccountEventResult pairs a failed account-creation event's batch index
// with its reason. A create reply with no pair for an index means that
// event succeeded.
type AccountEventResult struct {
	Index  uint32
	Result CreateAccountResult
}

// TransferEventResult pairs a failed transfer-creation event's batch index
// with its reason.
type TransferEventResult struct {
	Index  uint32
	Result CreateTransferResult
}

// decodeEventResults decodes packed (index, result) pairs, enforcing the
// protocol's framing: whole pairs only, indices strictly increasing and
// inside the originating batch.
func decodeEventResults(reply []byte, batchLen int, emit func(index, result uint32)) error {
	if len(reply)%eventResultSize != 0 {
		return ErrMalformedRecord
	}
	prev := -1
	for off := 0; off < len(reply); off += eventResultSize {
		index := binary.LittleEndian.Uint32(reply[off : off+4])
		result := binary.LittleEndian.Uint32(reply[off+4 : off+8])
		if int(index) <= prev || int(index) >= batchLen {
			return ErrMalformedRecord
		}
		prev = int(index)
		emit(index, result)
	}
	return nil
}

// DecodeAccountEventResults decodes a create-accounts reply for a batch of
// batchLen events. An empty reply means every event succeeded; the returned
// slice is always non-nil so that outcome is explicit.
func DecodeAccountEventResults(reply []byte, batchLen int) ([]AccountEventResult, error) {
	results := make([]AccountEventResult, 0, len(reply)/eventResultSize)
	err := decodeEventResults(reply, batchLen, func(index, result uint32) {
		results = append(results, AccountEventResult{Index: index, Result: CreateAccountResult(result)})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DecodeTransferEventResults decodes a create-transfers reply for a batch
// of batchLen events.
func DecodeTransferEventResults(reply []byte, batchLen int) ([]TransferEventResult, error) {
	results := make([]TransferEventResult, 0, len(reply)/eventResultSize)
	err := decodeEventResults(reply, batchLen, func(index, result uint32) {
		results = append(results, TransferEventResult{Index: index, Result: CreateTransferResult(result)})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EncodeAccountEventResults packs create-accounts results into reply form.
func EncodeAccountEventResults(results []AccountEventResult) []byte {
	out := make([]byte, len(results)*eventResultSize)
	for i, r := range results {
		binary.LittleEndian.PutUint32(out[i*eventResultSize:], r.Index)
		binary.LittleEndian.PutUint32(out[i*eventResultSize+4:], uint32(r.Result))
	}
	return out
}

// EncodeTransferEventResults packs create-transfers results into reply form.
func EncodeTransferEventResults(results []TransferEventResult) []byte {
	out := make([]byte, len(results)*eventResultSize)
	for i, r := range results {
		binary.LittleEndian.PutUint32(out[i*eventResultSize:], r.Index)
		binary.LittleEndian.PutUint32(out[i*eventResultSize+4:], uint32(r.Result))
	}
	return out
}
