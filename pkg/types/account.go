package types

import "encoding/binary"

// AccountSize is the encoded width of an Account in bytes.
const AccountSize = 128

// AccountFlags is the Account flag bitset.
type AccountFlags uint16

const (
	// AccountLinked chains this account's creation to the next event in
	// the batch: the chain succeeds or fails as a unit.
	AccountLinked AccountFlags = 1 << 0

	// AccountDebitsMustNotExceedCredits rejects transfers that would make
	// the account's total debits exceed its total credits.
	AccountDebitsMustNotExceedCredits AccountFlags = 1 << 1

	// AccountCreditsMustNotExceedDebits rejects transfers that would make
	// the account's total credits exceed its total debits.
	AccountCreditsMustNotExceedDebits AccountFlags = 1 << 2

	// AccountHistory retains per-transfer balance history on the cluster.
	AccountHistory AccountFlags = 1 << 3

	// AccountClosed marks the account closed to further transfers.
	AccountClosed AccountFlags = 1 << 4
)

// accountFlagsMask covers every defined flag bit; anything outside it is
// reserved and must be zero on the wire.
const accountFlagsMask = AccountLinked |
	AccountDebitsMustNotExceedCredits |
	AccountCreditsMustNotExceedDebits |
	AccountHistory |
	AccountClosed

// Account is a ledger account. Balances are maintained by the cluster and
// must be zero on creation; Timestamp is cluster-assigned.
type Account struct {
	ID             Uint128
	DebitsPending  Uint128
	DebitsPosted   Uint128
	CreditsPending Uint128
	CreditsPosted  Uint128
	UserData128    Uint128
	UserData64     uint64
	UserData32     uint32
	Reserved       uint32
	Ledger         uint32
	Code           uint16
	Flags          AccountFlags
	Timestamp      uint64
}

// EncodedSize returns the wire width of an Account.
func (a *Account) EncodedSize() int { return AccountSize }

// MarshalInto encodes a into dst, which must be exactly AccountSize bytes.
// Exactly the set flag bits are written; reserved bits are cleared.
func (a *Account) MarshalInto(dst []byte) error {
	if len(dst) != AccountSize {
		return ErrMalformedRecord
	}
	copy(dst[0:16], a.ID[:])
	copy(dst[16:32], a.DebitsPending[:])
	copy(dst[32:48], a.DebitsPosted[:])
	copy(dst[48:64], a.CreditsPending[:])
	copy(dst[64:80], a.CreditsPosted[:])
	copy(dst[80:96], a.UserData128[:])
	binary.LittleEndian.PutUint64(dst[96:104], a.UserData64)
	binary.LittleEndian.PutUint32(dst[104:108], a.UserData32)
	binary.LittleEndian.PutUint32(dst[108:112], a.Reserved)
	binary.LittleEndian.PutUint32(dst[112:116], a.Ledger)
	binary.LittleEndian.PutUint16(dst[116:118], a.Code)
	binary.LittleEndian.PutUint16(dst[118:120], uint16(a.Flags&accountFlagsMask))
	binary.LittleEndian.PutUint64(dst[120:128], a.Timestamp)
	return nil
}

// UnmarshalFrom decodes a from src, which must be exactly AccountSize bytes.
func (a *Account) UnmarshalFrom(src []byte) error {
	if len(src) != AccountSize {
		return ErrMalformedRecord
	}
	copy(a.ID[:], src[0:16])
	copy(a.DebitsPending[:], src[16:32])
	copy(a.DebitsPosted[:], src[32:48])
	copy(a.CreditsPending[:], src[48:64])
	copy(a.CreditsPosted[:], src[64:80])
	copy(a.UserData128[:], src[80:96])
	a.UserData64 = binary.LittleEndian.Uint64(src[96:104])
	a.UserData32 = binary.LittleEndian.Uint32(src[104:108])
	a.Reserved = binary.LittleEndian.Uint32(src[108:112])
	a.Ledger = binary.LittleEndian.Uint32(src[112:116])
	a.Code = binary.LittleEndian.Uint16(src[116:118])
	a.Flags = AccountFlags(binary.LittleEndian.Uint16(src[118:120]))
	a.Timestamp = binary.LittleEndian.Uint64(src[120:128])
	return nil
}

// DecodeAccounts decodes a densely packed reply of full accounts.
// An empty reply decodes to an empty slice.
func DecodeAccounts(reply []byte) ([]Account, error) {
	if len(reply)%AccountSize != 0 {
		return nil, ErrMalformedRecord
	}
	accounts := make([]Account, len(reply)/AccountSize)
	for i := range accounts {
		if err := accounts[i].UnmarshalFrom(reply[i*AccountSize : (i+1)*AccountSize]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}
