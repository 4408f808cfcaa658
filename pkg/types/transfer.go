package types

import "encoding/binary"

// TransferSize is the encoded width of a Transfer in bytes.
const TransferSize = 128

// TransferFlags is the Transfer flag bitset.
type TransferFlags uint16

const (
	// TransferLinked chains this transfer to the next event in the batch.
	TransferLinked TransferFlags = 1 << 0

	// TransferPending reserves the amount without posting it. The reserved
	// funds show up in the accounts' pending balances until the transfer
	// is posted or voided.
	TransferPending TransferFlags = 1 << 1

	// TransferPostPendingTransfer finalizes an earlier pending transfer,
	// moving up to the reserved amount from pending to posted.
	TransferPostPendingTransfer TransferFlags = 1 << 2

	// TransferVoidPendingTransfer releases an earlier pending transfer's
	// reservation without posting anything.
	TransferVoidPendingTransfer TransferFlags = 1 << 3

	// TransferBalancingDebit caps the amount at whatever the debit account
	// can transfer without violating its balance limit.
	TransferBalancingDebit TransferFlags = 1 << 4

	// TransferBalancingCredit caps the amount at whatever the credit
	// account can receive without violating its balance limit.
	TransferBalancingCredit TransferFlags = 1 << 5

	// TransferClosingDebit closes the debit account after the transfer.
	TransferClosingDebit TransferFlags = 1 << 6

	// TransferClosingCredit closes the credit account after the transfer.
	TransferClosingCredit TransferFlags = 1 << 7
)

const transferFlagsMask = TransferLinked |
	TransferPending |
	TransferPostPendingTransfer |
	TransferVoidPendingTransfer |
	TransferBalancingDebit |
	TransferBalancingCredit |
	TransferClosingDebit |
	TransferClosingCredit

// Transfer moves an amount between two accounts on the same ledger.
// PendingID is set only on post/void transfers and names the pending
// transfer being finalized. Timeout is in seconds and is reserved for
// pending transfers. Timestamp is cluster-assigned.
type Transfer struct {
	ID              Uint128
	DebitAccountID  Uint128
	CreditAccountID Uint128
	Amount          Uint128
	PendingID       Uint128
	UserData128     Uint128
	UserData64      uint64
	UserData32      uint32
	Timeout         uint32
	Ledger          uint32
	Code            uint16
	Flags           TransferFlags
	Timestamp       uint64
}

// EncodedSize returns the wire width of a Transfer.
func (t *Transfer) EncodedSize() int { return TransferSize }

// MarshalInto encodes t into dst, which must be exactly TransferSize bytes.
// Exactly the set flag bits are written; reserved bits are cleared.
func (t *Transfer) MarshalInto(dst []byte) error {
	if len(dst) != TransferSize {
		return ErrMalformedRecord
	}
	copy(dst[0:16], t.ID[:])
	copy(dst[16:32], t.DebitAccountID[:])
	copy(dst[32:48], t.CreditAccountID[:])
	copy(dst[48:64], t.Amount[:])
	copy(dst[64:80], t.PendingID[:])
	copy(dst[80:96], t.UserData128[:])
	binary.LittleEndian.PutUint64(dst[96:104], t.UserData64)
	binary.LittleEndian.PutUint32(dst[104:108], t.UserData32)
	binary.LittleEndian.PutUint32(dst[108:112], t.Timeout)
	binary.LittleEndian.PutUint32(dst[112:116], t.Ledger)
	binary.LittleEndian.PutUint16(dst[116:118], t.Code)
	binary.LittleEndian.PutUint16(dst[118:120], uint16(t.Flags&transferFlagsMask))
	binary.LittleEndian.PutUint64(dst[120:128], t.Timestamp)
	return nil
}

// UnmarshalFrom decodes t from src, which must be exactly TransferSize bytes.
func (t *Transfer) UnmarshalFrom(src []byte) error {
	if len(src) != TransferSize {
		return ErrMalformedRecord
	}
	copy(t.ID[:], src[0:16])
	copy(t.DebitAccountID[:], src[16:32])
	copy(t.CreditAccountID[:], src[32:48])
	copy(t.Amount[:], src[48:64])
	copy(t.PendingID[:], src[64:80])
	copy(t.UserData128[:], src[80:96])
	t.UserData64 = binary.LittleEndian.Uint64(src[96:104])
	t.UserData32 = binary.LittleEndian.Uint32(src[104:108])
	t.Timeout = binary.LittleEndian.Uint32(src[108:112])
	t.Ledger = binary.LittleEndian.Uint32(src[112:116])
	t.Code = binary.LittleEndian.Uint16(src[116:118])
	t.Flags = TransferFlags(binary.LittleEndian.Uint16(src[118:120]))
	t.Timestamp = binary.LittleEndian.Uint64(src[120:128])
	return nil
}

// DecodeTransfers decodes a densely packed reply of full transfers.
// An empty reply decodes to an empty slice.
func DecodeTransfers(reply []byte) ([]Transfer, error) {
	if len(reply)%TransferSize != 0 {
		return nil, ErrMalformedRecord
	}
	transfers := make([]Transfer, len(reply)/TransferSize)
	for i := range transfers {
		if err := transfers[i].UnmarshalFrom(reply[i*TransferSize : (i+1)*TransferSize]); err != nil {
			return nil, err
		}
	}
	return transfers, nil
}
