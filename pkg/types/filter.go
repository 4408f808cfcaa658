package types

import "encoding/binary"

// QueryFilterSize is the encoded width of a QueryFilter in bytes.
const QueryFilterSize = 64

// QueryFilterFlags is the QueryFilter flag bitset.
type QueryFilterFlags uint32

const (
	// QueryFilterReversed returns matches in descending timestamp order.
	QueryFilterReversed QueryFilterFlags = 1 << 0
)

const queryFilterFlagsMask = QueryFilterReversed

// QueryFilter scopes a query-accounts or query-transfers request. A zero
// field matches everything; a nonzero field must match exactly. Timestamps
// are nanoseconds since the epoch; TimestampMax of zero means unbounded.
// Limit caps the number of records returned and must be at least 1.
type QueryFilter struct {
	UserData128  Uint128
	UserData64   uint64
	UserData32   uint32
	Ledger       uint32
	Code         uint16
	Reserved     [6]uint8
	TimestampMin uint64
	TimestampMax uint64
	Limit        uint32
	Flags        QueryFilterFlags
}

// EncodedSize returns the wire width of a QueryFilter.
func (f *QueryFilter) EncodedSize() int { return QueryFilterSize }

// MarshalInto encodes f into dst, which must be exactly QueryFilterSize bytes.
func (f *QueryFilter) MarshalInto(dst []byte) error {
	if len(dst) != QueryFilterSize {
		return ErrMalformedRecord
	}
	copy(dst[0:16], f.UserData128[:])
	binary.LittleEndian.PutUint64(dst[16:24], f.UserData64)
	binary.LittleEndian.PutUint32(dst[24:28], f.UserData32)
	binary.LittleEndian.PutUint32(dst[28:32], f.Ledger)
	binary.LittleEndian.PutUint16(dst[32:34], f.Code)
	copy(dst[34:40], f.Reserved[:])
	binary.LittleEndian.PutUint64(dst[40:48], f.TimestampMin)
	binary.LittleEndian.PutUint64(dst[48:56], f.TimestampMax)
	binary.LittleEndian.PutUint32(dst[56:60], f.Limit)
	binary.LittleEndian.PutUint32(dst[60:64], uint32(f.Flags&queryFilterFlagsMask))
	return nil
}

// UnmarshalFrom decodes f from src, which must be exactly QueryFilterSize bytes.
func (f *QueryFilter) UnmarshalFrom(src []byte) error {
	if len(src) != QueryFilterSize {
		return ErrMalformedRecord
	}
	copy(f.UserData128[:], src[0:16])
	f.UserData64 = binary.LittleEndian.Uint64(src[16:24])
	f.UserData32 = binary.LittleEndian.Uint32(src[24:28])
	f.Ledger = binary.LittleEndian.Uint32(src[28:32])
	f.Code = binary.LittleEndian.Uint16(src[32:34])
	copy(f.Reserved[:], src[34:40])
	f.TimestampMin = binary.LittleEndian.Uint64(src[40:48])
	f.TimestampMax = binary.LittleEndian.Uint64(src[48:56])
	f.Limit = binary.LittleEndian.Uint32(src[56:60])
	f.Flags = QueryFilterFlags(binary.LittleEndian.Uint32(src[60:64]))
	return nil
}
