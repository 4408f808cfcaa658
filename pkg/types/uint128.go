package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Uint128Size is the encoded width of a Uint128 in bytes.
const Uint128Size = 16

// Uint128 is a 128-bit value stored little-endian. It is used for record
// identifiers and for amounts and balances. The zero value is the reserved
// all-zero id, which is never valid for record creation.
type Uint128 [Uint128Size]byte

// U128 returns a Uint128 holding the given 64-bit value.
func U128(v uint64) Uint128 {
	var u Uint128
	binary.LittleEndian.PutUint64(u[:8], v)
	return u
}

// Uint128Max is the largest representable Uint128. The protocol reserves it
// as a sentinel: it is invalid as an id and, as a post-pending amount,
// requests the full pending amount.
func Uint128Max() Uint128 {
	var u Uint128
	for i := range u {
		u[i] = 0xff
	}
	return u
}

// IsZero reports whether u is the all-zero value.
func (u Uint128) IsZero() bool {
	return u == Uint128{}
}

// String renders u as 32 lowercase hex digits, most significant byte first.
func (u Uint128) String() string {
	var be [Uint128Size]byte
	for i := range u {
		be[Uint128Size-1-i] = u[i]
	}
	return hex.EncodeToString(be[:])
}

// BigInt returns u as a big.Int.
func (u Uint128) BigInt() *big.Int {
	var be [Uint128Size]byte
	for i := range u {
		be[Uint128Size-1-i] = u[i]
	}
	return new(big.Int).SetBytes(be[:])
}

// Uint128FromString parses up to 32 hex digits into a Uint128.
func Uint128FromString(s string) (Uint128, error) {
	var u Uint128
	if len(s) == 0 || len(s) > 2*Uint128Size {
		return u, fmt.Errorf("uint128: invalid hex length %d", len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	be, err := hex.DecodeString(s)
	if err != nil {
		return u, fmt.Errorf("uint128: %w", err)
	}
	for i, b := range be {
		u[len(be)-1-i] = b
	}
	return u, nil
}

// Add returns u+v with wraparound on overflow.
func (u Uint128) Add(v Uint128) Uint128 {
	var out Uint128
	var carry uint64
	for i := 0; i < Uint128Size; i += 8 {
		a := binary.LittleEndian.Uint64(u[i:])
		b := binary.LittleEndian.Uint64(v[i:])
		sum := a + b + carry
		if sum < a || (carry == 1 && sum == a) {
			carry = 1
		} else {
			carry = 0
		}
		binary.LittleEndian.PutUint64(out[i:], sum)
	}
	return out
}

// Sub returns u-v with wraparound on underflow.
func (u Uint128) Sub(v Uint128) Uint128 {
	var out Uint128
	var borrow uint64
	for i := 0; i < Uint128Size; i += 8 {
		a := binary.LittleEndian.Uint64(u[i:])
		b := binary.LittleEndian.Uint64(v[i:])
		diff := a - b - borrow
		if a < b || (borrow == 1 && a == b) {
			borrow = 1
		} else {
			borrow = 0
		}
		binary.LittleEndian.PutUint64(out[i:], diff)
	}
	return out
}

// Cmp compares u and v as unsigned integers: -1 if u<v, 0 if equal, 1 if u>v.
func (u Uint128) Cmp(v Uint128) int {
	for i := Uint128Size - 1; i >= 0; i-- {
		switch {
		case u[i] < v[i]:
			return -1
		case u[i] > v[i]:
			return 1
		}
	}
	return 0
}

// EncodedSize returns the wire width of a Uint128.
func (u *Uint128) EncodedSize() int { return Uint128Size }

// MarshalInto writes u into dst, which must be exactly Uint128Size bytes.
func (u *Uint128) MarshalInto(dst []byte) error {
	if len(dst) != Uint128Size {
		return ErrMalformedRecord
	}
	copy(dst, u[:])
	return nil
}

// UnmarshalFrom reads u from src, which must be exactly Uint128Size bytes.
func (u *Uint128) UnmarshalFrom(src []byte) error {
	if len(src) != Uint128Size {
		return ErrMalformedRecord
	}
	copy(u[:], src)
	return nil
}
