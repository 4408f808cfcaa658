// Package types defines the wire-level record types exchanged with the
// ledger cluster and their fixed binary layouts.
//
// Every layout in this package is an external contract shared with the
// cluster: field order, width, and byte order are fixed by the protocol
// and must round-trip bit-exactly. Records encode little-endian into
// contiguous buffers with no padding beyond the reserved fields the
// protocol itself declares.
//
// # Records
//
//   - [Account]: a ledger account with pending/posted balances (128 bytes)
//   - [Transfer]: a movement of funds between two accounts (128 bytes)
//   - [Uint128]: an opaque 128-bit identifier or amount (16 bytes)
//   - [QueryFilter]: range-query criteria for query operations (64 bytes)
//
// Identifiers are treated as opaque byte strings, never as native
// integers, so endianness mistakes cannot corrupt them in transit.
package types
