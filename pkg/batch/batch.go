// Package batch provides fixed-capacity, append-only buffers of wire
// records.
//
// A Batch encodes on append: its backing storage is the exact byte
// sequence submitted to the cluster, so there is no separate in-memory
// model to drift from the wire layout. Capacity is fixed at creation and
// never grows, mirroring the bounded message the protocol requires.
//
// Batches are generic over the record type, so an account batch and a
// transfer batch are distinct types and cannot be mixed at compile time.
package batch

import (
	"errors"

	"github.com/copperline/ledgerclient/pkg/types"
)

// Batch construction and append errors. Check with errors.Is.
var (
	// ErrInvalidCapacity is returned by New for a capacity of zero or one
	// above types.MaxBatchSize.
	ErrInvalidCapacity = errors.New("ledgerclient: invalid batch capacity")

	// ErrBatchFull is returned by Append once length has reached capacity.
	// The batch is not mutated.
	ErrBatchFull = errors.New("ledgerclient: batch full")

	// ErrIndexOutOfRange is returned by Get and Set for an index at or
	// beyond the current length.
	ErrIndexOutOfRange = errors.New("ledgerclient: batch index out of range")
)

// Event is a fixed-width wire record that can live in a Batch.
type Event interface {
	EncodedSize() int
	MarshalInto(dst []byte) error
	UnmarshalFrom(src []byte) error
}

// Batch is a fixed-capacity, append-only buffer of records of one kind.
// The zero value is unusable; create batches with New. A Batch is not safe
// for concurrent use, and must not be mutated between submission and
// completion of the request that carries it.
type Batch[E any, PE interface {
	Event
	*E
}] struct {
	data      []byte
	eventSize int
	length    int
	capacity  int
}

// New creates an empty batch able to hold up to capacity records.
// Capacity must be between 1 and types.MaxBatchSize.
func New[E any, PE interface {
	Event
	*E
}](capacity int) (*Batch[E, PE], error) {
	if capacity <= 0 || capacity > types.MaxBatchSize {
		return nil, ErrInvalidCapacity
	}
	eventSize := PE(new(E)).EncodedSize()
	return &Batch[E, PE]{
		data:      make([]byte, capacity*eventSize),
		eventSize: eventSize,
		capacity:  capacity,
	}, nil
}

// Len returns the number of appended records.
func (b *Batch[E, PE]) Len() int { return b.length }

// Cap returns the fixed capacity.
func (b *Batch[E, PE]) Cap() int { return b.capacity }

// Append encodes ev into the next free slot. It fails with ErrBatchFull,
// leaving the batch untouched, once Len() == Cap().
func (b *Batch[E, PE]) Append(ev E) error {
	if b.length == b.capacity {
		return ErrBatchFull
	}
	off := b.length * b.eventSize
	if err := PE(&ev).MarshalInto(b.data[off : off+b.eventSize]); err != nil {
		return err
	}
	b.length++
	return nil
}

// Get decodes the record at index i.
func (b *Batch[E, PE]) Get(i int) (E, error) {
	var ev E
	if i < 0 || i >= b.length {
		return ev, ErrIndexOutOfRange
	}
	off := i * b.eventSize
	err := PE(&ev).UnmarshalFrom(b.data[off : off+b.eventSize])
	return ev, err
}

// Set re-encodes the record at index i in place. Only indices below the
// current length can be written; Set never extends the batch.
func (b *Batch[E, PE]) Set(i int, ev E) error {
	if i < 0 || i >= b.length {
		return ErrIndexOutOfRange
	}
	off := i * b.eventSize
	return PE(&ev).MarshalInto(b.data[off : off+b.eventSize])
}

// Bytes returns the encoded records appended so far. The slice aliases the
// batch's storage and is what gets handed to the cluster; callers must
// treat it as read-only while a request is in flight.
func (b *Batch[E, PE]) Bytes() []byte {
	return b.data[:b.length*b.eventSize]
}

// AccountBatch is a batch of accounts for create-accounts.
type AccountBatch = Batch[types.Account, *types.Account]

// TransferBatch is a batch of transfers for create-transfers.
type TransferBatch = Batch[types.Transfer, *types.Transfer]

// IDBatch is a batch of 128-bit ids for lookup operations.
type IDBatch = Batch[types.Uint128, *types.Uint128]

// NewAccounts creates an AccountBatch with the given capacity.
func NewAccounts(capacity int) (*AccountBatch, error) {
	return New[types.Account, *types.Account](capacity)
}

// NewTransfers creates a TransferBatch with the given capacity.
func NewTransfers(capacity int) (*TransferBatch, error) {
	return New[types.Transfer, *types.Transfer](capacity)
}

// NewIDs creates an IDBatch with the given capacity.
func NewIDs(capacity int) (*IDBatch, error) {
	return New[types.Uint128, *types.Uint128](capacity)
}
