// Package core defines the boundary to the cluster-client runtime the
// session consumes.
//
// The session never talks to the network itself: it hands encoded batch
// bytes plus a correlation token to a [Runtime] and receives the reply
// later through the [CompletionFunc] the runtime was created with.
// Completions arrive on goroutines the session does not own and may be
// concurrent with submissions and with each other.
//
// Production deployments bind a Runtime over the native cluster client;
// the memcluster package provides an in-process implementation for tests
// and demos.
package core

import (
	"errors"
	"fmt"

	"github.com/copperline/ledgerclient/pkg/types"
)

// MinServerRelease is the oldest cluster release whose wire layouts this
// binding is compatible with. The session pins it; version negotiation
// beyond the pin is the runtime's concern.
const MinServerRelease = "0.16.0"

// CompletionFunc receives the outcome of one submitted request. The reply
// slice is only valid for the duration of the call; implementations of
// Runtime own it afterwards.
type CompletionFunc func(token uint64, op types.Operation, reply []byte, status Status)

// Runtime is one connection to the cluster. Submit hands off encoded batch
// bytes; the reply arrives later through the CompletionFunc. Implementations
// must be safe for concurrent Submit calls.
type Runtime interface {
	// Submit accepts a request for asynchronous processing. A nil return
	// only means the send was accepted; the outcome arrives via the
	// completion callback. ErrShutdown and ErrSubmitBacklogFull reject
	// the request synchronously with no callback to follow.
	Submit(token uint64, op types.Operation, payload []byte) error

	// Close releases the connection. After Close returns no further
	// completion callbacks are delivered.
	Close() error
}

// Factory creates a Runtime bound to one cluster and one completion sink.
type Factory func(clusterID types.Uint128, addresses []string, complete CompletionFunc) (Runtime, error)

// Synchronous Submit rejections.
var (
	// ErrShutdown is returned by Submit after the runtime has shut down.
	ErrShutdown = errors.New("ledgerclient: runtime shut down")

	// ErrSubmitBacklogFull is returned by Submit when the runtime's
	// bounded pipeline is full.
	ErrSubmitBacklogFull = errors.New("ledgerclient: runtime backlog full")
)

// Status is the runtime-level outcome carried by a completion callback.
// Anything but StatusOK is a failure of the whole request, distinct from
// the per-record results inside a successful reply.
type Status uint8

const (
	StatusOK Status = iota
	StatusTooMuchData
	StatusInvalidOperation
	StatusInvalidDataSize
	StatusClientShutdown
	StatusClientEvicted
	StatusUnexpected
)

// String returns the status's protocol name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTooMuchData:
		return "too_much_data"
	case StatusInvalidOperation:
		return "invalid_operation"
	case StatusInvalidDataSize:
		return "invalid_data_size"
	case StatusClientShutdown:
		return "client_shutdown"
	case StatusClientEvicted:
		return "client_evicted"
	default:
		return "unexpected"
	}
}

// InitError categorizes a failure to establish the cluster connection.
// It is fatal to session creation.
type InitError uint8

const (
	InitUnexpected InitError = iota
	InitOutOfMemory
	InitInvalidAddress
	InitAddressLimitExceeded
	InitSystemResources
	InitNetworkSubsystem
)

// Error implements the error interface.
func (e InitError) Error() string {
	switch e {
	case InitOutOfMemory:
		return "ledgerclient: init failed: out of memory"
	case InitInvalidAddress:
		return "ledgerclient: init failed: invalid address"
	case InitAddressLimitExceeded:
		return "ledgerclient: init failed: address limit exceeded"
	case InitSystemResources:
		return "ledgerclient: init failed: system resources"
	case InitNetworkSubsystem:
		return "ledgerclient: init failed: network subsystem"
	default:
		return "ledgerclient: init failed: unexpected"
	}
}

// ValidateAddresses applies the address-list rules shared by every
// Runtime implementation: at least one address, and no more than
// MaxAddresses.
func ValidateAddresses(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("%w: empty address list", InitInvalidAddress)
	}
	if len(addresses) > MaxAddresses {
		return InitAddressLimitExceeded
	}
	for _, a := range addresses {
		if a == "" {
			return fmt.Errorf("%w: empty address", InitInvalidAddress)
		}
	}
	return nil
}

// MaxAddresses is the protocol's cap on cluster addresses per client.
const MaxAddresses = 64
