// Package memcluster provides an in-process implementation of the
// cluster-client runtime boundary, backed by a single-replica ledger
// state machine.
//
// It exists for tests, demos, and host applications that want the full
// request/completion lifecycle without a cluster: submissions enter a
// bounded pipeline, a worker goroutine applies them to the ledger, and
// completions are delivered from that goroutine, preserving the
// foreign-thread dispatch model of the native runtime.
package memcluster

import (
	"sync"

	"github.com/copperline/ledgerclient/pkg/core"
	"github.com/copperline/ledgerclient/pkg/log"
	"github.com/copperline/ledgerclient/pkg/types"
)

// DefaultBacklog is the default depth of the submission pipeline.
const DefaultBacklog = 256

// Config configures a Cluster.
type Config struct {
	// Backlog bounds the submission pipeline. Submissions beyond it are
	// rejected with core.ErrSubmitBacklogFull. Defaults to DefaultBacklog.
	Backlog int

	// Logger receives cluster diagnostics. Defaults to the no-op logger.
	Logger log.Logger
}

// packet is one submitted request queued for the worker.
type packet struct {
	conn    *conn
	token   uint64
	op      types.Operation
	payload []byte
}

// Cluster is an in-process ledger cluster. Many runtimes (one per
// session) may share one Cluster and therefore one ledger state.
type Cluster struct {
	logger   log.Logger
	requests chan packet
	stop     chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool

	ledger *ledger
}

// New creates a Cluster and starts its worker.
func New(cfg Config) *Cluster {
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	c := &Cluster{
		logger:   cfg.Logger,
		requests: make(chan packet, cfg.Backlog),
		stop:     make(chan struct{}),
		ledger:   newLedger(),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Factory returns a core.Factory producing runtimes bound to this
// cluster. The cluster id and address list are validated but otherwise
// unused: there is no network to reach.
func (c *Cluster) Factory() core.Factory {
	return func(clusterID types.Uint128, addresses []string, complete core.CompletionFunc) (core.Runtime, error) {
		if err := core.ValidateAddresses(addresses); err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return nil, core.InitNetworkSubsystem
		}
		return &conn{cluster: c, complete: complete}, nil
	}
}

// Close stops the worker. Requests still queued are completed with
// client_shutdown status before Close returns.
func (c *Cluster) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
	return nil
}

// run is the worker loop. All ledger access happens here, so the state
// machine itself needs no locking.
func (c *Cluster) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			c.drain()
			return
		case pkt := <-c.requests:
			c.process(pkt)
		}
	}
}

// drain fails everything still queued at shutdown.
func (c *Cluster) drain() {
	for {
		select {
		case pkt := <-c.requests:
			pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusClientShutdown)
		default:
			return
		}
	}
}

// process validates a packet's framing and applies it to the ledger.
func (c *Cluster) process(pkt packet) {
	eventSize := pkt.op.EventSize()
	if eventSize == 0 {
		pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusInvalidOperation)
		return
	}
	if len(pkt.payload)%eventSize != 0 {
		pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusInvalidDataSize)
		return
	}
	count := len(pkt.payload) / eventSize
	if count > types.MaxBatchSize {
		pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusTooMuchData)
		return
	}
	if (pkt.op == types.OperationQueryAccounts || pkt.op == types.OperationQueryTransfers) && count != 1 {
		// Query requests carry exactly one filter.
		pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusInvalidDataSize)
		return
	}

	reply, err := c.apply(pkt.op, pkt.payload)
	if err != nil {
		// Framing was already checked, so a decode failure here is an
		// internal fault of the state machine, not of the caller.
		c.logger.Error("state machine rejected request",
			log.Uint64("token", pkt.token),
			log.Stringer("operation", pkt.op),
			log.Err(err),
		)
		pkt.conn.deliver(pkt.token, pkt.op, nil, core.StatusUnexpected)
		return
	}
	pkt.conn.deliver(pkt.token, pkt.op, reply, core.StatusOK)
}

// apply dispatches one request to the ledger and encodes its reply.
func (c *Cluster) apply(op types.Operation, payload []byte) ([]byte, error) {
	switch op {
	case types.OperationCreateAccounts:
		events, err := types.DecodeAccounts(payload)
		if err != nil {
			return nil, err
		}
		return types.EncodeAccountEventResults(c.ledger.createAccounts(events)), nil

	case types.OperationCreateTransfers:
		events, err := types.DecodeTransfers(payload)
		if err != nil {
			return nil, err
		}
		return types.EncodeTransferEventResults(c.ledger.createTransfers(events)), nil

	case types.OperationLookupAccounts:
		ids, err := decodeIDs(payload)
		if err != nil {
			return nil, err
		}
		return encodeAccounts(c.ledger.lookupAccounts(ids)), nil

	case types.OperationLookupTransfers:
		ids, err := decodeIDs(payload)
		if err != nil {
			return nil, err
		}
		return encodeTransfers(c.ledger.lookupTransfers(ids)), nil

	case types.OperationQueryAccounts:
		filter, err := decodeSingleFilter(payload)
		if err != nil {
			return nil, err
		}
		return encodeAccounts(c.ledger.queryAccounts(filter)), nil

	case types.OperationQueryTransfers:
		filter, err := decodeSingleFilter(payload)
		if err != nil {
			return nil, err
		}
		return encodeTransfers(c.ledger.queryTransfers(filter)), nil
	}
	return nil, types.ErrMalformedRecord
}

// conn is one session's connection to the cluster.
type conn struct {
	cluster  *Cluster
	complete core.CompletionFunc

	mu     sync.Mutex
	closed bool
}

// Submit queues one request. The payload is copied: the caller's batch is
// read-only for the request's duration but may be reused the moment the
// completion fires.
func (cn *conn) Submit(token uint64, op types.Operation, payload []byte) error {
	cn.mu.Lock()
	closed := cn.closed
	cn.mu.Unlock()
	if closed {
		return core.ErrShutdown
	}

	owned := make([]byte, len(payload))
	copy(owned, payload)
	pkt := packet{conn: cn, token: token, op: op, payload: owned}

	// Enqueue under the cluster mutex so shutdown cannot interleave: a
	// packet accepted here was queued before Close set closed, and the
	// worker's drain completes it with client_shutdown. After Close, no
	// packet enters the pipeline at all.
	c := cn.cluster
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrShutdown
	}
	select {
	case c.requests <- pkt:
		return nil
	default:
		return core.ErrSubmitBacklogFull
	}
}

// Close detaches the connection. Holding the mutex across deliver
// guarantees no completion callback starts after Close returns.
func (cn *conn) Close() error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.closed = true
	return nil
}

// deliver invokes the session's completion callback unless the connection
// has been closed.
func (cn *conn) deliver(token uint64, op types.Operation, reply []byte, status core.Status) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return
	}
	cn.complete(token, op, reply, status)
}

func decodeIDs(payload []byte) ([]types.Uint128, error) {
	ids := make([]types.Uint128, len(payload)/types.Uint128Size)
	for i := range ids {
		if err := ids[i].UnmarshalFrom(payload[i*types.Uint128Size : (i+1)*types.Uint128Size]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func decodeSingleFilter(payload []byte) (types.QueryFilter, error) {
	var filter types.QueryFilter
	if err := filter.UnmarshalFrom(payload); err != nil {
		return filter, err
	}
	return filter, nil
}

func encodeAccounts(accounts []types.Account) []byte {
	out := make([]byte, len(accounts)*types.AccountSize)
	for i := range accounts {
		// Encoding a validated account into an exact-width slot cannot fail.
		_ = accounts[i].MarshalInto(out[i*types.AccountSize : (i+1)*types.AccountSize])
	}
	return out
}

func encodeTransfers(transfers []types.Transfer) []byte {
	out := make([]byte, len(transfers)*types.TransferSize)
	for i := range transfers {
		_ = transfers[i].MarshalInto(out[i*types.TransferSize : (i+1)*types.TransferSize])
	}
	return out
}
