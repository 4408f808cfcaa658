// Package session implements the client session and completion dispatcher:
// one shared cluster connection multiplexed across many callers.
//
// Each submitted request is correlated with its eventual completion by a
// token that is unique for the session's lifetime. The pending table is
// the only shared mutable state and is guarded by a single mutex covering
// insert-on-submit, claim-on-completion, and iterate-on-teardown. Delivery
// to the waiting caller is a one-shot buffered channel: the dispatcher is
// the sole producer, the submitting caller the sole consumer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/copperline/ledgerclient/pkg/core"
	"github.com/copperline/ledgerclient/pkg/log"
	"github.com/copperline/ledgerclient/pkg/types"
)

// Request-level errors. Check with errors.Is.
var (
	// ErrTooManyRequests is returned by Submit while MaxConcurrentRequests
	// requests are already in flight. Backpressure is explicit; nothing is
	// queued.
	ErrTooManyRequests = errors.New("ledgerclient: too many concurrent requests")

	// ErrSessionClosed is returned by Submit after Close, and delivered to
	// every request still pending when Close runs.
	ErrSessionClosed = errors.New("ledgerclient: session closed")

	// ErrRequestFailed wraps a runtime-level completion failure. The
	// wrapped message carries the status name.
	ErrRequestFailed = errors.New("ledgerclient: request failed")
)

// outcome is the terminal state of a pending request: either a raw reply
// or an error, never both.
type outcome struct {
	reply []byte
	err   error
}

// pendingRequest correlates one submitted batch with its waiting caller.
// done is buffered so the dispatcher never blocks on delivery, even when
// the caller has already abandoned the request.
type pendingRequest struct {
	token     uint64
	op        types.Operation
	done      chan outcome
	abandoned bool
}

// Session owns one cluster runtime and the pending-request table.
// It is safe for concurrent use by multiple callers.
type Session struct {
	mu          sync.Mutex
	runtime     core.Runtime
	pending     map[uint64]*pendingRequest
	nextToken   uint64
	maxInFlight int
	closed      bool
	logger      log.Logger
}

// Config configures a Session.
type Config struct {
	ClusterID             types.Uint128
	Addresses             []string
	MaxConcurrentRequests int
	Logger                log.Logger
}

// DefaultMaxConcurrentRequests bounds in-flight requests when the
// configuration leaves the limit zero.
const DefaultMaxConcurrentRequests = 256

// New creates a session connected through the given runtime factory.
// The session registers its dispatcher as the factory's completion sink,
// so completions may start arriving before New returns.
func New(cfg Config, factory core.Factory) (*Session, error) {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	if err := core.ValidateAddresses(cfg.Addresses); err != nil {
		return nil, err
	}

	s := &Session{
		pending:     make(map[uint64]*pendingRequest),
		maxInFlight: cfg.MaxConcurrentRequests,
		logger:      cfg.Logger,
	}

	runtime, err := factory(cfg.ClusterID, cfg.Addresses, s.complete)
	if err != nil {
		return nil, err
	}
	s.runtime = runtime

	s.logger.Info("session established",
		log.Stringer("cluster_id", cfg.ClusterID),
		log.Int("addresses", len(cfg.Addresses)),
		log.Int("max_concurrent_requests", cfg.MaxConcurrentRequests),
		log.String("min_server_release", core.MinServerRelease),
	)
	return s, nil
}

// Submit sends one encoded batch and blocks until its completion is
// delivered or ctx is done. payload must stay unmodified until Submit
// returns. On success the raw reply bytes are returned for the caller to
// decode per the operation.
func (s *Session) Submit(ctx context.Context, op types.Operation, payload []byte) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if len(s.pending) >= s.maxInFlight {
		s.mu.Unlock()
		return nil, ErrTooManyRequests
	}
	// Tokens are monotonic for the session's lifetime so a stale
	// completion can never be claimed by a newer request.
	token := s.nextToken
	s.nextToken++
	p := &pendingRequest{
		token: token,
		op:    op,
		done:  make(chan outcome, 1),
	}
	s.pending[token] = p
	s.mu.Unlock()

	if err := s.runtime.Submit(token, op, payload); err != nil {
		s.mu.Lock()
		delete(s.pending, token)
		s.mu.Unlock()
		if errors.Is(err, core.ErrShutdown) {
			return nil, ErrSessionClosed
		}
		if errors.Is(err, core.ErrSubmitBacklogFull) {
			return nil, ErrTooManyRequests
		}
		return nil, err
	}

	select {
	case out := <-p.done:
		return out.reply, out.err
	case <-ctx.Done():
		// The entry stays in the table: the in-flight completion must
		// still find it and deliver into the buffered slot, otherwise
		// it would race the removal. See complete.
		s.mu.Lock()
		p.abandoned = true
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// InFlight returns the number of requests awaiting completion.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// complete is the completion dispatcher. The runtime invokes it on
// goroutines the session does not control, possibly concurrently with
// Submit and with itself. Claiming the table entry under the lock makes
// the dispatcher the sole producer for that request's delivery slot, and
// frees the in-flight slot before any later Submit checks capacity.
func (s *Session) complete(token uint64, op types.Operation, reply []byte, status core.Status) {
	s.mu.Lock()
	p, ok := s.pending[token]
	if !ok {
		s.mu.Unlock()
		// Internal-consistency fault: contained, never fatal to the
		// session or to unrelated requests.
		s.logger.Error("completion for unknown token",
			log.Uint64("token", token),
			log.Stringer("operation", op),
			log.Stringer("status", status),
		)
		return
	}
	delete(s.pending, token)
	abandoned := p.abandoned
	s.mu.Unlock()

	out := s.decode(p, op, reply, status)
	if abandoned {
		s.logger.Debug("discarding completion for abandoned request",
			log.Uint64("token", token),
			log.Stringer("operation", op),
		)
	}
	// Buffered channel: delivery never blocks, and an abandoned caller
	// simply never reads the slot.
	p.done <- out
}

// decode turns a raw completion into the request's terminal outcome.
// Structural validation happens here; materializing typed records is the
// API boundary's job.
func (s *Session) decode(p *pendingRequest, op types.Operation, reply []byte, status core.Status) outcome {
	if status != core.StatusOK {
		return outcome{err: fmt.Errorf("%w: %s", ErrRequestFailed, status)}
	}
	if op != p.op {
		s.logger.Error("completion operation mismatch",
			log.Uint64("token", p.token),
			log.Stringer("expected", p.op),
			log.Stringer("received", op),
		)
		return outcome{err: fmt.Errorf("%w: operation mismatch", ErrRequestFailed)}
	}
	size := op.ResultSize()
	if size == 0 || len(reply)%size != 0 {
		return outcome{err: types.ErrMalformedRecord}
	}
	// The runtime owns the reply buffer only for the callback's duration.
	own := make([]byte, len(reply))
	copy(own, reply)
	return outcome{reply: own}
}

// Close fails every pending request with ErrSessionClosed, in token
// order, then releases the runtime. No caller is left blocked. Close is
// idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tokens := make([]uint64, 0, len(s.pending))
	for token := range s.pending {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	drained := make([]*pendingRequest, 0, len(tokens))
	for _, token := range tokens {
		drained = append(drained, s.pending[token])
		delete(s.pending, token)
	}
	s.mu.Unlock()

	for _, p := range drained {
		p.done <- outcome{err: ErrSessionClosed}
	}
	if len(drained) > 0 {
		s.logger.Warn("session closed with requests in flight",
			log.Int("failed_requests", len(drained)),
		)
	}
	return s.runtime.Close()
}
