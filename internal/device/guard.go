// Package device manages the worker-local claim on device memory. Each worker
// process holds at most one outstanding lease at a time; the wrapped inference
// runtime is known to retain memory after failed attempts, so a low-level
// reclaim hook runs after every release.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vidforge/vidforge/internal/domain/model"
)

// ErrResourceExhausted indicates device memory cannot be claimed right now.
// Transient: the caller requeues the job with backoff rather than failing it.
var ErrResourceExhausted = errors.New("device memory exhausted")

// ReclaimFunc releases cached device memory held by the wrapped runtime.
// Invoked after every lease release regardless of outcome.
type ReclaimFunc func(ctx context.Context) error

// EstimateMB returns the estimated device memory cost in MB for generating at
// the given resolution. Estimates are deliberately conservative; the Mochi
// pipeline peaks well above its steady-state footprint.
func EstimateMB(res model.Resolution) int {
	switch res {
	case model.Resolution1080p:
		return 38000
	case model.Resolution720p:
		return 26000
	default:
		return 18000
	}
}

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	BudgetMB int          // Required: total device memory available to this worker
	Reclaim  ReclaimFunc  // Optional: low-level memory reclaim hook
	Logger   *slog.Logger // Optional: structured logger
	// AggressiveReclaim runs the reclaim hook after successful releases too,
	// not only after failures.
	AggressiveReclaim bool
}

// Guard serializes access to device memory within one worker process.
// At most one lease may be outstanding at any instant; Acquire rejects
// immediately if a prior lease was not cleanly released.
type Guard struct {
	budgetMB   int
	reclaim    ReclaimFunc
	logger     *slog.Logger
	aggressive bool

	mu      sync.Mutex
	current *Lease
}

// NewGuard constructs a Guard for a single worker's device budget.
func NewGuard(opts GuardOptions) (*Guard, error) {
	if opts.BudgetMB <= 0 {
		return nil, errors.New("device budget must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		budgetMB:   opts.BudgetMB,
		reclaim:    opts.Reclaim,
		logger:     logger.With("component", "device_guard"),
		aggressive: opts.AggressiveReclaim,
	}, nil
}

// Lease represents an ephemeral claim on device memory for one generation
// call. Never persisted; released on every exit path.
type Lease struct {
	guard    *Guard
	costMB   int
	released bool
}

// CostMB returns the estimated cost the lease was acquired with.
func (l *Lease) CostMB() int {
	return l.costMB
}

// Acquire claims device memory for one generation call. It fails with
// ErrResourceExhausted if a prior lease is still outstanding or the estimated
// cost exceeds the worker's budget.
func (g *Guard) Acquire(estimatedMB int) (*Lease, error) {
	if estimatedMB <= 0 {
		return nil, fmt.Errorf("estimated cost must be positive, got %d", estimatedMB)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		return nil, fmt.Errorf("prior lease not released: %w", ErrResourceExhausted)
	}
	if estimatedMB > g.budgetMB {
		return nil, fmt.Errorf(
			"estimated cost %dMB exceeds budget %dMB: %w",
			estimatedMB, g.budgetMB, ErrResourceExhausted,
		)
	}

	lease := &Lease{guard: g, costMB: estimatedMB}
	g.current = lease
	return lease, nil
}

// Release returns the lease's claim. Idempotent: safe to call on every exit
// path, including after an earlier Release already ran. The failed flag marks
// the generation outcome; a reclaim is always forced after a failure, and
// after successes too when the guard is aggressive.
func (g *Guard) Release(ctx context.Context, lease *Lease, failed bool) {
	if lease == nil {
		return
	}

	g.mu.Lock()
	alreadyReleased := lease.released
	lease.released = true
	if g.current == lease {
		g.current = nil
	}
	g.mu.Unlock()

	if alreadyReleased {
		return
	}

	if failed || g.aggressive {
		g.forceReclaim(ctx)
	}
}

// ForceReclaim invokes the external memory-reclaim hook immediately, outside
// the normal release path. Used after out-of-memory failures before a retry.
func (g *Guard) ForceReclaim(ctx context.Context) {
	g.forceReclaim(ctx)
}

func (g *Guard) forceReclaim(ctx context.Context) {
	if g.reclaim == nil {
		return
	}
	if err := g.reclaim(ctx); err != nil {
		// Reclaim failure is not fatal; the next acquire attempt will
		// surface any real exhaustion.
		g.logger.WarnContext(ctx, "device memory reclaim failed", "error", err)
	}
}

// Outstanding reports whether a lease is currently held.
func (g *Guard) Outstanding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}
