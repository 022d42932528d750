// Package admission gates every upstream call behind an optional minimum
// interval between requests and an optional operator approval.
package admission

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"copilot-gateway/internal/core"
)

// Approver asks a human operator to accept or reject a request.
type Approver interface {
	Approve(ctx context.Context, summary string) (bool, error)
}

// Decision is the rate-limit verdict for one request.
type Decision struct {
	Allowed   bool
	WaitUntil time.Time
}

// Config admission gate configuration
type Config struct {
	// MinInterval is the minimum spacing between admitted requests; zero disables it.
	MinInterval time.Duration
	// Wait blocks callers until the interval has elapsed instead of rejecting them.
	Wait          bool
	ManualApprove bool
	Approver      Approver
	Logger        core.Logger
	Now           func() time.Time
	Sleep         func(ctx context.Context, d time.Duration) error
}

// Gate is safe for concurrent use.
type Gate struct {
	cfg Config

	// rateSlot serializes rate decisions; it is a channel so waiters can give
	// up on cancellation. lastNanos is written only while holding it.
	rateSlot  chan struct{}
	lastNanos atomic.Int64

	// approvalSlot serializes operator prompts in arrival order.
	approvalSlot chan struct{}
}

// NewGate creates an admission gate.
func NewGate(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Gate{
		cfg:          cfg,
		rateSlot:     make(chan struct{}, 1),
		approvalSlot: make(chan struct{}, 1),
	}
}

// Admit runs the rate-limit check and then, if enabled, the approval prompt.
// It returns *core.RateLimitedError, core.ErrApprovalDenied or a context error
// when the request must not reach the upstream.
func (g *Gate) Admit(ctx context.Context, summary string) error {
	if err := g.admitRate(ctx); err != nil {
		return err
	}
	if g.cfg.ManualApprove {
		return g.approve(ctx, summary)
	}
	return nil
}

func decide(last, now time.Time, interval time.Duration) Decision {
	if interval <= 0 || last.IsZero() {
		return Decision{Allowed: true}
	}
	next := last.Add(interval)
	if !now.Before(next) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, WaitUntil: next}
}

func (g *Gate) admitRate(ctx context.Context) error {
	if g.cfg.MinInterval <= 0 {
		return nil
	}

	select {
	case g.rateSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.rateSlot }()

	now := g.cfg.Now()
	d := decide(g.LastAdmitted(), now, g.cfg.MinInterval)
	if !d.Allowed {
		remaining := d.WaitUntil.Sub(now)
		if !g.cfg.Wait {
			g.cfg.Logger.Warn("Rate limit exceeded, rejecting request (%s remaining)", remaining)
			return &core.RateLimitedError{Wait: remaining}
		}
		g.cfg.Logger.Info("Rate limit reached, waiting %s before admitting request", remaining)
		if err := g.cfg.Sleep(ctx, remaining); err != nil {
			return err
		}
	}

	g.lastNanos.Store(g.cfg.Now().UnixNano())
	return nil
}

func (g *Gate) approve(ctx context.Context, summary string) error {
	if g.cfg.Approver == nil {
		return fmt.Errorf("%w: no approver configured", core.ErrApprovalDenied)
	}

	select {
	case g.approvalSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.approvalSlot }()

	ok, err := g.cfg.Approver.Approve(ctx, summary)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrApprovalDenied, err)
	}
	if !ok {
		return core.ErrApprovalDenied
	}
	return nil
}

// LastAdmitted returns the time the last request passed the rate check, or
// the zero time. It never waits on the rate slot.
func (g *Gate) LastAdmitted() time.Time {
	nanos := g.lastNanos.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
