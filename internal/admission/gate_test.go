package admission

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"copilot-gateway/internal/core"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func TestGate_DisabledAdmitsEverything(t *testing.T) {
	g := NewGate(Config{})
	for i := 0; i < 5; i++ {
		if err := g.Admit(context.Background(), "req"); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
}

func TestGate_RejectMode(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(Config{MinInterval: 10 * time.Second, Now: clock.Now, Sleep: clock.Sleep})

	if err := g.Admit(context.Background(), "first"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	first := g.LastAdmitted()

	clock.Advance(4 * time.Second)
	err := g.Admit(context.Background(), "second")
	var rl *core.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.Wait != 6*time.Second {
		t.Errorf("expected 6s remaining, got %s", rl.Wait)
	}
	if !g.LastAdmitted().Equal(first) {
		t.Error("rejection must not move the last admitted timestamp")
	}

	clock.Advance(6 * time.Second)
	if err := g.Admit(context.Background(), "third"); err != nil {
		t.Errorf("request after full interval rejected: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("reject mode must never sleep, got %v", clock.sleeps)
	}
}

func TestGate_WaitModeDelaysUntilInterval(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(Config{MinInterval: 10 * time.Second, Wait: true, Now: clock.Now, Sleep: clock.Sleep})

	if err := g.Admit(context.Background(), "first"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	start := g.LastAdmitted()
	clock.Advance(3 * time.Second)

	if err := g.Admit(context.Background(), "second"); err != nil {
		t.Fatalf("wait mode should admit after waiting: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 7*time.Second {
		t.Errorf("expected a single 7s wait, got %v", clock.sleeps)
	}
	if gap := g.LastAdmitted().Sub(start); gap < 10*time.Second {
		t.Errorf("admissions spaced %s, expected at least 10s", gap)
	}
}

func TestGate_ConcurrentAdmissionsStaySpaced(t *testing.T) {
	clock := newFakeClock()
	interval := 5 * time.Second
	g := NewGate(Config{MinInterval: interval, Wait: true, Now: clock.Now, Sleep: clock.Sleep})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Admit(context.Background(), "req"); err != nil {
				t.Errorf("unexpected rejection: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(clock.sleeps) != 19 {
		t.Fatalf("expected 19 waits for 20 simultaneous requests, got %d", len(clock.sleeps))
	}
	for i, d := range clock.sleeps {
		if d != interval {
			t.Errorf("wait %d: expected %s, got %s", i, interval, d)
		}
	}
	if span := g.LastAdmitted().Sub(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)); span != 19*interval {
		t.Errorf("expected last admission at %s, got %s", 19*interval, span)
	}
}

func TestGate_WaitCancelled(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(Config{MinInterval: time.Minute, Wait: true, Now: clock.Now, Sleep: clock.Sleep})
	if err := g.Admit(context.Background(), "first"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Admit(ctx, "second"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGate_LastAdmittedDoesNotWaitForSleepingRequest(t *testing.T) {
	clock := newFakeClock()
	sleeping := make(chan struct{})
	release := make(chan struct{})
	g := NewGate(Config{
		MinInterval: time.Hour,
		Wait:        true,
		Now:         clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			close(sleeping)
			<-release
			return nil
		},
	})
	if err := g.Admit(context.Background(), "first"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	first := g.LastAdmitted()

	done := make(chan error, 1)
	go func() { done <- g.Admit(context.Background(), "second") }()
	<-sleeping

	read := make(chan time.Time, 1)
	go func() { read <- g.LastAdmitted() }()
	select {
	case got := <-read:
		if !got.Equal(first) {
			t.Errorf("expected %s while second request waits, got %s", first, got)
		}
	case <-time.After(time.Second):
		t.Fatal("LastAdmitted blocked behind a waiting request")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("second request rejected: %v", err)
	}
}

func TestGate_LastAdmittedZeroBeforeFirstRequest(t *testing.T) {
	g := NewGate(Config{MinInterval: time.Second})
	if !g.LastAdmitted().IsZero() {
		t.Errorf("expected zero time, got %s", g.LastAdmitted())
	}
}

type recordingApprover struct {
	answers  []bool
	idx      atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (a *recordingApprover) Approve(ctx context.Context, summary string) (bool, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		m := a.maxSeen.Load()
		if n <= m || a.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	i := int(a.idx.Add(1)) - 1
	return a.answers[i%len(a.answers)], nil
}

func TestGate_ApprovalDenied(t *testing.T) {
	g := NewGate(Config{ManualApprove: true, Approver: &recordingApprover{answers: []bool{false}}})
	if err := g.Admit(context.Background(), "req"); !errors.Is(err, core.ErrApprovalDenied) {
		t.Errorf("expected ErrApprovalDenied, got %v", err)
	}
}

func TestGate_ApprovalsSerialized(t *testing.T) {
	approver := &recordingApprover{answers: []bool{true}}
	g := NewGate(Config{ManualApprove: true, Approver: approver})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Admit(context.Background(), "req"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := approver.maxSeen.Load(); got != 1 {
		t.Errorf("approvals overlapped: %d prompts in flight", got)
	}
}

func TestGate_RateRejectionSkipsApproval(t *testing.T) {
	clock := newFakeClock()
	approver := &recordingApprover{answers: []bool{true}}
	g := NewGate(Config{MinInterval: time.Minute, ManualApprove: true, Approver: approver, Now: clock.Now, Sleep: clock.Sleep})

	_ = g.Admit(context.Background(), "first")
	var rl *core.RateLimitedError
	if err := g.Admit(context.Background(), "second"); !errors.As(err, &rl) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if got := approver.idx.Load(); got != 1 {
		t.Errorf("operator should only be asked once, got %d prompts", got)
	}
}

func TestConsoleApprover(t *testing.T) {
	var out strings.Builder
	a := NewConsoleApprover(strings.NewReader("y\n\nno\nmaybe\n"), &out)

	want := []bool{true, true, false, false}
	for i, expected := range want {
		got, err := a.Approve(context.Background(), "POST /v1/messages model=gpt-4o")
		if err != nil {
			t.Fatalf("answer %d: unexpected error: %v", i, err)
		}
		if got != expected {
			t.Errorf("answer %d: expected %v, got %v", i, expected, got)
		}
	}
	if !strings.Contains(out.String(), "Approve this request?") {
		t.Errorf("prompt not written: %q", out.String())
	}

	if _, err := a.Approve(context.Background(), "again"); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF once input is exhausted, got %v", err)
	}
}

func TestDecide(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		last    time.Time
		now     time.Time
		allowed bool
	}{
		{"first request", time.Time{}, base, true},
		{"too soon", base, base.Add(time.Second), false},
		{"exactly at interval", base, base.Add(10 * time.Second), true},
		{"after interval", base, base.Add(11 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decide(tt.last, tt.now, 10*time.Second)
			if d.Allowed != tt.allowed {
				t.Errorf("expected allowed=%v, got %+v", tt.allowed, d)
			}
			if !d.Allowed && !d.WaitUntil.Equal(tt.last.Add(10*time.Second)) {
				t.Errorf("unexpected wait until %s", d.WaitUntil)
			}
		})
	}
}
