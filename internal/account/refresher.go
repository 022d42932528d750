package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"
)

// TokenExchanger exchanges an identity token for a Copilot session token.
type TokenExchanger interface {
	CopilotToken(ctx context.Context, githubToken string) (*core.CopilotTokenResponse, error)
}

// Refresher states reported by Status.
const (
	RefresherIdle    = "idle"
	RefresherRunning = "running"
	RefresherStopped = "stopped"
	RefresherFailed  = "failed"
)

// RefresherStatus is the externally visible state of the refresh loop.
type RefresherStatus struct {
	State       string    `json:"state"`
	LastRefresh time.Time `json:"last_refresh"`
	NextRefresh time.Time `json:"next_refresh"`
	LastError   string    `json:"last_error,omitempty"`
}

// Refresher keeps the session token in the Store fresh. At most one refresh
// loop runs per Refresher; a failed exchange ends the loop and is published
// on Err and in Status.
type Refresher struct {
	store     *Store
	exchanger TokenExchanger
	logger    core.Logger
	showToken bool

	after func(d time.Duration) <-chan time.Time
	now   func() time.Time

	started atomic.Bool
	errCh   chan error
	done    chan struct{}

	mu     sync.RWMutex
	status RefresherStatus
}

// RefresherConfig refresher configuration
type RefresherConfig struct {
	Store     *Store
	Exchanger TokenExchanger
	Logger    core.Logger
	ShowToken bool
	// After and Now replace time.After and time.Now, mainly for tests.
	After func(d time.Duration) <-chan time.Time
	Now   func() time.Time
}

// NewRefresher creates a refresher bound to a store.
func NewRefresher(cfg RefresherConfig) *Refresher {
	r := &Refresher{
		store:     cfg.Store,
		exchanger: cfg.Exchanger,
		logger:    cfg.Logger,
		showToken: cfg.ShowToken,
		after:     cfg.After,
		now:       cfg.Now,
		errCh:     make(chan error, 1),
		done:      make(chan struct{}),
		status:    RefresherStatus{State: RefresherIdle},
	}
	if r.logger == nil {
		r.logger = &core.NopLogger{}
	}
	if r.after == nil {
		r.after = time.After
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// nextRefreshDelay fires one margin before the server-advertised refresh time.
func nextRefreshDelay(refreshIn time.Duration) time.Duration {
	return max(refreshIn-core.SessionRefreshMargin, core.MinSessionRefreshGap)
}

// sessionWindow derives the refresh interval and expiry of an exchanged token.
// A missing refresh_in falls back to the time left until expires_at; a token
// with neither, or one already expired, is rejected.
func sessionWindow(tok *core.CopilotTokenResponse, now time.Time) (time.Duration, time.Time, error) {
	refreshIn := time.Duration(tok.RefreshIn) * time.Second
	if tok.ExpiresAt <= 0 {
		if refreshIn <= 0 {
			return 0, time.Time{}, errors.New("copilot token response has neither refresh_in nor expires_at")
		}
		return refreshIn, now.Add(refreshIn), nil
	}

	expiry := time.Unix(tok.ExpiresAt, 0)
	if refreshIn <= 0 {
		refreshIn = expiry.Sub(now)
		if refreshIn <= 0 {
			return 0, time.Time{}, fmt.Errorf("copilot token expired at %s without refresh_in", expiry.Format(time.RFC3339))
		}
	}
	return refreshIn, expiry, nil
}

// Refresh performs one token exchange, publishes the new session token and
// returns the delay until the next refresh. On failure the store is untouched.
func (r *Refresher) Refresh(ctx context.Context) (time.Duration, error) {
	identity := r.store.IdentityToken()
	if identity == "" {
		return 0, errors.New("no GitHub identity token available")
	}

	tok, err := r.exchanger.CopilotToken(ctx, identity)
	if err != nil {
		return 0, err
	}

	now := r.now()
	refreshIn, expiry, err := sessionWindow(tok, now)
	if err != nil {
		return 0, err
	}
	r.store.SetSession(tok.Token, expiry, refreshIn)

	delay := nextRefreshDelay(refreshIn)
	r.mu.Lock()
	r.status.LastRefresh = now
	r.status.NextRefresh = now.Add(delay)
	r.status.LastError = ""
	r.mu.Unlock()

	if r.showToken {
		r.logger.Info("Copilot token: %s", tok.Token)
	} else {
		r.logger.Debug("Copilot token refreshed (%s), next refresh in %s", util.MaskToken(tok.Token), delay)
	}
	return delay, nil
}

// Start obtains the first session token synchronously and then launches the
// background loop. It fails if the first exchange fails or if a loop is
// already running.
func (r *Refresher) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("refresher already started")
	}

	delay, err := r.Refresh(ctx)
	if err != nil {
		r.fail(err)
		close(r.done)
		return fmt.Errorf("initial copilot token: %w", err)
	}

	r.setState(RefresherRunning)
	go r.loop(ctx, delay)
	return nil
}

func (r *Refresher) loop(ctx context.Context, delay time.Duration) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.setState(RefresherStopped)
			return
		case <-r.after(delay):
		}

		next, err := r.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.setState(RefresherStopped)
				return
			}
			r.logger.Error("Copilot token refresh failed, refresh loop stopped: %v", err)
			r.fail(err)
			return
		}
		delay = next
	}
}

func (r *Refresher) fail(err error) {
	r.mu.Lock()
	r.status.State = RefresherFailed
	r.status.LastError = err.Error()
	r.mu.Unlock()

	select {
	case r.errCh <- err:
	default:
	}
}

func (r *Refresher) setState(state string) {
	r.mu.Lock()
	r.status.State = state
	r.mu.Unlock()
}

// Err delivers the error that stopped the refresh loop.
func (r *Refresher) Err() <-chan error {
	return r.errCh
}

// Done is closed once the refresh loop has exited.
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}

// Status returns a copy of the refresher state.
func (r *Refresher) Status() RefresherStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
