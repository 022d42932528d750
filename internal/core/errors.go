package core

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Sentinel errors shared across packages.
var (
	// ErrAuthTimeout is returned when the device code expires before the user authorizes it.
	ErrAuthTimeout = errors.New("device authorization timed out")
	// ErrApprovalDenied is returned when the operator rejects a request.
	ErrApprovalDenied = errors.New("request rejected by operator")
	// ErrNoSessionToken is returned while no Copilot session token has been obtained yet.
	ErrNoSessionToken = errors.New("copilot session token not available")
	// ErrStreamInterrupted is returned when the upstream event stream ends before [DONE].
	ErrStreamInterrupted = errors.New("upstream stream ended before terminal event")
)

// UpstreamError is any non-success response from GitHub or the Copilot backend.
// Body is kept verbatim so it can be passed through to the consumer.
type UpstreamError struct {
	Status int
	Body   []byte
	Header http.Header
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, truncate(string(e.Body), 200))
}

// RateLimitedError reports an admission rejection together with the remaining wait.
type RateLimitedError struct {
	Wait time.Duration
}

// WaitSeconds rounds the remaining wait up to whole seconds.
func (e *RateLimitedError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Wait %d seconds.", e.WaitSeconds())
}

// UnsupportedCapabilityError is returned before any upstream call when the
// target model lacks a capability the request needs.
type UnsupportedCapabilityError struct {
	Model      string
	Capability string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("model %q does not support %s", e.Model, e.Capability)
}

// UnknownModelError is returned when a model id has no capability descriptor
// and the request cannot proceed without one.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Model)
}

// InvalidRequestError reports a consumer payload the gateway cannot translate.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
