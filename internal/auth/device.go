// Package auth implements the GitHub device-authorization flow used to obtain
// the long-lived identity token.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"copilot-gateway/internal/core"

	"github.com/bytedance/sonic"
	"golang.org/x/oauth2"
)

// DeviceFlow runs the device-authorization grant against GitHub.
type DeviceFlow struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     core.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option customizes a DeviceFlow.
type Option func(*DeviceFlow)

// WithBaseURL points the flow at a different identity provider host.
func WithBaseURL(baseURL string) Option {
	return func(f *DeviceFlow) {
		base := strings.TrimRight(baseURL, "/")
		f.config.Endpoint = oauth2.Endpoint{
			DeviceAuthURL: base + core.GitHubDeviceCodePath,
			TokenURL:      base + core.GitHubTokenPath,
		}
	}
}

// WithClock replaces the sleep and clock functions used by the poll loop.
func WithClock(sleep func(ctx context.Context, d time.Duration) error, now func() time.Time) Option {
	return func(f *DeviceFlow) {
		f.sleep = sleep
		f.now = now
	}
}

// NewDeviceFlow creates a device flow using GitHub's public Copilot client id.
func NewDeviceFlow(httpClient *http.Client, logger core.Logger, opts ...Option) *DeviceFlow {
	f := &DeviceFlow{
		config: &oauth2.Config{
			ClientID: core.GitHubClientID,
			Scopes:   []string{core.GitHubAppScopes},
		},
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepContext,
		now:        time.Now,
	}
	WithBaseURL(core.GitHubBaseURL)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login requests a device code, shows the user code and waits for authorization.
func (f *DeviceFlow) Login(ctx context.Context) (*oauth2.Token, error) {
	da, err := f.Start(ctx)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Please enter the code \"%s\" in %s", da.UserCode, da.VerificationURI)
	return f.Poll(ctx, da)
}

// Start requests a device code and user code.
func (f *DeviceFlow) Start(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	da, err := f.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("request device code: %w", err)
	}
	return da, nil
}

type tokenPollResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Poll waits one interval between token requests until the user authorizes
// the device, the code expires or the provider reports a terminal error.
func (f *DeviceFlow) Poll(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = core.DefaultDevicePollInterval
	}

	for attempt := 1; ; attempt++ {
		if err := f.sleep(ctx, interval); err != nil {
			return nil, err
		}
		if !da.Expiry.IsZero() && !f.now().Before(da.Expiry) {
			return nil, core.ErrAuthTimeout
		}

		res, err := f.pollOnce(ctx, da.DeviceCode)
		if err != nil {
			return nil, err
		}

		switch {
		case res.AccessToken != "":
			f.logger.Debug("Device authorized after %d polls", attempt)
			return &oauth2.Token{AccessToken: res.AccessToken, TokenType: res.TokenType}, nil
		case res.Error == core.DeviceErrorAuthorizationPending:
			f.logger.Debug("Device authorization pending (poll %d)", attempt)
		case res.Error == core.DeviceErrorSlowDown:
			interval += core.DevicePollSlowDownStep
			f.logger.Debug("Device poll slowed down to %s", interval)
		case res.Error == "expired_token":
			return nil, core.ErrAuthTimeout
		default:
			return nil, fmt.Errorf("device authorization failed: %s %s", res.Error, res.ErrorDescription)
		}
	}
}

func (f *DeviceFlow) pollOnce(ctx context.Context, deviceCode string) (*tokenPollResponse, error) {
	form := url.Values{
		"client_id":   {f.config.ClientID},
		"device_code": {deviceCode},
		"grant_type":  {core.GitHubDeviceGrant},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set(core.HeaderContentType, "application/x-www-form-urlencoded")
	req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll access token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read access token response: %w", err)
	}

	var res tokenPollResponse
	if err := sonic.Unmarshal(body, &res); err != nil || (res.AccessToken == "" && res.Error == "") {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &core.UpstreamError{Status: resp.StatusCode, Body: body, Header: resp.Header}
		}
		return nil, fmt.Errorf("unexpected access token response: %s", string(body))
	}
	return &res, nil
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
