package account

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"copilot-gateway/internal/core"

	"github.com/bytedance/sonic"
)

// GitHubClient talks to api.github.com with the editor identity Copilot expects.
type GitHubClient struct {
	httpClient    *http.Client
	baseURL       string
	vscodeVersion string
	logger        core.Logger
}

// NewGitHubClient creates a client for the GitHub REST API. An empty baseURL
// selects api.github.com.
func NewGitHubClient(httpClient *http.Client, baseURL, vscodeVersion string, logger core.Logger) *GitHubClient {
	if baseURL == "" {
		baseURL = core.GitHubAPIBaseURL
	}
	if vscodeVersion == "" {
		vscodeVersion = core.DefaultVSCodeVersion
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	return &GitHubClient{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		vscodeVersion: vscodeVersion,
		logger:        logger,
	}
}

// SetEditorHeaders sets the editor identity headers shared by GitHub and Copilot calls.
func SetEditorHeaders(h http.Header, vscodeVersion string) {
	h.Set(core.HeaderEditorVersion, "vscode/"+vscodeVersion)
	h.Set(core.HeaderEditorPluginVersion, core.EditorPluginVersion)
	h.Set(core.HeaderUserAgent, core.CopilotUserAgent)
	h.Set(core.HeaderGitHubAPIVersion, core.GitHubAPIVersion)
	h.Set(core.HeaderVSCodeUserAgentLibrary, core.VSCodeUserAgentLibrary)
}

// SetGitHubHeaders sets the headers for requests authorized by the identity token.
func SetGitHubHeaders(req *http.Request, githubToken, vscodeVersion string) {
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	req.Header.Set(core.HeaderAuthorization, core.AuthTokenPrefix+githubToken)
	SetEditorHeaders(req.Header, vscodeVersion)
}

func (c *GitHubClient) get(ctx context.Context, path, githubToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if githubToken != "" {
		SetGitHubHeaders(req, githubToken, c.vscodeVersion)
	} else {
		req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &core.UpstreamError{Status: resp.StatusCode, Body: body, Header: resp.Header}
	}
	return body, nil
}

// CopilotToken exchanges the identity token for a Copilot session token.
func (c *GitHubClient) CopilotToken(ctx context.Context, githubToken string) (*core.CopilotTokenResponse, error) {
	body, err := c.get(ctx, core.CopilotTokenPath, githubToken)
	if err != nil {
		return nil, fmt.Errorf("copilot token exchange: %w", err)
	}

	var tok core.CopilotTokenResponse
	if err := sonic.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode copilot token: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("copilot token exchange returned no token")
	}
	return &tok, nil
}

// User fetches the GitHub user owning the identity token.
func (c *GitHubClient) User(ctx context.Context, githubToken string) (*core.GitHubUser, error) {
	body, err := c.get(ctx, core.GitHubUserPath, githubToken)
	if err != nil {
		return nil, fmt.Errorf("get github user: %w", err)
	}
	var user core.GitHubUser
	if err := sonic.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode github user: %w", err)
	}
	return &user, nil
}

// Usage returns the raw Copilot usage and quota document.
func (c *GitHubClient) Usage(ctx context.Context, githubToken string) ([]byte, error) {
	body, err := c.get(ctx, core.CopilotUsagePath, githubToken)
	if err != nil {
		return nil, fmt.Errorf("get copilot usage: %w", err)
	}
	return body, nil
}

// LatestVSCodeVersion looks up the newest VS Code release, falling back to a
// pinned version when GitHub cannot be reached.
func (c *GitHubClient) LatestVSCodeVersion(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body, err := c.get(ctx, core.VSCodeReleasesPath, "")
	if err != nil {
		c.logger.Warn("Failed to fetch VS Code version, using %s: %v", core.DefaultVSCodeVersion, err)
		return core.DefaultVSCodeVersion
	}
	var release core.VSCodeRelease
	if err := sonic.Unmarshal(body, &release); err != nil || release.TagName == "" {
		return core.DefaultVSCodeVersion
	}
	return strings.TrimPrefix(release.TagName, "v")
}

// VSCodeVersion returns the editor version sent in identity headers.
func (c *GitHubClient) VSCodeVersion() string {
	return c.vscodeVersion
}
