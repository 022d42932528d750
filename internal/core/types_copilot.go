package core

// CopilotTokenResponse is the session token exchange response.
type CopilotTokenResponse struct {
	Token     string `json:"token"`
	RefreshIn int64  `json:"refresh_in"`
	ExpiresAt int64  `json:"expires_at"`
}

// GitHubUser is the subset of the GitHub user object the gateway logs.
type GitHubUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
}

// VSCodeRelease is the subset of a GitHub release used to derive the editor version.
type VSCodeRelease struct {
	TagName string `json:"tag_name"`
}
