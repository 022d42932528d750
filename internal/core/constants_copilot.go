package core

// GitHub identity provider constants
const (
	GitHubClientID       = "Iv1.b507a08c87ecfe98"
	GitHubAppScopes      = "read:user"
	GitHubBaseURL        = "https://github.com"
	GitHubAPIBaseURL     = "https://api.github.com"
	GitHubDeviceCodePath = "/login/device/code"
	GitHubTokenPath      = "/login/oauth/access_token"
	GitHubDeviceGrant    = "urn:ietf:params:oauth:grant-type:device_code"
)

// GitHub API paths
const (
	CopilotTokenPath   = "/copilot_internal/v2/token"
	CopilotUsagePath   = "/copilot_internal/user"
	GitHubUserPath     = "/user"
	VSCodeReleasesPath = "/repos/microsoft/vscode/releases/latest"
)

// Device flow error codes
const (
	DeviceErrorAuthorizationPending = "authorization_pending"
	DeviceErrorSlowDown             = "slow_down"
)

// Copilot backend paths
const (
	CopilotChatCompletionsPath = "/chat/completions"
	CopilotModelsPath          = "/models"
	CopilotEmbeddingsPath      = "/embeddings"
)

// Account type constants
const (
	AccountTypeIndividual = "individual"
	AccountTypeBusiness   = "business"
	AccountTypeEnterprise = "enterprise"
)

// Editor identity constants
const (
	CopilotChatVersion     = "0.26.7"
	EditorPluginVersion    = "copilot-chat/" + CopilotChatVersion
	CopilotUserAgent       = "GitHubCopilotChat/" + CopilotChatVersion
	GitHubAPIVersion       = "2025-04-01"
	DefaultVSCodeVersion   = "1.85.0"
	VSCodeUserAgentLibrary = "electron-fetch"
	CopilotIntegrationID   = "vscode-chat"
	CopilotOpenAIIntent    = "conversation-panel"
)

// Copilot request header names
const (
	HeaderEditorVersion          = "editor-version"
	HeaderEditorPluginVersion    = "editor-plugin-version"
	HeaderUserAgent              = "user-agent"
	HeaderGitHubAPIVersion       = "x-github-api-version"
	HeaderVSCodeUserAgentLibrary = "x-vscode-user-agent-library-version"
	HeaderCopilotIntegrationID   = "copilot-integration-id"
	HeaderOpenAIIntent           = "openai-intent"
	HeaderRequestID              = "x-request-id"
	HeaderCopilotVision          = "copilot-vision-request"
	HeaderInitiator              = "X-Initiator"
)

// X-Initiator values
const (
	InitiatorUser  = "user"
	InitiatorAgent = "agent"
)

// Identity token persistence constants
const (
	AppDirName          = "copilot-api"
	GitHubTokenFileName = "github_token"
	RedisGitHubTokenKey = "copilot:github_token"
	RedisStatsKey       = "copilot:stats"
)
