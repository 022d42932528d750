package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"gopkg.in/yaml.v3"
)

// ServerConfig server configuration
type ServerConfig struct {
	Port               string
	GinMode            string
	ClientAPIKeys      []string
	AccountType        string
	GitHubToken        string //nolint:gosec // runtime credential, not a hardcoded secret
	RateLimitInterval  time.Duration
	RateLimitWait      bool
	ManualApprove      bool
	ShowToken          bool
	VSCodeVersion      string
	TokenDir           string
	ClientRateLimitRPM int
	HTTPClientSettings HTTPClientSettings
	Storage            core.StorageInterface
	Logger             core.Logger
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.HTTPRequestTimeout,
	}
}

// FileConfig is the optional YAML overlay named by CONFIG_FILE.
// Environment variables take precedence over values from the file.
type FileConfig struct {
	Port               string   `yaml:"port"`
	AccountType        string   `yaml:"account_type"`
	RateLimitSeconds   *int     `yaml:"rate_limit_seconds"`
	RateLimitWait      *bool    `yaml:"rate_limit_wait"`
	ManualApprove      *bool    `yaml:"manual_approve"`
	ShowToken          *bool    `yaml:"show_token"`
	VSCodeVersion      string   `yaml:"vscode_version"`
	TokenDir           string   `yaml:"token_dir"`
	ClientAPIKeys      []string `yaml:"client_api_keys"`
	ClientRateLimitRPM *int     `yaml:"client_rate_limit_rpm"`
}

// LoadFile reads the YAML overlay from disk.
func LoadFile(path string) (FileConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // G304: path from operator config
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return fc, nil
}

func (fc FileConfig) applyTo(cfg *ServerConfig) {
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.AccountType != "" {
		cfg.AccountType = fc.AccountType
	}
	if fc.RateLimitSeconds != nil {
		cfg.RateLimitInterval = time.Duration(*fc.RateLimitSeconds) * time.Second
	}
	if fc.RateLimitWait != nil {
		cfg.RateLimitWait = *fc.RateLimitWait
	}
	if fc.ManualApprove != nil {
		cfg.ManualApprove = *fc.ManualApprove
	}
	if fc.ShowToken != nil {
		cfg.ShowToken = *fc.ShowToken
	}
	if fc.VSCodeVersion != "" {
		cfg.VSCodeVersion = fc.VSCodeVersion
	}
	if fc.TokenDir != "" {
		cfg.TokenDir = fc.TokenDir
	}
	if len(fc.ClientAPIKeys) > 0 {
		cfg.ClientAPIKeys = fc.ClientAPIKeys
	}
	if fc.ClientRateLimitRPM != nil {
		cfg.ClientRateLimitRPM = *fc.ClientRateLimitRPM
	}
}

// LoadServerConfigFromEnv loads server config from environment variables,
// layered over the optional CONFIG_FILE overlay.
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:               core.DefaultPort,
		GinMode:            util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		AccountType:        core.AccountTypeIndividual,
		HTTPClientSettings: DefaultHTTPClientSettings(),
		Logger:             logger,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		fc.applyTo(&cfg)
		logger.Info("Loaded config overlay from %s", path)
	}

	cfg.Port = util.GetEnvWithDefault("PORT", cfg.Port)
	cfg.AccountType = strings.ToLower(util.GetEnvWithDefault("ACCOUNT_TYPE", cfg.AccountType))
	cfg.GitHubToken = strings.TrimSpace(os.Getenv("GH_TOKEN"))
	cfg.VSCodeVersion = util.GetEnvWithDefault("VSCODE_VERSION", cfg.VSCodeVersion)
	cfg.TokenDir = util.GetEnvWithDefault("TOKEN_DIR", cfg.TokenDir)
	cfg.RateLimitWait = util.GetEnvBool("RATE_LIMIT_WAIT", cfg.RateLimitWait)
	cfg.ManualApprove = util.GetEnvBool("MANUAL_APPROVE", cfg.ManualApprove)
	cfg.ShowToken = util.GetEnvBool("SHOW_TOKEN", cfg.ShowToken)

	if keys := util.ParseEnvList(os.Getenv("CLIENT_API_KEYS")); len(keys) > 0 {
		cfg.ClientAPIKeys = keys
	}

	seconds, set, err := util.GetEnvInt("RATE_LIMIT_SECONDS")
	if err != nil {
		return cfg, err
	}
	if set {
		cfg.RateLimitInterval = time.Duration(seconds) * time.Second
	}

	rpm, set, err := util.GetEnvInt("CLIENT_RATE_LIMIT_RPM")
	if err != nil {
		return cfg, err
	}
	if set {
		cfg.ClientRateLimitRPM = rpm
	}

	if cfg.TokenDir == "" {
		dir, err := util.DefaultConfigDir()
		if err != nil {
			return cfg, err
		}
		cfg.TokenDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if len(cfg.ClientAPIKeys) == 0 {
		logger.Warn("CLIENT_API_KEYS is empty, gateway accepts unauthenticated clients")
	} else {
		logger.Info("Loaded %d client API keys", len(cfg.ClientAPIKeys))
	}
	if cfg.RateLimitInterval > 0 {
		logger.Info("Rate limit: one request per %s (wait=%v)", cfg.RateLimitInterval, cfg.RateLimitWait)
	}
	if cfg.ManualApprove {
		logger.Info("Manual approval enabled")
	}

	return cfg, nil
}

// Validate performs sanity checks on the configuration.
func (c ServerConfig) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port must be a valid TCP port, got %q", c.Port)
	}
	if c.RateLimitInterval < 0 {
		return fmt.Errorf("rate limit interval must not be negative, got %s", c.RateLimitInterval)
	}
	if c.ClientRateLimitRPM < 0 {
		return fmt.Errorf("client rate limit must not be negative, got %d", c.ClientRateLimitRPM)
	}
	switch c.AccountType {
	case core.AccountTypeIndividual, core.AccountTypeBusiness, core.AccountTypeEnterprise:
	default:
		return fmt.Errorf("account type must be one of individual, business or enterprise, got %q", c.AccountType)
	}
	return nil
}

// CopilotBaseURL returns the Copilot backend host for the configured account tier.
func (c ServerConfig) CopilotBaseURL() string {
	return CopilotBaseURL(c.AccountType)
}

// CopilotBaseURL maps an account tier to its Copilot backend host.
func CopilotBaseURL(accountType string) string {
	if accountType == "" || accountType == core.AccountTypeIndividual {
		return "https://api.githubcopilot.com"
	}
	return fmt.Sprintf("https://api.%s.githubcopilot.com", accountType)
}
