package account

import (
	"context"
	"fmt"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"golang.org/x/oauth2"
)

// DeviceLogin obtains a new identity token interactively.
type DeviceLogin interface {
	Login(ctx context.Context) (*oauth2.Token, error)
}

// IdentityConfig controls where the identity token comes from.
type IdentityConfig struct {
	// ConfiguredToken is a pre-supplied token; it wins over everything else.
	ConfiguredToken string
	Storage         core.StorageInterface
	Login           DeviceLogin
	// ForceLogin skips stored tokens and always runs the device flow.
	ForceLogin bool
	ShowToken  bool
	Logger     core.Logger
}

// EnsureIdentity populates the store's identity token from, in order, the
// configured token, persisted storage or the device flow. Tokens obtained
// through the device flow are persisted so later starts skip it.
func EnsureIdentity(ctx context.Context, store *Store, cfg IdentityConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NopLogger{}
	}

	token, source := cfg.ConfiguredToken, "configuration"
	if token == "" && !cfg.ForceLogin && cfg.Storage != nil {
		stored, err := cfg.Storage.LoadGitHubToken()
		if err != nil {
			logger.Warn("Failed to load stored GitHub token: %v", err)
		}
		token, source = stored, "storage"
	}

	if token == "" {
		if cfg.Login == nil {
			return fmt.Errorf("no GitHub token configured and device login unavailable")
		}
		logger.Info("Not logged in, starting GitHub device authorization")
		tok, err := cfg.Login.Login(ctx)
		if err != nil {
			return fmt.Errorf("github device login: %w", err)
		}
		token, source = tok.AccessToken, "device flow"
		if cfg.Storage != nil {
			if err := cfg.Storage.SaveGitHubToken(token); err != nil {
				return fmt.Errorf("persist github token: %w", err)
			}
		}
	}

	store.SetIdentityToken(token)
	if cfg.ShowToken {
		logger.Info("GitHub token (%s): %s", source, token)
	} else {
		logger.Info("Using GitHub token from %s (%s)", source, util.MaskToken(token))
	}
	return nil
}
