package main

import (
	"context"
	"os"

	"copilot-gateway/internal/account"
	"copilot-gateway/internal/admission"
	"copilot-gateway/internal/auth"
	"copilot-gateway/internal/config"
	logpkg "copilot-gateway/internal/log"
	"copilot-gateway/internal/process"
	"copilot-gateway/internal/server"
	"copilot-gateway/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	defer func() { _ = logger.Close() }()

	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to load server configuration: %v", err)
	}

	storageInstance := storage.InitStorage(logger, cfg.TokenDir)
	defer func() { _ = storageInstance.Close() }()
	cfg.Storage = storageInstance
	cfg.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpClient := server.NewHTTPClient(cfg.HTTPClientSettings)

	vscodeVersion := cfg.VSCodeVersion
	if vscodeVersion == "" {
		probe := account.NewGitHubClient(httpClient, "", "", logger)
		vscodeVersion = probe.LatestVSCodeVersion(ctx)
	}
	logger.Info("Using VS Code version %s", vscodeVersion)
	github := account.NewGitHubClient(httpClient, "", vscodeVersion, logger)

	store := account.NewStore()
	if err := account.EnsureIdentity(ctx, store, account.IdentityConfig{
		ConfiguredToken: cfg.GitHubToken,
		Storage:         storageInstance,
		Login:           auth.NewDeviceFlow(httpClient, logger),
		ShowToken:       cfg.ShowToken,
		Logger:          logger,
	}); err != nil {
		logger.Fatal("Failed to obtain GitHub token: %v", err)
	}

	if user, err := github.User(ctx, store.IdentityToken()); err != nil {
		logger.Warn("Failed to look up GitHub user: %v", err)
	} else {
		logger.Info("Logged in as %s", user.Login)
	}

	refresher := account.NewRefresher(account.RefresherConfig{
		Store:     store,
		Exchanger: github,
		Logger:    logger,
		ShowToken: cfg.ShowToken,
	})
	if err := refresher.Start(ctx); err != nil {
		logger.Fatal("Failed to obtain Copilot token: %v", err)
	}
	go func() {
		select {
		case err := <-refresher.Err():
			logger.Error("Copilot token refresh stopped: %v", err)
		case <-ctx.Done():
		}
	}()

	invoker := process.NewInvoker(httpClient, cfg.CopilotBaseURL(), vscodeVersion, store, logger)
	catalog := process.NewCatalog()
	if err := catalog.Refresh(ctx, invoker); err != nil {
		logger.Warn("Failed to load models: %v", err)
	} else {
		logger.Info("Loaded %d models", len(catalog.Descriptors()))
	}

	var approver admission.Approver
	if cfg.ManualApprove {
		approver = admission.NewConsoleApprover(os.Stdin, os.Stdout)
	}
	gate := admission.NewGate(admission.Config{
		MinInterval:   cfg.RateLimitInterval,
		Wait:          cfg.RateLimitWait,
		ManualApprove: cfg.ManualApprove,
		Approver:      approver,
		Logger:        logger,
	})

	srv, err := server.NewServer(cfg, server.Deps{
		Store:     store,
		Refresher: refresher,
		GitHub:    github,
		Invoker:   invoker,
		Catalog:   catalog,
		Gate:      gate,
	})
	if err != nil {
		logger.Fatal("Failed to create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if err := srv.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
