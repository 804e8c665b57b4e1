package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/github"
	"github.com/ericfisherdev/reviewsync/internal/adapter/driven/mockapi"
	sqliteadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/reviewsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/config"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"sync_concurrency", cfg.SyncConcurrency,
		"mock", cfg.Mock,
		"credential_storage", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire storage adapters.
	prefStore := sqliteadapter.NewPreferenceRepo(db)
	credentialRepo, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}

	// 6. Pick the remote backend. Stored credentials take priority over env vars.
	backend, label := initialBackend(ctx, cfg, credentialRepo)
	provider := application.NewReviewAPIProvider(backend, label)

	// 7. Session registry and sync service. Swapping the backend invalidates
	// every session and reloads it from the new remote.
	registry := application.NewSessionRegistry(provider, prefStore, slog.Default())
	syncSvc := application.NewSyncService(registry, cfg.SyncInterval, cfg.SyncConcurrency)
	provider.OnReplace(registry.InvalidateAll)
	provider.OnReplace(syncSvc.ResyncAll)

	// 8. Start the sync service.
	go syncSvc.Start(ctx)

	// 9. Token management; disabled in mock mode so the fake remote stays in place.
	var credentials *application.CredentialManager
	if !cfg.Mock {
		var store *sqliteadapter.CredentialRepo
		if credentialRepo.Enabled() {
			store = credentialRepo
		}
		credentials = newCredentialManager(provider, store)
	}

	// 10. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(registry, syncSvc, provider, credentials, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second, // Publishing waits on review creation and the read-back.
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("reviewsync started",
		"listen_addr", cfg.ListenAddr,
		"remote", provider.Label(),
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 12. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	registry.InvalidateAll()

	slog.Info("shutdown complete")
	return nil
}

// initialBackend returns the remote the server starts with: the in-memory
// fake in mock mode, otherwise a GitHub client when a token is available, or
// nil until one is provided over the API.
func initialBackend(ctx context.Context, cfg *config.Config, creds *sqliteadapter.CredentialRepo) (application.RemoteBackend, string) {
	if cfg.Mock {
		slog.Info("mock mode enabled, using in-memory remote")
		return mockapi.New(&model.Author{Username: "mock-reviewer"}), "mock"
	}

	token, username := cfg.GitHubToken, cfg.GitHubUsername
	if creds.Enabled() {
		storedToken, storedUsername, err := application.StoredCredentials(ctx, creds)
		if err != nil {
			slog.Warn("failed to read stored credentials", "error", err)
		}
		if storedToken != "" {
			token, username = storedToken, storedUsername
		}
	}

	if token == "" {
		slog.Info("no github credentials configured, sync disabled until a token is provided")
		return nil, ""
	}

	label := "github"
	if username != "" {
		label += ":" + username
	}
	slog.Info("github client created", "username", username)
	return githubadapter.NewClient(token, username), label
}

// newCredentialManager wires token validation against GitHub. store may be
// nil when no encryption key is configured.
func newCredentialManager(provider *application.ReviewAPIProvider, store *sqliteadapter.CredentialRepo) *application.CredentialManager {
	factory := func(ctx context.Context, token string) (application.RemoteBackend, string, error) {
		username, err := githubadapter.NewClient("", "").ValidateToken(ctx, token)
		if err != nil {
			return nil, "", err
		}
		return githubadapter.NewClient(token, username), username, nil
	}

	if store == nil {
		return application.NewCredentialManager(provider, nil, factory, slog.Default())
	}
	return application.NewCredentialManager(provider, store, factory, slog.Default())
}
