// Command oauth1gw runs the OAuth 1.0 request-authentication gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apiward/oauth1gw/internal/authz"
	"github.com/apiward/oauth1gw/internal/config"
	"github.com/apiward/oauth1gw/internal/oauth1"
	"github.com/apiward/oauth1gw/internal/observability"
	"github.com/apiward/oauth1gw/internal/server"
	"github.com/apiward/oauth1gw/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/oauth1gw.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "oauth1gw: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting oauth1gw",
		observability.String("address", cfg.Server.Address),
		observability.String("storeBackend", cfg.Store.Backend))

	permissions := authz.NewMemoryPermissions()

	directory, cleanup, err := buildDirectory(cfg, permissions, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	registry, err := newRegistry(cfg.Operations)
	if err != nil {
		return fmt.Errorf("invalid operations: %w", err)
	}

	var metrics *oauth1.Metrics
	if cfg.Metrics.Enabled {
		metrics = oauth1.NewMetrics("oauth1gw")
	}

	replay := oauth1.NewReplayGuard(directory,
		cfg.OAuth.MaxAge.Duration(), cfg.OAuth.MaxSkew.Duration())
	authenticator := oauth1.New(directory, replay,
		oauth1.WithLogger(logger),
		oauth1.WithMetrics(metrics))
	gate := authz.NewGate(registry, permissions, authz.WithGateLogger(logger))
	hook := server.NewHook(authenticator, gate,
		server.WithHookLogger(logger),
		server.WithRealm(cfg.OAuth.Realm))

	engine := server.BuildRouter(server.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, hook, registry, logger)

	srv := server.NewServer(cfg.Server, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("oauth1gw stopped")
	return nil
}

// buildDirectory constructs the credential directory for the configured
// backend and loads the credential file when one is given. The returned
// cleanup closes the watcher and any backend connections.
func buildDirectory(cfg *config.Config, permissions *authz.MemoryPermissions, logger observability.Logger) (store.Directory, func(), error) {
	var snap *store.Snapshot
	if cfg.Store.CredentialsFile != "" {
		var err error
		snap, err = store.LoadCredentialsFile(cfg.Store.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		permissions.Replace(snap.PermissionGrants())
	}

	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		dir, err := store.NewRedisDirectory(cfg.Store.Redis,
			cfg.OAuth.EffectiveNonceTTL(), store.WithRedisLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if snap != nil {
			if err := seedRedis(dir, snap); err != nil {
				_ = dir.Close()
				return nil, nil, err
			}
		}
		return dir, func() { _ = dir.Close() }, nil

	default:
		dir := store.NewMemoryDirectory(
			store.WithNonceTTL(cfg.OAuth.EffectiveNonceTTL()))
		if snap != nil {
			dir.ReplaceCredentials(snap.Consumers, snap.Tokens)
		}

		cleanup := func() {}
		if cfg.Store.WatchCredentials && cfg.Store.CredentialsFile != "" {
			watcher, err := store.NewCredentialWatcher(cfg.Store.CredentialsFile,
				func(next *store.Snapshot) {
					dir.ReplaceCredentials(next.Consumers, next.Tokens)
					permissions.Replace(next.PermissionGrants())
				}, logger)
			if err != nil {
				return nil, nil, err
			}
			watchCtx, cancelWatch := context.WithCancel(context.Background())
			go watcher.Run(watchCtx)
			cleanup = func() {
				cancelWatch()
				_ = watcher.Close()
			}
		}
		return dir, cleanup, nil
	}
}

// seedRedis provisions the file-declared credentials into redis. Runs once
// at startup; live credential management for the redis backend belongs to
// deployment tooling.
func seedRedis(dir *store.RedisDirectory, snap *store.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := range snap.Consumers {
		if err := dir.PutConsumer(ctx, &snap.Consumers[i]); err != nil {
			return fmt.Errorf("failed to seed consumer %q: %w", snap.Consumers[i].Key, err)
		}
	}
	for i := range snap.Tokens {
		if err := dir.PutToken(ctx, &snap.Tokens[i]); err != nil {
			return fmt.Errorf("failed to seed token %q: %w", snap.Tokens[i].Token, err)
		}
	}
	return nil
}

func newRegistry(ops []config.OperationConfig) (*authz.Registry, error) {
	declared := make([]authz.Operation, len(ops))
	for i, op := range ops {
		declared[i] = authz.Operation{
			ID:           op.ID,
			Method:       op.Method,
			Path:         op.Path,
			Title:        op.Title,
			RequiresAuth: op.RequiresAuth,
		}
	}
	return authz.NewRegistry(declared)
}
