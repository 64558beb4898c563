package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/ticklist/internal/api"
	"github.com/MGallo-Code/ticklist/internal/config"
	"github.com/MGallo-Code/ticklist/internal/policy"
	"github.com/MGallo-Code/ticklist/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. With no subcommand the server runs, same as "serve".
func newRootCmd() *cobra.Command {
	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, nil)
	}

	root := &cobra.Command{
		Use:           "ticklist",
		Short:         "Ticklist todo API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Apply pending migrations and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			n, err := migrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	})
	return root
}

// setup loads config and installs the JSON logger.
func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))
	return cfg, nil
}

// migrate applies embedded migrations and returns how many ran.
func migrate(ctx context.Context, cfg *config.Config) (int, error) {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()
	return applyMigrations(ctx, ps)
}

func applyMigrations(ctx context.Context, ps *store.PostgresStore) (int, error) {
	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	n, err := ps.Migrate(ctx, migrationsFS)
	if err != nil {
		return n, fmt.Errorf("failed to run migrations: %w", err)
	}
	return n, nil
}

// newBackends picks the cache and rate limiter: Redis when REDIS_URL is set,
// in-process memory otherwise. closeFn releases whatever was opened.
func newBackends(ctx context.Context, cfg *config.Config) (api.Cache, api.RateLimiter, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, using in-process cache and rate limiter")
		return store.NewMemoryCache(), store.NewMemoryRateLimiter(), func() {}, nil
	}

	// All Redis structs share one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up redis client: %w", err)
	}
	return store.NewRedisCache(rdb), store.NewRedisRateLimiter(rdb), func() { rdb.Close() }, nil
}

// handlerOptions maps config onto handler tuning.
func handlerOptions(cfg *config.Config) api.Options {
	return api.Options{
		ShowTTL:    cfg.CacheShowTTL,
		ListTTL:    cfg.CacheListTTL,
		TokenTTL:   cfg.TokenTTL,
		MaxPerPage: cfg.ListMaxPerPage,
		APIPolicy:  store.RateLimit{Max: cfg.RateAPIMax, Window: cfg.RateAPIWindow},
		AuthPolicy: store.RateLimit{Max: cfg.RateAuthMax, Window: cfg.RateAuthWindow},
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	if _, err := applyMigrations(ctx, ps); err != nil {
		return err
	}

	cache, limiter, closeBackends, err := newBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	h := &api.Handler{
		Store:   ps,
		Cache:   cache,
		Limiter: limiter,
		Guard:   policy.OwnerGuard{},
		Opts:    handlerOptions(cfg),
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(h)}

	// Token cleanup goroutine; removes tokens expired >1 day ago, runs every 24h.
	// Cancelled via cleanupCtx when run() returns.
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go func() {
		const retention = 24 * time.Hour
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := ps.CleanupExpiredTokens(cleanupCtx, retention)
				if err != nil {
					slog.Warn("token cleanup failed", "error", err)
				} else {
					slog.Info("token cleanup complete", "deleted", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ticklist listening", "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting new conns, then waits for in-flight requests or the timeout.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and by smoke tests.
func buildRouter(h *api.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.NotFound(api.NotFound)
	r.Get("/health", h.CheckHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Rate limited per client IP before any credential is known.
		r.Group(func(r chi.Router) {
			r.Use(h.LimitAuth)
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
		})

		// Authentication required routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			// Per-user limit keys on the user RequireAuth injected.
			// DO NOT RUN LimitAPI BEFORE RequireAuth
			r.Use(h.LimitAPI)
			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/user", h.CurrentUser)
			r.Get("/auth/check", h.Check)

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", h.ListTodos)
				r.Post("/", h.CreateTodo)
				r.Get("/{id}", h.ShowTodo)
				r.Put("/{id}", h.UpdateTodo)
				r.Patch("/{id}", h.UpdateTodo)
				r.Delete("/{id}", h.DeleteTodo)
			})
		})
	})

	return r
}
