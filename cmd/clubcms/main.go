// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/clubcms/internal/auth"
	"github.com/olegiv/clubcms/internal/cache"
	"github.com/olegiv/clubcms/internal/config"
	"github.com/olegiv/clubcms/internal/handler"
	"github.com/olegiv/clubcms/internal/handler/api"
	"github.com/olegiv/clubcms/internal/logging"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/notify"
	"github.com/olegiv/clubcms/internal/objstore"
	"github.com/olegiv/clubcms/internal/scheduler"
	"github.com/olegiv/clubcms/internal/service"
	"github.com/olegiv/clubcms/internal/session"
	"github.com/olegiv/clubcms/internal/store"
	"github.com/olegiv/clubcms/internal/summary"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Router timeout headroom over the storage timeout, so a slow bucket is
// reported as a storage failure rather than a timed-out request.
const routerTimeoutHeadroom = 15 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "clubcms - club content coordination backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options] [hash-password]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Commands:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  hash-password          Read a password from stdin and print its argon2id hash\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_SESSION_SECRET        Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_DB_PATH               SQLite database path (default: ./data/clubcms.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_ADMIN_EMAIL           Authoring account email\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_ADMIN_PASSWORD_HASH   Authoring account password hash (see hash-password)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_MEDIA_BACKEND         Media storage: local|gcs|memory (default: local)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CLUB_REDIS_URL             Redis URL for the list cache and change bus (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("clubcms %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if flag.Arg(0) == "hash-password" {
		if err := hashPassword(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func hashPassword() error {
	_, _ = fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, _ = fmt.Println(hash)
	return nil
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(logging.NewLogger(os.Stdout, cfg.SlogLevel(), nil))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// From here on WARN and ERROR records also land in the audit log.
	logger := logging.NewLogger(os.Stdout, cfg.SlogLevel(), store.New(db).Audit)
	slog.SetDefault(logger)
	slog.Info("database ready", "audit_log", "warn")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	media, mediaRoot, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := media.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}
	slog.Info("media storage initialized", "backend", cfg.MediaBackend)

	cacheCfg := cache.Config{
		Backend:         cache.BackendMemory,
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTL,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}
	if cfg.UseRedis() {
		cacheCfg.Backend = cache.BackendRedis
	}
	listBackend, err := cache.New(cacheCfg)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = listBackend.Close() }()
	lists := cache.NewListCache(listBackend, cfg.CacheTTL, logger)
	slog.Info("list cache initialized", "backend", cacheCfg.Backend)

	bus, err := openBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	var publisher notify.Publisher = bus
	if cfg.NotifyDebounce > 0 {
		debouncer := notify.NewDebouncer(bus, notify.DebounceConfig{
			Interval: cfg.NotifyDebounce,
			MaxWait:  8 * cfg.NotifyDebounce,
		}, logger)
		defer debouncer.Stop()
		publisher = debouncer
	}

	// List pages are dropped before observers hear about the change, so a
	// recount triggered by the signal never reads a stale page.
	st := store.New(db,
		store.WithChangeHook(lists.Hook()),
		store.WithChangeHook(notify.Hook(publisher, logger)),
	)

	svc := service.New(st, media, service.Config{
		Buckets:        cfg.Buckets(),
		StorageTimeout: cfg.StorageTimeout,
	}, logger)
	reclaimer := svc.NewReclaimer(cfg.ReclaimGrace)

	view := summary.New(st, bus, logger)
	viewDone := make(chan struct{})
	go func() {
		defer close(viewDone)
		if err := view.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("summary view stopped", "error", err)
		}
	}()

	sched := scheduler.New(logger)
	if err := sched.Register(scheduler.JobReclaimMedia, "Delete media no record references",
		cfg.ReclaimSchedule, scheduler.ReclaimJob(reclaimer, logger)); err != nil {
		return fmt.Errorf("registering reclaim job: %w", err)
	}
	if err := sched.Register(scheduler.JobPruneAudit, "Delete audit entries past retention",
		"@daily", scheduler.PruneAuditJob(st.Audit, cfg.AuditRetention, time.Now, logger)); err != nil {
		return fmt.Errorf("registering audit job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	verifier, err := auth.NewStaticVerifier(cfg.AdminEmail, cfg.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("initializing authentication: %w", err)
	}
	if cfg.AdminEmail == "" {
		slog.Warn("CLUB_ADMIN_EMAIL is not set; authoring is disabled")
	}

	loginGuard := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig(), logger)
	defer loginGuard.Close()

	apiHandler := api.NewHandler(api.Config{
		Service:       svc,
		Lists:         lists,
		Summary:       view,
		Verifier:      verifier,
		Login:         loginGuard,
		Sessions:      session.New(db, cfg.IsDevelopment()),
		Reclaimer:     reclaimer,
		Jobs:          sched,
		Audit:         st.Audit,
		Logger:        logger,
		MaxUploadSize: cfg.MaxUploadSize,
		Timeout:       cfg.StorageTimeout + routerTimeoutHeadroom,
	})
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), logger)))

	r.Route("/api/v1", func(r chi.Router) {
		// 100 requests per second per client with a burst of 200
		r.Use(middleware.RateLimit(100, 200))
		r.Get("/health", healthHandler.Health)
		r.Mount("/", apiHandler.Routes())
	})

	if mediaRoot != "" {
		r.Get("/media/{bucket}/*", handler.NewMediaHandler(mediaRoot).Serve)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       60 * time.Second, // Long enough for gallery batches
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open summary streams only end when the view stops.
	stop()
	<-viewDone

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openMedia returns the configured object store and, for the local
// backend, the directory the media route serves from.
func openMedia(ctx context.Context, cfg *config.Config) (objstore.Store, string, error) {
	switch cfg.MediaBackend {
	case config.MediaGCS:
		opts := objstore.GCSOptions{
			CredentialsFile: cfg.GCSCredentials,
			CDNDomain:       cfg.GCSCDNDomain,
		}
		if strings.HasPrefix(cfg.MediaBaseURL, "http://") || strings.HasPrefix(cfg.MediaBaseURL, "https://") {
			opts.PublicBaseURL = cfg.MediaBaseURL
		}
		g, err := objstore.NewGCS(ctx, opts)
		if err != nil {
			return nil, "", fmt.Errorf("initializing gcs storage: %w", err)
		}
		return g, "", nil
	case config.MediaMemory:
		slog.Warn("media is kept in memory and lost on restart")
		return objstore.NewMemory(cfg.MediaBaseURL), "", nil
	default:
		l, err := objstore.NewLocal(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("initializing local storage: %w", err)
		}
		return l, l.Root(), nil
	}
}

// openBus returns the change bus: Redis pub/sub when configured so several
// instances share signals, otherwise the in-process hub.
func openBus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Bus, error) {
	if !cfg.UseRedis() {
		return notify.NewHub(notify.DefaultBuffer), nil
	}
	bus, err := notify.NewRedisBus(ctx, notify.RedisBusOptions{
		URL:            cfg.RedisURL,
		Prefix:         cfg.NotifyPrefix,
		Buffer:         notify.DefaultBuffer,
		ConnectTimeout: 5 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting change bus: %w", err)
	}
	slog.Info("change bus initialized", "backend", "redis")
	return bus, nil
}
