package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"headsup/internal/api"
	"headsup/pkg/cache"
	"headsup/pkg/config"
	"headsup/pkg/db"
	"headsup/pkg/db/maintenance"
	"headsup/pkg/geo"
	"headsup/pkg/geocode"
	"headsup/pkg/hub"
	"headsup/pkg/logging"
	"headsup/pkg/nav"
	"headsup/pkg/probe"
	"headsup/pkg/request"
	"headsup/pkg/store"
	"headsup/pkg/tiles"
	"headsup/pkg/tracker"
	"headsup/pkg/version"
)

const defaultConfigPath = "configs/headsup.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Heads-up Minimap started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	maintenance.Run(ctx, dbConn, time.Duration(appCfg.Cache.TTL))

	svcs := initServices(appCfg, st)
	defer svcs.Hub.Close()

	source, closeSource := initPositionSource(ctx, appCfg, svcs.Hub)
	defer closeSource()

	prov := config.NewProvider(appCfg, st)
	if err := probe.AnalyzeResults(probe.Run(ctx, startupProbes(dbConn, svcs, prov))); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	panel := prov.Settings(ctx)
	engine := nav.NewEngine(nav.FromConfig(appCfg, &panel), nav.Deps{
		Source:    source,
		Sink:      svcs.Hub,
		Notifier:  svcs.Hub,
		Labeler:   svcs.Geocoder,
		Simulator: demoFactory(appCfg.Demo),
		Logger:    slog.Default(),
	})
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracking: %w", err)
	}
	defer engine.Stop()

	return runServer(ctx, appCfg, svcs, st, prov, engine)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// Services are the long-lived collaborators shared by the engine and the API.
type Services struct {
	Tracker    *tracker.Tracker
	Request    *request.Client
	Geocoder   *geocode.Client
	Hub        *hub.Hub
	Prefetcher *tiles.Prefetcher
	TileSource tiles.Source
}

func initServices(cfg *config.Config, st *store.SQLiteStore) *Services {
	tr := tracker.New()
	reqClient := request.New(
		cache.NewLayered(st, cfg.Geocode.MemorySize, time.Duration(cfg.Geocode.MemoryTTL)),
		tr,
		request.Options{
			UserAgent: cfg.Request.UserAgent,
			Retries:   cfg.Request.Retries,
			Timeout:   time.Duration(cfg.Request.Timeout),
			BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
			MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
			Workers:   cfg.Cache.Concurrency,
		},
	)

	src := tiles.Source{URLTemplate: cfg.Map.TileURL, Subdomains: cfg.Map.Subdomains}
	pf := tiles.NewPrefetcher(reqClient, st, tiles.Options{
		Source:        src,
		Limits:        tiles.Limits{MinZoom: cfg.Cache.MinZoom, MaxZoom: cfg.Cache.MaxZoom},
		Concurrency:   cfg.Cache.Concurrency,
		ProgressEvery: cfg.Cache.ProgressEvery,
		Logger:        slog.Default(),
	})

	return &Services{
		Tracker:    tr,
		Request:    reqClient,
		Geocoder:   geocode.NewClient(reqClient, cfg.Geocode.BaseURL),
		Hub:        hub.New(slog.Default()),
		Prefetcher: pf,
		TileSource: src,
	}
}

func startupProbes(dbConn *db.DB, svcs *Services, prov config.Provider) []probe.Probe {
	return []probe.Probe{
		{Name: "Database", Critical: true, Check: dbConn.PingContext},
		{
			Name:     "Tile Source",
			Critical: true,
			Check:    func(context.Context) error { return svcs.TileSource.Validate() },
		},
		{
			// Stored overrides out of range are replaced on the next save.
			Name:  "Settings",
			Check: func(ctx context.Context) error { return prov.Settings(ctx).Validate(prov.AppConfig().Map.MaxZoom) },
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, svcs *Services, st *store.SQLiteStore, prov *config.UnifiedProvider, engine *nav.Engine) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	region := func(center geo.Point, zoom int) tiles.Region {
		return tiles.Region{
			Center:    center,
			BaseZoom:  zoom,
			RadiusDeg: cfg.Cache.RadiusDeg,
			ZoomBand:  [2]int{-cfg.Cache.ZoomBelow, cfg.Cache.ZoomAbove},
		}
	}

	srv := api.NewServer(cfg.Server.Address,
		api.NewStateHandler(engine),
		api.NewConfigHandler(prov, engine),
		api.NewCacheHandler(ctx, svcs.Prefetcher, engine, svcs.Hub, st, region),
		api.NewTileHandler(svcs.TileSource, st, svcs.Request, cfg.Map.MaxZoom),
		api.NewStatsHandler(svcs.Tracker, svcs.Hub.Clients),
		svcs.Hub,
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
