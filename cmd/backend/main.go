package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"image-drop/internal/catalog"
	"image-drop/internal/config"
	"image-drop/internal/gallery"
	"image-drop/internal/logging"
	"image-drop/internal/presence"
	"image-drop/internal/server"
	"image-drop/internal/store"
)

type options struct {
	configPath string
	addr       string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads --config and --addr. IMAGEDROP_CONFIG supplies the config
// path when the flag is not given.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("backend", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (env: IMAGEDROP_CONFIG)")
	flagSet.StringVar(&opts.addr, "addr", "", "listen address, overrides server.addr")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if opts.configPath == "" {
		opts.configPath = getenvDefault("IMAGEDROP_CONFIG", "")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	logging.Configure(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	defer func() { _ = st.Close() }()
	logging.Info("store_ready", logging.Fields{"type": cfg.Store.Type})

	b := presence.NewBroadcaster(presence.WithObserver(func(n int) {
		logging.Debug("guest_count_changed", logging.Fields{"count": n})
	}))

	srvCfg := server.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		MaxBatch:          cfg.Server.MaxBatch,
		UploadRate:        cfg.Server.UploadRate,
		UploadWindow:      cfg.Server.UploadWindow,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Public:            gallery.NewAddresser(cfg.Public.Host, cfg.Public.Port),
		PublicFromRequest: cfg.Public.FromRequest,
		Store:             st,
		Presence:          b,
	}

	if cfg.Catalog.Enabled {
		cat, err := openCatalog(cfg.Catalog.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close() }()
		srvCfg.Recorder = cat
		srvCfg.Catalog = cat
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srvCfg.Metrics = server.NewMetrics(reg, b)
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting", logging.Fields{
			"addr":        cfg.Server.Addr,
			"public_host": cfg.Public.Host,
			"public_port": cfg.Public.Port,
		})
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("shutting_down", logging.Fields{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logging.Info("shutdown_complete", nil)
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

// openStore builds the content store selected by cfg.Type.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		return store.NewFSStore(ctx, cfg.Filesystem.Dir)
	case "minio":
		return store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
		})
	case "badger":
		return store.NewBadgerStore(cfg.Badger.Dir)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// openCatalog connects to Postgres and applies pending migrations.
func openCatalog(databaseURL string) (*catalog.Catalog, error) {
	db, err := catalog.OpenDB(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog connect: %w", err)
	}

	logging.Info("running_migrations", nil)
	if err := catalog.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog migrations: %w", err)
	}
	logging.Info("migrations_complete", nil)
	return catalog.New(db), nil
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
