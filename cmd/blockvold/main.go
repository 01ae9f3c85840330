// blockvold serves delta-encoded block-volume series over HTTP, reading a
// local DuckDB cache first and falling back to the remote block API.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/blockvol/internal/archive"
	"github.com/xtxerr/blockvol/internal/cache"
	"github.com/xtxerr/blockvol/internal/config"
	"github.com/xtxerr/blockvol/internal/logging"
	"github.com/xtxerr/blockvol/internal/series"
	"github.com/xtxerr/blockvol/internal/server"
	"github.com/xtxerr/blockvol/internal/upstream"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "cache database path (overrides config)")
	upstreamURL := flag.String("upstream", "", "upstream base URL (overrides config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Cache.Path = *dbPath
	}
	if *upstreamURL != "" {
		cfg.Upstream.BaseURL = *upstreamURL
	}
	if v := os.Getenv("BLOCKVOL_UPSTREAM"); v != "" && *upstreamURL == "" {
		cfg.Upstream.BaseURL = v
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	logging.Info("blockvold starting", "version", Version)

	// =========================================================================
	// Cache store (DuckDB, read-only for this process)
	// =========================================================================

	logging.Info("opening cache store", "path", cfg.Cache.Path)

	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("Open cache: %v", err)
	}
	defer db.Close()

	reader := cache.New(db)

	// =========================================================================
	// Upstream client, archive sink, series pipeline
	// =========================================================================

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout.Duration())

	opts := []series.Option{series.WithAccuracy(cfg.Stats.Accuracy)}
	if cfg.Archive.Enabled {
		sink, err := archive.NewSink(cfg.Archive.Dir,
			archive.Options{Compression: archive.ParseCompressionType(cfg.Archive.Compression)})
		if err != nil {
			log.Fatalf("Create archive sink: %v", err)
		}
		opts = append(opts, series.WithArchive(sink))
		logging.Info("archiving enabled", "dir", cfg.Archive.Dir,
			"compression", cfg.Archive.Compression)
	}

	svc := series.New(reader, client, opts...)

	// =========================================================================
	// HTTP server with signal-driven shutdown
	// =========================================================================

	srv := server.New(server.Config{
		Listen: cfg.Listen,
		Series: svc,
		Rows:   reader,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Run)
	g.Go(func() error {
		<-ctx.Done()
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
