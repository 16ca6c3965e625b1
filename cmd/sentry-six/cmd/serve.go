package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ChadR23/sentry-six/internal/export"
	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	internalhttp "github.com/ChadR23/sentry-six/internal/http"
	"github.com/ChadR23/sentry-six/internal/http/handlers"
	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/library"
	"github.com/ChadR23/sentry-six/internal/observability"
	"github.com/ChadR23/sentry-six/internal/repository"
	"github.com/ChadR23/sentry-six/internal/scheduler"
	"github.com/ChadR23/sentry-six/internal/service/progress"
	"github.com/ChadR23/sentry-six/internal/telemetry"
	"github.com/ChadR23/sentry-six/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sentry-six server",
	Long: `Start the sentry-six HTTP server and API.

The server provides:
- REST API for browsing the footage library and running exports
- Server-sent progress events per export job
- Health check and Prometheus metrics endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Int("port", 8323, "Port to listen on")
	serveCmd.Flags().String("footage-root", "", "TeslaCam footage root")
	serveCmd.Flags().String("database", "sentry-six.db", "Job history database file (empty disables history)")
	serveCmd.Flags().String("data-dir", "./data", "Data directory for working files")
	serveCmd.Flags().Bool("watch", false, "Watch the footage root and refresh the index on change")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("library.root", serveCmd.Flags().Lookup("footage-root"))
	mustBindPFlag("database.path", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("library.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Library.Root == "" {
		return fmt.Errorf("%w: footage root is required (--footage-root or SENTRYSIX_LIBRARY_ROOT)", errUsage)
	}

	logger := slog.Default()
	metrics := observability.NewMetrics()

	if err := os.MkdirAll(cfg.Storage.TempPath(), 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	bundle, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}

	// Job history is optional; without a database the API still serves
	// live jobs, only the history listing disappears.
	var (
		store   export.RecordStore
		history handlers.HistoryStore
		pruner  scheduler.HistoryPruner
	)
	if cfg.Database.Path != "" {
		db, err := repository.Open(cfg.Database.Path, logger)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer repository.Close(db)

		repo := repository.NewJobRepository(db)
		store, history, pruner = repo, repo, repo
	}

	binary, err := ffmpeg.FindBinary(cfg.FFmpeg.BinaryPath)
	if err != nil {
		return err
	}
	prober := ffmpeg.NewProber(binary, cfg.FFmpeg.ProbeQueryTimeout, cfg.FFmpeg.ProbeEncodeTimeout, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	caps := prober.Probe(ctx)
	logger.Info("encoder capabilities probed",
		"h264", caps.H264Encoder, "hevc", caps.HEVCEncoder, "hw_accelerated", caps.HWAccelerated)

	libSvc := library.NewService(cfg.Library.Root,
		library.NewScanner(logger),
		library.NewIndexer(cfg.Library.IndexBatchSize, logger),
		logger)
	if idx, err := libSvc.Refresh(ctx, nil); err != nil {
		// The footage drive may not be mounted yet; the index can be
		// rebuilt later through the refresh endpoint or the watcher.
		logger.Warn("initial library scan failed", "root", cfg.Library.Root, "error", err)
	} else {
		metrics.Collections.Set(float64(len(idx.Collections)))
		metrics.LibraryFiles.Set(float64(len(idx.Groups)))
	}

	planner := export.NewPlanner(cfg.Storage.TempPath(), caps, bundle, logger)
	extractor := telemetry.NewExtractor(telemetry.NewMP4Decoder(), logger)
	supervisor := ffmpeg.NewSupervisor(binary, cfg.FFmpeg.KillGracePeriod, logger)
	hub := progress.NewHub(logger)
	mgr := export.NewManager(planner, extractor, supervisor, hub, store, logger)

	cleaner := scheduler.NewCleaner(cfg.Storage.TempPath(), cfg.Storage.TempRetention, pruner, logger)
	if err := cleaner.Start(cfg.Storage.CleanupCron); err != nil {
		return err
	}
	defer cleaner.Stop()

	server := internalhttp.NewServer(cfg.Server, metrics, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version, cfg.Library.Root, libSvc)
	healthHandler.Register(server.API())

	libraryHandler := handlers.NewLibraryHandler(libSvc, metrics, logger)
	libraryHandler.Register(server.API())

	exportHandler := handlers.NewExportHandler(mgr, libSvc, hub, history, metrics, logger)
	exportHandler.Register(server.API())
	exportHandler.RegisterSSE(server.Router())

	ffmpegHandler := handlers.NewFFmpegHandler(binary, prober)
	ffmpegHandler.Register(server.API())

	logger.Info("starting sentry-six server",
		"address", cfg.Server.Address(),
		"footage_root", cfg.Library.Root,
		"version", version.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if cfg.Library.Watch {
		g.Go(func() error {
			return libSvc.Watch(gctx)
		})
	}
	return g.Wait()
}
