package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ChadR23/sentry-six/internal/export"
	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/library"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/service/progress"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a clip range to a single video file",
	Long: `Export a time range from one collection as a multi-camera mosaic.

The selected cameras are tiled onto one canvas, missing footage is
padded with black filler, and optional overlays (telemetry dashboard,
minimap, timestamp) are burned in. The exit code reports the failure
category, 0 on success.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("footage-root", "", "TeslaCam footage root")
	exportCmd.Flags().String("collection", "", "Collection ID (see \"sentry-six scan\")")
	exportCmd.Flags().Int64("start", 0, "Range start in ms from collection start")
	exportCmd.Flags().Int64("end", -1, "Range end in ms (-1 = collection end)")
	exportCmd.Flags().StringSlice("camera", []string{"front", "back", "left_repeater", "right_repeater"}, "Cameras to include")
	exportCmd.Flags().String("quality", "medium", "Encode quality (mobile, medium, high, max)")
	exportCmd.Flags().StringP("output", "o", "", "Output video path")
	exportCmd.Flags().Bool("mirror", true, "Mirror back and repeater cameras")
	exportCmd.Flags().Bool("metric", false, "Use metric units in overlays")
	exportCmd.Flags().String("language", "", "Overlay language tag (default from config)")
	exportCmd.Flags().Bool("dashboard", false, "Burn in the telemetry dashboard")
	exportCmd.Flags().Bool("minimap", false, "Burn in the GPS minimap")
	exportCmd.Flags().Bool("timestamp", false, "Burn in a standalone timestamp")
	exportCmd.Flags().Float64("timelapse", 0, "Timelapse speed factor (0 = real time)")

	mustBindPFlag("library.root", exportCmd.Flags().Lookup("footage-root"))

	_ = exportCmd.MarkFlagRequired("collection")
	_ = exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Library.Root == "" {
		return fmt.Errorf("%w: footage root is required (--footage-root or SENTRYSIX_LIBRARY_ROOT)", errUsage)
	}

	logger := slog.Default()
	flags := cmd.Flags()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := library.NewService(cfg.Library.Root,
		library.NewScanner(logger),
		library.NewIndexer(cfg.Library.IndexBatchSize, logger),
		logger)
	if _, err := svc.Refresh(ctx, nil); err != nil {
		return err
	}

	collectionID, _ := flags.GetString("collection")
	collection, ok := svc.Collection(collectionID)
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", errUsage, collectionID)
	}

	req, err := buildRequest(flags, collection, cfg.Export.Language)
	if err != nil {
		return err
	}

	bundle, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}
	binary, err := ffmpeg.FindBinary(cfg.FFmpeg.BinaryPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Storage.TempPath(), 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	prober := ffmpeg.NewProber(binary, cfg.FFmpeg.ProbeQueryTimeout, cfg.FFmpeg.ProbeEncodeTimeout, logger)
	caps := prober.Probe(ctx)

	planner := export.NewPlanner(cfg.Storage.TempPath(), caps, bundle, logger)
	extractor := telemetry.NewExtractor(telemetry.NewMP4Decoder(), logger)
	supervisor := ffmpeg.NewSupervisor(binary, cfg.FFmpeg.KillGracePeriod, logger)
	hub := progress.NewHub(logger)
	mgr := export.NewManager(planner, extractor, supervisor, hub, nil, logger)

	if _, err := mgr.Run(ctx, req); err != nil {
		return err
	}
	fmt.Printf("Export complete: %s\n", req.OutputPath)
	return nil
}

// buildRequest assembles and validates the export request from flags.
func buildRequest(flags *pflag.FlagSet, collection *models.DayCollection, defaultLanguage string) (*models.ExportRequest, error) {
	startMs, _ := flags.GetInt64("start")
	endMs, _ := flags.GetInt64("end")
	if endMs < 0 {
		endMs = collection.DurationMs
	}

	cameraNames, _ := flags.GetStringSlice("camera")
	cameras := make([]models.Camera, 0, len(cameraNames))
	for _, name := range cameraNames {
		cameras = append(cameras, models.Camera(name))
	}

	quality, _ := flags.GetString("quality")
	output, _ := flags.GetString("output")
	mirror, _ := flags.GetBool("mirror")
	metric, _ := flags.GetBool("metric")
	language, _ := flags.GetString("language")
	if language == "" {
		language = defaultLanguage
	}
	dashboard, _ := flags.GetBool("dashboard")
	minimap, _ := flags.GetBool("minimap")
	timestamp, _ := flags.GetBool("timestamp")
	timelapse, _ := flags.GetFloat64("timelapse")

	req := &models.ExportRequest{
		Collection:       collection,
		StartMs:          startMs,
		EndMs:            endMs,
		Cameras:          cameras,
		Quality:          models.Quality(quality),
		OutputPath:       output,
		MirrorCameras:    mirror,
		UseMetric:        metric,
		Language:         language,
		IncludeDashboard: dashboard,
		IncludeMinimap:   minimap,
		IncludeTimestamp: timestamp,
		EnableTimelapse:  timelapse > 0,
		TimelapseSpeed:   timelapse,
	}

	if err := req.Validate(); err != nil {
		// Sentinel categories keep their own exit codes; everything else
		// is a usage error here.
		if models.KindOf(err) == models.KindIO {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil, err
	}
	return req, nil
}
