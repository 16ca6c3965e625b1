package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChadR23/sentry-six/internal/library"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the footage library and list collections",
	Long: `Scan the TeslaCam footage root, build the library index, and print
one line per day collection (Recent) or event collection (Sentry/Saved).`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("footage-root", "", "TeslaCam footage root")
	scanCmd.Flags().Bool("json", false, "Output as JSON")

	mustBindPFlag("library.root", scanCmd.Flags().Lookup("footage-root"))
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Library.Root == "" {
		return fmt.Errorf("%w: footage root is required (--footage-root or SENTRYSIX_LIBRARY_ROOT)", errUsage)
	}

	logger := slog.Default()
	svc := library.NewService(cfg.Library.Root,
		library.NewScanner(logger),
		library.NewIndexer(cfg.Library.IndexBatchSize, logger),
		logger)

	idx, err := svc.Refresh(cmd.Context(), func(p library.IndexProgress) {
		fmt.Fprintf(os.Stderr, "\rindexing %d/%d files", p.Processed, p.Total)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(idx.Collections)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDAY\tTYPE\tGROUPS\tCAMERAS\tDURATION")
	for _, c := range idx.Collections {
		dur := time.Duration(c.DurationMs) * time.Millisecond
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			c.ID, c.Day, c.ClipType, len(c.Groups), len(c.Cameras()), dur)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d collections, %d clip groups\n", len(idx.Collections), len(idx.Groups))
	return nil
}
