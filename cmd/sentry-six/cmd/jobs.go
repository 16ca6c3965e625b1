package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChadR23/sentry-six/internal/repository"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List export job history",
	Long:  `List past export jobs from the job history database, newest first.`,
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().String("database", "", "Job history database file (default from config)")
	jobsCmd.Flags().Int("limit", 20, "Maximum rows to list")
	jobsCmd.Flags().Int("offset", 0, "Rows to skip")
	jobsCmd.Flags().Bool("json", false, "Output as JSON")

	mustBindPFlag("database.path", jobsCmd.Flags().Lookup("database"))
}

func runJobs(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("%w: job history is disabled (set database.path or --database)", errUsage)
	}

	db, err := repository.Open(cfg.Database.Path, slog.Default())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer repository.Close(db)

	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	records, total, err := repository.NewJobRepository(db).List(cmd.Context(), offset, limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATE\tPROGRESS\tCOLLECTION\tOUTPUT\tERROR")
	for _, rec := range records {
		errCol := string(rec.ErrorKind)
		if errCol == "" {
			errCol = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\t%s\n",
			rec.ID, rec.StartedAt.Format(time.DateTime), rec.State,
			rec.ProgressPct, rec.CollectionID, rec.OutputPath, errCol)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d jobs\n", len(records), total)
	return nil
}
