package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atlasdir/placepipe/internal/pipeline"
)

// newRunCmd creates the 'run' subcommand.
func newRunCmd() *cobra.Command {
	var (
		country    string
		categories []string
		city       string
		limit      int
		fresh      bool
		dryRun     bool
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: discover, enrich, generate, validate",
		Long: `Runs every stage in order for one country. A failing category or
stage does not stop the later ones; the command exits non-zero if anything
failed. The run finishes with a read-only validation report naming what is
still incomplete and how to resume it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			addr := listen
			if addr == "" {
				addr = a.Cfg.Server.Listen
			}
			if addr != "" {
				a.StartStatusServer(addr)
			}

			return a.Orchestrator.RunFull(cmd.Context(), pipeline.RunOptions{
				Country:      country,
				Categories:   categories,
				OnlyCity:     city,
				Fresh:        fresh,
				DryRun:       dryRun,
				SearchLimit:  a.Cfg.Search.ResultLimit,
				DatasetBatch: a.Cfg.Dataset.BatchSize,
				ContentBatch: a.Cfg.Content.BatchSize,
				Limit:        limit,
			})
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "country code to process (required)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "category slugs to discover; all configured when empty")
	cmd.Flags().StringVar(&city, "city", "", "restrict discovery to a single city id or slug")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records per enrichment stage; 0 means all")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "archive existing checkpoints and start over")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "walk every stage without writes or provider submissions")
	cmd.Flags().StringVar(&listen, "listen", "", "serve the status API on this address while running")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
