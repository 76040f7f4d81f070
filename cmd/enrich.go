package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atlasdir/placepipe/internal/enrich"
)

// newEnrichCmd creates the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var (
		country   string
		batchSize int
		limit     int
		fresh     bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich known businesses through the dataset provider",
		Long: `Runs the dataset enrichment stage: records without dataset data are
submitted in batches, collection is polled until ready, and the results are
merged back without ever overwriting good data. The cursor checkpoint makes
interrupted runs resumable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = a.Cfg.Dataset.BatchSize
			}
			_, err = a.Enrich.Run(cmd.Context(), enrich.Options{
				Country:   country,
				BatchSize: batchSize,
				Limit:     limit,
				Fresh:     fresh,
				DryRun:    dryRun,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "country code to enrich (required)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per dataset submission; config default when 0")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to process this run; 0 means all")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "archive any existing checkpoint and restart the cursor")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be submitted without provider calls")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
