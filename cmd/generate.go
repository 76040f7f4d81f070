package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atlasdir/placepipe/internal/content"
)

// newGenerateCmd creates the 'generate' subcommand.
func newGenerateCmd() *cobra.Command {
	var (
		country   string
		batchSize int
		limit     int
		fresh     bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate directory copy for records missing a description",
		Long: `Runs the content stage: every record whose description is missing or
too short gets copy generated from the data the pipeline already holds. The
cursor advances on failures too, so one bad record cannot stall the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = a.Cfg.Content.BatchSize
			}
			_, err = a.Content.Run(cmd.Context(), content.Options{
				Country:   country,
				BatchSize: batchSize,
				Limit:     limit,
				Fresh:     fresh,
				DryRun:    dryRun,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "country code to generate for (required)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per selection batch; config default when 0")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to process this run; 0 means all")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "archive any existing checkpoint and restart the cursor")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report which records would be generated without model calls")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
