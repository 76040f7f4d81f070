package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	var country string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the gap report for a country",
		Long: `Prints a read-only JSON report: how many records exist, which fields
are still missing, which checkpoints are active, and the commands that
resume them. Writes nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Orchestrator.Validate(cmd.Context(), country)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "country code to report on (required)")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
