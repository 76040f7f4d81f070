package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/discovery"
)

// newDiscoverCmd creates the 'discover' subcommand.
func newDiscoverCmd() *cobra.Command {
	var (
		country  string
		category string
		city     string
		limit    int
		fresh    bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find businesses city by city and create their records",
		Long: `Runs the discovery stage: for every city of the country (and every
configured language) the search provider is queried and new businesses are
inserted, deduplicated by slug within their city. Progress is checkpointed
per city, so an interrupted run resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			resultLimit := limit
			if resultLimit <= 0 {
				resultLimit = a.Cfg.Search.ResultLimit
			}

			categories := []string{category}
			if category == "" {
				categories = a.Catalog.CategorySlugs()
				sort.Strings(categories)
			}

			var failures []error
			for _, slug := range categories {
				_, err := a.Discovery.Run(cmd.Context(), discovery.Options{
					Country:     country,
					Category:    slug,
					OnlyCity:    city,
					Fresh:       fresh,
					DryRun:      dryRun,
					ResultLimit: resultLimit,
				})
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					failures = append(failures, fmt.Errorf("category %s: %w", slug, err))
					a.Logger.Error("discovery failed", zap.String("category", slug), zap.Error(err))
				}
			}
			return errors.Join(failures...)
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "country code to discover (required)")
	cmd.Flags().StringVar(&category, "category", "", "category slug; all configured categories when empty")
	cmd.Flags().StringVar(&city, "city", "", "restrict the run to a single city id or slug")
	cmd.Flags().IntVar(&limit, "limit", 0, "per-query result cap; config default when 0")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "archive any existing checkpoint and start over")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be created without writing")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
