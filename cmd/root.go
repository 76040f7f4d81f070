// Package cmd defines and implements the CLI commands for the placepipe
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlasdir/placepipe/internal/app"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can replace
// it with a factory that wires stub providers.
var newApp = app.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placepipe",
		Short: "Checkpointed enrichment pipeline for a local-business directory.",
		Long: `placepipe discovers businesses city by city, enriches their records
through an asynchronous dataset provider, and generates directory copy for
them. Every stage checkpoints its progress so a killed run can be resumed
without redoing or double-writing work.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application after flags are parsed, before any RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is placepipe.yaml in the working directory)")

	cmd.AddCommand(
		newDiscoverCmd(),
		newEnrichCmd(),
		newGenerateCmd(),
		newRunCmd(),
		newStatusCmd(),
		newServeCmd(),
	)
	return cmd
}

// Execute is the main entry point. It exits non-zero when any stage of the
// requested work failed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
