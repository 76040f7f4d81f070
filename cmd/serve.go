package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API",
		Long: `Serves /healthz, /metrics, /v1/checkpoints, and /v1/reports/{country}
until interrupted. The API never starts runs; it only reports on them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			addr := listen
			if addr == "" {
				addr = a.Cfg.Server.Listen
			}
			if addr == "" {
				return errors.New("no listen address: set --listen or server.listen")
			}
			a.StartStatusServer(addr)
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, e.g. :8080 (server.listen when empty)")
	return cmd
}
