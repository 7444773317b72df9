package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/slamd/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the discovery HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := server.New(server.Config{
				Addr:        a.cfg.Server.Addr,
				MaxUploadMB: a.cfg.Server.MaxUploadMB,
				Conductor:   a.conductor(),
				Version:     Version,
			})
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	cmd.Flags().Int64("max-upload-mb", 0, "Maximum dataset upload size in MiB")
	return cmd
}
