package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis commands over HTTP",
	Long: `Starts an HTTP server. Each POST under /v1 takes the dataset as the request
body (CSV by default, JSON or XLSX by Content-Type) and returns the same
document as the matching command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ServeAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := server.New(server.Config{
			Pipeline:       cfg.Pipeline(),
			Timeout:        time.Duration(cfg.ServeTimeoutSec) * time.Second,
			MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
			MaxRows:        cfg.MaxRows,
		}, logger)
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides serve_addr)")
}
