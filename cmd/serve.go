// =============================================================================
// rowimport - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which exposes the upload API.
//
// COMMAND USAGE:
//   rowimport serve [--listen :8080]
//
// The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/rowimport/internal/server"
)

// shutdownTimeout is how long in-flight requests get after a stop signal.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP upload API",
	Long: `Serve the HTTP upload API.

  GET  /healthz                 liveness probe
  GET  /v1/profiles             list import profiles
  POST /v1/imports?profile=...  import a multipart "file" upload`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		im, err := newImporter()
		if err != nil {
			return err
		}

		srv := server.New(im, appConfig.MaxUploadBytes, appLogger)
		return srv.ListenAndServe(ctx, appConfig.ListenAddr, shutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Address to listen on (default from listen_addr)")
	_ = v.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen"))
}
