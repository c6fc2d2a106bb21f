package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/personaloom/internal/server"
)

var (
	srvHost string
	srvPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /analyze-segments over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *currentConfig()
		if cmd.Flags().Changed("host") {
			c.Host = srvHost
		}
		if cmd.Flags().Changed("port") {
			c.Port = srvPort
		}
		if err := c.Validate(); err != nil {
			return err
		}
		s := server.New(server.Options{
			Addr:            c.Addr(),
			AllowedOrigins:  c.CORSAllowedOrigins,
			MaxUploadBytes:  c.MaxUploadBytes(),
			ShutdownTimeout: time.Duration(c.ShutdownTimeoutSec) * time.Second,
			Pipeline:        c.PipelineOptions(),
		}, logger)
		return s.ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&srvPort, "port", 0, "listen port (overrides config)")
}
