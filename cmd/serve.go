package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"docpipe/internal/logger"
	"docpipe/internal/metrics"
	"docpipe/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline stages as HTTP push endpoints",
	Long: `Start an HTTP server with one POST endpoint per stage:

  /discovery       scheduler trigger, {"folderId": "..."} optional
  /preparation     Pub/Sub push from the preparation topic
  /extraction      raw bucket finalize notification
  /persistence     results bucket finalize notification
  /classification  document record created event

Bodies may be Pub/Sub push deliveries, binary-mode CloudEvents or plain JSON.
GET /healthz and GET /metrics are served as well.

Required environment variables:
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID
  RAW_BUCKET           - Bucket for prepared documents
  RESULTS_BUCKET       - Bucket for extraction results
  PREPARATION_TOPIC    - Topic discovery publishes to`,
	Example: `  # Serve on $PORT (default 8080)
  docpipe serve

  # Serve on a specific port
  docpipe serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Port to listen on (default: $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port, _ := cmd.Flags().GetString("port")
	if port == "" {
		port = cfg.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize clients: %w", err)
	}
	defer a.Close()

	handlers, err := a.handlers(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize stages: %w", err)
	}

	m := metrics.NewStageMetrics(prometheus.DefaultRegisterer)
	srv := server.New(handlers, m, prometheus.DefaultGatherer)

	log.Info().
		Str("port", port).
		Int("stages", len(handlers)).
		Msg("Starting docpipe server")

	return srv.ListenAndServe(ctx, ":"+port)
}
