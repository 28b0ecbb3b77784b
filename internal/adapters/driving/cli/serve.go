package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

var (
	serveAddr    string
	serveWatch   bool
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: `Starts the HTTP API used by the planning dashboard.

Routes live under /api: chat, query, analysis, planning, runs, index and
health. With --watch (or data.watch in the config file) the dataset file is
reloaded whenever it changes.`,
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr, :8001)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the dataset file when it changes")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 2*time.Minute, "per-request time limit (0 = none)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}
	ctx := cmd.Context()
	if err := ensureIndex(ctx); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = serverAddr
	}
	server, err := httpapi.NewServer(httpapi.Ports{
		Answer:    answerService,
		Sessions:  sessionService,
		Query:     queryService,
		Analysis:  analysisService,
		Planning:  planningService,
		Telemetry: telemetryService,
		Index:     indexService,
	}, httpapi.Config{Addr: addr, LLMModel: llmModel, RequestTimeout: serveTimeout})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	startWatcher(ctx, serveWatch)

	fmt.Fprintf(cmd.OutOrStdout(), "oasis API listening on %s\n", addr)
	return server.Run(ctx)
}

// startWatcher runs the dataset watcher in the background until ctx ends.
func startWatcher(ctx context.Context, requested bool) {
	if !requested && !autoWatch {
		return
	}
	if watchDataset == nil {
		logger.Warn("watch requested but no dataset is configured")
		return
	}
	go func() {
		if err := watchDataset(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dataset watcher stopped: %v", err)
		}
	}()
}
