package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long: `Lists the most recent run records, newest first. Every chat answer,
query translation, plan and index build writes one.`,
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", domain.DefaultRunLimit, "maximum number of runs")
	addOutputFlag(runsCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if telemetryService == nil {
		return errors.New("telemetry service not configured")
	}
	runs, err := telemetryService.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	return render(cmd, runs, func(w io.Writer) error {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		st := newStyles(w)
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.StartTime.Local().Format("2006-01-02 15:04:05"),
				string(r.Type),
				r.Status,
				r.RunID,
				truncate(formatMetrics(r.Metrics), 50),
			})
		}
		fmt.Fprintln(w, st.table([]string{"Started", "Type", "Status", "Run", "Metrics"}, rows))
		return nil
	})
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, m[k]))
	}
	return strings.Join(parts, " ")
}
