package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:         "index",
	Short:       "Show the retrieval index",
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runIndexStats,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed the facility store",
	Long: `Embeds every facility into a new index generation and publishes it.
With --reload the dataset file is read into the store first.`,
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runIndexRebuild,
}

func init() {
	addOutputFlag(indexCmd)
	indexRebuildCmd.Flags().Bool("reload", false, "reload the dataset file before rebuilding")
	addOutputFlag(indexRebuildCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := ensureIndex(cmd.Context()); err != nil {
		return err
	}
	return printIndexStats(cmd, indexService.Stats())
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	reload, err := cmd.Flags().GetBool("reload")
	if err != nil {
		return err
	}

	if reload {
		if datasetReloader == nil {
			return fmt.Errorf("%w: no dataset configured (use --data)", domain.ErrValidation)
		}
		n, err := datasetReloader.Reload(cmd.Context())
		if err != nil {
			return fmt.Errorf("reload %s: %w", datasetReloader.Path(), err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %d facilities from %s\n", n, datasetReloader.Path())
		return printIndexStats(cmd, indexService.Stats())
	}

	stats, err := indexService.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	return printIndexStats(cmd, stats)
}

func printIndexStats(cmd *cobra.Command, stats domain.IndexStats) error {
	return render(cmd, stats, func(w io.Writer) error {
		if stats.Generation == 0 {
			fmt.Fprintln(w, "No index generation published.")
			return nil
		}
		rows := [][]string{
			{"Generation", strconv.FormatUint(stats.Generation, 10)},
			{"Facilities", strconv.Itoa(stats.Size)},
			{"Dimensions", strconv.Itoa(stats.Dimensions)},
			{"Model", stats.Model},
			{"Built", stats.BuiltAt.Local().Format("2006-01-02 15:04:05")},
		}
		fmt.Fprintln(w, newStyles(w).table([]string{"Index", ""}, rows))
		return nil
	})
}
