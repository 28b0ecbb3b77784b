package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var queryExplainOnly bool

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Filter facilities with a natural-language question",
	Long: `Translates a question into a structured facility query and runs it.

The language model only proposes the query; it is validated against the
known fields and operators before anything is read. Use --explain to see the
translation without running it.`,
	Args:        cobra.ExactArgs(1),
	Annotations: engineCommand(),
	RunE:        runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryExplainOnly, "explain", false, "translate only, do not run the query")
	addOutputFlag(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

type translation struct {
	Filter      *domain.StructuredQuery `json:"structured_filter"`
	Explanation string                  `json:"explanation"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}
	ctx := cmd.Context()

	if queryExplainOnly {
		q, explanation, err := queryService.Translate(ctx, args[0])
		if err != nil {
			return err
		}
		out := translation{Filter: q, Explanation: explanation}
		return render(cmd, out, func(w io.Writer) error {
			fmt.Fprintln(w, explanation)
			return writeJSON(w, q)
		})
	}

	result, err := queryService.Query(ctx, args[0])
	if err != nil {
		return err
	}
	return render(cmd, result, func(w io.Writer) error {
		printQueryResult(w, newStyles(w), result)
		return nil
	})
}

func printQueryResult(w io.Writer, st styles, result *domain.QueryResult) {
	fmt.Fprintln(w, result.Explanation)
	fmt.Fprintln(w)
	if result.ResultCount == 0 {
		fmt.Fprintln(w, "No facilities matched.")
		return
	}

	rows := make([][]string, 0, len(result.Results))
	for _, f := range result.Results {
		rows = append(rows, []string{
			f.ID,
			truncate(f.Name, 40),
			f.Region,
			f.Type,
			strconv.Itoa(f.Beds),
			strconv.Itoa(f.StaffCount),
			truncate(joinOrDash(f.Specialties), 40),
		})
	}
	fmt.Fprintln(w, st.table([]string{"ID", "Name", "Region", "Type", "Beds", "Staff", "Specialties"}, rows))
	fmt.Fprintf(w, "%d facilities\n", result.ResultCount)
}
