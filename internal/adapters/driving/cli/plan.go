package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var (
	planRegion       string
	planSpecialty    string
	planHistoryLimit int
)

var planCmd = &cobra.Command{
	Use:   "plan [description]",
	Short: "Draft a resource allocation plan",
	Long: `Drafts a resource allocation plan from the scored regions.

--region and --specialty narrow the facilities considered (case-insensitive
substring match). The optional description states the planning goal. Plans
are stored; list them with "oasis plan history".`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: engineCommand(),
	RunE:        runPlan,
}

var planHistoryCmd = &cobra.Command{
	Use:         "history",
	Short:       "List recent plans",
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runPlanHistory,
}

func init() {
	planCmd.Flags().StringVarP(&planRegion, "region", "r", "", "region to plan for")
	planCmd.Flags().StringVar(&planSpecialty, "specialty", "", "specialty to plan for")
	addOutputFlag(planCmd)
	planHistoryCmd.Flags().IntVarP(&planHistoryLimit, "limit", "n", 20, "maximum number of plans")
	addOutputFlag(planHistoryCmd)
	planCmd.AddCommand(planHistoryCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planningService == nil {
		return errors.New("planning service not configured")
	}
	req := domain.PlanRequest{Region: planRegion, Specialty: planSpecialty}
	if len(args) == 1 {
		req.Description = args[0]
	}

	plan, err := planningService.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}
	return render(cmd, plan, func(w io.Writer) error {
		printPlan(w, newStyles(w), plan)
		return nil
	})
}

func runPlanHistory(cmd *cobra.Command, _ []string) error {
	if planningService == nil {
		return errors.New("planning service not configured")
	}
	plans, err := planningService.History(cmd.Context(), planHistoryLimit)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	return render(cmd, plans, func(w io.Writer) error {
		if len(plans) == 0 {
			fmt.Fprintln(w, "No plans yet.")
			return nil
		}
		st := newStyles(w)
		rows := make([][]string, 0, len(plans))
		for _, p := range plans {
			rows = append(rows, []string{
				p.ID,
				p.CreatedAt.Local().Format("2006-01-02 15:04"),
				orAll(p.Region),
				orAll(p.Specialty),
				truncate(p.Text, 60),
			})
		}
		fmt.Fprintln(w, st.table([]string{"Plan", "Created", "Region", "Specialty", "Summary"}, rows))
		return nil
	})
}

func printPlan(w io.Writer, st styles, plan *domain.Plan) {
	scope := []string{"region: " + orAll(plan.Region), "specialty: " + orAll(plan.Specialty)}
	fmt.Fprintln(w, st.title.Render(plan.ID))
	fmt.Fprintln(w, st.muted.Render(strings.Join(scope, ", ")))
	fmt.Fprintln(w)
	fmt.Fprintln(w, plan.Text)
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
