package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var (
	desertsMinSeverity string
	desertsLimit       int
)

var desertsCmd = &cobra.Command{
	Use:   "deserts",
	Short: "Rank regions by medical desert severity",
	Long: `Scores every region against capacity benchmarks and lists them with the
most underserved first. Scores run from 0 (well served) to 100.`,
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runDeserts,
}

var statsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Summarise the facility corpus",
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runStats,
}

var facilityCmd = &cobra.Command{
	Use:         "facility [id]",
	Short:       "Assess a single facility",
	Args:        cobra.ExactArgs(1),
	Annotations: engineCommand(),
	RunE:        runFacility,
}

func init() {
	desertsCmd.Flags().StringVar(&desertsMinSeverity, "min-severity", "", "only show Low, Moderate or Critical and worse")
	desertsCmd.Flags().IntVarP(&desertsLimit, "limit", "n", 0, "maximum number of regions (0 = all)")
	addOutputFlag(desertsCmd)
	addOutputFlag(statsCmd)
	addOutputFlag(facilityCmd)
	rootCmd.AddCommand(desertsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(facilityCmd)
}

func runDeserts(cmd *cobra.Command, _ []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}
	minimum, err := domain.ParseSeverity(desertsMinSeverity)
	if err != nil {
		return err
	}

	regions, err := analysisService.Regions(cmd.Context())
	if err != nil {
		return fmt.Errorf("score regions: %w", err)
	}
	regions = domain.AtLeast(regions, minimum, desertsLimit)

	return render(cmd, regions, func(w io.Writer) error {
		if len(regions) == 0 {
			fmt.Fprintln(w, "No regions found.")
			return nil
		}
		st := newStyles(w)
		rows := make([][]string, 0, len(regions))
		for _, r := range regions {
			rows = append(rows, []string{
				r.Region,
				fmt.Sprintf("%.1f", r.DesertScore),
				st.sev(r.Severity),
				strconv.Itoa(r.Facilities),
				strconv.Itoa(r.TotalBeds),
				strconv.Itoa(r.TotalStaff),
				strconv.Itoa(r.FlaggedCount),
				truncate(joinOrDash(r.MissingServices), 40),
			})
		}
		fmt.Fprintln(w, st.table(
			[]string{"Region", "Score", "Severity", "Facilities", "Beds", "Staff", "Flagged", "Missing services"},
			rows))
		return nil
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}
	stats, err := analysisService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}

	return render(cmd, stats, func(w io.Writer) error {
		st := newStyles(w)
		rows := [][]string{
			{"Facilities", strconv.Itoa(stats.TotalFacilities)},
			{"Beds", strconv.Itoa(stats.TotalBeds)},
			{"Staff", strconv.Itoa(stats.TotalStaff)},
			{"Regions", strconv.Itoa(stats.TotalRegions)},
			{"Specialties", strconv.Itoa(stats.TotalSpecialties)},
			{"Medical deserts", strconv.Itoa(stats.MedicalDeserts)},
			{"Critical regions", strconv.Itoa(stats.CriticalRegions)},
		}
		fmt.Fprintln(w, st.table([]string{"Metric", "Value"}, rows))

		if len(stats.FacilityTypes) > 0 {
			types := make([]string, 0, len(stats.FacilityTypes))
			for t := range stats.FacilityTypes {
				types = append(types, t)
			}
			sort.Strings(types)
			typeRows := make([][]string, 0, len(types))
			for _, t := range types {
				typeRows = append(typeRows, []string{t, strconv.Itoa(stats.FacilityTypes[t])})
			}
			fmt.Fprintln(w, st.table([]string{"Facility type", "Count"}, typeRows))
		}
		return nil
	})
}

func runFacility(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}
	assessment, err := analysisService.Facility(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return render(cmd, assessment, func(w io.Writer) error {
		st := newStyles(w)
		flagged := "no"
		if assessment.Flagged {
			flagged = st.severity[domain.SeverityCritical].Render("yes")
		}
		rows := [][]string{
			{"Capability gap", fmt.Sprintf("%.2f", assessment.CapabilityGap)},
			{"Staff gap", fmt.Sprintf("%.2f", assessment.StaffGap)},
			{"Bed gap", fmt.Sprintf("%.2f", assessment.BedGap)},
			{"Deficiency", fmt.Sprintf("%.2f", assessment.Deficiency)},
			{"Flagged", flagged},
		}
		fmt.Fprintln(w, st.title.Render(assessment.FacilityID))
		fmt.Fprintln(w, st.table([]string{"Measure", "Value"}, rows))
		return nil
	})
}
