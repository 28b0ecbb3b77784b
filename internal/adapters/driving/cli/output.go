package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// addOutputFlag registers --output/-o on a listing command.
func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", formatTable, "output format: table, json or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return formatTable, nil //nolint:nilerr // commands without the flag print tables
	}
	switch strings.ToLower(format) {
	case formatTable, "":
		return formatTable, nil
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (use table, json or yaml)", domain.ErrValidation, format)
	}
}

// render writes v as JSON or YAML when requested, otherwise calls printTable.
func render(cmd *cobra.Command, v any, printTable func(w io.Writer) error) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		return writeJSON(w, v)
	case formatYAML:
		return writeYAML(w, v)
	default:
		return printTable(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}

// writeYAML emits v with its JSON field names. The JSON encoding is decoded
// into a yaml.Node so key order survives.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert output: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Palette colours, shared by every table.
var (
	colourAccent   = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#7C3AED"}
	colourMuted    = lipgloss.AdaptiveColor{Light: "#8C8FA1", Dark: "#6C7086"}
	colourBorder   = lipgloss.AdaptiveColor{Light: "#BCC0CC", Dark: "#45475A"}
	colourCritical = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"}
	colourModerate = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"}
	colourLow      = lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"}
)

// styles renders for one writer; colour is dropped when w is not a terminal.
type styles struct {
	header   lipgloss.Style
	cell     lipgloss.Style
	border   lipgloss.Style
	muted    lipgloss.Style
	title    lipgloss.Style
	severity map[domain.Severity]lipgloss.Style
	width    int
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	s := styles{
		header: r.NewStyle().Bold(true).Foreground(colourAccent).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(colourBorder),
		muted:  r.NewStyle().Foreground(colourMuted),
		title:  r.NewStyle().Bold(true).Foreground(colourAccent),
		severity: map[domain.Severity]lipgloss.Style{
			domain.SeverityCritical: r.NewStyle().Foreground(colourCritical).Bold(true),
			domain.SeverityModerate: r.NewStyle().Foreground(colourModerate),
			domain.SeverityLow:      r.NewStyle().Foreground(colourLow),
		},
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			s.width = width
		}
	}
	return s
}

func (s styles) sev(v domain.Severity) string {
	if st, ok := s.severity[v]; ok {
		return st.Render(string(v))
	}
	return string(v)
}

// table builds a bordered table sized to the terminal when there is one.
func (s styles) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})
	if s.width > 0 {
		t = t.Width(s.width)
	}
	return t.String()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
