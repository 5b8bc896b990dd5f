// Package render writes comparison reports for the terminal, for JSON
// consumers and as markdown for pull requests and docs.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"saas-compare/decision/comparison"
	"saas-compare/decision/policy"
)

// Format is an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts table, json, markdown and md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (table, json, markdown)", s)
	}
}

// Report is everything printed for one comparison.
type Report struct {
	Matrix   *comparison.Matrix          `json:"matrix"`
	Coverage []comparison.ColumnCoverage `json:"coverage,omitempty"`
	Policy   *policy.EvaluationResult    `json:"policy,omitempty"`
	Missing  []string                    `json:"missing,omitempty"`
	// Groups, when set, splits the rows by how many entities offer them.
	Groups *comparison.Partition `json:"groups,omitempty"`
}

type section struct {
	title string
	rows  []comparison.Row
}

// sections returns the row groups to print: the groups of r when set, else
// one untitled section with every row. Empty groups are skipped.
func sections(r *Report) []section {
	if r.Groups == nil {
		return []section{{rows: r.Matrix.Rows}}
	}
	all := []section{
		{title: "Offered by all", rows: r.Groups.Shared},
		{title: "Offered by some", rows: r.Groups.Partial},
		{title: "Offered by none", rows: r.Groups.None},
	}
	out := all[:0]
	for _, sec := range all {
		if len(sec.rows) > 0 {
			out = append(out, sec)
		}
	}
	return out
}

// Write renders r to w in format f.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatJSON:
		return JSON(w, r)
	case FormatMarkdown:
		return Markdown(w, r)
	default:
		return Table(w, r)
	}
}

// JSON writes r indented.
func JSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// CellText is the text shown for a cell: a check or cross for presence views,
// the price display value otherwise.
func CellText(c comparison.Cell) string {
	switch c.State {
	case comparison.StatePresent:
		return "✓"
	case comparison.StateAbsent:
		return "✗"
	default:
		return c.Value
	}
}

func headers(m *comparison.Matrix) []string {
	h := make([]string, 0, len(m.Columns)+1)
	h = append(h, attributeHeader(m.View))
	for _, c := range m.Columns {
		name := c.Name
		if name == "" {
			name = c.EntityID
		}
		h = append(h, name)
	}
	return h
}

func attributeHeader(v comparison.View) string {
	switch v {
	case comparison.ViewPricing:
		return "Tier"
	case comparison.ViewIntegrations:
		return "Integration"
	case comparison.ViewLimitations:
		return "Limitation"
	default:
		return "Feature"
	}
}

func rows(body []comparison.Row) [][]string {
	out := make([][]string, len(body))
	for i, row := range body {
		line := make([]string, 0, len(row.Cells)+1)
		line = append(line, row.Attribute)
		for _, c := range row.Cells {
			line = append(line, CellText(c))
		}
		out[i] = line
	}
	return out
}

// =============================================================================
// TABLE
// =============================================================================

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	denyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

// Table writes r as an aligned terminal table followed by coverage and
// policy notes.
func Table(w io.Writer, r *Report) error {
	var sb strings.Builder
	m := r.Matrix

	title := viewTitle(m.View)
	if m.TierSet != "" {
		title += fmt.Sprintf(" (%s tiers)", m.TierSet)
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	if len(m.Rows) == 0 {
		sb.WriteString(mutedStyle.Render(emptyMessage(m)))
		sb.WriteString("\n")
	} else {
		for i, sec := range sections(r) {
			if sec.title != "" {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(headerStyle.Render(sec.title) + "\n")
			}
			writeGrid(&sb, headers(m), rows(sec.rows))
		}
	}

	if len(r.Coverage) > 0 && len(m.Rows) > 0 {
		sb.WriteString("\n")
		for _, c := range r.Coverage {
			sb.WriteString(fmt.Sprintf("%s: %d/%d (%.0f%%)\n", c.EntityID, c.Offered, c.Total, c.Ratio*100))
		}
	}

	if len(r.Missing) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render("Unknown ids: " + strings.Join(r.Missing, ", ")))
		sb.WriteString("\n")
	}

	if p := r.Policy; p != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Policy: %s\n", strings.ToUpper(string(p.Decision))))
		for _, v := range p.Violations {
			sb.WriteString(denyStyle.Render("  ✗ "+v.Message) + "\n")
		}
		for _, wn := range p.Warnings {
			sb.WriteString(warnStyle.Render("  ! "+wn.Message) + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeGrid(sb *strings.Builder, header []string, body [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range body {
		for i, cell := range row {
			if i < len(widths) {
				if cw := lipgloss.Width(cell); cw > widths[i] {
					widths[i] = cw
				}
			}
		}
	}
	// Padding(0, 1) adds two columns to every rendered cell.
	for i := range widths {
		widths[i] += 2
	}

	sep := mutedStyle.Render("│")
	for i, h := range header {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(header)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(widths) - 1
	for _, wd := range widths {
		total += wd
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("─", total)))
	sb.WriteString("\n")

	for _, row := range body {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
}

func viewTitle(v comparison.View) string {
	s := string(v)
	if s == "" {
		return "Comparison"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " comparison"
}

func emptyMessage(m *comparison.Matrix) string {
	if len(m.Columns) < comparison.MinComparable {
		return fmt.Sprintf("Select at least %d entities to compare.", comparison.MinComparable)
	}
	return "No attributes to compare."
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown writes r as a GitHub flavoured markdown report.
func Markdown(w io.Writer, r *Report) error {
	var sb strings.Builder
	m := r.Matrix

	sb.WriteString("## " + viewTitle(m.View) + "\n\n")

	if len(m.Rows) == 0 {
		sb.WriteString("_" + emptyMessage(m) + "_\n")
	} else {
		header := headers(m)
		for i, sec := range sections(r) {
			if sec.title != "" {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString("### " + sec.title + "\n\n")
			}
			sb.WriteString("| " + strings.Join(escapeAll(header), " | ") + " |\n")
			sb.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
			for _, row := range rows(sec.rows) {
				sb.WriteString("| " + strings.Join(escapeAll(row), " | ") + " |\n")
			}
		}
	}

	if p := r.Policy; p != nil && (len(p.Violations) > 0 || len(p.Warnings) > 0) {
		sb.WriteString("\n### Policy: " + string(p.Decision) + "\n\n")
		for _, v := range p.Violations {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", v.PolicyName, v.Message))
		}
		for _, wn := range p.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", wn.Message))
		}
	}

	if len(r.Missing) > 0 {
		sb.WriteString("\nUnknown ids: " + strings.Join(r.Missing, ", ") + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}
