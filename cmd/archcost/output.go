package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rshade/archcost/internal/estimate"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#874BFD")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	moneyStyle  = cellStyle.Align(lipgloss.Right)
	totalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

func checkFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// render writes v as JSON or YAML.
func render(w io.Writer, v any, format string) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

// renderEstimate writes est in the requested format.
func renderEstimate(w io.Writer, est estimate.Estimate, format string) error {
	if format != formatTable {
		return render(w, est, format)
	}
	_, err := io.WriteString(w, estimateTable(est))
	return err
}

func estimateTable(est estimate.Estimate) string {
	rows := make([][]string, 0, len(est.Lines))
	for _, l := range est.Lines {
		rows = append(rows, []string{
			string(l.Item.Provider),
			string(l.Item.Service),
			l.Item.SKU,
			l.Item.Region,
			strconv.Itoa(l.Item.Quantity),
			money(l.UnitMonthlyPrice),
			money(l.MonthlyPrice),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROVIDER", "SERVICE", "SKU", "REGION", "QTY", "UNIT/MO", "MONTHLY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 4:
				return moneyStyle
			default:
				return cellStyle
			}
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(totalStyle.Render(fmt.Sprintf("Total: %s %s/month", money(est.Total), est.Currency)))
	b.WriteString("\n")

	var notes []string
	for _, l := range est.Lines {
		for _, n := range l.Notes {
			notes = append(notes, fmt.Sprintf("%s: %s", l.Item.Service, n))
		}
	}
	notes = append(notes, est.Notes...)
	for _, n := range notes {
		b.WriteString(noteStyle.Render("! " + n))
		b.WriteString("\n")
	}
	return b.String()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
