// Package output renders command results as lipgloss tables or indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Format selects how results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("output: unknown format %q (want table or json)", s)
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4AA")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4AA"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C"))
	borderColor  = lipgloss.Color("#626262")
)

// Printer writes results to w.
type Printer struct {
	w      io.Writer
	format Format
	color  bool
}

// New returns a Printer. color enables styled headers and messages.
func New(w io.Writer, format Format, color bool) *Printer {
	if format == "" {
		format = FormatTable
	}
	return &Printer{w: w, format: format, color: color}
}

// Format reports the printer's format.
func (p *Printer) Format() Format {
	return p.format
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Table renders headers and rows with a normal border.
func (p *Printer) Table(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow && p.color {
				return headerStyle
			}
			return cellStyle
		})
	if p.color {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(borderColor))
	}
	_, err := fmt.Fprintln(p.w, t.String())
	return err
}

// Fields renders a two column Field/Value table.
func (p *Printer) Fields(fields [][2]string) error {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f[0], f[1]})
	}
	return p.Table([]string{"Field", "Value"}, rows)
}

// Success prints a status line. It is suppressed in JSON mode so stdout
// stays parseable.
func (p *Printer) Success(format string, args ...any) error {
	return p.message(successStyle, format, args...)
}

// Warn prints a highlighted status line, suppressed in JSON mode.
func (p *Printer) Warn(format string, args ...any) error {
	return p.message(warnStyle, format, args...)
}

func (p *Printer) message(style lipgloss.Style, format string, args ...any) error {
	if p.format == FormatJSON {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if p.color {
		msg = style.Render(msg)
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}
