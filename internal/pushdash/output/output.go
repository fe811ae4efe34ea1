package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	// FormatTable is the table output format
	FormatTable Format = "table"
	// FormatJSON is the JSON output format
	FormatJSON Format = "json"
	// FormatYAML is the YAML output format
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Printer writes command output
type Printer struct {
	out    io.Writer
	errOut io.Writer
	format Format
}

// NewPrinter creates a printer writing results to out and errors to errOut
func NewPrinter(out, errOut io.Writer, format Format) *Printer {
	return &Printer{out: out, errOut: errOut, format: format}
}

// Format returns the printer's format
func (p *Printer) Format() Format {
	return p.format
}

// Table prints data in table format
func (p *Printer) Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// JSON prints data in JSON format
func (p *Printer) JSON(data any) error {
	encoder := json.NewEncoder(p.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML prints data in YAML format
func (p *Printer) YAML(data any) error {
	encoder := yaml.NewEncoder(p.out)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

// Print prints data in the printer's format. tableFunc renders the table
// form.
func (p *Printer) Print(data any, tableFunc func()) error {
	switch p.format {
	case FormatJSON:
		return p.JSON(data)
	case FormatYAML:
		return p.YAML(data)
	case FormatTable:
		tableFunc()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", p.format)
	}
}

// Success prints a success message
func (p *Printer) Success(message string) {
	fmt.Fprintf(p.out, "✓ %s\n", message)
}

// Info prints an info message
func (p *Printer) Info(message string) {
	fmt.Fprintln(p.out, message)
}

// Warn prints a warning message
func (p *Printer) Warn(message string) {
	fmt.Fprintf(p.errOut, "Warning: %s\n", message)
}

// FormatTime formats a time for display
func FormatTime(t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatTimeAgo formats a time as "X ago" relative to now. Unset times
// render as "-".
func FormatTimeAgo(t, now time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "-"
	}
	duration := now.Sub(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

// Dash returns s, or "-" when s is empty
func Dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
