// Package output renders tasks, messages and queue summaries for the CLI.
//
// Human output is a plain column layout that picks up lipgloss colors only
// when writing to a terminal. JSON and YAML output are stable and meant for
// scripts and other agents.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	FormatTable = "table"
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats returns every accepted format name.
func Formats() []string {
	return []string{FormatTable, FormatText, FormatJSON, FormatYAML}
}

// Printer writes values to one destination in one format.
type Printer struct {
	w      io.Writer
	format string
	styles styles
	width  int
}

// New returns a Printer for format. "text" is accepted as a synonym for
// "table". Colors are used only when color is set and w is a terminal.
func New(w io.Writer, format string, color bool) (*Printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", FormatText:
		format = FormatTable
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return nil, errors.NewValidationError("unsupported output format").
			WithField("output").WithValue(format)
	}

	tty, width := terminal(w)
	return &Printer{
		w:      w,
		format: format,
		styles: newStyles(w, color && tty),
		width:  width,
	}, nil
}

// terminal reports whether w is a terminal and, if so, its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	if width, _, err := term.GetSize(int(f.Fd())); err == nil {
		return true, width
	}
	return true, 0
}

// Format returns the resolved format.
func (p *Printer) Format() string {
	return p.format
}

// Structured reports whether the printer emits JSON or YAML.
func (p *Printer) Structured() bool {
	return p.format == FormatJSON || p.format == FormatYAML
}

// Value encodes v as JSON or YAML. In table mode it falls back to YAML,
// which reads well enough for ad-hoc values.
func (p *Printer) Value(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// Linef prints one human-readable line. It is a no-op in structured modes
// so command feedback never corrupts JSON or YAML output.
func (p *Printer) Linef(format string, args ...any) {
	if p.Structured() {
		return
	}
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Successf prints a confirmation line with a check mark.
func (p *Printer) Successf(format string, args ...any) {
	if p.Structured() {
		return
	}
	_, _ = fmt.Fprintln(p.w, p.styles.render(p.styles.success, "✓")+" "+fmt.Sprintf(format, args...))
}

// table writes rows under headers with columns padded to their widest cell.
// style, when set, decorates a cell after padding so colors never shift
// the layout.
func (p *Printer) table(headers []string, rows [][]string, style func(row, col int, cell string) string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}

	// The last column absorbs whatever the terminal has left.
	if p.width > 0 && len(widths) > 1 {
		used := 0
		for _, w := range widths[:len(widths)-1] {
			used += w + 2
		}
		if rest := p.width - used; rest > 10 && widths[len(widths)-1] > rest {
			widths[len(widths)-1] = rest
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(p.styles.render(p.styles.header, pad(h, widths[i], i == len(headers)-1)))
		if i < len(headers)-1 {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\n")

	for r, row := range rows {
		for i, cell := range row {
			last := i == len(row)-1
			cell = pad(truncate(cell, widths[i]), widths[i], last)
			if style != nil {
				cell = style(r, i, cell)
			}
			sb.WriteString(cell)
			if !last {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(p.w, sb.String())
	return err
}

// pad right-pads s to width. The last column is left unpadded so lines
// carry no trailing spaces.
func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	if n := width - displayWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// truncate shortens s to width terminal columns, ending in an ellipsis.
// Escape sequences and wide characters are measured correctly.
func truncate(s string, width int) string {
	if width <= 0 || displayWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

func displayWidth(s string) int {
	return lipgloss.Width(s)
}

// oneLine collapses newlines so multi-line content fits a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
