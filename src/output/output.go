package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/resolve"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Namer shortens canonical ids for display.
type Namer interface {
	ShortName(id string) string
}

type identity struct{}

func (identity) ShortName(id string) string { return id }

// Printer renders resolution results.
type Printer struct {
	Writer io.Writer
	Color  bool
	Names  Namer
}

// NewPrinter creates a printer writing to stdout with color auto-detection.
// A nil namer prints canonical ids.
func NewPrinter(names Namer) *Printer {
	if names == nil {
		names = identity{}
	}
	return &Printer{Writer: os.Stdout, Color: UseColor(), Names: names}
}

func (p *Printer) name(id string) string {
	if p.Names == nil {
		return id
	}
	return p.Names.ShortName(id)
}

func (p *Printer) colorize(text, color string) string {
	if !p.Color {
		return text
	}
	return color + text + colorReset
}

// Configuration writes one row per setting inside sec.
func (p *Printer) Configuration(sec *Section, cfg constraint.Configuration) {
	if cfg.IsEmpty() {
		sec.Row("%s", Dimmed("(empty configuration)", p.Color))
		return
	}
	for _, s := range cfg.Settings() {
		v, _ := cfg.Get(s)
		sec.KeyValue(p.name(string(s)), p.colorize(p.name(string(v)), colorCyan))
	}
}

// Outcomes renders every batch outcome followed by a summary, and reports
// whether any target failed.
func (p *Printer) Outcomes(outcomes []resolve.Outcome, elapsed time.Duration) bool {
	for _, o := range outcomes {
		sec := NewSection(p.Writer, o.Label, 0, p.Color)
		if o.Err != nil {
			sec.Row("%s %s", StatusIcon("failed", p.Color), p.colorize(o.Err.Error(), colorRed))
		} else {
			p.Configuration(sec, o.Result.Configuration)
		}
		sec.Close()
	}

	failed := resolve.Failed(outcomes)
	sec := NewSection(p.Writer, "Summary", elapsed, p.Color)
	for _, o := range outcomes {
		status, detail := "success", fmt.Sprintf("%d settings", settingsOf(o))
		if o.Err != nil {
			status, detail = "failed", "error"
		}
		SummaryRow(p.Writer, o.Label, status, detail, p.Color)
	}
	sec.Separator()
	sec.Row("%d targets, %d failed", len(outcomes), failed)
	sec.Close()
	return failed > 0
}

func settingsOf(o resolve.Outcome) int {
	if o.Result == nil {
		return 0
	}
	return o.Result.Configuration.Len()
}

// Trace writes the per-setting history: the winning layer first, then the
// assignments it overrode.
func (p *Printer) Trace(sec *Section, tr *resolve.Trace) {
	order := make([]string, len(tr.Order))
	for i, s := range tr.Order {
		order[i] = p.name(string(s))
	}
	sec.KeyValue("order", fmt.Sprint(order))

	for _, st := range tr.Settings {
		sec.Row("")
		head := fmt.Sprintf("%s = %s", p.name(string(st.Setting)), p.name(string(st.Value)))
		sec.Row("%s", p.colorize(head, colorBold))
		if st.Origin == resolve.OriginLegacy {
			sec.Row("  %s", p.colorize("from legacy platform", colorYellow))
			continue
		}
		p.assignment(sec, "✓", *st.Applied)
		for i := len(st.Shadowed) - 1; i >= 0; i-- {
			p.assignment(sec, Dimmed("·", p.Color), st.Shadowed[i])
		}
	}
}

func (p *Printer) assignment(sec *Section, mark string, a resolve.Assignment) {
	sec.Row("  %s %-18s %-10s %s", mark, a.Scope, p.name(string(a.Value)), Dimmed(a.Branch, p.Color))
	if a.Source != "" {
		sec.Row("      %s", Dimmed(a.Source+"  "+a.Expr, p.Color))
	}
}

// Audit renders a diagnostic report.
func (p *Printer) Audit(rep *resolve.Report) {
	sec := NewSection(p.Writer, rep.Target, 0, p.Color)
	if rep.RuleKind != "" {
		sec.KeyValue("rule", rep.RuleKind)
	}
	p.layers(sec, "ancestors", rep.Ancestors)
	p.layers(sec, "target", rep.TargetScope)
	p.layers(sec, "command line", rep.CommandLine)
	if !rep.Legacy.IsEmpty() {
		sec.Separator()
		sec.Row("%s", p.colorize("legacy", colorBold))
		p.Configuration(sec, rep.Legacy)
	}

	switch {
	case rep.Error != "":
		sec.Separator()
		sec.Row("%s %s", StatusIcon("failed", p.Color), p.colorize(rep.Error, colorRed))
	case rep.Trace != nil:
		sec.Separator()
		p.Trace(sec, rep.Trace)
		sec.Separator()
		sec.Row("%s", p.colorize("result", colorBold))
		p.Configuration(sec, *rep.Configuration)
	}
	sec.Close()
}

func (p *Printer) layers(sec *Section, title string, views []resolve.LayerView) {
	sec.Separator()
	sec.Row("%s", p.colorize(title, colorBold))
	if len(views) == 0 {
		sec.Row("  %s", Dimmed("none", p.Color))
		return
	}
	for _, v := range views {
		sec.Row("  %-18s %-10s %s", v.Scope, p.name(string(v.Setting)), v.Expr)
		if v.Source != "" {
			sec.Row("      %s", Dimmed(v.Source, p.Color))
		}
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
