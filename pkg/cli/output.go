package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/report"
	"github.com/devicelab-dev/mobile-e2e/pkg/runner"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Scenarios slower than this are flagged in the live output.
const slowThreshold = 2 * time.Minute

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live scenario lines.
type progress struct {
	out io.Writer
}

func (p progress) onScenarioStart(idx int, name, uri string) {
	fmt.Fprintf(p.out, "\n  %s[%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, color(colorReset),
		color(colorBold), name, color(colorReset), uri)
}

func (p progress) onScenarioEnd(name string, status core.ScenarioStatus, d time.Duration, err error) {
	durColor := color(colorGray)
	if d >= slowThreshold {
		durColor = color(colorYellow)
	}
	switch status {
	case core.ScenarioPassed:
		fmt.Fprintf(p.out, "  %s✓%s %s %s%s%s\n", color(colorGreen), color(colorReset), name, durColor, formatDuration(d), color(colorReset))
	case core.ScenarioFailed:
		fmt.Fprintf(p.out, "  %s✗%s %s %s%s%s\n", color(colorRed), color(colorReset), name, durColor, formatDuration(d), color(colorReset))
		if err != nil {
			fmt.Fprintf(p.out, "    %s╰─%s %v\n", color(colorGray), color(colorReset), err)
		}
	default:
		fmt.Fprintf(p.out, "  %s-%s %s (%s)\n", color(colorCyan), color(colorReset), name, status)
	}
}

func statusLabel(status string) (string, string) {
	switch status {
	case string(core.ScenarioFailed):
		return "✗ FAIL", color(colorRed)
	case string(core.ScenarioPassed):
		return "✓ PASS", color(colorGreen)
	default:
		return "- SKIP", color(colorCyan)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printSummary(out io.Writer, result *runner.RunResult) {
	const tableWidth = 80
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("═", tableWidth))
	fmt.Fprintf(out, "  %-56s %6s %10s\n", "Scenario", "Status", "Duration")
	fmt.Fprintln(out, strings.Repeat("─", tableWidth))

	for _, sr := range result.Scenarios {
		if sr.ID == "" {
			// Not selected
			continue
		}
		label, c := statusLabel(string(sr.Status))
		fmt.Fprintf(out, "  %-56s %s%6s%s %10s\n", truncate(sr.Name, 56), c, label, color(colorReset), formatDuration(sr.Duration))
		for _, err := range sr.TeardownErrs {
			fmt.Fprintf(out, "    %steardown: %v%s\n", color(colorYellow), err, color(colorReset))
		}
	}

	fmt.Fprintln(out, strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if result.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(out, "  %s%s%s\n", statusColor, result.Summary(), color(colorReset))
	fmt.Fprintln(out, strings.Repeat("═", tableWidth))
}

func printPlan(out io.Writer, planned []runner.PlannedScenario) {
	for _, p := range planned {
		fmt.Fprintf(out, "%s%s:%d%s %s%s%s %s\n",
			color(colorGray), p.URI, p.Line, color(colorReset),
			color(colorBold), p.Name, color(colorReset), strings.Join(p.Tags, " "))
		fmt.Fprintf(out, "  before: %s\n", strings.Join(p.Before, ", "))
		fmt.Fprintf(out, "  after:  %s\n", strings.Join(p.After, ", "))
	}
	fmt.Fprintf(out, "\n%d scenarios selected\n", len(planned))
}

func printIndex(out io.Writer, idx *report.Index) {
	fmt.Fprintf(out, "Run %s: %s/%s %s on %s", idx.Status,
		idx.Environment.Country, idx.Environment.Product, idx.Environment.Environment, idx.Device.Platform)
	if idx.Device.Cloud {
		fmt.Fprint(out, " (cloud)")
	}
	fmt.Fprintln(out)

	for _, s := range idx.Scenarios {
		label, c := statusLabel(string(s.Status))
		var d time.Duration
		if s.Duration != nil {
			d = time.Duration(*s.Duration) * time.Millisecond
		}
		fmt.Fprintf(out, "  %-56s %s%6s%s %10s\n", truncate(s.Name, 56), c, label, color(colorReset), formatDuration(d))
		if s.Error != nil {
			fmt.Fprintf(out, "    %s╰─%s %s\n", color(colorGray), color(colorReset), *s.Error)
		}
	}
	sm := idx.Summary
	fmt.Fprintf(out, "%d scenarios (%d passed, %d failed, %d skipped)\n", sm.Total, sm.Passed, sm.Failed, sm.Skipped)
}

// formatDuration shows milliseconds below one second, seconds below a
// minute and minutes with seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
