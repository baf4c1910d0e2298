package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorCyan)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError     = lipgloss.NewStyle().Foreground(colorRed)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// statusStyles colors job statuses.
var statusStyles = map[string]lipgloss.Style{
	scheduler.Finished.String(): StyleSuccess,
	scheduler.Failed.String():   StyleError,
	scheduler.Skipped.String():  StyleDim,
	scheduler.Running.String():  StyleWarning,
	scheduler.Pending.String():  StyleValue,
}

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Structured Output
// =============================================================================

func writeKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printStats prints graph statistics on a single line.
func printStats(nodes, edges, pruned int, cached bool) {
	parts := []string{fmt.Sprintf("%d nodes", nodes), fmt.Sprintf("%d edges", edges)}
	if pruned > 0 {
		parts = append(parts, fmt.Sprintf("%d pruned", pruned))
	}

	state, style := iconFresh, styleComputed
	if cached {
		state, style = iconCached, styleCached
	}

	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = StyleDim.Render(p)
	}
	fmt.Println("  " + strings.Join(append(rendered, style.Render(state)), StyleDim.Render(" · ")))
}

// writeSnapshot renders a persisted build status.
func writeSnapshot(w io.Writer, snap *status.Snapshot) {
	fmt.Fprintln(w, StyleTitle.Render("Build "+snap.RunID))
	if snap.Release != "" {
		writeKeyValue(w, "target", snap.Release+"/"+snap.Arch)
	}
	writeKeyValue(w, "started", snap.StartedAt.Format("2006-01-02 15:04:05"))
	writeKeyValue(w, "updated", snap.UpdatedAt.Format("2006-01-02 15:04:05"))

	state := "running"
	switch {
	case snap.Cancelled:
		state = "cancelled"
	case snap.Done:
		state = "done"
	}
	writeKeyValue(w, "state", state)

	counts := snap.Counts()
	for _, st := range []scheduler.Status{scheduler.Finished, scheduler.Failed, scheduler.Skipped, scheduler.Running, scheduler.Pending} {
		if n := counts[st.String()]; n > 0 {
			writeKeyValue(w, st.String(), statusStyles[st.String()].Render(fmt.Sprint(n)))
		}
	}

	for _, k := range dag.Kinds {
		entries := snap.Failed[k.String()]
		if len(entries) == 0 {
			continue
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		slices.Sort(ids)
		fmt.Fprintln(w, StyleError.Render(iconError)+" failed "+k.String()+": "+strings.Join(ids, ", "))
	}
}

// printReport prints the outcome of a build.
func printReport(r *scheduler.Report) {
	if r.OK() {
		printSuccess("Built %d jobs in %s", len(r.Statuses), r.Duration().Round(time.Millisecond))
		return
	}
	lines := strings.Split(r.Summary(), "\n")
	if r.Cancelled {
		printWarning("%s", lines[0])
	} else {
		printError("%s", lines[0])
	}
	for _, line := range lines[1:] {
		printDetail("%s", line)
	}
	for _, id := range r.IDs(scheduler.Failed) {
		printDetail("%v", r.Errors[id])
	}
}

// writeJobs lists every job of a snapshot with its status.
func writeJobs(w io.Writer, snap *status.Snapshot) {
	ids := make([]string, 0, len(snap.Jobs))
	for id := range snap.Jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	width := 0
	for _, id := range ids {
		width = max(width, len(id))
	}
	for _, id := range ids {
		st := snap.Jobs[id]
		style, ok := statusStyles[st]
		if !ok {
			style = StyleValue
		}
		fmt.Fprintf(w, "%-*s  %s\n", width, id, style.Render(st))
	}
}
