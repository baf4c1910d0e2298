package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/stackbuild/pkg/scheduler"
)

const (
	progressWidth = 40
	maxRecent     = 8
)

var (
	barDoneStyle = lipgloss.NewStyle().Foreground(colorGreen)
	barTodoStyle = lipgloss.NewStyle().Foreground(colorDim)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

type (
	eventMsg scheduler.Event
	tickMsg  time.Time
	doneMsg  struct {
		report *scheduler.Report
		err    error
	}
)

// buildModel is the bubbletea model of the build progress view. It is fed
// scheduler events and quits once the build returns.
type buildModel struct {
	title  string
	cancel context.CancelFunc
	now    func() time.Time

	total, done, running, pending int
	finished, failed, skipped     int

	active map[string]time.Time // running job -> start
	recent []string             // last completed jobs, newest last
	errors []string

	cancelling bool
	result     *doneMsg
}

func newBuildModel(title string, total int, cancel context.CancelFunc) buildModel {
	return buildModel{
		title:   title,
		cancel:  cancel,
		now:     time.Now,
		total:   total,
		pending: total,
		active:  make(map[string]time.Time),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m buildModel) Init() tea.Cmd {
	return tick()
}

func (m buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
	case tickMsg:
		if m.result == nil {
			return m, tick()
		}
	case eventMsg:
		m.apply(scheduler.Event(msg))
	case doneMsg:
		m.result = &msg
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one scheduler event into the model. The maps are copied so
// earlier model values stay unchanged.
func (m *buildModel) apply(e scheduler.Event) {
	m.total, m.done, m.running, m.pending = e.Total, e.Done, e.Running, e.Pending
	active := maps.Clone(m.active)
	switch e.Type {
	case scheduler.EventStarted:
		active[e.ID] = m.now()
	case scheduler.EventFinished:
		delete(active, e.ID)
		m.finished++
		m.pushRecent(StyleSuccess.Render(iconSuccess) + " " + e.ID)
	case scheduler.EventFailed:
		delete(active, e.ID)
		m.failed++
		m.pushRecent(StyleError.Render(iconError) + " " + e.ID)
		if e.Err != nil {
			m.errors = append(slices.Clip(m.errors), e.Err.Error())
		}
	case scheduler.EventSkipped:
		m.skipped++
		m.pushRecent(StyleDim.Render("- " + e.ID))
	case scheduler.EventCancelled:
		m.cancelling = true
	}
	m.active = active
}

func (m *buildModel) pushRecent(line string) {
	recent := append(slices.Clip(m.recent), line)
	if len(recent) > maxRecent {
		recent = recent[len(recent)-maxRecent:]
	}
	m.recent = recent
}

func (m buildModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Building " + m.title))
	b.WriteString("\n\n")
	b.WriteString(progressBar(m.done, m.total))
	fmt.Fprintf(&b, " %s/%d\n", StyleNumber.Render(fmt.Sprint(m.done)), m.total)
	fmt.Fprintf(&b, "%s  %s  %s  %s  %s\n",
		StyleSuccess.Render(fmt.Sprintf("%d built", m.finished)),
		StyleError.Render(fmt.Sprintf("%d failed", m.failed)),
		StyleDim.Render(fmt.Sprintf("%d skipped", m.skipped)),
		StyleWarning.Render(fmt.Sprintf("%d running", m.running)),
		StyleValue.Render(fmt.Sprintf("%d pending", m.pending)))

	if len(m.active) > 0 {
		var lines []string
		now := m.now()
		for _, id := range slices.Sorted(maps.Keys(m.active)) {
			elapsed := now.Sub(m.active[id]).Round(time.Second)
			lines = append(lines, fmt.Sprintf("%s %s", id, StyleDim.Render(elapsed.String())))
		}
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.result != nil:
	case m.cancelling:
		b.WriteString(StyleWarning.Render("cancelling, waiting for running builds..."))
	default:
		b.WriteString(StyleDim.Render("q cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func progressBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * progressWidth / total
	}
	return barDoneStyle.Render(strings.Repeat("█", filled)) +
		barTodoStyle.Render(strings.Repeat("░", progressWidth-filled))
}

// runWithTUI runs build while showing the progress view. The view is fed
// through the events callback build must pass to the scheduler.
func runWithTUI(ctx context.Context, title string, total int, build func(ctx context.Context, events func(scheduler.Event)) (*scheduler.Report, error)) (*scheduler.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBuildModel(title, total, cancel))
	results := make(chan doneMsg, 1)
	go func() {
		report, err := build(ctx, func(e scheduler.Event) { p.Send(eventMsg(e)) })
		d := doneMsg{report: report, err: err}
		results <- d
		p.Send(d)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-results
		return nil, err
	}
	d := <-results
	return d.report, d.err
}
