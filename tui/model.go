package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-stems/errs"
	"go-stems/recorder"
	"go-stems/theme"
	"go-stems/widgets"
)

const meterWidth = 30

type row struct {
	phase recorder.Phase
	bytes int
	path  string
	err   error
}

type Model struct {
	Theme    *theme.Theme
	title    string
	rows     []row
	expected []int // bytes per track for a full meter
	events   <-chan recorder.Progress
	cancel   func()

	cancelling bool
	done       bool
	err        error
}

type ProgressMsg recorder.Progress

type DoneMsg struct {
	Report recorder.Report
	Err    error
}

// NewModel shows one row per track. expected[i] is the capture size that fills track i's meter.
func NewModel(th *theme.Theme, title string, expected []int, events <-chan recorder.Progress, cancel func()) Model {
	return Model{
		Theme:    th,
		title:    title,
		rows:     make([]row, len(expected)),
		expected: expected,
		events:   events,
		cancel:   cancel,
	}
}

func ListenForProgress(events <-chan recorder.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

// Observer forwards progress without ever blocking the capture loop
func Observer(events chan<- recorder.Progress) func(recorder.Progress) {
	return func(p recorder.Progress) {
		select {
		case events <- p:
		default:
		}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForProgress(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelling || m.done {
				return m, tea.Quit
			}
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case ProgressMsg:
		p := recorder.Progress(msg)
		if p.Track >= 0 && p.Track < len(m.rows) && p.Phase != recorder.PhaseDone {
			r := &m.rows[p.Track]
			r.phase, r.bytes = p.Phase, p.Bytes
			if p.Path != "" {
				r.path = p.Path
			}
			if p.Err != nil {
				r.err = p.Err
			}
		}
		return m, ListenForProgress(m.events)

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		for _, t := range msg.Report.Tracks {
			if t.Track < 0 || t.Track >= len(m.rows) {
				continue
			}
			r := &m.rows[t.Track]
			r.bytes, r.err = t.Bytes, t.Err
			if t.Path != "" {
				r.path = t.Path
			}
			if t.Err == nil {
				r.phase = recorder.PhasePersisted
			}
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	errStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	status := "recording"
	switch {
	case m.done && m.err != nil:
		status = "stopped: " + errs.KindOf(m.err)
	case m.done:
		status = "done"
	case m.cancelling:
		status = "cancelling..."
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("go-stems  %s  %d tracks  %s", m.title, len(m.rows), status)))
	out.WriteString("\n\n")

	for i, r := range m.rows {
		glyph := lipgloss.NewStyle().Foreground(m.Theme.Phase(r.phase)).Render(string(m.Theme.Glyph(r.phase, r.err != nil)))
		frac := 0.0
		if m.expected[i] > 0 {
			frac = float64(r.bytes) / float64(m.expected[i])
		}
		meter := widgets.RenderMeter(frac, meterWidth, m.Theme.Symbols.MeterFull, m.Theme.Symbols.MeterEmpty, m.Theme.Phase(r.phase))
		line := fmt.Sprintf(" %s %3d  %-9s %s %10s", glyph, i, r.phase, meter, widgets.FormatBytes(r.bytes))
		switch {
		case r.err != nil:
			line += "  " + errStyle.Render(r.err.Error())
		case r.path != "":
			line += "  " + dimStyle.Render(r.path)
		}
		out.WriteString(line)
		out.WriteString("\n")
	}

	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(m.err.Error()))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{{Key: "q", Desc: "cancel run (twice to leave now)"}}},
	})))
	return out.String()
}

// Run shows the model while run executes, and waits for run to return
// even when the view is closed early.
func Run(m Model, run func() (recorder.Report, error)) (recorder.Report, error) {
	p := tea.NewProgram(m)

	var report recorder.Report
	var runErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		report, runErr = run()
		p.Send(DoneMsg{Report: report, Err: runErr})
	}()

	if _, err := p.Run(); err != nil && m.cancel != nil {
		m.cancel()
	}
	<-finished
	return report, runErr
}
