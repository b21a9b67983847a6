// Package progressui renders an icon refresh batch as a terminal progress bar.
package progressui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/favmark/internal/refresh"
)

const maxBarWidth = 60

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

type progressMsg struct{ resolved, total int }

type doneMsg struct{ report refresh.Report }

// KeyMap defines the key bindings of the progress view.
type KeyMap struct {
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "stop fetching"),
		),
	}
}

// Model is the bubbletea model of the progress view.
type Model struct {
	title     string
	bar       progress.Model
	keys      KeyMap
	resolved  int
	total     int
	report    *refresh.Report
	cancelled bool
	cancel    func()
}

// NewModel creates a progress view. cancel is called when the user asks to
// stop; it may be nil.
func NewModel(title string, cancel func()) Model {
	return Model{
		title:  title,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		keys:   DefaultKeyMap(),
		cancel: cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-20, maxBarWidth), 10)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case progressMsg:
		// progress only moves forward
		if msg.resolved > m.resolved {
			m.resolved = msg.resolved
		}
		m.total = msg.total
		return m, nil

	case doneMsg:
		m.report = &msg.report
		m.resolved = msg.report.Resolved
		m.total = msg.report.Total
		return m, tea.Quit
	}

	return m, nil
}

// Percent returns the resolved fraction in [0, 1].
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.resolved) / float64(m.total)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(countStyle.Render(fmt.Sprintf("  %d/%d", m.resolved, m.total)))
	b.WriteString("\n")

	switch {
	case m.report != nil:
		b.WriteString(Summary(*m.report))
		b.WriteString("\n")
	case m.cancelled:
		b.WriteString(countStyle.Render("stopping, running fetches will finish"))
		b.WriteString("\n")
	default:
		b.WriteString(countStyle.Render(m.keys.Cancel.Help().Key + ": " + m.keys.Cancel.Help().Desc))
		b.WriteString("\n")
	}

	return b.String()
}

// Summary formats a finished batch report on one line.
func Summary(r refresh.Report) string {
	parts := []string{
		fmt.Sprintf("%d cached", r.Cached),
		fmt.Sprintf("%d fetched", len(r.Fetched)),
		fmt.Sprintf("%d not found", len(r.NotFound)),
	}
	if n := len(r.Failed); n > 0 {
		parts = append(parts, failStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	if n := len(r.CoolingDown); n > 0 {
		parts = append(parts, fmt.Sprintf("%d cooling down", n))
	}
	if n := len(r.Undispatched); n > 0 {
		parts = append(parts, fmt.Sprintf("%d not attempted", n))
	}
	if n := len(r.Evicted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d evicted", n))
	}
	return fmt.Sprintf("%s: %s", r.State, strings.Join(parts, ", "))
}

// View runs a Model in its own bubbletea program.
type View struct {
	p     *tea.Program
	done  chan struct{}
	final Model
	err   error
}

// Start launches the progress view. It must be started before the batch so
// that progress from the synchronous cache pass has a receiver.
func Start(title string, cancel func(), opts ...tea.ProgramOption) *View {
	v := &View{done: make(chan struct{})}
	v.p = tea.NewProgram(NewModel(title, cancel), opts...)
	go func() {
		defer close(v.done)
		m, err := v.p.Run()
		v.err = err
		if fm, ok := m.(Model); ok {
			v.final = fm
		}
	}()
	return v
}

// Progress forwards a scheduler progress update.
// It matches refresh.ProgressFunc.
func (v *View) Progress(resolved, total int) {
	v.p.Send(progressMsg{resolved: resolved, total: total})
}

// Finish shows the final report and waits for the view to exit. It reports
// whether the user cancelled.
func (v *View) Finish(r refresh.Report) (cancelled bool, err error) {
	v.p.Send(doneMsg{report: r})
	<-v.done
	return v.final.cancelled, v.err
}
