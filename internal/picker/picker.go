// Package picker is a small bubbletea list for choosing one quick-search result.
package picker

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/search"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Underline(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true).
			MarginBottom(1)
)

// Action is what the user asked to do with the selected entry.
type Action int

const (
	ActionOpen Action = iota
	ActionCopy
)

// Picker is a simple TUI for selecting from search results.
type Picker struct {
	results   []search.Result
	paths     map[string]string // entry id -> folder path
	query     string
	cursor    int
	selected  bool
	cancelled bool
	action    Action
	width     int
	height    int
}

// New creates a new Picker with the given search results. paths maps entry
// ids to a display path of their folder and may be nil.
func New(results []search.Result, query string, paths map[string]string) Picker {
	return Picker{
		results: results,
		paths:   paths,
		query:   query,
		cursor:  0,
		width:   80,
		height:  24,
	}
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			p.cancelled = true
			return p, tea.Quit

		case tea.KeyEnter:
			p.selected = true
			p.action = ActionOpen
			return p, tea.Quit

		case tea.KeyDown:
			if p.cursor < len(p.results)-1 {
				p.cursor++
			}
			return p, nil

		case tea.KeyUp:
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		}

		// Handle j/k vim keys
		if msg.Type == tea.KeyRunes {
			switch string(msg.Runes) {
			case "j":
				if p.cursor < len(p.results)-1 {
					p.cursor++
				}
				return p, nil
			case "k":
				if p.cursor > 0 {
					p.cursor--
				}
				return p, nil
			case "y":
				if len(p.results) > 0 {
					p.selected = true
					p.action = ActionCopy
					return p, tea.Quit
				}
				return p, nil
			case "q":
				p.cancelled = true
				return p, tea.Quit
			}
		}
	}

	return p, nil
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder

	// Header
	b.WriteString(headerStyle.Render(fmt.Sprintf("Search: %s (%d results)", p.query, len(p.results))))
	b.WriteString("\n\n")

	// List items, scrolled so the cursor stays visible
	start, end := p.window()
	for i := start; i < end; i++ {
		result := p.results[i]
		cursor := "  "
		style := normalStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedStyle
		}

		title := highlight(truncate(result.Entry.Name, p.width-4), result.MatchedIndexes, style)
		if path := p.paths[result.Entry.ID]; path != "" {
			title += "  " + pathStyle.Render(path)
		}
		url := urlStyle.Render(truncate(result.Entry.URL, p.width-4))

		b.WriteString(fmt.Sprintf("%s%s\n", cursor, title))
		b.WriteString(fmt.Sprintf("   %s\n", url))
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("j/k: move  Enter: open  y: copy URL  q/Esc: cancel"))

	return b.String()
}

// Selected returns the chosen entry and action. ok is false if the user
// cancelled or there was nothing to choose.
func (p Picker) Selected() (entry model.Entry, action Action, ok bool) {
	if p.cancelled || !p.selected {
		return model.Entry{}, ActionOpen, false
	}
	if p.cursor < len(p.results) {
		return p.results[p.cursor].Entry, p.action, true
	}
	return model.Entry{}, ActionOpen, false
}

// Cancelled returns true if the user cancelled the selection.
func (p Picker) Cancelled() bool {
	return p.cancelled
}

// window returns the slice of results that fits the terminal height.
// Each result takes two lines; header and footer take four.
func (p Picker) window() (int, int) {
	return visibleRange((p.height-4)/2, p.cursor, len(p.results))
}

// highlight renders s with the runes at matched underlined.
func highlight(s string, matched []int, base lipgloss.Style) string {
	if len(matched) == 0 {
		return base.Render(s)
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}

	var b strings.Builder
	for i, r := range s {
		if hit[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}
	return b.String()
}
