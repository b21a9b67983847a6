package progressui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/favmark/internal/refresh"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_ProgressIsMonotonic(t *testing.T) {
	m := NewModel("Refreshing icons", nil)

	m, _ = update(t, m, progressMsg{resolved: 3, total: 4})
	m, _ = update(t, m, progressMsg{resolved: 2, total: 4})

	if m.resolved != 3 {
		t.Errorf("expected resolved to stay at 3, got %d", m.resolved)
	}
	if m.Percent() != 0.75 {
		t.Errorf("expected 0.75, got %v", m.Percent())
	}
	if !strings.Contains(m.View(), "3/4") {
		t.Error("expected count in view")
	}
}

func TestModel_EmptyBatchPercent(t *testing.T) {
	m := NewModel("Refreshing icons", nil)
	if m.Percent() != 0 {
		t.Errorf("expected 0 for empty batch, got %v", m.Percent())
	}
}

func TestModel_CancelKey(t *testing.T) {
	called := 0
	m := NewModel("Refreshing icons", func() { called++ })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if called != 1 {
		t.Errorf("expected cancel to be called once, got %d", called)
	}
	if !m.cancelled {
		t.Error("expected cancelled after q")
	}
	if cmd == nil {
		t.Error("expected quit command after cancel")
	}
}

func TestModel_OtherKeysIgnored(t *testing.T) {
	called := false
	m := NewModel("Refreshing icons", func() { called = true })

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})

	if called || cmd != nil {
		t.Error("unexpected reaction to unbound key")
	}
}

func TestModel_DoneShowsSummary(t *testing.T) {
	m := NewModel("Refreshing icons", nil)

	m, cmd := update(t, m, doneMsg{report: refresh.Report{
		State:    refresh.Completed,
		Total:    4,
		Resolved: 4,
		Cached:   1,
		Fetched:  []string{"a.example", "b.example"},
		Failed:   []string{"c.example"},
	}})

	if cmd == nil {
		t.Error("expected quit command when done")
	}
	view := m.View()
	if !strings.Contains(view, "4/4") {
		t.Error("expected final count in view")
	}
	if !strings.Contains(view, "completed: 1 cached, 2 fetched, 0 not found") {
		t.Errorf("unexpected summary in view:\n%s", view)
	}
	if !strings.Contains(view, "1 failed") {
		t.Error("expected failures in summary")
	}
}

func TestModel_WindowSizeClampsBar(t *testing.T) {
	m := NewModel("Refreshing icons", nil)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 300, Height: 40})
	if m.bar.Width != maxBarWidth {
		t.Errorf("expected bar width %d, got %d", maxBarWidth, m.bar.Width)
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 5, Height: 40})
	if m.bar.Width != 10 {
		t.Errorf("expected minimum bar width 10, got %d", m.bar.Width)
	}
}
