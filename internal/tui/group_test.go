package tui

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/firefly-engineering/skillctl/internal/incident"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func testIncidents() []*incident.Incident {
	return []*incident.Incident{
		{ID: "inc-3", Status: incident.StatusEscalated, Skill: "kintone-sync", FailureClass: incident.ClassAuth, Message: "401", UpdatedAt: testNow.Add(-3 * time.Hour)},
		{ID: "inc-1", Status: incident.StatusOpen, Skill: "csv-export", FailureClass: incident.ClassTimeout, Message: "timed out", UpdatedAt: testNow.Add(-5 * time.Minute)},
		{ID: "inc-2", Status: incident.StatusOpen, Skill: "gasprice", FailureClass: incident.ClassNetwork, Message: "connection refused", UpdatedAt: testNow.Add(-72 * time.Hour)},
		{ID: "inc-4", Status: incident.StatusPlanned, Skill: "csv-export", FailureClass: incident.ClassParse, Message: "bad header", UpdatedAt: testNow},
	}
}

func TestBuildGroupedItems(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if items := buildGroupedItems(nil, testNow); items != nil {
			t.Errorf("expected nil, got %d items", len(items))
		}
	})

	t.Run("lifecycle order", func(t *testing.T) {
		items := buildGroupedItems(testIncidents(), testNow)

		// 3 headers + 4 incidents
		if len(items) != 7 {
			t.Fatalf("expected 7 items, got %d", len(items))
		}

		wantHeaders := map[int]string{0: "open (2)", 3: "planned (1)", 5: "escalated (1)"}
		for idx, label := range wantHeaders {
			h, ok := items[idx].(headerItem)
			if !ok {
				t.Fatalf("items[%d] should be a headerItem, got %T", idx, items[idx])
			}
			if h.label != label {
				t.Errorf("items[%d] label = %q, want %q", idx, h.label, label)
			}
		}

		if h := items[5].(headerItem); h.status != incident.StatusEscalated {
			t.Errorf("items[5] status = %q, want escalated", h.status)
		}

		// Input order is kept within a group.
		if got := items[1].(incidentItem).inc.ID; got != "inc-1" {
			t.Errorf("items[1] = %q, want inc-1", got)
		}
		if got := items[2].(incidentItem).inc.ID; got != "inc-2" {
			t.Errorf("items[2] = %q, want inc-2", got)
		}
	})
}

func TestHeaderItem(t *testing.T) {
	h := headerItem{label: "open (2)"}

	if h.FilterValue() != "" {
		t.Error("headerItem.FilterValue() should return empty string")
	}
	if h.Title() != "open (2)" {
		t.Errorf("Title() = %q", h.Title())
	}
	if h.Description() != "" {
		t.Errorf("Description() = %q, want empty", h.Description())
	}
}

func TestHeaderCount(t *testing.T) {
	items := buildGroupedItems(testIncidents(), testNow)
	if got := headerCount(items); got != 3 {
		t.Errorf("headerCount() = %d, want 3", got)
	}
}

func TestSkipHeaders(t *testing.T) {
	items := []list.Item{
		headerItem{label: "open"},
		incidentItem{inc: &incident.Incident{ID: "a"}},
		headerItem{label: "planned"},
		incidentItem{inc: &incident.Incident{ID: "b"}},
	}
	l := list.New(items, newGroupedDelegate(), 80, 20)

	l.Select(0)
	skipHeaders(&l, 1)
	if l.Index() != 1 {
		t.Errorf("down from header: index = %d, want 1", l.Index())
	}

	l.Select(2)
	skipHeaders(&l, -1)
	if l.Index() != 1 {
		t.Errorf("up from header: index = %d, want 1", l.Index())
	}

	l.Select(2)
	skipHeaders(&l, 1)
	if l.Index() != 3 {
		t.Errorf("down from middle header: index = %d, want 3", l.Index())
	}

	l.Select(3)
	skipHeaders(&l, 1)
	if l.Index() != 3 {
		t.Errorf("non-header should not move: index = %d", l.Index())
	}
	if isHeaderSelected(&l) {
		t.Error("isHeaderSelected() = true on an incident")
	}
}

func TestNavigationDirection(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want int
	}{
		{tea.KeyMsg{Type: tea.KeyUp}, -1},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")}, -1},
		{tea.KeyMsg{Type: tea.KeyDown}, 1},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}, 1},
	}
	for _, tt := range tests {
		if got := navigationDirection(tt.key); got != tt.want {
			t.Errorf("navigationDirection(%q) = %d, want %d", tt.key.String(), got, tt.want)
		}
	}
}
