package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/skillctl/internal/incident"
)

// headerItem separates status groups in the picker list and cannot be
// acted on.
type headerItem struct {
	label  string
	status incident.Status
}

func (h headerItem) FilterValue() string { return "" }
func (h headerItem) Title() string       { return h.label }
func (h headerItem) Description() string { return "" }

func isHeader(item list.Item) bool {
	_, ok := item.(headerItem)
	return ok
}

// buildGroupedItems lays incidents out under one header per status, in
// lifecycle order. Statuses with no incidents get no header.
func buildGroupedItems(incidents []*incident.Incident, now time.Time) []list.Item {
	byStatus := make(map[incident.Status][]*incident.Incident)
	for _, inc := range incidents {
		byStatus[inc.Status] = append(byStatus[inc.Status], inc)
	}

	var items []list.Item
	for _, status := range incident.Statuses {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		items = append(items, headerItem{label: fmt.Sprintf("%s (%d)", status, len(group)), status: status})
		for _, inc := range group {
			items = append(items, incidentItem{inc: inc, now: now})
		}
	}
	return items
}

// statusColors tints group headers; closed statuses stay grey.
var statusColors = map[incident.Status]lipgloss.Color{
	incident.StatusOpen:      "203",
	incident.StatusPlanned:   "214",
	incident.StatusApproved:  "39",
	incident.StatusHandedOff: "141",
	incident.StatusEscalated: "196",
}

func headerStyle(status incident.Status) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		color = "241"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).PaddingLeft(2)
}

// groupedDelegate draws headers itself and hands incidents to the default
// delegate.
type groupedDelegate struct {
	inner list.DefaultDelegate
}

func newGroupedDelegate() groupedDelegate {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return groupedDelegate{inner: delegate}
}

func (d groupedDelegate) Height() int                             { return d.inner.Height() }
func (d groupedDelegate) Spacing() int                            { return d.inner.Spacing() }
func (d groupedDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d groupedDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	if h, ok := item.(headerItem); ok {
		fmt.Fprint(w, headerStyle(h.status).Render(h.label))
		return
	}
	d.inner.Render(w, m, index, item)
}

// skipHeaders moves the cursor off a header: first to the nearest incident
// in direction (1 down, -1 up), otherwise the nearest the other way.
func skipHeaders(l *list.Model, direction int) {
	items := l.Items()
	idx := l.Index()
	if idx < 0 || idx >= len(items) || !isHeader(items[idx]) {
		return
	}
	for _, dir := range []int{direction, -direction} {
		for i := idx + dir; i >= 0 && i < len(items); i += dir {
			if !isHeader(items[i]) {
				l.Select(i)
				return
			}
		}
	}
}

func isHeaderSelected(l *list.Model) bool {
	item := l.SelectedItem()
	return item != nil && isHeader(item)
}

// navigationDirection is -1 for keys that move the cursor up.
func navigationDirection(msg tea.KeyMsg) int {
	switch msg.String() {
	case "up", "k", "shift+tab", "pgup", "home", "g":
		return -1
	}
	return 1
}

func headerCount(items []list.Item) int {
	n := 0
	for _, item := range items {
		if isHeader(item) {
			n++
		}
	}
	return n
}
