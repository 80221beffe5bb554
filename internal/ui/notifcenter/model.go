package notifcenter

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ltran/capstone-notify/internal/keys"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/theme"
)

// MarkReadRequestMsg asks the app to persist a read mark for one
// notification.
type MarkReadRequestMsg struct {
	Notification model.Notification
}

// MarkAllReadRequestMsg asks the app to persist read marks for every
// currently visible unread notification.
type MarkAllReadRequestMsg struct {
	IDs []string
}

// InvitationActionMsg asks the app to accept or decline a pending team
// invitation.
type InvitationActionMsg struct {
	Notification model.Notification
	Accept       bool
}

// readFilter selects which notifications are shown.
type readFilter int

const (
	filterAll readFilter = iota
	filterUnread
	filterRead
)

// filterLabels maps each readFilter to its list title suffix.
var filterLabels = map[readFilter]string{
	filterAll:    "all",
	filterUnread: "unread",
	filterRead:   "read",
}

// Model is the notification center list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	filter readFilter
	all    []model.Notification
	width  int
	height int
}

// New creates a new notification center model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		filter: filterAll,
		width:  width,
		height: height,
	}
}

// Init implements tea.Model. Data arrives via SetNotifications.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetNotifications replaces the backing data and re-applies the current
// read filter. The cursor position is preserved when possible.
func (m *Model) SetNotifications(notifications []model.Notification) tea.Cmd {
	m.all = notifications
	return m.applyFilter()
}

// ReplaceNotification swaps the notification with a matching id for the
// given one and re-applies the current filter. Unknown ids are ignored.
func (m *Model) ReplaceNotification(n model.Notification) tea.Cmd {
	for i := range m.all {
		if m.all[i].ID == n.ID {
			m.all[i] = n
			return m.applyFilter()
		}
	}
	return nil
}

// UnreadCount reports how many backing notifications are unread,
// regardless of the active filter.
func (m Model) UnreadCount() int {
	count := 0
	for _, n := range m.all {
		if !n.Read {
			count++
		}
	}
	return count
}

// applyFilter rebuilds the visible list items from m.all.
func (m *Model) applyFilter() tea.Cmd {
	var items []list.Item
	for _, n := range m.all {
		switch m.filter {
		case filterUnread:
			if n.Read {
				continue
			}
		case filterRead:
			if !n.Read {
				continue
			}
		}
		items = append(items, NotificationItem{Notification: n})
	}

	m.list.Title = "Notifications · " + filterLabels[m.filter]

	return m.list.SetItems(items)
}

// SelectedNotification returns the notification under the cursor.
func (m Model) SelectedNotification() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// VisibleUnreadIDs returns the ids of every unread notification that
// passes the current filter.
func (m Model) VisibleUnreadIDs() []string {
	var ids []string
	for _, item := range m.list.Items() {
		wrapper, ok := item.(NotificationItem)
		if !ok {
			continue
		}
		if !wrapper.Notification.Read {
			ids = append(ids, wrapper.Notification.ID)
		}
	}
	return ids
}

// Update handles messages for the notification center view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Select), key.Matches(keyMsg, m.keys.MarkRead):
		n, ok := m.SelectedNotification()
		if !ok || n.Read {
			return m, nil
		}
		return m, func() tea.Msg {
			return MarkReadRequestMsg{Notification: n}
		}

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		ids := m.VisibleUnreadIDs()
		if len(ids) == 0 {
			return m, nil
		}
		return m, func() tea.Msg {
			return MarkAllReadRequestMsg{IDs: ids}
		}

	case key.Matches(keyMsg, m.keys.Accept):
		return m.invitationAction(true)

	case key.Matches(keyMsg, m.keys.Decline):
		return m.invitationAction(false)

	case key.Matches(keyMsg, m.keys.CycleFilter):
		m.filter = (m.filter + 1) % 3
		return m, m.applyFilter()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(keyMsg)
	return m, cmd
}

// invitationAction emits an InvitationActionMsg when the cursor is on a
// pending team invitation; on any other type it is a no-op.
func (m Model) invitationAction(accept bool) (Model, tea.Cmd) {
	n, ok := m.SelectedNotification()
	if !ok || n.Type != model.TypeTeamInvitation {
		return m, nil
	}
	return m, func() tea.Msg {
		return InvitationActionMsg{Notification: n, Accept: accept}
	}
}

// View renders the notification center.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when the list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.filter != filterAll {
		return style.Render(
			"No " + filterLabels[m.filter] + " notifications.\n" +
				"Press tab to change the filter.",
		)
	}

	return style.Render(
		"No notifications yet.\n\n" +
			"Press r to refresh, or s to configure the backend.",
	)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
