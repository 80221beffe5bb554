package notifcenter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/theme"
)

// NotificationItem wraps a model.Notification so it can be used in a
// bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string {
	return i.Notification.Title
}

// Title returns the notification title for the list.
func (i NotificationItem) Title() string {
	return i.Notification.Title
}

// Description returns a short summary line for the list.
func (i NotificationItem) Description() string {
	parts := []string{
		string(i.Notification.Type),
		i.Notification.ProjectName,
		relativeTime(i.Notification.Timestamp),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	wrapper, ok := item.(NotificationItem)
	if !ok {
		return
	}

	n := wrapper.Notification
	isSelected := index == m.Index()

	marker := " "
	if !n.Read {
		marker = theme.UnreadMarkerStyle.Render("●")
	}

	typeBadge := theme.TypeLabelStyle(string(n.Type)).
		Render(typeLabel(n.Type))

	priBadge := theme.PriorityStyle(string(n.Priority)).
		Render(priorityLabel(n.Priority))

	project := ""
	if n.ProjectName != "" {
		project = theme.DimStyle.Render(" [" + n.ProjectName + "]")
	}

	timeStr := theme.DimStyle.Render(relativeTime(n.Timestamp))

	line := fmt.Sprintf(
		"%s %s %s %s%s  %s",
		marker, priBadge, typeBadge, n.Title, project, timeStr,
	)

	if n.Read {
		line = theme.DimStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// typeLabel returns a short badge label for the given notification type.
func typeLabel(t model.Type) string {
	switch t {
	case model.TypeFeedback:
		return "FBK"
	case model.TypeAssignment:
		return "DUE"
	case model.TypeSchedule:
		return "EVT"
	case model.TypeTeamInvitation:
		return "INV"
	case model.TypeInvitationAccepted:
		return "ACC"
	case model.TypeInvitationDeclined:
		return "DEC"
	case model.TypeCommit:
		return "CMT"
	case model.TypeSystem:
		return "SYS"
	default:
		return "???"
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "!!"
	case model.PriorityMedium:
		return " !"
	case model.PriorityLow:
		return "  "
	default:
		return "  "
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	if d < 0 {
		return relativeFuture(-d)
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

// relativeFuture renders upcoming timestamps (deadlines and events).
func relativeFuture(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}
