package notifcenter

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ltran/capstone-notify/internal/keys"
	"github.com/ltran/capstone-notify/internal/model"
)

func sampleNotifications() []model.Notification {
	base := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	return []model.Notification{
		{
			ID:          "inv:42:15",
			Type:        model.TypeTeamInvitation,
			Title:       "Invitation to Rocket",
			Timestamp:   base,
			Priority:    model.PriorityHigh,
			RelatedID:   "15",
			ProjectID:   42,
			ProjectName: "Rocket",
		},
		{
			ID:        "fb:42:7",
			Type:      model.TypeFeedback,
			Title:     "New feedback",
			Timestamp: base.Add(-time.Hour),
			Priority:  model.PriorityMedium,
			ProjectID: 42,
			Read:      true,
		},
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(sampleNotifications())
	return m
}

func visibleIDs(m Model) []string {
	var ids []string
	for _, item := range m.list.Items() {
		ids = append(ids, item.(NotificationItem).Notification.ID)
	}
	return ids
}

func TestReplaceNotificationSwapsInPlace(t *testing.T) {
	m := newTestModel(t)

	accepted := model.Notification{
		ID:          "inv:42:15",
		Type:        model.TypeInvitationAccepted,
		Title:       "Joined Rocket",
		Priority:    model.PriorityMedium,
		ProjectID:   42,
		ProjectName: "Rocket",
		Read:        true,
	}
	if cmd := m.ReplaceNotification(accepted); cmd == nil {
		t.Fatal("expected a list update command")
	}

	items := m.list.Items()
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	got := items[0].(NotificationItem).Notification
	if got.Type != model.TypeInvitationAccepted {
		t.Fatalf("item type = %q, want %q", got.Type, model.TypeInvitationAccepted)
	}
	if !got.Read {
		t.Fatal("replaced item should be read")
	}
}

func TestReplaceNotificationRespectsActiveFilter(t *testing.T) {
	m := newTestModel(t)

	// Switch to the unread filter; only the invitation remains visible.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if ids := visibleIDs(m); len(ids) != 1 || ids[0] != "inv:42:15" {
		t.Fatalf("unread filter shows %v, want [inv:42:15]", ids)
	}

	accepted := sampleNotifications()[0]
	accepted.Type = model.TypeInvitationAccepted
	accepted.Read = true
	m.ReplaceNotification(accepted)

	if ids := visibleIDs(m); len(ids) != 0 {
		t.Fatalf("read replacement still visible under unread filter: %v", ids)
	}
}

func TestReplaceNotificationIgnoresUnknownID(t *testing.T) {
	m := newTestModel(t)

	if cmd := m.ReplaceNotification(model.Notification{ID: "sys:0:zzz"}); cmd != nil {
		t.Fatal("unknown id should be a no-op")
	}
	if ids := visibleIDs(m); len(ids) != 2 {
		t.Fatalf("list changed after no-op replace: %v", ids)
	}
}

func TestUnreadCountIgnoresFilter(t *testing.T) {
	m := newTestModel(t)

	if got := m.UnreadCount(); got != 1 {
		t.Fatalf("UnreadCount = %d, want 1", got)
	}

	// The read filter hides the unread invitation but must not change
	// the count.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.UnreadCount(); got != 1 {
		t.Fatalf("UnreadCount under read filter = %d, want 1", got)
	}
}
