package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/keys"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/notify"
	"github.com/ltran/capstone-notify/internal/source"
	appsync "github.com/ltran/capstone-notify/internal/sync"
	"github.com/ltran/capstone-notify/internal/ui/notifcenter"
)

type noProjects struct{}

func (noProjects) ListMyProjects(_ context.Context) ([]model.Project, error) {
	return nil, nil
}

type noReads struct{}

func (noReads) ReadSet(_ context.Context) map[string]bool {
	return map[string]bool{}
}

func newIdlePoller(t *testing.T) *appsync.Poller {
	t.Helper()
	p := appsync.New(
		notify.New(noProjects{}, noReads{}),
		bus.New(),
		time.Hour,
		notify.Options{},
	)
	t.Cleanup(p.Stop)
	return p
}

func newListedModel(t *testing.T, notifications []model.Notification) Model {
	t.Helper()
	k := keys.DefaultKeyMap()
	m := Model{
		currentView: ViewList,
		keys:        k,
		notifList:   notifcenter.New(k, 80, 24),
	}
	m.notifList.SetNotifications(notifications)
	return m
}

func pendingInvitation() model.Notification {
	return model.Notification{
		ID:          "inv:42:15",
		Type:        model.TypeTeamInvitation,
		Title:       "Invitation to Rocket",
		Timestamp:   time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		Priority:    model.PriorityHigh,
		RelatedID:   "15",
		ProjectID:   42,
		ProjectName: "Rocket",
	}
}

func TestInvitationResultPatchesListImmediately(t *testing.T) {
	m := newListedModel(t, []model.Notification{pendingInvitation()})
	m.unreadCount = 1

	accepted := pendingInvitation()
	accepted.Type = model.TypeInvitationAccepted
	accepted.Title = "Joined Rocket"
	accepted.Read = true

	updated, _ := m.Update(invitationResultMsg{notification: accepted, accepted: true})
	m = updated.(Model)

	got, ok := m.notifList.SelectedNotification()
	if !ok {
		t.Fatal("list lost its item")
	}
	if got.Type != model.TypeInvitationAccepted {
		t.Fatalf("list still shows %s, want %s", got.Type, model.TypeInvitationAccepted)
	}
	if !got.Read {
		t.Fatal("accepted invitation still unread in the list")
	}
	if m.unreadCount != 0 {
		t.Fatalf("unread count = %d, want 0", m.unreadCount)
	}
}

func TestInvitationFailureLeavesListUntouched(t *testing.T) {
	m := newListedModel(t, []model.Notification{pendingInvitation()})

	unchanged := pendingInvitation()
	updated, _ := m.Update(invitationResultMsg{
		notification: unchanged,
		accepted:     true,
		err:          context.DeadlineExceeded,
	})
	m = updated.(Model)

	got, _ := m.notifList.SelectedNotification()
	if got.Type != model.TypeTeamInvitation {
		t.Fatalf("list changed on failure: %s", got.Type)
	}
	if m.errMsg == "" {
		t.Fatal("failure not reported in the status line")
	}
}

func TestAdoptPollerResetsSequenceGuard(t *testing.T) {
	m := &Model{lastSeq: 7}

	replacement := newIdlePoller(t)
	m.adoptPoller(replacement)

	if m.poller != replacement {
		t.Fatal("poller not swapped")
	}
	if m.lastSeq != 0 {
		t.Fatalf("sequence guard = %d after swap, want 0", m.lastSeq)
	}
}

func TestStaleAggregateResultIsDropped(t *testing.T) {
	m := newListedModel(t, nil)
	m.poller = newIdlePoller(t)
	m.lastSeq = 5
	m.unreadCount = 3

	stale := appsync.AggregateResultMsg{
		Notifications: []model.Notification{pendingInvitation()},
		UnreadCount:   1,
		Seq:           4,
		CompletedAt:   time.Now(),
	}
	updated, _ := m.Update(stale)
	m = updated.(Model)

	if m.unreadCount != 3 {
		t.Fatalf("stale pass applied: unread count = %d", m.unreadCount)
	}
	if _, ok := m.notifList.SelectedNotification(); ok {
		t.Fatal("stale pass populated the list")
	}

	fresh := stale
	fresh.Seq = 6
	updated, _ = m.Update(fresh)
	m = updated.(Model)

	if m.unreadCount != 1 {
		t.Fatalf("fresh pass not applied: unread count = %d", m.unreadCount)
	}
}

func TestAuthErrorShownInStatusLine(t *testing.T) {
	m := newListedModel(t, nil)
	m.poller = newIdlePoller(t)

	updated, _ := m.Update(appsync.AggregateResultMsg{
		Seq:         1,
		CompletedAt: time.Now(),
		AuthError: &source.AuthError{
			Collector: source.CollectorBackend,
			Message:   "token refresh did not recover GET /api/projects/my",
		},
	})
	m = updated.(Model)

	line := m.statusLine()
	if !strings.Contains(line, "authentication failed") {
		t.Fatalf("status line %q does not mention the credential failure", line)
	}
	if !strings.Contains(line, "reconfigure") {
		t.Fatalf("status line %q does not point at reconfiguration", line)
	}

	// A later clean pass clears the warning.
	updated, _ = m.Update(appsync.AggregateResultMsg{Seq: 2, CompletedAt: time.Now()})
	m = updated.(Model)
	if line := m.statusLine(); strings.Contains(line, "authentication failed") {
		t.Fatalf("status line %q still shows a cleared warning", line)
	}
}
