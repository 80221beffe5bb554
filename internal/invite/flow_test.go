package invite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ltran/capstone-notify/internal/invite"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/tests/testutil"
)

type fakeBackend struct {
	acceptErr   error
	declineErr  error
	acceptedID  int64
	declinedID  int64
	acceptCalls int
}

func (b *fakeBackend) AcceptInvitation(_ context.Context, id int64) error {
	b.acceptCalls++
	if b.acceptErr != nil {
		return b.acceptErr
	}
	b.acceptedID = id
	return nil
}

func (b *fakeBackend) DeclineInvitation(_ context.Context, id int64) error {
	if b.declineErr != nil {
		return b.declineErr
	}
	b.declinedID = id
	return nil
}

func pendingInvitation() model.Notification {
	return model.Notification{
		ID:          "inv:42:15",
		Type:        model.TypeTeamInvitation,
		Title:       "Invitation to Rocket",
		Message:     "Dana invited you to join Rocket",
		Timestamp:   time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		Priority:    model.PriorityHigh,
		RelatedID:   "15",
		ProjectID:   42,
		ProjectName: "Rocket",
	}
}

func TestAcceptTransformsNotification(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	emissions := 0
	unsubscribe := changeBus.Subscribe(func() { emissions++ })
	defer unsubscribe()

	got, err := responder.Accept(context.Background(), pendingInvitation())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if backend.acceptedID != 15 {
		t.Fatalf("backend saw invitation %d, want 15", backend.acceptedID)
	}
	if got.Type != model.TypeInvitationAccepted {
		t.Fatalf("type = %s, want %s", got.Type, model.TypeInvitationAccepted)
	}
	if got.Title != "Joined Rocket" {
		t.Fatalf("title = %q", got.Title)
	}
	if !got.Read {
		t.Fatal("accepted notification should be read")
	}
	if got.ID != "inv:42:15" {
		t.Fatalf("id changed to %s", got.ID)
	}
	if !store.IsRead(context.Background(), got.ID) {
		t.Fatal("read mark not persisted")
	}
	if emissions != 1 {
		t.Fatalf("change bus emitted %d times, want 1", emissions)
	}
}

func TestDeclineTransformsNotification(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	got, err := responder.Decline(context.Background(), pendingInvitation())
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}

	if backend.declinedID != 15 {
		t.Fatalf("backend saw invitation %d, want 15", backend.declinedID)
	}
	if got.Type != model.TypeInvitationDeclined {
		t.Fatalf("type = %s, want %s", got.Type, model.TypeInvitationDeclined)
	}
	if got.Title != "Declined invitation to Rocket" {
		t.Fatalf("title = %q", got.Title)
	}
	if !store.IsRead(context.Background(), got.ID) {
		t.Fatal("read mark not persisted")
	}
}

func TestBackendFailureLeavesNotificationUntouched(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{acceptErr: errors.New("conflict: already a member")}
	responder := invite.NewResponder(backend, store, changeBus)

	emissions := 0
	unsubscribe := changeBus.Subscribe(func() { emissions++ })
	defer unsubscribe()

	original := pendingInvitation()
	got, err := responder.Accept(context.Background(), original)
	if err == nil {
		t.Fatal("expected error from failing backend")
	}

	if got != original {
		t.Fatalf("notification mutated on failure:\n%+v\nvs\n%+v", got, original)
	}
	if store.IsRead(context.Background(), original.ID) {
		t.Fatal("read mark persisted despite backend failure")
	}
	if emissions != 0 {
		t.Fatalf("change bus emitted %d times on failure, want 0", emissions)
	}
}

func TestRejectsNonInvitationNotifications(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	feedback := model.Notification{
		ID:        "fb:42:7",
		Type:      model.TypeFeedback,
		RelatedID: "7",
	}

	if _, err := responder.Accept(context.Background(), feedback); err == nil {
		t.Fatal("accepting a feedback notification should fail")
	}
	if backend.acceptCalls != 0 {
		t.Fatalf("backend called %d times for a non-invitation", backend.acceptCalls)
	}
}

func TestAcceptRecoversInvitationIDFromKey(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	// Some sources hand over only the synthetic id; its record segment
	// still carries the invitation id.
	bare := pendingInvitation()
	bare.RelatedID = ""

	got, err := responder.Accept(context.Background(), bare)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if backend.acceptedID != 15 {
		t.Fatalf("backend saw invitation %d, want 15", backend.acceptedID)
	}
	if got.Type != model.TypeInvitationAccepted {
		t.Fatalf("type = %s, want %s", got.Type, model.TypeInvitationAccepted)
	}
}

func TestRejectsInvitationWithBadKeyAndNoRelatedID(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	broken := pendingInvitation()
	broken.RelatedID = ""
	broken.ID = "malformed"

	if _, err := responder.Accept(context.Background(), broken); err == nil {
		t.Fatal("expected error when neither related id nor key is usable")
	}
	if backend.acceptCalls != 0 {
		t.Fatalf("backend called %d times with no usable id", backend.acceptCalls)
	}
}

func TestRejectsInvitationWithoutUsableID(t *testing.T) {
	store, changeBus := testutil.NewReadStateStore(t)
	backend := &fakeBackend{}
	responder := invite.NewResponder(backend, store, changeBus)

	broken := pendingInvitation()
	broken.RelatedID = "not-a-number"

	if _, err := responder.Accept(context.Background(), broken); err == nil {
		t.Fatal("expected error for unparsable invitation id")
	}
	if backend.acceptCalls != 0 {
		t.Fatalf("backend called %d times with a broken id", backend.acceptCalls)
	}
}
