// Package invite drives the team-invitation response flow. An
// invitation is PENDING until the user accepts or declines; both
// transitions are terminal and the backend is authoritative, so local
// state changes only after the backend confirms.
package invite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/readstate"
)

// Backend is the subset of the platform client the flow needs.
type Backend interface {
	AcceptInvitation(ctx context.Context, invitationID int64) error
	DeclineInvitation(ctx context.Context, invitationID int64) error
}

// Responder executes invitation transitions.
type Responder struct {
	backend Backend
	reads   *readstate.Store
	bus     *bus.Bus
}

// NewResponder creates a Responder over the given backend, read-state
// store, and change bus.
func NewResponder(b Backend, reads *readstate.Store, changeBus *bus.Bus) *Responder {
	return &Responder{backend: b, reads: reads, bus: changeBus}
}

// Accept accepts the invitation behind a team_invitation notification.
// On success it returns the accepted variant of the notification,
// already marked read, and emits a change event; on failure the input
// is returned unchanged along with the error, and no local state is
// touched.
func (r *Responder) Accept(
	ctx context.Context, n model.Notification,
) (model.Notification, error) {
	id, err := invitationID(n)
	if err != nil {
		return n, err
	}

	if err := r.backend.AcceptInvitation(ctx, id); err != nil {
		return n, err
	}

	accepted := n
	accepted.Type = model.TypeInvitationAccepted
	accepted.Title = fmt.Sprintf("Joined %s", projectLabel(n))
	accepted.Message = fmt.Sprintf("You accepted the invitation to %s", projectLabel(n))
	accepted.Read = true

	if err := r.reads.MarkRead(ctx, accepted.ID); err != nil {
		// The transition already happened remotely; a failed local
		// mark must not hide that, so log-and-continue semantics live
		// with the caller. Still signal the change.
		r.bus.Emit()
		return accepted, nil
	}

	return accepted, nil
}

// Decline declines the invitation behind a team_invitation
// notification, with the same confirm-then-mutate contract as Accept.
func (r *Responder) Decline(
	ctx context.Context, n model.Notification,
) (model.Notification, error) {
	id, err := invitationID(n)
	if err != nil {
		return n, err
	}

	if err := r.backend.DeclineInvitation(ctx, id); err != nil {
		return n, err
	}

	declined := n
	declined.Type = model.TypeInvitationDeclined
	declined.Title = fmt.Sprintf("Declined invitation to %s", projectLabel(n))
	declined.Message = fmt.Sprintf("You declined the invitation to %s", projectLabel(n))
	declined.Read = true

	if err := r.reads.MarkRead(ctx, declined.ID); err != nil {
		r.bus.Emit()
		return declined, nil
	}

	return declined, nil
}

// invitationID extracts and validates the numeric invitation id from a
// notification. When RelatedID is missing the id is recovered from the
// notification key, whose record segment carries it for invitations.
func invitationID(n model.Notification) (int64, error) {
	if n.Type != model.TypeTeamInvitation {
		return 0, fmt.Errorf("notification %s is %s, not a team invitation", n.ID, n.Type)
	}

	related := n.RelatedID
	if related == "" {
		key, err := model.ParseKey(n.ID)
		if err != nil || key.Kind != model.KindInvitation {
			return 0, fmt.Errorf("notification %s has no usable invitation id", n.ID)
		}
		related = key.RecordID
	}

	id, err := strconv.ParseInt(related, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("notification %s has no usable invitation id: %w", n.ID, err)
	}
	return id, nil
}

func projectLabel(n model.Notification) string {
	if n.ProjectName != "" {
		return n.ProjectName
	}
	return fmt.Sprintf("project %d", n.ProjectID)
}
