package model

import "time"

// Type discriminates how a notification is rendered and which actions
// are available on it.
type Type string

const (
	TypeFeedback           Type = "feedback"
	TypeAssignment         Type = "assignment"
	TypeSchedule           Type = "schedule"
	TypeTeamInvitation     Type = "team_invitation"
	TypeInvitationAccepted Type = "invitation_accepted"
	TypeInvitationDeclined Type = "invitation_declined"
	TypeCommit             Type = "commit"
	TypeSystem             Type = "system"
)

// Priority is the display urgency of a notification.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is the unified entity produced by the aggregator.
// For a fixed set of source records and a fixed read set, aggregation
// is deterministic: the same record always yields the same ID.
type Notification struct {
	// ID is the synthetic identifier, the serialized form of a Key.
	ID string `json:"id"`

	// Type identifies the kind of underlying event.
	Type Type `json:"type"`

	// Title is the short human-readable summary.
	Title string `json:"title"`

	// Message is the longer human-readable body.
	Message string `json:"message"`

	// Timestamp is the event time used for sorting. A zero value means
	// the source record carried no parsable date; zero timestamps sort
	// after everything else.
	Timestamp time.Time `json:"timestamp"`

	// Read is derived from the read-state store at aggregation time.
	// It is not persisted on the notification itself.
	Read bool `json:"read"`

	// Priority is computed from temporal proximity or, for types
	// without a natural deadline, from a fixed mapping.
	Priority Priority `json:"priority"`

	// RelatedID is the id of the underlying domain object (invitation
	// id, feedback id) used to drive actions. Empty when the type has
	// no actionable object.
	RelatedID string `json:"related_id,omitempty"`

	// ProjectID and ProjectName record provenance for display and for
	// scoping re-aggregation. ProjectID is zero for notifications that
	// are not tied to a single project (system notices).
	ProjectID   int64  `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}
