// Package source defines the contract between the aggregator and the
// per-category collectors that feed it.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError indicates that authentication has failed or expired for a
// source. Collectors return it when the underlying service rejects the
// configured credentials.
type AuthError struct {
	Collector CollectorType
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Collector, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// CollectorType identifies one category of source record.
type CollectorType string

const (
	CollectorFeedback   CollectorType = "feedback"
	CollectorDeadline   CollectorType = "deadline"
	CollectorEvent      CollectorType = "event"
	CollectorInvitation CollectorType = "invitation"
	CollectorCommit     CollectorType = "commit"
	CollectorEmail      CollectorType = "email"

	// CollectorBackend tags auth failures from shared backend calls
	// that are not tied to one collector, such as project listing.
	CollectorBackend CollectorType = "backend"
)

// Scope bounds a single collect call. ProjectID is zero for collectors
// that are not project-scoped (invitations, announcement email).
type Scope struct {
	ProjectID   int64
	ProjectName string

	// Limit caps the number of records returned.
	Limit int

	// From and To bound time-windowed collectors (events).
	From time.Time
	To   time.Time
}

// RecordKind tags what a raw record represents. It drives the
// aggregator's type, priority, and key derivation.
type RecordKind string

const (
	RecordFeedback   RecordKind = "feedback"
	RecordDeadline   RecordKind = "deadline"
	RecordEvent      RecordKind = "event"
	RecordInvitation RecordKind = "invitation"
	RecordCommit     RecordKind = "commit"
	RecordSystem     RecordKind = "system"
)

// Record is a raw source record before aggregation. RecordID is the
// record's identifier within its source; for deadlines, which have no
// id of their own, it is left empty and the aggregator derives one
// from the title.
type Record struct {
	Kind        RecordKind
	ProjectID   int64
	ProjectName string
	RecordID    string
	Title       string
	Body        string
	Author      string

	// OccurredAt is the event time (feedback createdAt, deadline
	// dueDate, event startAt). Zero when the source record carried no
	// parsable date.
	OccurredAt time.Time
}

// Collector is a read-only fetch function for one category of source
// record. Implementations have no side effects beyond the network call
// and never mutate shared state.
type Collector interface {
	// Type returns the collector's category identifier.
	Type() CollectorType

	// ProjectScoped reports whether Collect expects a per-project
	// scope. The aggregator invokes unscoped collectors exactly once
	// per pass with a zero ProjectID.
	ProjectScoped() bool

	// Collect retrieves raw records for the given scope.
	Collect(ctx context.Context, scope Scope) ([]Record, error)
}
