// Package rest implements the source collectors that read from the
// capstone platform REST backend.
package rest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ltran/capstone-notify/internal/backend"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/source"
)

// translateErr maps a credential rejection from the backend into a
// source.AuthError tagged with the failing collector. Every other
// error passes through unchanged.
func translateErr(collector source.CollectorType, err error) error {
	var unauth *backend.ErrUnauthorized
	if errors.As(err, &unauth) {
		return &source.AuthError{Collector: collector, Message: unauth.Message}
	}
	return err
}

// Directory adapts the backend client's project listing to the
// aggregator, translating credential rejections the same way the
// collectors do.
type Directory struct {
	client *backend.Client
}

// NewDirectory creates a project directory over the given client.
func NewDirectory(c *backend.Client) *Directory {
	return &Directory{client: c}
}

// ListMyProjects returns the projects the user is a member of.
func (d *Directory) ListMyProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := d.client.ListMyProjects(ctx)
	if err != nil {
		return nil, translateErr(source.CollectorBackend, err)
	}
	return projects, nil
}

// FeedbackCollector fetches recent feedback entries per project.
type FeedbackCollector struct {
	client *backend.Client
}

// NewFeedbackCollector creates a feedback collector over the given client.
func NewFeedbackCollector(c *backend.Client) *FeedbackCollector {
	return &FeedbackCollector{client: c}
}

func (f *FeedbackCollector) Type() source.CollectorType { return source.CollectorFeedback }

func (f *FeedbackCollector) ProjectScoped() bool { return true }

// Collect retrieves the most recent feedback entries for the scoped project.
func (f *FeedbackCollector) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	items, err := f.client.ListFeedback(ctx, scope.ProjectID, scope.Limit)
	if err != nil {
		return nil, translateErr(f.Type(), err)
	}

	records := make([]source.Record, 0, len(items))
	for _, fb := range items {
		records = append(records, source.Record{
			Kind:        source.RecordFeedback,
			ProjectID:   scope.ProjectID,
			ProjectName: scope.ProjectName,
			RecordID:    strconv.FormatInt(fb.ID, 10),
			Title:       fmt.Sprintf("New feedback from %s", fb.Author),
			Body:        fb.Content,
			Author:      fb.Author,
			OccurredAt:  fb.CreatedAt,
		})
	}
	return records, nil
}

// DeadlineCollector fetches upcoming and overdue task deadlines per project.
type DeadlineCollector struct {
	client *backend.Client
}

// NewDeadlineCollector creates a deadline collector over the given client.
func NewDeadlineCollector(c *backend.Client) *DeadlineCollector {
	return &DeadlineCollector{client: c}
}

func (d *DeadlineCollector) Type() source.CollectorType { return source.CollectorDeadline }

func (d *DeadlineCollector) ProjectScoped() bool { return true }

// Collect retrieves the deadlines for the scoped project. Deadline
// records carry no source id; the aggregator derives one from the title.
func (d *DeadlineCollector) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	items, err := d.client.ListDeadlines(ctx, scope.ProjectID, scope.Limit)
	if err != nil {
		return nil, translateErr(d.Type(), err)
	}

	records := make([]source.Record, 0, len(items))
	for _, dl := range items {
		records = append(records, source.Record{
			Kind:        source.RecordDeadline,
			ProjectID:   scope.ProjectID,
			ProjectName: scope.ProjectName,
			Title:       dl.Title,
			Body:        fmt.Sprintf("Task %q is due", dl.Title),
			OccurredAt:  dl.DueAt,
		})
	}
	return records, nil
}

// EventCollector fetches calendar events per project within the
// scope's date window.
type EventCollector struct {
	client *backend.Client
}

// NewEventCollector creates an event collector over the given client.
func NewEventCollector(c *backend.Client) *EventCollector {
	return &EventCollector{client: c}
}

func (e *EventCollector) Type() source.CollectorType { return source.CollectorEvent }

func (e *EventCollector) ProjectScoped() bool { return true }

// Collect retrieves the events for the scoped project and window.
func (e *EventCollector) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	items, err := e.client.ListEvents(
		ctx, scope.ProjectID, scope.From, scope.To, scope.Limit,
	)
	if err != nil {
		return nil, translateErr(e.Type(), err)
	}

	records := make([]source.Record, 0, len(items))
	for _, ev := range items {
		records = append(records, source.Record{
			Kind:        source.RecordEvent,
			ProjectID:   scope.ProjectID,
			ProjectName: scope.ProjectName,
			RecordID:    strconv.FormatInt(ev.ID, 10),
			Title:       ev.Title,
			Body:        fmt.Sprintf("Event %q is scheduled", ev.Title),
			OccurredAt:  ev.StartAt,
		})
	}
	return records, nil
}

// InvitationCollector fetches the user's pending team invitations.
// Invitations are addressed to the user, not scoped to a project the
// user is already in, so the collector runs once per pass.
type InvitationCollector struct {
	client *backend.Client
}

// NewInvitationCollector creates an invitation collector over the given client.
func NewInvitationCollector(c *backend.Client) *InvitationCollector {
	return &InvitationCollector{client: c}
}

func (i *InvitationCollector) Type() source.CollectorType { return source.CollectorInvitation }

func (i *InvitationCollector) ProjectScoped() bool { return false }

// Collect retrieves the pending invitations.
func (i *InvitationCollector) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	items, err := i.client.ListMyInvitations(ctx)
	if err != nil {
		return nil, translateErr(i.Type(), err)
	}
	if scope.Limit > 0 && len(items) > scope.Limit {
		items = items[:scope.Limit]
	}

	records := make([]source.Record, 0, len(items))
	for _, inv := range items {
		records = append(records, source.Record{
			Kind:        source.RecordInvitation,
			ProjectID:   inv.ProjectID,
			ProjectName: inv.ProjectName,
			RecordID:    strconv.FormatInt(inv.ID, 10),
			Title:       fmt.Sprintf("Invitation to join %s", inv.ProjectName),
			Body:        fmt.Sprintf("%s invited you to join %s", inv.Inviter, inv.ProjectName),
			Author:      inv.Inviter,
			OccurredAt:  inv.CreatedAt,
		})
	}
	return records, nil
}

// CommitCollector fetches recent repository commits per project.
type CommitCollector struct {
	client *backend.Client
}

// NewCommitCollector creates a commit collector over the given client.
func NewCommitCollector(c *backend.Client) *CommitCollector {
	return &CommitCollector{client: c}
}

func (c *CommitCollector) Type() source.CollectorType { return source.CollectorCommit }

func (c *CommitCollector) ProjectScoped() bool { return true }

// Collect retrieves the recent commits for the scoped project.
func (c *CommitCollector) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	items, err := c.client.ListRecentCommits(ctx, scope.ProjectID, scope.Limit)
	if err != nil {
		return nil, translateErr(c.Type(), err)
	}

	records := make([]source.Record, 0, len(items))
	for _, cm := range items {
		sha := cm.SHA
		if len(sha) > 8 {
			sha = sha[:8]
		}
		records = append(records, source.Record{
			Kind:        source.RecordCommit,
			ProjectID:   scope.ProjectID,
			ProjectName: scope.ProjectName,
			RecordID:    cm.SHA,
			Title:       fmt.Sprintf("Commit %s by %s", sha, cm.Author),
			Body:        cm.Message,
			Author:      cm.Author,
			OccurredAt:  cm.CommittedAt,
		})
	}
	return records, nil
}
