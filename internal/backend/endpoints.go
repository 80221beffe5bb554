package backend

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ltran/capstone-notify/internal/model"
)

// ListMyProjects retrieves the projects the authenticated user is a
// member of.
func (c *Client) ListMyProjects(ctx context.Context) ([]model.Project, error) {
	var raw []byte
	if err := c.Get(ctx, "/api/projects/my", &raw); err != nil {
		return nil, fmt.Errorf("fetching project list: %w", err)
	}

	projects, err := decodeProjectList(raw)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// ListFeedback retrieves the most recent feedback entries for a
// project, capped at limit.
func (c *Client) ListFeedback(
	ctx context.Context, projectID int64, limit int,
) ([]Feedback, error) {
	path := fmt.Sprintf("/api/projects/%d/feedback?limit=%d", projectID, limit)

	var dtos []feedbackDTO
	if err := c.Get(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetching feedback for project %d: %w", projectID, err)
	}
	return decodeFeedbackList(dtos), nil
}

// ListDeadlines retrieves the upcoming and overdue task deadlines for
// a project, capped at limit.
func (c *Client) ListDeadlines(
	ctx context.Context, projectID int64, limit int,
) ([]Deadline, error) {
	path := fmt.Sprintf("/api/projects/%d/deadlines?limit=%d", projectID, limit)

	var dtos []deadlineDTO
	if err := c.Get(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetching deadlines for project %d: %w", projectID, err)
	}
	return decodeDeadlineList(dtos), nil
}

// ListEvents retrieves the calendar events for a project within the
// [from, to] date window, capped at limit.
func (c *Client) ListEvents(
	ctx context.Context, projectID int64, from, to time.Time, limit int,
) ([]Event, error) {
	q := url.Values{}
	q.Set("projectId", fmt.Sprintf("%d", projectID))
	q.Set("from", formatDate(from))
	q.Set("to", formatDate(to))
	q.Set("limit", fmt.Sprintf("%d", limit))

	var dtos []eventDTO
	if err := c.Get(ctx, "/api/events?"+q.Encode(), &dtos); err != nil {
		return nil, fmt.Errorf("fetching events for project %d: %w", projectID, err)
	}
	return decodeEventList(dtos), nil
}

// ListMyInvitations retrieves the pending team invitations addressed
// to the authenticated user.
func (c *Client) ListMyInvitations(ctx context.Context) ([]Invitation, error) {
	var dtos []invitationDTO
	if err := c.Get(ctx, "/api/invitations/my", &dtos); err != nil {
		return nil, fmt.Errorf("fetching invitations: %w", err)
	}
	return decodeInvitationList(dtos), nil
}

// ListRecentCommits retrieves the most recent repository commits for a
// project, capped at limit.
func (c *Client) ListRecentCommits(
	ctx context.Context, projectID int64, limit int,
) ([]Commit, error) {
	path := fmt.Sprintf("/api/projects/%d/commits?limit=%d", projectID, limit)

	var dtos []commitDTO
	if err := c.Get(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetching commits for project %d: %w", projectID, err)
	}
	return decodeCommitList(dtos), nil
}

// AcceptInvitation accepts a pending team invitation. The backend is
// authoritative for this transition; callers mutate local state only
// after this returns nil.
func (c *Client) AcceptInvitation(ctx context.Context, invitationID int64) error {
	path := fmt.Sprintf("/api/invitations/%d/accept", invitationID)
	if err := c.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("accepting invitation %d: %w", invitationID, err)
	}
	return nil
}

// DeclineInvitation declines a pending team invitation.
func (c *Client) DeclineInvitation(ctx context.Context, invitationID int64) error {
	path := fmt.Sprintf("/api/invitations/%d/decline", invitationID)
	if err := c.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("declining invitation %d: %w", invitationID, err)
	}
	return nil
}
