package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ltran/capstone-notify/internal/model"
)

// parseTime parses a backend timestamp string. The backend nominally
// sends RFC 3339, but older records appear in a handful of close
// variants. Unparsable input uniformly becomes the zero time, which
// sorts after everything else; this is the single sentinel policy for
// the whole program.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// formatDate renders a date as YYYY-MM-DD for range query parameters.
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// decodeProjectList normalizes the project membership response. The
// endpoint has shipped a bare array and several wrapper shapes over
// time; this is the only place the variance is handled.
func decodeProjectList(data []byte) ([]model.Project, error) {
	var plain []projectDTO
	if err := json.Unmarshal(data, &plain); err == nil {
		return projectsFromDTOs(plain), nil
	}

	var envelope projectEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling project list: %w", err)
	}

	switch {
	case envelope.Items != nil:
		return projectsFromDTOs(envelope.Items), nil
	case envelope.Content != nil:
		return projectsFromDTOs(envelope.Content), nil
	case envelope.Data != nil:
		return projectsFromDTOs(envelope.Data), nil
	}

	return nil, fmt.Errorf("project list response has no recognized shape")
}

func projectsFromDTOs(dtos []projectDTO) []model.Project {
	projects := make([]model.Project, 0, len(dtos))
	for _, d := range dtos {
		projects = append(projects, model.Project{ID: d.ID, Name: d.Name})
	}
	return projects
}

// decodeFeedbackList normalizes the feedback listing response.
func decodeFeedbackList(dtos []feedbackDTO) []Feedback {
	items := make([]Feedback, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, Feedback{
			ID:        d.ID,
			Author:    d.Author,
			Content:   d.Content,
			CreatedAt: parseTime(d.CreatedAt),
		})
	}
	return items
}

// decodeDeadlineList normalizes the deadline listing response.
func decodeDeadlineList(dtos []deadlineDTO) []Deadline {
	items := make([]Deadline, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, Deadline{
			Title: d.Title,
			DueAt: parseTime(d.DueDate),
		})
	}
	return items
}

// decodeEventList normalizes the event listing response, accepting
// both the combined startAt field and the legacy date + time split.
func decodeEventList(dtos []eventDTO) []Event {
	items := make([]Event, 0, len(dtos))
	for _, d := range dtos {
		start := d.StartAt
		if start == "" && d.Date != "" {
			start = d.Date
			if d.Time != "" {
				start = d.Date + "T" + d.Time
			}
		}
		items = append(items, Event{
			ID:      d.ID,
			Title:   d.Title,
			StartAt: parseTime(start),
		})
	}
	return items
}

// decodeInvitationList normalizes the invitation listing response.
func decodeInvitationList(dtos []invitationDTO) []Invitation {
	items := make([]Invitation, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, Invitation{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ProjectName: d.ProjectName,
			Inviter:     d.Inviter,
			CreatedAt:   parseTime(d.CreatedAt),
		})
	}
	return items
}

// decodeCommitList normalizes the recent-commit listing response.
func decodeCommitList(dtos []commitDTO) []Commit {
	items := make([]Commit, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, Commit{
			SHA:         d.SHA,
			Message:     d.Message,
			Author:      d.Author,
			CommittedAt: parseTime(d.CommittedAt),
		})
	}
	return items
}
