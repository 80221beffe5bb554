package backend

import "time"

// Wire DTOs for the platform REST API. Each endpoint has exactly one
// schema and one decode function; shape drift is absorbed there, never
// at a call site.

// ErrorResponse is the backend's JSON error body.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// refreshRequest and refreshResponse are the token refresh exchange.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// projectDTO is one entry of the project membership list.
type projectDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// projectEnvelope covers the wrapper shapes the project list endpoint
// has shipped over time. Exactly one of the fields is populated.
type projectEnvelope struct {
	Items   []projectDTO `json:"items"`
	Content []projectDTO `json:"content"`
	Data    []projectDTO `json:"data"`
}

// feedbackDTO is one recent feedback entry for a project.
type feedbackDTO struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// deadlineDTO is one upcoming or overdue task deadline. Deadlines
// carry no id of their own.
type deadlineDTO struct {
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
}

// eventDTO is one calendar event. Older backends split the start
// moment into date + time; newer ones send startAt.
type eventDTO struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	StartAt string `json:"startAt"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

// invitationDTO is one pending team invitation addressed to the user.
type invitationDTO struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"projectId"`
	ProjectName string `json:"projectName"`
	Inviter     string `json:"inviter"`
	CreatedAt   string `json:"createdAt"`
}

// commitDTO is one recent repository commit on a project.
type commitDTO struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	Author      string `json:"author"`
	CommittedAt string `json:"committedAt"`
}

// Normalized entities returned by this package.

// Feedback is a recent feedback entry.
type Feedback struct {
	ID        int64
	Author    string
	Content   string
	CreatedAt time.Time
}

// Deadline is an upcoming or overdue task deadline.
type Deadline struct {
	Title string
	DueAt time.Time
}

// Event is a calendar event within a requested window.
type Event struct {
	ID      int64
	Title   string
	StartAt time.Time
}

// Invitation is a pending team invitation.
type Invitation struct {
	ID          int64
	ProjectID   int64
	ProjectName string
	Inviter     string
	CreatedAt   time.Time
}

// Commit is a recent repository commit.
type Commit struct {
	SHA         string
	Message     string
	Author      string
	CommittedAt time.Time
}
