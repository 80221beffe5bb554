package email

import (
	"context"
	"fmt"
	"time"

	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/source"
)

// defaultSince bounds the mailbox search when the scope carries no
// window of its own.
const defaultSince = 7 * 24 * time.Hour

// Adapter implements source.Collector for the platform announcement
// mailbox. Announcements become project-independent system records.
type Adapter struct {
	client *IMAPClient
}

// NewAdapter creates an email announcement collector.
func NewAdapter(host, port, username, password string, tls bool) *Adapter {
	return &Adapter{
		client: NewIMAPClient(host, port, username, password, tls),
	}
}

// Type returns the collector category identifier.
func (a *Adapter) Type() source.CollectorType {
	return source.CollectorEmail
}

// ProjectScoped reports that announcements are not tied to a project.
func (a *Adapter) ProjectScoped() bool {
	return false
}

// Collect fetches recent announcements and maps them to system records.
func (a *Adapter) Collect(
	ctx context.Context, scope source.Scope,
) ([]source.Record, error) {
	since := scope.From
	if since.IsZero() {
		since = time.Now().Add(-defaultSince)
	}

	announcements, err := a.client.FetchAnnouncements(ctx, since, scope.Limit)
	if err != nil {
		return nil, fmt.Errorf("collecting announcements: %w", err)
	}

	records := make([]source.Record, 0, len(announcements))
	for _, ann := range announcements {
		// Message-IDs contain characters that do not survive key
		// serialization, so the record id is a content hash of it.
		recordID := model.ContentHash(ann.MessageID)
		if ann.MessageID == "" {
			recordID = model.ContentHash(ann.Subject + ann.Date.UTC().Format(time.RFC3339))
		}

		records = append(records, source.Record{
			Kind:       source.RecordSystem,
			RecordID:   recordID,
			Title:      ann.Subject,
			Body:       ann.Snippet,
			Author:     ann.From,
			OccurredAt: ann.Date,
		})
	}

	return records, nil
}
