package email

import "time"

// Announcement is a platform announcement message pulled from the
// configured IMAP mailbox.
type Announcement struct {
	// MessageID is the RFC 5322 Message-ID header, used for stable
	// notification identity.
	MessageID string

	// Subject is the announcement subject line.
	Subject string

	// From is the sender display name, or address when no name is set.
	From string

	// Date is when the announcement was sent.
	Date time.Time

	// Snippet is the beginning of the plain-text body.
	Snippet string
}
