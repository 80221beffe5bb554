package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/ltran/capstone-notify/internal/source"
)

// snippetLength caps how much of an announcement body is kept.
const snippetLength = 280

// IMAPClient wraps go-imap v2 for reading the platform announcement mailbox.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(host, port, username, password string, tls bool) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			Collector: source.CollectorEmail,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", c.username, err,
			),
		}
	}

	return client, nil
}

// FetchAnnouncements connects to IMAP, selects INBOX, and returns the
// most recent messages received since the given time, newest last,
// capped at limit.
func (c *IMAPClient) FetchAnnouncements(
	ctx context.Context, since time.Time, limit int,
) ([]Announcement, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := &imap.SearchCriteria{
		Since: since,
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Take the most recent UIDs.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var announcements []Announcement
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		ann := announcementFromBuffer(buf, bodySection)
		announcements = append(announcements, ann)
	}

	if err := fetchCmd.Close(); err != nil {
		return announcements, fmt.Errorf("fetching announcements: %w", err)
	}

	return announcements, nil
}

// announcementFromBuffer extracts an Announcement from a fetched message.
func announcementFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	bodySection *imap.FetchItemBodySection,
) Announcement {
	var ann Announcement

	if buf.Envelope != nil {
		ann.MessageID = buf.Envelope.MessageID
		ann.Subject = buf.Envelope.Subject
		ann.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				ann.From = from.Name
			} else {
				ann.From = from.Addr()
			}
		}
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		ann.Snippet = bodySnippet(raw)
	}

	return ann
}

// bodySnippet parses a raw RFC 2822 message using go-message and
// returns the beginning of the text/plain body.
func bodySnippet(raw []byte) string {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return truncate(strings.TrimSpace(string(raw)))
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		return truncate(strings.TrimSpace(string(body)))
	}

	return ""
}

// truncate cuts a snippet to snippetLength runes.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLength {
		return s
	}
	return string(runes[:snippetLength]) + "…"
}
