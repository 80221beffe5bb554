package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the source category a notification key was derived from.
type Kind string

const (
	KindFeedback   Kind = "fb"
	KindDeadline   Kind = "dl"
	KindEvent      Kind = "ev"
	KindInvitation Kind = "inv"
	KindCommit     Kind = "ci"
	KindSystem     Kind = "sys"
)

// Key is the typed composite identifier of a notification. It is
// derived deterministically from the source kind, the owning project,
// and the source record id, so re-fetching the same underlying record
// always yields the same key.
type Key struct {
	Kind      Kind
	ProjectID int64
	RecordID  string
}

// String serializes the key as "kind:project:record". This is the only
// place a notification id string is constructed.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Kind, k.ProjectID, k.RecordID)
}

// ParseKey parses a serialized key back into its components.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed notification key %q", s)
	}

	switch Kind(parts[0]) {
	case KindFeedback, KindDeadline, KindEvent, KindInvitation, KindCommit, KindSystem:
	default:
		return Key{}, fmt.Errorf("unknown notification kind %q", parts[0])
	}

	projectID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("parsing project id in key %q: %w", s, err)
	}
	if parts[2] == "" {
		return Key{}, fmt.Errorf("empty record id in key %q", s)
	}

	return Key{Kind: Kind(parts[0]), ProjectID: projectID, RecordID: parts[2]}, nil
}

// ContentHash returns a short stable hash of the given text, used as
// the record id for source records that carry no id of their own
// (deadlines are identified by their title).
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}
