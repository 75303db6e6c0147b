package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is how long a created link stays in the local list.
const DefaultTTL = 10 * time.Minute

// LinkRecord is one short link created from this client. Records are
// immutable once built.
type LinkRecord struct {
	ShortID     string    `json:"shortId"`
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewLinkRecord builds a record for shortID issued at now, expiring after ttl.
func NewLinkRecord(shortID, originalURL, publicURL string, now time.Time, ttl time.Duration) (LinkRecord, error) {
	if shortID == "" {
		return LinkRecord{}, fmt.Errorf("link record: empty short id")
	}
	if ttl <= 0 {
		return LinkRecord{}, fmt.Errorf("link record: ttl must be positive, got %s", ttl)
	}
	// Drop the monotonic reading so the record survives a JSON round trip unchanged.
	now = now.Round(0)
	return LinkRecord{
		ShortID:     shortID,
		ShortURL:    ShortURL(publicURL, shortID),
		OriginalURL: originalURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// ShortURL derives the public short link for id.
func ShortURL(publicURL, id string) string {
	return strings.TrimRight(publicURL, "/") + "/short/" + id
}

// Live reports whether the record may still be shown at now.
func (r LinkRecord) Live(now time.Time) bool {
	return !now.After(r.ExpiresAt)
}

// Valid reports whether the record honours expiresAt > createdAt.
func (r LinkRecord) Valid() bool {
	return r.ShortID != "" && r.ExpiresAt.After(r.CreatedAt)
}

// Remaining returns the time left before expiry, never negative.
func (r LinkRecord) Remaining(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
