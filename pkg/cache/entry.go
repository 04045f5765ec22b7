package cache

import (
	"time"
)

// Entry is a cached API response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode of the cached response
	StatusCode int `json:"status_code"`

	ContentType string `json:"content_type"`

	// Expires is when the entry stops being served
	Expires time.Time `json:"expires"`

	// CachedAt is when the response was stored
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for body that expires after ttl.
func NewEntry(body []byte, statusCode int, contentType string, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Data:        body,
		StatusCode:  statusCode,
		ContentType: contentType,
		Expires:     now.Add(ttl),
		CachedAt:    now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return e.expiredAt(time.Now())
}

func (e *Entry) expiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
