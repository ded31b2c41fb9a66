package cache

import (
	"time"
)

// Entry is one cached description.
type Entry struct {
	// Text is the generated description.
	Text string `json:"text"`

	// Backend is the model backend that produced the text.
	Backend string `json:"backend"`

	// CachedAt is when the description was stored.
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
