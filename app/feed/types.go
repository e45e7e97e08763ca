package feed

import "time"

// Entry is one item read from an external feed, in feed-native order
// (newest first for virtually all RSS/Atom feeds).
type Entry struct {
	GUID        string
	Title       string
	Body        string
	Link        string
	Media       []string
	PublishedAt time.Time
}

// HasMedia reports whether the entry carries at least one media reference.
func (e Entry) HasMedia() bool {
	return len(e.Media) > 0
}
