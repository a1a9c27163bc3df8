package session

import (
	"character-companion/backend/internal/models"
)

// Log is the append-only ordered message sequence owned by the store.
// Entries are never reordered; the only in-place mutation allowed is filling
// the trailing assistant placeholder.
type Log struct {
	entries []models.Message
}

// Append adds a message to the end of the log.
func (l *Log) Append(msg models.Message) {
	l.entries = append(l.entries, msg)
}

// Replace swaps the whole log for a rehydrated history.
func (l *Log) Replace(msgs []models.Message) {
	l.entries = append([]models.Message(nil), msgs...)
}

// Clear discards all entries.
func (l *Log) Clear() {
	l.entries = nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Messages returns a copy of the log in conversation order.
func (l *Log) Messages() []models.Message {
	out := make([]models.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// PendingCount returns how many entries are placeholders. The store's
// invariant keeps this at 0 or 1.
func (l *Log) PendingCount() int {
	n := 0
	for _, m := range l.entries {
		if m.IsPending() {
			n++
		}
	}
	return n
}

// DropTrailingPlaceholder removes the trailing placeholder if one exists,
// reporting whether an entry was removed.
func (l *Log) DropTrailingPlaceholder() bool {
	if len(l.entries) == 0 || !l.entries[len(l.entries)-1].IsPending() {
		return false
	}
	l.entries = l.entries[:len(l.entries)-1]
	return true
}

// FillTrailingPlaceholder resolves the trailing placeholder with the
// server-confirmed message. When the server kept the optimistic id the entry
// is filled in place; otherwise the placeholder is swapped for the confirmed
// message at the same position. Returns false when no trailing placeholder
// exists.
func (l *Log) FillTrailingPlaceholder(confirmed models.Message) bool {
	if len(l.entries) == 0 {
		return false
	}
	last := &l.entries[len(l.entries)-1]
	if !last.IsPending() {
		return false
	}
	if confirmed.ExternalID == "" || confirmed.ExternalID == last.ExternalID {
		last.Content = confirmed.Content
		if !confirmed.CreatedAt.IsZero() {
			last.CreatedAt = confirmed.CreatedAt
		}
		return true
	}
	*last = confirmed
	return true
}
