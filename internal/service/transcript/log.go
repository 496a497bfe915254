// Package transcript keeps the question and answer history of an interview
// and renders it as a PDF document.
package transcript

import (
	"sync"

	"ai-interview-capture-service/internal/models"
)

// Log is the append-only interview history. Append order is the only order.
type Log struct {
	mu      sync.RWMutex
	entries []models.TranscriptEntry
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry at the end of the log.
func (l *Log) Append(role models.Role, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, models.TranscriptEntry{Role: role, Text: text})
}

// Entries returns a copy of the log.
func (l *Log) Entries() []models.TranscriptEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.TranscriptEntry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
