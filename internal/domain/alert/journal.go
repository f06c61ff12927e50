package alert

import (
	"sync"

	"github.com/okian/goalpulse/internal/domain/model"
)

const defaultJournalSize = 200

// Journal keeps the most recent emitted alerts in a bounded ring.
type Journal struct {
	mu   sync.RWMutex
	buf  []model.Alert
	next int
	size int
}

// NewJournal creates a journal holding up to capacity alerts.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = defaultJournalSize
	}
	return &Journal{buf: make([]model.Alert, capacity)}
}

// Add records a, evicting the oldest alert when full.
func (j *Journal) Add(a model.Alert) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf[j.next] = a
	j.next = (j.next + 1) % len(j.buf)
	if j.size < len(j.buf) {
		j.size++
	}
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) []model.Alert {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if limit <= 0 || limit > j.size {
		limit = j.size
	}
	out := make([]model.Alert, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, j.buf[(j.next-i+len(j.buf))%len(j.buf)])
	}
	return out
}

// Len returns the number of stored alerts.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}
