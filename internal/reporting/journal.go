package reporting

import (
	"sync"

	"netlens/internal/models"
)

// Journal keeps the most recent analyses in memory.
type Journal struct {
	mu       sync.Mutex
	entries  []models.Analysis
	max      int
	total    int
	failures int
}

// NewJournal keeps at most max entries; max <= 0 means 50.
func NewJournal(max int) *Journal {
	if max <= 0 {
		max = 50
	}
	return &Journal{max: max}
}

// Record appends an analysis, dropping the oldest beyond the bound.
func (j *Journal) Record(a models.Analysis) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.total++
	if a.Failed() {
		j.failures++
	}
	j.entries = append(j.entries, a)
	if len(j.entries) > j.max {
		j.entries = j.entries[len(j.entries)-j.max:]
	}
}

// Recent returns up to limit entries, newest last.
func (j *Journal) Recent(limit int) []models.Analysis {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := 0
	if limit >= 0 && len(j.entries) > limit {
		start = len(j.entries) - limit
	}
	out := make([]models.Analysis, len(j.entries)-start)
	copy(out, j.entries[start:])
	return out
}

// Counts returns how many analyses were recorded and how many failed.
func (j *Journal) Counts() (total, failures int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.total, j.failures
}
