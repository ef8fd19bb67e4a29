package interactions

import (
	"context"
	"fmt"
	"sync"

	"github.com/spigell/job-recommender/internal/corpus"
)

// MemoryLog is an in-memory Log, used for file-provided interaction dumps.
type MemoryLog struct {
	mu    sync.RWMutex
	items []Interaction
}

func NewMemoryLog(items ...Interaction) *MemoryLog {
	return &MemoryLog{items: append([]Interaction(nil), items...)}
}

// LoadFile reads interactions from a JSON array or JSON-lines file.
func LoadFile(path string) (*MemoryLog, error) {
	records, err := corpus.ReadRecordsFile(path)
	if err != nil {
		return nil, err
	}

	log := NewMemoryLog()
	for idx, record := range records {
		event, err := ParseEvent(fmt.Sprint(record["event"]))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", idx, err)
		}
		at, _ := corpus.TimeFrom(record["at"])
		log.items = append(log.items, Interaction{
			UserID: fmt.Sprint(record["user_id"]),
			JobID:  fmt.Sprint(record["job_id"]),
			Event:  event,
			At:     at,
		})
	}
	return log, nil
}

func (l *MemoryLog) Append(_ context.Context, in Interaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, in)
	return nil
}

func (l *MemoryLog) All(_ context.Context) ([]Interaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Interaction(nil), l.items...), nil
}

func (l *MemoryLog) ByUser(_ context.Context, userID string) ([]Interaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Interaction
	for _, in := range l.items {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out, nil
}
