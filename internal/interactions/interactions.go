// Package interactions records which postings users viewed or clicked. The
// log is append-only; the evaluation harness derives ground truth and
// popularity from it.
package interactions

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Event string

const (
	EventView  Event = "view"
	EventClick Event = "click"
)

func ParseEvent(s string) (Event, error) {
	switch Event(strings.ToLower(strings.TrimSpace(s))) {
	case EventView:
		return EventView, nil
	case EventClick:
		return EventClick, nil
	default:
		return "", fmt.Errorf("unknown interaction event %q", s)
	}
}

type Interaction struct {
	UserID string    `json:"user_id"`
	JobID  string    `json:"job_id"`
	Event  Event     `json:"event"`
	At     time.Time `json:"at"`
}

// Log is an append-only interaction store.
type Log interface {
	Append(ctx context.Context, in Interaction) error
	All(ctx context.Context) ([]Interaction, error)
	ByUser(ctx context.Context, userID string) ([]Interaction, error)
}

// Popularity returns, per job, the number of distinct users who interacted
// with it divided by the maximum over all jobs. Jobs nobody touched are absent.
func Popularity(all []Interaction) map[string]float64 {
	users := make(map[string]map[string]struct{})
	for _, in := range all {
		set, ok := users[in.JobID]
		if !ok {
			set = make(map[string]struct{})
			users[in.JobID] = set
		}
		set[in.UserID] = struct{}{}
	}

	maxCount := 0
	for _, set := range users {
		maxCount = max(maxCount, len(set))
	}

	out := make(map[string]float64, len(users))
	if maxCount == 0 {
		return out
	}
	for job, set := range users {
		out[job] = float64(len(set)) / float64(maxCount)
	}
	return out
}

// Relevant returns the jobs a user engaged with. Clicks always count; views
// count only when includeViews is set.
func Relevant(all []Interaction, userID string, includeViews bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range all {
		if in.UserID != userID {
			continue
		}
		if in.Event != EventClick && !includeViews {
			continue
		}
		if _, ok := seen[in.JobID]; ok {
			continue
		}
		seen[in.JobID] = struct{}{}
		out = append(out, in.JobID)
	}
	return out
}
