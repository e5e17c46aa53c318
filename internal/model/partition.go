package model

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PartitionStore persists one partition per user.
type PartitionStore interface {
	Load(ctx context.Context, userID string) (Partition, error)
	Save(ctx context.Context, partition Partition) error
}

// ActivitySource records how an activity was captured.
type ActivitySource string

const (
	ActivitySourceText  ActivitySource = "text"
	ActivitySourceVoice ActivitySource = "voice"
)

// Activity is a single logged activity.
type Activity struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Source      ActivitySource    `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Conversation is one exchange with the assistant that produced activities.
type Conversation struct {
	ID          uuid.UUID      `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Kind        ActivitySource `json:"kind"`
	Input       string         `json:"input"`
	Reply       string         `json:"reply,omitempty"`
	ActivityIDs []uuid.UUID    `json:"activity_ids"`
	Degraded    bool           `json:"degraded,omitempty"`
}

// Partition is the exclusive data owned by one user.
type Partition struct {
	Owner            string         `json:"owner"`
	Revision         uint64         `json:"revision"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Activities       []Activity     `json:"activities"`
	Categories       map[string]int `json:"categories"`
	CustomCategories []string       `json:"custom_categories,omitempty"`
	Conversations    []Conversation `json:"conversations"`
}

// NewPartition returns an empty partition for owner.
func NewPartition(owner string) Partition {
	return Partition{
		Owner:         owner,
		Activities:    []Activity{},
		Categories:    map[string]int{},
		Conversations: []Conversation{},
	}
}

// AddActivity appends an activity and bumps its category tally.
func (p *Partition) AddActivity(a Activity) {
	if p.Categories == nil {
		p.Categories = map[string]int{}
	}
	p.Activities = append(p.Activities, a)
	p.Categories[a.Category]++
}

// RemoveActivity deletes an activity and decrements its tally.
func (p *Partition) RemoveActivity(id uuid.UUID) (Activity, bool) {
	for i, a := range p.Activities {
		if a.ID != id {
			continue
		}
		p.Activities = append(p.Activities[:i], p.Activities[i+1:]...)
		if p.Categories[a.Category] <= 1 {
			delete(p.Categories, a.Category)
		} else {
			p.Categories[a.Category]--
		}
		return a, true
	}
	return Activity{}, false
}

// HasCustomCategory reports whether name was auto-created in this partition.
func (p *Partition) HasCustomCategory(name string) (string, bool) {
	for _, c := range p.CustomCategories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// ActivityFilter narrows ListActivities. Zero values match everything; From
// is inclusive, To is exclusive.
type ActivityFilter struct {
	Category string
	From     time.Time
	To       time.Time
}

// Match reports whether a satisfies the filter.
func (f ActivityFilter) Match(a Activity) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, a.Category) {
		return false
	}
	if !f.From.IsZero() && a.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.Timestamp.Before(f.To) {
		return false
	}
	return true
}

// CategoryCount pairs a category with its tally.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CategoryOverview is returned by the categories endpoint.
type CategoryOverview struct {
	Known     []string        `json:"known"`
	Stats     map[string]int  `json:"stats"`
	Suggested []CategoryCount `json:"suggested"`
}

// TopCategories orders tallies by count desc, then name, and keeps n.
func TopCategories(tally map[string]int, n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(tally))
	for name, count := range tally {
		out = append(out, CategoryCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
