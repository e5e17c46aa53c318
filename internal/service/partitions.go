package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/keylock"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

const (
	maxDescriptionLen  = 1000
	suggestedCount     = 5
	defaultConvoLimit  = 50
	maxConvoLimit      = 500
	maxMetadataEntries = 16
	maxMetadataKeyLen  = 64
	maxMetadataValue   = 256
	maxReplyLen        = 2000
	maxLinkedIDs       = 100
)

// NewActivity is the input to AppendActivity.
type NewActivity struct {
	Description string
	Category    string
	// Timestamp defaults to now when zero.
	Timestamp time.Time
	Source    model.ActivitySource
	Metadata  map[string]string
}

// Partitions is the only path to partition data. Every operation is keyed
// by the verified identity; writes to one partition are serialised.
type Partitions struct {
	store  model.PartitionStore
	locks  *keylock.Locker
	policy *CategoryPolicy
	clock  clock.Clock
	logger *logger.Logger
}

func NewPartitions(store model.PartitionStore, policy *CategoryPolicy, clk clock.Clock, logger *logger.Logger) *Partitions {
	return &Partitions{
		store:  store,
		locks:  keylock.New(),
		policy: policy,
		clock:  clk,
		logger: logger,
	}
}

// Policy returns the category policy in use.
func (s *Partitions) Policy() *CategoryPolicy {
	return s.policy
}

// Read returns a snapshot of the caller's partition.
func (s *Partitions) Read(ctx context.Context, id model.Identity) (model.Partition, error) {
	if id.IsZero() {
		return model.Partition{}, model.ErrUnauthorized
	}
	p, err := s.store.Load(ctx, id.UserID)
	if err != nil {
		s.logger.Error("Partitions: failed to load partition",
			"username", id.UserID,
			"error", err.Error())
		return model.Partition{}, fmt.Errorf("failed to read partition: %w", err)
	}
	return p, nil
}

// Write applies mutate to the caller's partition and persists the result
// before returning. If mutate fails nothing is written.
func (s *Partitions) Write(ctx context.Context, id model.Identity, mutate func(p *model.Partition) error) (model.Partition, error) {
	if id.IsZero() {
		return model.Partition{}, model.ErrUnauthorized
	}

	unlock := s.locks.Lock(id.UserID)
	defer unlock()

	p, err := s.store.Load(ctx, id.UserID)
	if err != nil {
		s.logger.Error("Partitions: failed to load partition",
			"username", id.UserID,
			"error", err.Error())
		return model.Partition{}, fmt.Errorf("failed to read partition: %w", err)
	}

	if err := mutate(&p); err != nil {
		return model.Partition{}, err
	}

	p.Owner = id.UserID
	p.Revision++
	p.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.Save(ctx, p); err != nil {
		s.logger.Error("Partitions: failed to save partition",
			"username", id.UserID,
			"revision", p.Revision,
			"error", err.Error())
		return model.Partition{}, fmt.Errorf("failed to write partition: %w", err)
	}
	return p, nil
}

// AppendActivity records an activity and updates the tally in one write.
func (s *Partitions) AppendActivity(ctx context.Context, id model.Identity, in NewActivity) (model.Activity, error) {
	activity, err := s.prepare(in)
	if err != nil {
		return model.Activity{}, err
	}

	_, err = s.Write(ctx, id, func(p *model.Partition) error {
		category, err := s.policy.Resolve(p, in.Category)
		if err != nil {
			return err
		}
		activity.Category = category
		p.AddActivity(activity)
		return nil
	})
	if err != nil {
		return model.Activity{}, err
	}

	s.logger.Info("Partitions: activity recorded",
		"username", id.UserID,
		"activity_id", activity.ID,
		"category", activity.Category)
	return activity, nil
}

// RemoveActivity deletes one activity.
func (s *Partitions) RemoveActivity(ctx context.Context, id model.Identity, activityID uuid.UUID) error {
	_, err := s.Write(ctx, id, func(p *model.Partition) error {
		if _, ok := p.RemoveActivity(activityID); !ok {
			return model.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Partitions: activity removed",
		"username", id.UserID,
		"activity_id", activityID)
	return nil
}

// ListActivities returns matching activities ordered by timestamp.
func (s *Partitions) ListActivities(ctx context.Context, id model.Identity, filter model.ActivityFilter) ([]model.Activity, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, fmt.Errorf("%w: from must be before to", model.ErrValidation)
	}

	p, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]model.Activity, 0, len(p.Activities))
	for _, a := range p.Activities {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// CategorySummary returns the caller's category tally.
func (s *Partitions) CategorySummary(ctx context.Context, id model.Identity) (map[string]int, error) {
	p, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(p.Categories))
	for k, v := range p.Categories {
		out[k] = v
	}
	return out, nil
}

// Categories lists known categories, usage stats and suggestions.
func (s *Partitions) Categories(ctx context.Context, id model.Identity) (model.CategoryOverview, error) {
	p, err := s.Read(ctx, id)
	if err != nil {
		return model.CategoryOverview{}, err
	}

	stats := make(map[string]int, len(p.Categories))
	for k, v := range p.Categories {
		stats[k] = v
	}
	return model.CategoryOverview{
		Known:     s.policy.Known(&p),
		Stats:     stats,
		Suggested: model.TopCategories(p.Categories, suggestedCount),
	}, nil
}

// AppendConversation stores a conversation entry recorded outside the
// logbook. Every referenced activity must exist in the caller's partition.
func (s *Partitions) AppendConversation(ctx context.Context, id model.Identity, c model.Conversation) (model.Conversation, error) {
	if strings.TrimSpace(c.Input) == "" {
		return model.Conversation{}, fmt.Errorf("%w: input is required", model.ErrValidation)
	}
	if len(c.Input) > maxDescriptionLen {
		return model.Conversation{}, fmt.Errorf("%w: input is too long", model.ErrValidation)
	}
	if len(c.Reply) > maxReplyLen {
		return model.Conversation{}, fmt.Errorf("%w: reply is too long", model.ErrValidation)
	}
	if len(c.ActivityIDs) > maxLinkedIDs {
		return model.Conversation{}, fmt.Errorf("%w: at most %d linked activities", model.ErrValidation, maxLinkedIDs)
	}
	switch c.Kind {
	case "":
		c.Kind = model.ActivitySourceText
	case model.ActivitySourceText, model.ActivitySourceVoice:
	default:
		return model.Conversation{}, fmt.Errorf("%w: unknown kind %q", model.ErrValidation, c.Kind)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.clock.Now()
	}
	c.Timestamp = c.Timestamp.UTC()
	if c.ActivityIDs == nil {
		c.ActivityIDs = []uuid.UUID{}
	}

	_, err := s.Write(ctx, id, func(p *model.Partition) error {
		for _, aid := range c.ActivityIDs {
			if !hasActivity(p, aid) {
				return fmt.Errorf("activity %s: %w", aid, model.ErrNotFound)
			}
		}
		p.Conversations = append(p.Conversations, c)
		return nil
	})
	if err != nil {
		return model.Conversation{}, err
	}

	s.logger.Info("Partitions: conversation recorded",
		"username", id.UserID,
		"conversation_id", c.ID,
		"activities", len(c.ActivityIDs))

	return c, nil
}

// Conversations returns the latest limit entries, newest first.
func (s *Partitions) Conversations(ctx context.Context, id model.Identity, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = defaultConvoLimit
	}
	if limit > maxConvoLimit {
		limit = maxConvoLimit
	}

	p, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	n := len(p.Conversations)
	if limit > n {
		limit = n
	}
	out := make([]model.Conversation, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, p.Conversations[i])
	}
	return out, nil
}

// prepare validates input and fills defaults. The category is resolved
// later, under the partition lock.
func (s *Partitions) prepare(in NewActivity) (model.Activity, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return model.Activity{}, fmt.Errorf("%w: description is required", model.ErrValidation)
	}
	if len(description) > maxDescriptionLen {
		return model.Activity{}, fmt.Errorf("%w: description is too long", model.ErrValidation)
	}
	if len(in.Metadata) > maxMetadataEntries {
		return model.Activity{}, fmt.Errorf("%w: too many metadata entries", model.ErrValidation)
	}
	for k, v := range in.Metadata {
		if k == "" || len(k) > maxMetadataKeyLen {
			return model.Activity{}, fmt.Errorf("%w: metadata keys must be 1-%d bytes", model.ErrValidation, maxMetadataKeyLen)
		}
		if len(v) > maxMetadataValue {
			return model.Activity{}, fmt.Errorf("%w: metadata value for %q is too long", model.ErrValidation, k)
		}
	}

	source := in.Source
	switch source {
	case "":
		source = model.ActivitySourceText
	case model.ActivitySourceText, model.ActivitySourceVoice:
	default:
		return model.Activity{}, fmt.Errorf("%w: unknown source %q", model.ErrValidation, source)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.clock.Now()
	}

	return model.Activity{
		ID:          uuid.New(),
		Timestamp:   ts.UTC(),
		Description: description,
		Source:      source,
		Metadata:    in.Metadata,
	}, nil
}

func hasActivity(p *model.Partition, id uuid.UUID) bool {
	for _, a := range p.Activities {
		if a.ID == id {
			return true
		}
	}
	return false
}
