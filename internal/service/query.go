package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chaisthra/vibetrack/internal/model"
)

const (
	maxRecentActivities = 10
	maxQueryListItems   = 10
)

const queryPrompt = `You are an activity tracking assistant. Answer the user's question using only the activity log below.
Timeframe: %s. Category filter: %s. Total activities: %d.
Category counts: %s

Recent activities (newest first):
%s

Question: %s

Respond with a JSON object {"answer": "<answer>", "relevant_activities": ["<description>"], "suggestions": ["<suggestion>"], "metrics": {"<name>": "<value>"}} and nothing else.`

// LogQuery is a natural-language question about the caller's own log.
type LogQuery struct {
	Question  string
	Timeframe string
	Category  string
}

// QueryResult answers a LogQuery. Stats and Recent are computed locally and
// are always present; the remaining fields come from the completer.
type QueryResult struct {
	Answer             string            `json:"answer"`
	RelevantActivities []string          `json:"relevant_activities"`
	Suggestions        []string          `json:"suggestions"`
	Metrics            map[string]string `json:"metrics"`

	Timeframe     model.Timeframe  `json:"timeframe"`
	Category      string           `json:"category,omitempty"`
	From          *time.Time       `json:"from,omitempty"`
	To            *time.Time       `json:"to,omitempty"`
	Total         int              `json:"total"`
	CategoryStats map[string]int   `json:"category_stats"`
	Recent        []model.Activity `json:"recent_activities"`

	Degraded bool `json:"degraded"`
}

// Query answers a question about the caller's activities within a timeframe
// preset. Only the caller's partition is consulted. When the completer fails
// the result degrades to a summary of the local stats.
func (l *Logbook) Query(ctx context.Context, id model.Identity, q LogQuery) (QueryResult, error) {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return QueryResult{}, fmt.Errorf("%w: query is required", model.ErrValidation)
	}
	if len(question) > maxDescriptionLen {
		return QueryResult{}, fmt.Errorf("%w: query is too long", model.ErrValidation)
	}
	tf, err := model.ParseTimeframe(q.Timeframe)
	if err != nil {
		return QueryResult{}, err
	}

	filter := model.ActivityFilter{Category: strings.TrimSpace(q.Category)}
	filter.From, filter.To = tf.Window(l.partitions.clock.Now())

	activities, err := l.partitions.ListActivities(ctx, id, filter)
	if err != nil {
		return QueryResult{}, err
	}

	res := QueryResult{
		RelevantActivities: []string{},
		Suggestions:        []string{},
		Metrics:            map[string]string{},
		Timeframe:          tf,
		Category:           filter.Category,
		Total:              len(activities),
		CategoryStats:      map[string]int{},
		Recent:             make([]model.Activity, 0, maxRecentActivities),
	}
	if !filter.From.IsZero() {
		res.From = &filter.From
	}
	if !filter.To.IsZero() {
		res.To = &filter.To
	}
	for _, a := range activities {
		res.CategoryStats[a.Category]++
	}
	// ListActivities is oldest first.
	for i := len(activities) - 1; i >= 0 && len(res.Recent) < maxRecentActivities; i-- {
		res.Recent = append(res.Recent, activities[i])
	}

	if err := l.answer(ctx, question, &res); err != nil {
		l.logger.Warn("Logbook: query answer unavailable, using stats",
			"username", id.UserID,
			"error", err.Error())
		res.Answer = statsAnswer(res)
		res.Degraded = true
	}

	l.logger.Info("Logbook: query answered",
		"username", id.UserID,
		"timeframe", tf,
		"total", res.Total,
		"degraded", res.Degraded)

	return res, nil
}

func (l *Logbook) answer(ctx context.Context, question string, res *QueryResult) error {
	category := res.Category
	if category == "" {
		category = "none"
	}
	counts := make([]string, 0, len(res.CategoryStats))
	for _, c := range model.TopCategories(res.CategoryStats, len(res.CategoryStats)) {
		counts = append(counts, fmt.Sprintf("%s=%d", c.Name, c.Count))
	}
	recent := make([]string, 0, len(res.Recent))
	for _, a := range res.Recent {
		recent = append(recent, fmt.Sprintf("- %s [%s] %s", a.Timestamp.Format(time.RFC3339), a.Category, a.Description))
	}

	reply, err := l.completer.Complete(ctx, fmt.Sprintf(queryPrompt,
		res.Timeframe, category, res.Total, strings.Join(counts, ", "), strings.Join(recent, "\n"), question))
	if err != nil {
		if !errors.Is(err, model.ErrUpstream) && !errors.Is(err, model.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		return err
	}

	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.Trim(reply, "`\n ")
	if !gjson.Valid(reply) {
		return fmt.Errorf("%w: query reply is not JSON", model.ErrUpstream)
	}

	parsed := gjson.Parse(reply)
	answer := strings.TrimSpace(parsed.Get("answer").String())
	if answer == "" {
		return fmt.Errorf("%w: query reply has no answer", model.ErrUpstream)
	}
	res.Answer = truncate(answer, maxReplyLen)
	res.RelevantActivities = stringList(parsed.Get("relevant_activities"))
	res.Suggestions = stringList(parsed.Get("suggestions"))
	parsed.Get("metrics").ForEach(func(key, value gjson.Result) bool {
		if len(res.Metrics) >= maxMetadataEntries {
			return false
		}
		res.Metrics[truncate(key.String(), maxMetadataKeyLen)] = truncate(value.String(), maxMetadataValue)
		return true
	})
	return nil
}

func stringList(r gjson.Result) []string {
	out := []string{}
	for _, item := range r.Array() {
		if len(out) >= maxQueryListItems {
			break
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, truncate(s, maxMetadataValue))
		}
	}
	return out
}

func statsAnswer(res QueryResult) string {
	if res.Total == 0 {
		return fmt.Sprintf("No activities logged for %s.", strings.ReplaceAll(string(res.Timeframe), "_", " "))
	}
	top := model.TopCategories(res.CategoryStats, 3)
	parts := make([]string, 0, len(top))
	for _, c := range top {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Name, c.Count))
	}
	return fmt.Sprintf("You logged %d activities for %s. Top categories: %s.",
		res.Total, strings.ReplaceAll(string(res.Timeframe), "_", " "), strings.Join(parts, ", "))
}
