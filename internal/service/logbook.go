package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

const classifyPrompt = `You are an activity tracking assistant. Classify the activity below into exactly one of these categories: %s.
Respond with a JSON object {"category": "<category>", "reply": "<one short encouraging sentence>"} and nothing else.

Activity: %s`

// LogResult describes a logged activity.
type LogResult struct {
	Activity     model.Activity
	Conversation *model.Conversation
	Transcript   string
	// Degraded is set when a collaborator failed and a fallback was used.
	Degraded bool
}

// Logbook logs free-form text and voice notes, asking the completer to pick
// a category when the caller did not. Collaborator failures degrade to the
// fallback category instead of failing the request.
type Logbook struct {
	partitions  *Partitions
	completer   model.Completer
	transcriber model.Transcriber
	logger      *logger.Logger
}

func NewLogbook(partitions *Partitions, completer model.Completer, transcriber model.Transcriber, logger *logger.Logger) *Logbook {
	return &Logbook{
		partitions:  partitions,
		completer:   completer,
		transcriber: transcriber,
		logger:      logger,
	}
}

// LogText records a text activity. An explicit category goes through the
// category policy unchanged; an empty one is classified.
func (l *Logbook) LogText(ctx context.Context, id model.Identity, in NewActivity) (LogResult, error) {
	in.Source = model.ActivitySourceText
	if strings.TrimSpace(in.Category) != "" {
		activity, err := l.partitions.AppendActivity(ctx, id, in)
		if err != nil {
			return LogResult{}, err
		}
		return LogResult{Activity: activity}, nil
	}
	return l.logClassified(ctx, id, in, false)
}

// LogVoice transcribes audio and logs the transcript. When transcription
// fails, fallbackText is logged instead if present.
func (l *Logbook) LogVoice(ctx context.Context, id model.Identity, audio io.Reader, filename, fallbackText string, ts time.Time) (LogResult, error) {
	if id.IsZero() {
		return LogResult{}, model.ErrUnauthorized
	}

	degraded := false
	transcript, err := l.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		if strings.TrimSpace(fallbackText) == "" {
			l.logger.Warn("Logbook: transcription failed",
				"username", id.UserID,
				"error", err.Error())
			return LogResult{}, err
		}
		l.logger.Warn("Logbook: transcription failed, using fallback text",
			"username", id.UserID,
			"error", err.Error())
		transcript = fallbackText
		degraded = true
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return LogResult{}, fmt.Errorf("%w: transcript is empty", model.ErrValidation)
	}

	res, err := l.logClassified(ctx, id, NewActivity{
		Description: transcript,
		Timestamp:   ts,
		Source:      model.ActivitySourceVoice,
		Metadata:    map[string]string{"filename": truncate(filename, maxMetadataValue)},
	}, degraded)
	if err != nil {
		return LogResult{}, err
	}
	res.Transcript = transcript
	return res, nil
}

func (l *Logbook) logClassified(ctx context.Context, id model.Identity, in NewActivity, degraded bool) (LogResult, error) {
	activity, err := l.partitions.prepare(in)
	if err != nil {
		return LogResult{}, err
	}

	snapshot, err := l.partitions.Read(ctx, id)
	if err != nil {
		return LogResult{}, err
	}
	known := l.partitions.policy.Known(&snapshot)

	suggested, reply, err := l.classify(ctx, activity.Description, known)
	if err != nil {
		l.logger.Warn("Logbook: classification unavailable, using fallback",
			"username", id.UserID,
			"error", err.Error())
		degraded = true
	}

	if activity.Metadata == nil {
		activity.Metadata = map[string]string{}
	}
	if degraded {
		activity.Metadata["degraded"] = "true"
	}

	convo := model.Conversation{
		ID:          uuid.New(),
		Timestamp:   activity.Timestamp,
		Kind:        activity.Source,
		Input:       activity.Description,
		Reply:       reply,
		ActivityIDs: []uuid.UUID{activity.ID},
		Degraded:    degraded,
	}

	_, err = l.partitions.Write(ctx, id, func(p *model.Partition) error {
		if suggested == "" {
			activity.Category = l.partitions.policy.Fallback()
			activity.Metadata["classifier"] = "fallback"
		} else {
			activity.Category = l.partitions.policy.Classified(p, suggested)
			activity.Metadata["classifier"] = "nlp"
		}
		p.AddActivity(activity)
		p.Conversations = append(p.Conversations, convo)
		return nil
	})
	if err != nil {
		return LogResult{}, err
	}

	l.logger.Info("Logbook: activity logged",
		"username", id.UserID,
		"activity_id", activity.ID,
		"category", activity.Category,
		"source", activity.Source,
		"degraded", degraded)

	return LogResult{Activity: activity, Conversation: &convo, Degraded: degraded}, nil
}

// classify asks the completer for a category. The answer is expected as a
// JSON object; a bare category name is accepted too.
func (l *Logbook) classify(ctx context.Context, description string, known []string) (string, string, error) {
	answer, err := l.completer.Complete(ctx, fmt.Sprintf(classifyPrompt, strings.Join(known, ", "), description))
	if err != nil {
		if !errors.Is(err, model.ErrUpstream) && !errors.Is(err, model.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		return "", "", err
	}

	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.Trim(answer, "`\n ")

	if gjson.Valid(answer) {
		parsed := gjson.Parse(answer)
		category := strings.TrimSpace(parsed.Get("category").String())
		if category == "" {
			return "", "", fmt.Errorf("%w: classifier reply has no category", model.ErrUpstream)
		}
		return category, truncate(strings.TrimSpace(parsed.Get("reply").String()), maxReplyLen), nil
	}

	line, _, _ := strings.Cut(answer, "\n")
	line = strings.Trim(strings.TrimSpace(line), `."'`)
	if line == "" {
		return "", "", fmt.Errorf("%w: empty classifier reply", model.ErrUpstream)
	}
	return line, "", nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
