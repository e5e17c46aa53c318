package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/service"
)

// ActivityLogger records new activities, classifying them when needed.
type ActivityLogger interface {
	LogText(ctx context.Context, id model.Identity, in service.NewActivity) (service.LogResult, error)
	LogVoice(ctx context.Context, id model.Identity, audio io.Reader, filename, fallbackText string, ts time.Time) (service.LogResult, error)
	Query(ctx context.Context, id model.Identity, q service.LogQuery) (service.QueryResult, error)
}

// PartitionService reads and edits the caller's partition.
type PartitionService interface {
	RemoveActivity(ctx context.Context, id model.Identity, activityID uuid.UUID) error
	ListActivities(ctx context.Context, id model.Identity, filter model.ActivityFilter) ([]model.Activity, error)
	CategorySummary(ctx context.Context, id model.Identity) (map[string]int, error)
	Categories(ctx context.Context, id model.Identity) (model.CategoryOverview, error)
	Conversations(ctx context.Context, id model.Identity, limit int) ([]model.Conversation, error)
	AppendConversation(ctx context.Context, id model.Identity, c model.Conversation) (model.Conversation, error)
}

// Activity handles activity logging and listing.
type Activity struct {
	logbook       ActivityLogger
	partitions    PartitionService
	maxAudioBytes int64
	logger        *logger.Logger
}

// NewActivity creates a new Activity handler. Voice uploads larger than
// maxAudioBytes are rejected.
func NewActivity(logbook ActivityLogger, partitions PartitionService, maxAudioBytes int64, logger *logger.Logger) *Activity {
	return &Activity{
		logbook:       logbook,
		partitions:    partitions,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
}

type createActivityRequest struct {
	Description string            `json:"description" binding:"required"`
	Category    string            `json:"category"`
	Timestamp   *time.Time        `json:"timestamp"`
	Metadata    map[string]string `json:"metadata"`
}

type createActivityResponse struct {
	ActivityID uuid.UUID `json:"activityId"`
	Category   string    `json:"category"`
	Transcript string    `json:"transcript,omitempty"`
	Degraded   bool      `json:"degraded"`
}

func newCreateActivityResponse(res service.LogResult) createActivityResponse {
	return createActivityResponse{
		ActivityID: res.Activity.ID,
		Category:   res.Activity.Category,
		Transcript: res.Transcript,
		Degraded:   res.Degraded,
	}
}

// Create logs a text activity.
func (h *Activity) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req createActivityRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	in := service.NewActivity{
		Description: req.Description,
		Category:    req.Category,
		Metadata:    req.Metadata,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	res, err := h.logbook.LogText(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newCreateActivityResponse(res))
}

// CreateVoice logs an activity from an uploaded audio note. The form
// carries "audio" and optionally "fallback_text" and "timestamp".
func (h *Activity) CreateVoice(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	if h.maxAudioBytes > 0 {
		// Leave room for the other form fields.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAudioBytes+64<<10)
	}

	header, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("%w: audio exceeds %d bytes", model.ErrTooLarge, h.maxAudioBytes))
			return
		}
		writeError(c, fmt.Errorf("%w: multipart field audio is required", model.ErrValidation))
		return
	}
	if h.maxAudioBytes > 0 && header.Size > h.maxAudioBytes {
		writeError(c, fmt.Errorf("%w: audio exceeds %d bytes", model.ErrTooLarge, h.maxAudioBytes))
		return
	}

	ts, err := parseTime("timestamp", c.PostForm("timestamp"))
	if err != nil {
		writeError(c, err)
		return
	}

	audio, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("%w: unreadable audio upload", model.ErrValidation))
		return
	}
	defer audio.Close()

	res, err := h.logbook.LogVoice(c.Request.Context(), id, audio, filepath.Base(header.Filename), c.PostForm("fallback_text"), ts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newCreateActivityResponse(res))
}

type queryRequest struct {
	Query     string `json:"query" binding:"required"`
	Timeframe string `json:"timeframe"`
	Category  string `json:"category"`
}

// Query answers a natural-language question about the caller's activities.
func (h *Activity) Query(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	res, err := h.logbook.Query(c.Request.Context(), id, service.LogQuery{
		Question:  req.Query,
		Timeframe: req.Timeframe,
		Category:  req.Category,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// List returns the caller's activities filtered by category and an RFC3339
// [from, to) window.
func (h *Activity) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	from, err := parseTime("from", c.Query("from"))
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := parseTime("to", c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}

	activities, err := h.partitions.ListActivities(c.Request.Context(), id, model.ActivityFilter{
		Category: c.Query("category"),
		From:     from,
		To:       to,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

// Delete removes one of the caller's activities.
func (h *Activity) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	// A malformed id cannot name an existing activity.
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, model.ErrNotFound)
		return
	}

	if err := h.partitions.RemoveActivity(c.Request.Context(), id, activityID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
