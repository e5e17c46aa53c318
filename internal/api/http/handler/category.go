package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

// Insights serves category and conversation views of the caller's partition.
type Insights struct {
	partitions PartitionService
	logger     *logger.Logger
}

// NewInsights creates a new Insights handler.
func NewInsights(partitions PartitionService, logger *logger.Logger) *Insights {
	return &Insights{partitions: partitions, logger: logger}
}

// Summary returns the per-category tally.
func (h *Insights) Summary(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	summary, err := h.partitions.CategorySummary(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Categories returns known categories, stats and suggestions.
func (h *Insights) Categories(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	overview, err := h.partitions.Categories(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Conversations returns recent conversation entries, newest first.
func (h *Insights) Conversations(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, fmt.Errorf("%w: limit must be a non-negative integer", model.ErrValidation))
			return
		}
		limit = n
	}

	conversations, err := h.partitions.Conversations(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

type recordConversationRequest struct {
	Kind        model.ActivitySource `json:"kind"`
	Input       string               `json:"input" binding:"required"`
	Reply       string               `json:"reply"`
	ActivityIDs []uuid.UUID          `json:"activity_ids"`
	Timestamp   *time.Time           `json:"timestamp"`
}

// RecordConversation stores a conversation held outside the logbook, such
// as a voice agent session, and links it to existing activities.
func (h *Insights) RecordConversation(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req recordConversationRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	convo := model.Conversation{
		Kind:        req.Kind,
		Input:       req.Input,
		Reply:       req.Reply,
		ActivityIDs: req.ActivityIDs,
	}
	if req.Timestamp != nil {
		convo.Timestamp = *req.Timestamp
	}

	saved, err := h.partitions.AppendConversation(c.Request.Context(), id, convo)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, saved)
}
