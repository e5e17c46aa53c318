package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/api/http/middleware"
	"github.com/chaisthra/vibetrack/internal/model"
)

type errorMapping struct {
	err    error
	status int
	code   string
	// expose sends the wrapped message to the client.
	expose bool
}

// Order matters: more specific sentinels first.
var errorMappings = []errorMapping{
	{model.ErrWeakCredential, http.StatusBadRequest, "WeakCredential", true},
	{model.ErrUnknownCategory, http.StatusBadRequest, "UnknownCategory", true},
	{model.ErrValidation, http.StatusBadRequest, "Validation", true},
	{model.ErrTooLarge, http.StatusRequestEntityTooLarge, "PayloadTooLarge", false},
	{model.ErrDuplicateUser, http.StatusConflict, "DuplicateUser", false},
	{model.ErrNotFound, http.StatusNotFound, "NotFound", false},
	{model.ErrInvalidCredential, http.StatusUnauthorized, "InvalidCredential", false},
	{model.ErrTokenExpired, http.StatusUnauthorized, "Expired", false},
	{model.ErrTokenRevoked, http.StatusUnauthorized, "Revoked", false},
	{model.ErrTokenMalformed, http.StatusUnauthorized, "Unauthorized", false},
	{model.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized", false},
	{model.ErrRateLimited, http.StatusTooManyRequests, "RateLimited", false},
	{model.ErrTooManyConcurrent, http.StatusTooManyRequests, "TooManyConcurrentRequests", false},
	{model.ErrUpstreamTimeout, http.StatusGatewayTimeout, "UpstreamTimeout", false},
	{model.ErrUpstream, http.StatusBadGateway, "UpstreamError", false},
	{model.ErrStorage, http.StatusInternalServerError, "StorageError", false},
}

// writeError maps err to a status and a stable code. Unknown errors become
// 500 Internal with no detail.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		message := m.err.Error()
		if m.expose {
			message = clientMessage(err, m.err)
		}
		middleware.Abort(c, m.status, m.code, message)
		return
	}

	middleware.Abort(c, http.StatusInternalServerError, "Internal", "internal server error")
}

// clientMessage strips the sentinel prefix from "sentinel: detail".
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}
