package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/chaisthra/vibetrack/internal/api/http/middleware"
	"github.com/chaisthra/vibetrack/internal/model"
)

func init() {
	// Report validation failures by JSON field name.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// maxJSONBodyBytes caps every JSON request body.
const maxJSONBodyBytes = 64 << 10

// bindJSON decodes a size-capped JSON body into dst.
func bindJSON(c *gin.Context, dst any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBodyBytes)
	return c.ShouldBindJSON(dst)
}

func invalidBody(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", model.ErrTooLarge, tooLarge.Limit)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: missing or invalid fields: %s", model.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: malformed request body", model.ErrValidation)
}

// identity returns the authenticated caller, writing 401 when absent.
func identity(c *gin.Context) (model.Identity, bool) {
	id, ok := middleware.IdentityFrom(c.Request.Context())
	if !ok {
		writeError(c, model.ErrUnauthorized)
	}
	return id, ok
}

// parseTime reads an optional RFC3339 value.
func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC3339 timestamp", model.ErrValidation, field)
	}
	return t, nil
}
