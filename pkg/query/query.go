// Package query parses bounded query-string parameters for gin handlers.
package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradeking/tradeking-api/pkg/response"
)

// Limit reads the "limit" parameter, defaulting to def and requiring 1..max
func Limit(c *gin.Context, def, max int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, &response.ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("must be an integer between 1 and %d", max),
		}
	}
	return limit, nil
}

// layouts accepted for date parameters, most specific first
var layouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// Time reads an optional ISO 8601 timestamp or date. Values without a zone
// are taken as UTC.
func Time(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &response.ValidationError{Field: key, Message: "must be an ISO 8601 date or timestamp"}
}
