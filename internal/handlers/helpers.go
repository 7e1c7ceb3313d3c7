package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDFromContext returns the inbound X-Request-Id or mints one so
// every audit event is correlated.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetHeader("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// queryLimit parses ?limit= with a default and an upper bound.
func queryLimit(c *gin.Context, def, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// queryCursor parses ?cursor= into an optional message id.
func queryCursor(c *gin.Context) *int {
	raw := c.Query("cursor")
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
