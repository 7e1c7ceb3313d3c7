package ws

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/observability"
)

// ConnInfo is the identity a connection carries through its lifetime,
// attached to every lifecycle event it emits.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnInfo captures the connection identity at handshake time.
func newConnInfo(c *gin.Context, userID int, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// bearerUserID extracts the token from the Authorization header or the
// token query parameter (browsers cannot set headers on websocket
// dials) and verifies it.
func bearerUserID(c *gin.Context, manager *auth.Manager) (int, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	}
	token = strings.TrimPrefix(token, "Bearer ")
	claims, err := manager.VerifyToken(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
