package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// ChatRequestHandler manages the contact proposal lifecycle.
type ChatRequestHandler struct {
	requestRepo repositories.ChatRequestRepository
	userRepo    repositories.UserRepository
	convRepo    repositories.ConversationRepository
	audit       *telemetry.AuditEmitter
}

func NewChatRequestHandler(requestRepo repositories.ChatRequestRepository, userRepo repositories.UserRepository, convRepo repositories.ConversationRepository, audit *telemetry.AuditEmitter) *ChatRequestHandler {
	return &ChatRequestHandler{requestRepo: requestRepo, userRepo: userRepo, convRepo: convRepo, audit: audit}
}

// Create sends a chat request. Ordering of checks matters: accepted
// pair beats pending beats quota, so the caller always sees the most
// actionable refusal.
func (h *ChatRequestHandler) Create(c *gin.Context) {
	var req struct {
		ReceiverID int     `json:"receiverId" binding:"required"`
		Message    *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if req.ReceiverID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot send a request to yourself"})
		return
	}

	if req.Message != nil {
		trimmed := strings.TrimSpace(*req.Message)
		if len(trimmed) > models.MaxRequestMessageLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("message exceeds %d characters", models.MaxRequestMessageLength)})
			return
		}
		if trimmed == "" {
			req.Message = nil
		} else {
			req.Message = &trimmed
		}
	}

	if _, err := h.userRepo.GetRef(c.Request.Context(), req.ReceiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify receiver"})
		return
	}

	pair, err := h.requestRepo.PairStatus(c.Request.Context(), userID, req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check request status"})
		return
	}
	if pair.Accepted != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already connected"})
		return
	}
	if pair.Pending != nil {
		observability.IncChatRequest("duplicate")
		c.JSON(http.StatusConflict, gin.H{"error": "a request is already pending"})
		return
	}
	if pair.UsedQuota >= models.RequestQuota {
		observability.IncChatRequest("quota_exceeded")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "request limit reached for this user"})
		return
	}

	created, err := h.requestRepo.Create(c.Request.Context(), userID, req.ReceiverID, req.Message)
	if errors.Is(err, repositories.ErrDuplicatePending) {
		observability.IncChatRequest("duplicate")
		c.JSON(http.StatusConflict, gin.H{"error": "a request is already pending"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request"})
		return
	}

	observability.IncChatRequest("sent")
	h.audit.Emit(c.Request.Context(), "info", fmt.Sprintf("chat request %d sent to user %d", created.ID, req.ReceiverID), requestIDFromContext(c), &userID)
	c.JSON(http.StatusCreated, gin.H{
		"request":           created,
		"remainingRequests": models.RequestQuota - pair.UsedQuota - 1,
	})
}

// List returns the caller's sent, received, or all requests.
func (h *ChatRequestHandler) List(c *gin.Context) {
	kind := c.DefaultQuery("type", "all")
	switch kind {
	case "sent", "received", "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be sent, received, or all"})
		return
	}

	requests, err := h.requestRepo.ListForUser(c.Request.Context(), c.GetInt("userID"), kind, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Respond accepts or rejects a pending request. Only the receiver may
// respond; accept creates the conversation in the same transaction.
func (h *ChatRequestHandler) Respond(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req struct {
		Action string `json:"action" binding:"required,oneof=accept reject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	request, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load request"})
		return
	}
	if request.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can respond"})
		return
	}
	if request.Status != models.RequestPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request already responded to"})
		return
	}

	if req.Action == "reject" {
		if err := h.requestRepo.Reject(c.Request.Context(), id); err != nil {
			if errors.Is(err, repositories.ErrAlreadyResponded) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "request already responded to"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject request"})
			return
		}
		observability.IncChatRequest("rejected")
		c.JSON(http.StatusOK, gin.H{"status": models.RequestRejected})
		return
	}

	conversationID, err := h.requestRepo.Accept(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrAlreadyResponded) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request already responded to"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept request"})
		return
	}

	observability.IncChatRequest("accepted")
	h.audit.Emit(c.Request.Context(), "info", fmt.Sprintf("chat request %d accepted", id), requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"status": models.RequestAccepted, "conversationId": conversationID})
}

// Delete withdraws the caller's own pending request.
func (h *ChatRequestHandler) Delete(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	userID := c.GetInt("userID")
	request, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load request"})
		return
	}
	if request.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can withdraw a request"})
		return
	}
	if request.Status != models.RequestPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only pending requests can be withdrawn"})
		return
	}

	if err := h.requestRepo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Connection reports the relationship between the caller and a user:
// connected, pending, or not connected with the remaining quota.
func (h *ChatRequestHandler) Connection(c *gin.Context) {
	otherID, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if otherID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot check connection with yourself"})
		return
	}

	pair, err := h.requestRepo.PairStatus(c.Request.Context(), userID, otherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check connection"})
		return
	}

	if pair.Accepted != nil {
		resp := gin.H{"status": "connected"}
		if conv, err := h.convRepo.FindDirectBetween(c.Request.Context(), userID, otherID); err == nil {
			resp["conversationId"] = conv.ID
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	if pair.Pending != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":    "pending",
			"requestId": pair.Pending.ID,
			"isSender":  pair.Pending.SenderID == userID,
		})
		return
	}

	remaining := models.RequestQuota - pair.UsedQuota
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "not_connected",
		"canSendRequest":    remaining > 0,
		"remainingRequests": remaining,
	})
}
