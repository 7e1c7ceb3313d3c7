package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
)

// ConversationHandler covers the thread endpoints; messages live in
// MessageHandler.
type ConversationHandler struct {
	convRepo repositories.ConversationRepository
	userRepo repositories.UserRepository
}

func NewConversationHandler(convRepo repositories.ConversationRepository, userRepo repositories.UserRepository) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, userRepo: userRepo}
}

// List returns the caller's conversations, newest activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.convRepo.ListForUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// Create starts a conversation. A direct conversation between the same
// two users dedupes to the existing one.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		UserIDs []int   `json:"userIds" binding:"required,min=1"`
		Name    *string `json:"name"`
		IsGroup bool    `json:"isGroup"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	for _, id := range req.UserIDs {
		if id == userID {
			continue
		}
		if _, err := h.userRepo.GetRef(c.Request.Context(), id); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify participants"})
			return
		}
	}

	if !req.IsGroup {
		if len(req.UserIDs) != 1 || req.UserIDs[0] == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a direct conversation needs exactly one other user"})
			return
		}
		if existing, err := h.convRepo.FindDirectBetween(c.Request.Context(), userID, req.UserIDs[0]); err == nil {
			summary, err := h.convRepo.GetForUser(c.Request.Context(), existing.ID, userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"conversation": summary, "isExisting": true})
			return
		} else if !errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check existing conversation"})
			return
		}
	}

	summary, err := h.convRepo.Create(c.Request.Context(), userID, req.UserIDs, req.Name, req.IsGroup)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": summary, "isExisting": false})
}

// Get returns one conversation, participants only.
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	summary, err := h.convRepo.GetForUser(c.Request.Context(), id, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": summary})
}

// Update flips the caller's mute/archive/pin flags or clears history.
func (h *ConversationHandler) Update(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Muted    *bool `json:"muted"`
		Archived *bool `json:"archived"`
		Pinned   *bool `json:"pinned"`
		Clear    bool  `json:"clearHistory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Muted == nil && req.Archived == nil && req.Pinned == nil && !req.Clear {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	err := h.convRepo.UpdateOverlay(c.Request.Context(), id, c.GetInt("userID"), repositories.OverlayUpdate{
		Muted:    req.Muted,
		Archived: req.Archived,
		Pinned:   req.Pinned,
		Clear:    req.Clear,
	})
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// Leave removes the caller from the conversation.
func (h *ConversationHandler) Leave(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	err := h.convRepo.Leave(c.Request.Context(), id, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}
