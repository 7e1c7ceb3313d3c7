package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

// MessageHandler covers messages, reactions, typing liveness, read
// receipts, media, and search inside direct conversations.
type MessageHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	typing      *presence.TypingStore
	hub         *ws.Hub
}

func NewMessageHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, typing *presence.TypingStore, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		typing:      typing,
		hub:         hub,
	}
}

// requireParticipant gates an endpoint on conversation membership and
// returns the conversation id.
func (h *MessageHandler) requireParticipant(c *gin.Context) (int, bool) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	member, err := h.convRepo.IsParticipant(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return 0, false
	}
	return id, true
}

// List returns one page of messages, chronological within the page.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	page, err := h.messageRepo.ListPage(c.Request.Context(), conversationID, c.GetInt("userID"), queryLimit(c, 50, 100), queryCursor(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// Post creates a message, bumps the thread, and broadcasts it.
func (h *MessageHandler) Post(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		Type      string `json:"type"`
		ReplyToID *int   `json:"replyToId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}
	if len(content) > models.MaxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("message exceeds %d characters", models.MaxMessageLength)})
		return
	}
	msgType := req.Type
	if msgType == "" {
		msgType = "text"
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       c.GetInt("userID"),
		Content:        content,
		Type:           msgType,
		ReplyToID:      req.ReplyToID,
	}
	if err := h.messageRepo.Create(c.Request.Context(), &msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	// listing order degrades if this fails, the message is already stored
	_ = h.convRepo.Touch(c.Request.Context(), conversationID)
	h.hub.BroadcastConversation(conversationID, models.ConversationEvent{Type: models.EventMessage, Message: &msg})
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Edit replaces the content of the caller's own text message.
func (h *MessageHandler) Edit(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > models.MaxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message content"})
		return
	}

	msg, err := h.messageRepo.Edit(c.Request.Context(), messageID, c.GetInt("userID"), content)
	if err != nil {
		writeMessageError(c, err)
		return
	}

	h.hub.BroadcastConversation(conversationID, models.ConversationEvent{Type: models.EventMessageEdited, Message: &msg})
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Delete soft deletes the caller's own message.
func (h *MessageHandler) Delete(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.messageRepo.SoftDelete(c.Request.Context(), messageID, c.GetInt("userID")); err != nil {
		writeMessageError(c, err)
		return
	}

	h.hub.BroadcastConversation(conversationID, models.ConversationEvent{Type: models.EventMessageDeleted, MessageID: messageID})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ToggleReaction adds or removes the caller's reaction.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required,max=16"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	added, err := h.messageRepo.ToggleReaction(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle reaction"})
		return
	}

	h.hub.BroadcastConversation(conversationID, models.ConversationEvent{
		Type:      models.EventReaction,
		MessageID: messageID,
		Emoji:     req.Emoji,
		Removed:   !added,
	})
	if !added {
		c.JSON(http.StatusOK, gin.H{"removed": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"messageId": messageID, "userId": userID, "emoji": req.Emoji})
}

// ListReactions groups a message's reactions per emoji.
func (h *MessageHandler) ListReactions(c *gin.Context) {
	if _, ok := h.requireParticipant(c); !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	groups, err := h.messageRepo.ListReactions(c.Request.Context(), messageID, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": groups})
}

// SetTyping records a typing signal for the caller.
func (h *MessageHandler) SetTyping(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Typing *bool `json:"typing"`
	}
	// body is optional; absence means "typing"
	_ = c.ShouldBindJSON(&req)

	userID := c.GetInt("userID")
	var err error
	if req.Typing != nil && !*req.Typing {
		err = h.typing.ClearConversation(c.Request.Context(), conversationID, userID)
	} else {
		err = h.typing.SetConversation(c.Request.Context(), conversationID, userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record typing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetTyping lists users typing within the liveness window.
func (h *MessageHandler) GetTyping(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	ids, err := h.typing.Conversation(c.Request.Context(), conversationID, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing state"})
		return
	}

	users := make([]models.UserRef, 0, len(ids))
	for _, id := range ids {
		ref, err := h.userRepo.GetRef(c.Request.Context(), id)
		if err != nil {
			continue
		}
		users = append(users, ref)
	}
	c.JSON(http.StatusOK, gin.H{"typing": users})
}

// MarkRead upserts receipts for a batch of the conversation's messages.
// Ids outside the conversation are skipped.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	var req struct {
		MessageIDs []int `json:"messageIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	receipts := make([]models.ReadReceipt, 0, len(req.MessageIDs))
	for _, id := range req.MessageIDs {
		receipt, err := h.messageRepo.MarkRead(c.Request.Context(), conversationID, id, userID)
		if err != nil {
			continue
		}
		receipts = append(receipts, receipt)
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// ListReads returns who has read a message, oldest receipt first.
func (h *MessageHandler) ListReads(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messageRepo.GetByID(c.Request.Context(), messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) || (err == nil && msg.ConversationID != conversationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}

	reads, err := h.messageRepo.ListReads(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reads": reads})
}

// ListMedia returns non-text messages, optionally filtered by type.
func (h *MessageHandler) ListMedia(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	media, err := h.messageRepo.ListMedia(c.Request.Context(), conversationID, c.Query("type"), queryLimit(c, 50, 200))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

// Search does a substring match over the conversation's text messages.
func (h *MessageHandler) Search(c *gin.Context) {
	conversationID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query is required"})
		return
	}

	results, err := h.messageRepo.Search(c.Request.Context(), conversationID, c.GetInt("userID"), query, queryLimit(c, 50, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// writeMessageError maps repository sentinels onto the HTTP taxonomy.
func writeMessageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the message sender"})
	case errors.Is(err, repositories.ErrMessageDeleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is deleted"})
	case errors.Is(err, repositories.ErrNotEditable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "only text messages can be edited"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
