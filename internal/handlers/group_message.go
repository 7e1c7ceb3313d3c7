package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

// GroupMessageHandler mirrors MessageHandler for group rooms: the gate
// is group membership, posting honors mutes, and moderators may delete
// for everyone.
type GroupMessageHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.GroupMessageRepository
	userRepo    repositories.UserRepository
	typing      *presence.TypingStore
	hub         *ws.Hub
}

func NewGroupMessageHandler(groupRepo repositories.GroupRepository, messageRepo repositories.GroupMessageRepository, userRepo repositories.UserRepository, typing *presence.TypingStore, hub *ws.Hub) *GroupMessageHandler {
	return &GroupMessageHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		typing:      typing,
		hub:         hub,
	}
}

// requireReadable allows members always and non-members for public
// groups; the repo hides private groups from outsiders.
func (h *GroupMessageHandler) requireReadable(c *gin.Context) (int, bool) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	if _, err := h.groupRepo.Get(c.Request.Context(), id, c.GetInt("userID")); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return 0, false
	}
	return id, true
}

// requireMember gates write endpoints on membership.
func (h *GroupMessageHandler) requireMember(c *gin.Context) (int, models.GroupMember, bool) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, models.GroupMember{}, false
	}
	member, err := h.groupRepo.GetMember(c.Request.Context(), id, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return 0, models.GroupMember{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, models.GroupMember{}, false
	}
	return id, member, true
}

// List returns one page of group messages.
func (h *GroupMessageHandler) List(c *gin.Context) {
	groupID, ok := h.requireReadable(c)
	if !ok {
		return
	}

	page, err := h.messageRepo.ListPage(c.Request.Context(), groupID, queryLimit(c, 50, 100), queryCursor(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// Post creates a group message. Muted members are refused until the
// mute lapses.
func (h *GroupMessageHandler) Post(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
	if !ok {
		return
	}
	if member.IsMuted(time.Now()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are muted in this group", "mutedUntil": member.MutedUntil})
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

	msg := models.GroupMessage{
		GroupID:   groupID,
		SenderID:  member.UserID,
		Content:   content,
		Type:      msgType,
		ReplyToID: req.ReplyToID,
	}
	if err := h.messageRepo.Create(c.Request.Context(), &msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	h.hub.BroadcastGroup(groupID, models.GroupEvent{Type: models.EventMessage, Message: &msg})
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Edit replaces the content of the caller's own text message.
func (h *GroupMessageHandler) Edit(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
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

	msg, err := h.messageRepo.Edit(c.Request.Context(), messageID, member.UserID, content)
	if err != nil {
		writeMessageError(c, err)
		return
	}

	h.hub.BroadcastGroup(groupID, models.GroupEvent{Type: models.EventMessageEdited, Message: &msg})
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Delete soft deletes a message. The sender always may; admins and the
// owner may delete anyone's.
func (h *GroupMessageHandler) Delete(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
	if !ok {
		return
	}
	messageID, ok := intParam(c, "message_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var err error
	if models.CanModerate(member.Role) {
		err = h.messageRepo.SoftDeleteAny(c.Request.Context(), messageID)
	} else {
		err = h.messageRepo.SoftDelete(c.Request.Context(), messageID, member.UserID)
	}
	if err != nil {
		writeMessageError(c, err)
		return
	}

	h.hub.BroadcastGroup(groupID, models.GroupEvent{Type: models.EventMessageDeleted, MessageID: messageID})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ToggleReaction adds or removes the caller's reaction.
func (h *GroupMessageHandler) ToggleReaction(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
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

	added, err := h.messageRepo.ToggleReaction(c.Request.Context(), messageID, member.UserID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle reaction"})
		return
	}

	h.hub.BroadcastGroup(groupID, models.GroupEvent{
		Type:      models.EventReaction,
		MessageID: messageID,
		Emoji:     req.Emoji,
		Removed:   !added,
	})
	if !added {
		c.JSON(http.StatusOK, gin.H{"removed": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"messageId": messageID, "userId": member.UserID, "emoji": req.Emoji})
}

// ListReactions groups a message's reactions per emoji.
func (h *GroupMessageHandler) ListReactions(c *gin.Context) {
	if _, ok := h.requireReadable(c); !ok {
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

// SetTyping records a typing signal.
func (h *GroupMessageHandler) SetTyping(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
	if !ok {
		return
	}

	var req struct {
		Typing *bool `json:"typing"`
	}
	_ = c.ShouldBindJSON(&req)

	var err error
	if req.Typing != nil && !*req.Typing {
		err = h.typing.ClearGroup(c.Request.Context(), groupID, member.UserID)
	} else {
		err = h.typing.SetGroup(c.Request.Context(), groupID, member.UserID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record typing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetTyping lists members typing within the liveness window.
func (h *GroupMessageHandler) GetTyping(c *gin.Context) {
	groupID, ok := h.requireReadable(c)
	if !ok {
		return
	}

	ids, err := h.typing.Group(c.Request.Context(), groupID, c.GetInt("userID"))
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

// MarkRead upserts receipts for a batch of the group's messages. Ids
// outside the group are skipped.
func (h *GroupMessageHandler) MarkRead(c *gin.Context) {
	groupID, member, ok := h.requireMember(c)
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

	receipts := make([]models.ReadReceipt, 0, len(req.MessageIDs))
	for _, id := range req.MessageIDs {
		receipt, err := h.messageRepo.MarkRead(c.Request.Context(), groupID, id, member.UserID)
		if err != nil {
			continue
		}
		receipts = append(receipts, receipt)
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// Search does a substring match over the group's text messages.
func (h *GroupMessageHandler) Search(c *gin.Context) {
	groupID, ok := h.requireReadable(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query is required"})
		return
	}

	results, err := h.messageRepo.Search(c.Request.Context(), groupID, query, queryLimit(c, 50, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
