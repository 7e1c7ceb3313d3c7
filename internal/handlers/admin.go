package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// AdminHandler covers the moderation surface. Routes are mounted behind
// the admin-role middleware.
type AdminHandler struct {
	userRepo         repositories.UserRepository
	groupRepo        repositories.GroupRepository
	messageRepo      repositories.MessageRepository
	groupMessageRepo repositories.GroupMessageRepository
	audit            *telemetry.AuditEmitter
}

func NewAdminHandler(userRepo repositories.UserRepository, groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, groupMessageRepo repositories.GroupMessageRepository, audit *telemetry.AuditEmitter) *AdminHandler {
	return &AdminHandler{
		userRepo:         userRepo,
		groupRepo:        groupRepo,
		messageRepo:      messageRepo,
		groupMessageRepo: groupMessageRepo,
		audit:            audit,
	}
}

// ListUsers returns accounts, optionally filtered by a name/email search.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userRepo.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), queryLimit(c, 100, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser returns one account in full.
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser applies moderation actions to an account.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req struct {
		Role          *string `json:"role"`
		RemovePhoto   bool    `json:"removePhoto"`
		ClearMessages bool    `json:"clearMessages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	adminID := c.GetInt("userID")
	requestID := requestIDFromContext(c)

	if req.Role != nil {
		if *req.Role != "admin" && *req.Role != "user" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or user"})
			return
		}
		if id == adminID && *req.Role != "admin" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot demote yourself"})
			return
		}
		if err := h.userRepo.UpdateRole(c.Request.Context(), id, *req.Role); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change role"})
			return
		}
		h.audit.Emit(c.Request.Context(), "warn", fmt.Sprintf("user %d role set to %s", id, *req.Role), requestID, &adminID)
	}

	if req.RemovePhoto {
		if err := h.userRepo.RemoveImage(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove photo"})
			return
		}
		h.audit.Emit(c.Request.Context(), "info", fmt.Sprintf("user %d photo removed", id), requestID, &adminID)
	}

	if req.ClearMessages {
		cleared, err := h.messageRepo.ClearFromUser(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear messages"})
			return
		}
		clearedGroups, err := h.groupMessageRepo.ClearFromUser(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear messages"})
			return
		}
		h.audit.Emit(c.Request.Context(), "warn",
			fmt.Sprintf("user %d messages cleared (%d direct, %d group)", id, cleared, clearedGroups), requestID, &adminID)
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser removes an account. Admins cannot delete themselves or
// other admins.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	adminID := c.GetInt("userID")
	if id == adminID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user.Role == "admin" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete another admin"})
		return
	}

	if err := h.userRepo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}
	h.audit.Emit(c.Request.Context(), "warn", fmt.Sprintf("user %d deleted by admin", id), requestIDFromContext(c), &adminID)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListGroups returns every group with member and message counts.
func (h *AdminHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupRepo.List(c.Request.Context(), c.GetInt("userID"), "any", strings.TrimSpace(c.Query("search")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// DeleteGroup removes any group regardless of ownership.
func (h *AdminHandler) DeleteGroup(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	err := h.groupRepo.Delete(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}

	adminID := c.GetInt("userID")
	h.audit.Emit(c.Request.Context(), "warn", fmt.Sprintf("group %d deleted by admin", id), requestIDFromContext(c), &adminID)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
