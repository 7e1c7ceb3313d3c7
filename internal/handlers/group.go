package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// GroupHandler covers group CRUD and the membership role matrix.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	userRepo  repositories.UserRepository
	audit     *telemetry.AuditEmitter
}

func NewGroupHandler(groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groupRepo: groupRepo, userRepo: userRepo, audit: audit}
}

// Create makes a group with the caller as sole owner.
func (h *GroupHandler) Create(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required,max=100"`
		Description *string `json:"description"`
		Image       *string `json:"image"`
		IsPrivate   bool    `json:"isPrivate"`
		MaxMembers  int     `json:"maxMembers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
		return
	}
	maxMembers := req.MaxMembers
	if maxMembers <= 0 || maxMembers > 1000 {
		maxMembers = 100
	}

	group, err := h.groupRepo.Create(c.Request.Context(), c.GetInt("userID"), name, req.Description, req.Image, req.IsPrivate, maxMembers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// List returns groups visible to the caller.
func (h *GroupHandler) List(c *gin.Context) {
	filter := c.DefaultQuery("filter", "all")
	switch filter {
	case "my", "public", "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be my, public, or all"})
		return
	}
	if filter == "all" {
		filter = ""
	}

	groups, err := h.groupRepo.List(c.Request.Context(), c.GetInt("userID"), filter, strings.TrimSpace(c.Query("search")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// Get returns one group, hiding private groups from non-members.
func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	group, err := h.groupRepo.Get(c.Request.Context(), id, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// Update edits group settings, admin and owner only.
func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	if _, ok := h.requireModerator(c, id); !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Image       *string `json:"image"`
		IsPrivate   *bool   `json:"isPrivate"`
		MaxMembers  *int    `json:"maxMembers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" || len(trimmed) > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group name"})
			return
		}
		req.Name = &trimmed
	}
	if req.MaxMembers != nil && (*req.MaxMembers <= 0 || *req.MaxMembers > 1000) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member limit"})
		return
	}

	group, err := h.groupRepo.Update(c.Request.Context(), id, repositories.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		IsPrivate:   req.IsPrivate,
		MaxMembers:  req.MaxMembers,
	})
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// Delete removes the group entirely, owner only.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groupRepo.GetMember(c.Request.Context(), id, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if member.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete the group"})
		return
	}

	if err := h.groupRepo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}
	h.audit.Emit(c.Request.Context(), "warn", fmt.Sprintf("group %d deleted by owner", id), requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListMembers returns the membership, owner first.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	// readable by anyone for public groups
	if _, err := h.groupRepo.Get(c.Request.Context(), id, c.GetInt("userID")); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}

	members, err := h.groupRepo.ListMembers(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// Join adds the caller to a public group.
func (h *GroupHandler) Join(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	userID := c.GetInt("userID")
	group, err := h.groupRepo.Get(c.Request.Context(), id, userID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}
	if group.IsPrivate {
		c.JSON(http.StatusForbidden, gin.H{"error": "group is private"})
		return
	}

	err = h.groupRepo.AddMember(c.Request.Context(), id, userID, models.RoleMember)
	switch {
	case errors.Is(err, repositories.ErrAlreadyMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": "already a member"})
	case errors.Is(err, repositories.ErrGroupFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "group is full"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join group"})
	default:
		c.JSON(http.StatusCreated, gin.H{"joined": true})
	}
}

// AddMember lets an admin or the owner add a user directly.
func (h *GroupHandler) AddMember(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	if _, ok := h.requireModerator(c, id); !ok {
		return
	}

	var req struct {
		UserID int `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.userRepo.GetRef(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify user"})
		return
	}

	err := h.groupRepo.AddMember(c.Request.Context(), id, req.UserID, models.RoleMember)
	switch {
	case errors.Is(err, repositories.ErrAlreadyMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": "already a member"})
	case errors.Is(err, repositories.ErrGroupFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "group is full"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
	default:
		c.JSON(http.StatusCreated, gin.H{"added": true})
	}
}

// Leave removes the caller. The owner must hand over first when nobody
// else could moderate the group.
func (h *GroupHandler) Leave(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groupRepo.GetMember(c.Request.Context(), id, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a member"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}

	if member.Role == models.RoleOwner {
		members, err := h.groupRepo.ListMembers(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
			return
		}
		hasOtherModerator := false
		for _, m := range members {
			if m.UserID != userID && models.CanModerate(m.Role) {
				hasOtherModerator = true
				break
			}
		}
		if !hasOtherModerator && len(members) > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transfer ownership before leaving"})
			return
		}
		if len(members) == 1 {
			// last member out deletes the group
			if err := h.groupRepo.Delete(c.Request.Context(), id); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave group"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"left": true, "groupDeleted": true})
			return
		}
	}

	if err := h.groupRepo.RemoveMember(c.Request.Context(), id, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

// UpdateMember changes a member's mute, nickname, or role. Mute and
// nickname need admin or owner; role changes are owner only and never
// target the owner.
func (h *GroupHandler) UpdateMember(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	targetID, ok := intParam(c, "user_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	caller, ok := h.requireModerator(c, id)
	if !ok {
		return
	}

	var req struct {
		Role        *string `json:"role"`
		Nickname    *string `json:"nickname"`
		MuteMinutes *int    `json:"muteMinutes"`
		Unmute      bool    `json:"unmute"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := h.groupRepo.GetMember(c.Request.Context(), id, targetID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load member"})
		return
	}

	if req.Role != nil {
		if caller.Role != models.RoleOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can change roles"})
			return
		}
		if target.Role == models.RoleOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "the owner's role cannot be changed"})
			return
		}
		if *req.Role != models.RoleAdmin && *req.Role != models.RoleMember {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or member"})
			return
		}
		if err := h.groupRepo.SetMemberRole(c.Request.Context(), id, targetID, *req.Role); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change role"})
			return
		}
	}

	if req.MuteMinutes != nil || req.Unmute {
		if target.Role == models.RoleOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "the owner cannot be muted"})
			return
		}
		var until *time.Time
		if req.MuteMinutes != nil && *req.MuteMinutes > 0 {
			t := time.Now().Add(time.Duration(*req.MuteMinutes) * time.Minute)
			until = &t
		}
		if err := h.groupRepo.SetMemberMute(c.Request.Context(), id, targetID, until); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update mute"})
			return
		}
	}

	if req.Nickname != nil {
		nickname := req.Nickname
		if strings.TrimSpace(*nickname) == "" {
			nickname = nil
		}
		if err := h.groupRepo.SetMemberNickname(c.Request.Context(), id, targetID, nickname); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update nickname"})
			return
		}
	}

	updated, err := h.groupRepo.GetMember(c.Request.Context(), id, targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": updated})
}

// KickMember removes another member. Admins cannot kick admins and
// nobody kicks the owner.
func (h *GroupHandler) KickMember(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	targetID, ok := intParam(c, "user_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	caller, ok := h.requireModerator(c, id)
	if !ok {
		return
	}
	if targetID == caller.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use leave to remove yourself"})
		return
	}

	target, err := h.groupRepo.GetMember(c.Request.Context(), id, targetID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load member"})
		return
	}

	if target.Role == models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "the owner cannot be removed"})
		return
	}
	if target.Role == models.RoleAdmin && caller.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins cannot remove other admins"})
		return
	}

	if err := h.groupRepo.RemoveMember(c.Request.Context(), id, targetID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		return
	}
	h.audit.Emit(c.Request.Context(), "info", fmt.Sprintf("user %d removed from group %d", targetID, id), requestIDFromContext(c), &caller.UserID)
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// requireModerator gates the endpoint on an admin or owner membership.
func (h *GroupHandler) requireModerator(c *gin.Context, groupID int) (models.GroupMember, bool) {
	member, err := h.groupRepo.GetMember(c.Request.Context(), groupID, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return models.GroupMember{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return models.GroupMember{}, false
	}
	if !models.CanModerate(member.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return models.GroupMember{}, false
	}
	return member, true
}
