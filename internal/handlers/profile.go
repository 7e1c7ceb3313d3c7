package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// ProfileHandler covers the caller's own profile, presence status, and
// data export.
type ProfileHandler struct {
	userRepo    repositories.UserRepository
	convRepo    repositories.ConversationRepository
	requestRepo repositories.ChatRequestRepository
	messageRepo repositories.MessageRepository
}

func NewProfileHandler(userRepo repositories.UserRepository, convRepo repositories.ConversationRepository, requestRepo repositories.ChatRequestRepository, messageRepo repositories.MessageRepository) *ProfileHandler {
	return &ProfileHandler{
		userRepo:    userRepo,
		convRepo:    convRepo,
		requestRepo: requestRepo,
		messageRepo: messageRepo,
	}
}

// Get returns the caller's full profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.userRepo.GetByID(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Update applies a partial profile edit. A field absent from the body
// is untouched; an explicit empty string resets the column.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		RealName    *string `json:"realName"`
		Bio         *string `json:"bio"`
		Hobbies     *string `json:"hobbies"`
		Location    *string `json:"location"`
		Website     *string `json:"website"`
		Phone       *string `json:"phone"`
		DateOfBirth *string `json:"dateOfBirth"`
		Gender      *string `json:"gender"`
		Occupation  *string `json:"occupation"`
		Image       *string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if len(trimmed) < 2 || len(trimmed) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 2-50 characters"})
			return
		}
		req.Name = &trimmed
	}
	if req.Bio != nil && len(*req.Bio) > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bio must be at most 500 characters"})
		return
	}
	if req.Website != nil && *req.Website != "" {
		parsed, err := url.Parse(*req.Website)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "website must be a valid url"})
			return
		}
	}

	var dob *time.Time
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dateOfBirth must be YYYY-MM-DD"})
			return
		}
		dob = &parsed
	}

	user, err := h.userRepo.UpdateProfile(c.Request.Context(), c.GetInt("userID"), repositories.ProfileUpdate{
		Name:        req.Name,
		RealName:    req.RealName,
		Bio:         req.Bio,
		Hobbies:     req.Hobbies,
		Location:    req.Location,
		Website:     req.Website,
		Phone:       req.Phone,
		DateOfBirth: dob,
		Gender:      req.Gender,
		Occupation:  req.Occupation,
		Image:       req.Image,
	})
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetStatus returns the caller's presence status.
func (h *ProfileHandler) GetStatus(c *gin.Context) {
	user, err := h.userRepo.GetByID(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": user.Status, "lastSeen": user.LastSeen})
}

// SetStatus sets presence from the allowed set and bumps last_seen.
func (h *ProfileHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status", "allowed": models.ValidStatuses})
		return
	}

	user, err := h.userRepo.UpdateStatus(c.Request.Context(), c.GetInt("userID"), req.Status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": user.Status, "lastSeen": user.LastSeen})
}

// Export bundles the caller's profile, conversations, requests, and
// messages into one JSON document.
func (h *ProfileHandler) Export(c *gin.Context) {
	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	conversations, err := h.convRepo.ListForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	requests, err := h.requestRepo.ListForUser(ctx, userID, "all", 1000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	messagesByConversation := map[int][]models.Message{}
	for _, conv := range conversations {
		page, err := h.messageRepo.ListPage(ctx, conv.ID, userID, 1000, nil)
		if err != nil {
			continue
		}
		messagesByConversation[conv.ID] = page.Messages
	}

	c.Header("Content-Disposition", `attachment; filename="profile-export.json"`)
	c.JSON(http.StatusOK, gin.H{
		"exportedAt":    time.Now().UTC(),
		"user":          user,
		"conversations": conversations,
		"requests":      requests,
		"messages":      messagesByConversation,
	})
}
