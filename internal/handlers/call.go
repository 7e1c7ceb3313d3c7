package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// CallHandler covers WebRTC signaling: placing, answering, candidate
// exchange, and call history.
type CallHandler struct {
	callRepo repositories.CallRepository
	userRepo repositories.UserRepository
}

func NewCallHandler(callRepo repositories.CallRepository, userRepo repositories.UserRepository) *CallHandler {
	return &CallHandler{callRepo: callRepo, userRepo: userRepo}
}

// Create places a call. The caller's earlier pending calls are
// cancelled first so only one ring is live per initiator.
func (h *CallHandler) Create(c *gin.Context) {
	var req struct {
		ReceiverID int             `json:"receiverId" binding:"required"`
		Type       string          `json:"type" binding:"required,oneof=audio video"`
		Offer      json.RawMessage `json:"offer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if req.ReceiverID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot call yourself"})
		return
	}
	if _, err := h.userRepo.GetRef(c.Request.Context(), req.ReceiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify receiver"})
		return
	}

	if _, err := h.callRepo.CancelPendingFrom(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place call"})
		return
	}

	call, err := h.callRepo.Create(c.Request.Context(), userID, req.ReceiverID, req.Type, req.Offer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place call"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": call})
}

// Get returns a specific call by ?callId= or, without it, the incoming
// pending call within the ring window plus any active call.
func (h *CallHandler) Get(c *gin.Context) {
	userID := c.GetInt("userID")

	if raw := c.Query("callId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
			return
		}
		call, err := h.callRepo.GetByID(c.Request.Context(), id)
		if errors.Is(err, repositories.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load call"})
			return
		}
		if !call.IsParticipant(userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"call": call})
		return
	}

	// stale rings flip to missed before they are reported as incoming
	_, _ = h.callRepo.ExpirePending(c.Request.Context())

	resp := gin.H{}
	if incoming, err := h.callRepo.FindIncoming(c.Request.Context(), userID); err == nil {
		resp["incoming"] = incoming
	} else if !errors.Is(err, repositories.ErrCallNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load calls"})
		return
	}
	if active, err := h.callRepo.FindActive(c.Request.Context(), userID); err == nil {
		resp["active"] = active
	} else if !errors.Is(err, repositories.ErrCallNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load calls"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update applies a signaling action to the call.
func (h *CallHandler) Update(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	var req struct {
		Action    string          `json:"action" binding:"required,oneof=answer ice-candidate accept reject end status"`
		Answer    json.RawMessage `json:"answer"`
		Candidate json.RawMessage `json:"candidate"`
		Status    string          `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	call, err := h.callRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrCallNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load call"})
		return
	}
	if !call.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	var updated models.Call
	switch req.Action {
	case "answer", "accept":
		if call.ReceiverID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can answer"})
			return
		}
		updated, err = h.callRepo.Answer(c.Request.Context(), id, req.Answer)

	case "ice-candidate":
		if len(req.Candidate) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "candidate is required"})
			return
		}
		updated, err = h.callRepo.AddCandidate(c.Request.Context(), id, userID, req.Candidate)

	case "reject":
		if call.ReceiverID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can reject"})
			return
		}
		updated, err = h.callRepo.Finish(c.Request.Context(), id, []string{models.CallPending}, models.CallRejected)

	case "end":
		updated, err = h.callRepo.Finish(c.Request.Context(), id,
			[]string{models.CallPending, models.CallActive}, endStatus(call.Status))

	case "status":
		switch req.Status {
		case models.CallMissed, models.CallCancelled, models.CallCompleted:
			updated, err = h.callRepo.Finish(c.Request.Context(), id,
				[]string{models.CallPending, models.CallActive}, req.Status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	if errors.Is(err, repositories.ErrCallNotActive) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call is not in a state for that action"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": updated})
}

// Delete hangs up: pending calls become cancelled when the initiator
// drops them or missed when the receiver does; active calls complete.
func (h *CallHandler) Delete(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	userID := c.GetInt("userID")
	call, err := h.callRepo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrCallNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load call"})
		return
	}
	if !call.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	target := models.CallCompleted
	if call.Status == models.CallPending {
		if call.InitiatorID == userID {
			target = models.CallCancelled
		} else {
			target = models.CallMissed
		}
	}

	updated, err := h.callRepo.Finish(c.Request.Context(), id,
		[]string{models.CallPending, models.CallActive}, target)
	if errors.Is(err, repositories.ErrCallNotActive) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call already finished"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": updated})
}

// History lists the caller's calls, newest first.
func (h *CallHandler) History(c *gin.Context) {
	userID := c.GetInt("userID")
	filter := c.Query("filter")

	// settle expired rings so history shows them as missed
	_, _ = h.callRepo.ExpirePending(c.Request.Context())

	calls, err := h.callRepo.History(c.Request.Context(), userID, queryLimit(c, 50, 200), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	switch filter {
	case "":
	case "missed":
		calls = filterCalls(calls, func(call models.Call) bool {
			return call.Status == models.CallMissed && call.ReceiverID == userID
		})
	case "outgoing":
		calls = filterCalls(calls, func(call models.Call) bool { return call.InitiatorID == userID })
	case "incoming":
		calls = filterCalls(calls, func(call models.Call) bool { return call.ReceiverID == userID })
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be missed, outgoing, or incoming"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func endStatus(current string) string {
	if current == models.CallActive {
		return models.CallCompleted
	}
	return models.CallCancelled
}

func filterCalls(calls []models.Call, keep func(models.Call) bool) []models.Call {
	out := calls[:0]
	for _, call := range calls {
		if keep(call) {
			out = append(out, call)
		}
	}
	return out
}
