package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupCallRouter(handler *CallHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/calls", handler.Create)
	r.GET("/calls", handler.Get)
	r.PATCH("/calls/:id", handler.Update)
	r.DELETE("/calls/:id", handler.Delete)
	return r
}

func TestCreateCallCancelsEarlierRings(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewCallHandler(callRepo, userRepo)
	router := setupCallRouter(handler)

	userRepo.On("GetRef", mock.Anything, 2).Return(models.UserRef{ID: 2}, nil).Once()
	callRepo.On("CancelPendingFrom", mock.Anything, 1).Return(int64(1), nil).Once()
	callRepo.On("Create", mock.Anything, 1, 2, "video", mock.Anything).Return(models.Call{ID: 5, InitiatorID: 1, ReceiverID: 2, Status: models.CallPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/calls", bytes.NewBufferString(`{"receiverId":2,"type":"video","offer":{"sdp":"x"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	callRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestAnswerCallReceiverOnly(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	handler := NewCallHandler(callRepo, new(mocks.UserRepositoryMock))
	router := setupCallRouter(handler)

	callRepo.On("GetByID", mock.Anything, 5).Return(models.Call{ID: 5, InitiatorID: 1, ReceiverID: 2, Status: models.CallPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/calls/5", bytes.NewBufferString(`{"action":"answer","answer":{"sdp":"y"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	callRepo.AssertExpectations(t)
}

func TestRejectFinishedCall(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	handler := NewCallHandler(callRepo, new(mocks.UserRepositoryMock))
	router := setupCallRouter(handler)

	callRepo.On("GetByID", mock.Anything, 5).Return(models.Call{ID: 5, InitiatorID: 2, ReceiverID: 1, Status: models.CallCompleted}, nil).Once()
	callRepo.On("Finish", mock.Anything, 5, []string{models.CallPending}, models.CallRejected).Return(models.Call{}, repositories.ErrCallNotActive).Once()

	req := httptest.NewRequest(http.MethodPatch, "/calls/5", bytes.NewBufferString(`{"action":"reject"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	callRepo.AssertExpectations(t)
}

func TestHangupPendingAsInitiator(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	handler := NewCallHandler(callRepo, new(mocks.UserRepositoryMock))
	router := setupCallRouter(handler)

	callRepo.On("GetByID", mock.Anything, 5).Return(models.Call{ID: 5, InitiatorID: 1, ReceiverID: 2, Status: models.CallPending}, nil).Once()
	callRepo.On("Finish", mock.Anything, 5, []string{models.CallPending, models.CallActive}, models.CallCancelled).Return(models.Call{ID: 5, Status: models.CallCancelled}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/calls/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Call models.Call `json:"call"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.CallCancelled, resp.Call.Status)
	callRepo.AssertExpectations(t)
}

func TestGetCallsNonParticipant(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	handler := NewCallHandler(callRepo, new(mocks.UserRepositoryMock))
	router := setupCallRouter(handler)

	callRepo.On("GetByID", mock.Anything, 5).Return(models.Call{ID: 5, InitiatorID: 2, ReceiverID: 3, Status: models.CallPending}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/calls?callId=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	callRepo.AssertExpectations(t)
}

func TestGetCallsSettlesStaleRings(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	handler := NewCallHandler(callRepo, new(mocks.UserRepositoryMock))
	router := setupCallRouter(handler)

	callRepo.On("ExpirePending", mock.Anything).Return(int64(1), nil).Once()
	callRepo.On("FindIncoming", mock.Anything, 1).Return(models.Call{}, repositories.ErrCallNotFound).Once()
	callRepo.On("FindActive", mock.Anything, 1).Return(models.Call{}, repositories.ErrCallNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/calls", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	callRepo.AssertExpectations(t)
}
