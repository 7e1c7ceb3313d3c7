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

func setupChatRequestRouter(handler *ChatRequestHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/chat-requests", handler.Create)
	r.GET("/chat-requests", handler.List)
	r.PATCH("/chat-requests/:id", handler.Respond)
	r.DELETE("/chat-requests/:id", handler.Delete)
	r.GET("/users/:id/connection", handler.Connection)
	return r
}

func TestCreateChatRequestSuccess(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, userRepo, new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	userRepo.On("GetRef", mock.Anything, 2).Return(models.UserRef{ID: 2, Name: "bob"}, nil).Once()
	requestRepo.On("PairStatus", mock.Anything, 1, 2).Return(repositories.PairStatus{UsedQuota: 1}, nil).Once()
	requestRepo.On("Create", mock.Anything, 1, 2, (*string)(nil)).Return(models.ChatRequest{ID: 9, SenderID: 1, ReceiverID: 2, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat-requests", bytes.NewBufferString(`{"receiverId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(1), resp["remainingRequests"])
	requestRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestCreateChatRequestToSelf(t *testing.T) {
	handler := NewChatRequestHandler(new(mocks.ChatRequestRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chat-requests", bytes.NewBufferString(`{"receiverId":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateChatRequestQuotaExceeded(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, userRepo, new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	userRepo.On("GetRef", mock.Anything, 2).Return(models.UserRef{ID: 2}, nil).Once()
	requestRepo.On("PairStatus", mock.Anything, 1, 2).Return(repositories.PairStatus{UsedQuota: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat-requests", bytes.NewBufferString(`{"receiverId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestCreateChatRequestAlreadyPending(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, userRepo, new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	userRepo.On("GetRef", mock.Anything, 2).Return(models.UserRef{ID: 2}, nil).Once()
	requestRepo.On("PairStatus", mock.Anything, 1, 2).Return(repositories.PairStatus{Pending: &models.ChatRequest{ID: 4, SenderID: 2, ReceiverID: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat-requests", bytes.NewBufferString(`{"receiverId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestCreateChatRequestReceiverNotFound(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatRequestHandler(new(mocks.ChatRequestRepositoryMock), userRepo, new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	userRepo.On("GetRef", mock.Anything, 99).Return(models.UserRef{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat-requests", bytes.NewBufferString(`{"receiverId":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRespondAcceptReturnsConversation(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	requestRepo.On("GetByID", mock.Anything, 5).Return(models.ChatRequest{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.RequestPending}, nil).Once()
	requestRepo.On("Accept", mock.Anything, 5).Return(12, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/chat-requests/5", bytes.NewBufferString(`{"action":"accept"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(12), resp["conversationId"])
	assert.Equal(t, models.RequestAccepted, resp["status"])
	requestRepo.AssertExpectations(t)
}

func TestRespondForbiddenForSender(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	requestRepo.On("GetByID", mock.Anything, 5).Return(models.ChatRequest{ID: 5, SenderID: 1, ReceiverID: 3, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/chat-requests/5", bytes.NewBufferString(`{"action":"accept"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestRespondAlreadyHandled(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	requestRepo.On("GetByID", mock.Anything, 5).Return(models.ChatRequest{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.RequestAccepted}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/chat-requests/5", bytes.NewBufferString(`{"action":"reject"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestDeleteRequestSenderOnly(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	requestRepo.On("GetByID", mock.Anything, 7).Return(models.ChatRequest{ID: 7, SenderID: 4, ReceiverID: 1, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat-requests/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestConnectionStates(t *testing.T) {
	requestRepo := new(mocks.ChatRequestRepositoryMock)
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatRequestHandler(requestRepo, new(mocks.UserRepositoryMock), convRepo, nil)
	router := setupChatRequestRouter(handler)

	requestRepo.On("PairStatus", mock.Anything, 1, 2).Return(repositories.PairStatus{Accepted: &models.ChatRequest{ID: 3}}, nil).Once()
	convRepo.On("FindDirectBetween", mock.Anything, 1, 2).Return(models.Conversation{ID: 8}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/2/connection", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "connected", resp["status"])
	assert.Equal(t, float64(8), resp["conversationId"])

	requestRepo.On("PairStatus", mock.Anything, 1, 3).Return(repositories.PairStatus{UsedQuota: 2}, nil).Once()
	req = httptest.NewRequest(http.MethodGet, "/users/3/connection", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp = map[string]any{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "not_connected", resp["status"])
	assert.Equal(t, true, resp["canSendRequest"])
	assert.Equal(t, float64(1), resp["remainingRequests"])

	requestRepo.AssertExpectations(t)
	convRepo.AssertExpectations(t)
}

func TestListRequestsInvalidType(t *testing.T) {
	handler := NewChatRequestHandler(new(mocks.ChatRequestRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), nil)
	router := setupChatRequestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chat-requests?type=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
