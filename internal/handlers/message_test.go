package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations/:id/messages", handler.List)
	r.POST("/conversations/:id/messages", handler.Post)
	r.PATCH("/conversations/:id/messages/:message_id", handler.Edit)
	r.DELETE("/conversations/:id/messages/:message_id", handler.Delete)
	r.POST("/conversations/:id/messages/:message_id/reactions", handler.ToggleReaction)
	r.GET("/conversations/:id/messages/search", handler.Search)
	r.POST("/conversations/:id/messages/read", handler.MarkRead)
	r.GET("/conversations/:id/messages/:message_id/reads", handler.ListReads)
	return r
}

func newMessageHandler(convRepo *mocks.ConversationRepositoryMock, messageRepo *mocks.MessageRepositoryMock) *MessageHandler {
	return NewMessageHandler(convRepo, messageRepo, new(mocks.UserRepositoryMock), nil, ws.NewHub())
}

func TestPostMessageSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *models.Message) bool {
		return m.ConversationID == 4 && m.SenderID == 1 && m.Content == "hello" && m.Type == "text"
	})).Return(nil).Once()
	convRepo.On("Touch", mock.Anything, 4).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/4/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageNotParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, new(mocks.MessageRepositoryMock)))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/4/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestPostMessageTooLong(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, new(mocks.MessageRepositoryMock)))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()

	body, err := json.Marshal(gin.H{"content": strings.Repeat("x", models.MaxMessageLength+1)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/conversations/4/messages", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditMessageNotSender(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("Edit", mock.Anything, 9, 1, "fixed").Return(models.Message{}, repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodPatch, "/conversations/4/messages/9", bytes.NewBufferString(`{"content":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestEditNonTextMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("Edit", mock.Anything, 9, 1, "fixed").Return(models.Message{}, repositories.ErrNotEditable).Once()

	req := httptest.NewRequest(http.MethodPatch, "/conversations/4/messages/9", bytes.NewBufferString(`{"content":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("SoftDelete", mock.Anything, 9, 1).Return(repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/4/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestToggleReactionAddAndRemove(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Twice()
	messageRepo.On("ToggleReaction", mock.Anything, 9, 1, "👍").Return(true, nil).Once()
	messageRepo.On("ToggleReaction", mock.Anything, 9, 1, "👍").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/4/messages/9/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/conversations/4/messages/9/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["removed"])

	messageRepo.AssertExpectations(t)
}

func TestSearchRequiresQuery(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, new(mocks.MessageRepositoryMock)))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/4/messages/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadSkipsForeignMessages(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 4, 7, 1).Return(models.ReadReceipt{MessageID: 7, UserID: 1}, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 4, 8, 1).Return(models.ReadReceipt{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/4/messages/read", bytes.NewBufferString(`{"messageIds":[7,8]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Receipts []models.ReadReceipt `json:"receipts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Receipts, 1)
	assert.Equal(t, 7, resp.Receipts[0].MessageID)

	messageRepo.AssertExpectations(t)
}

func TestListReadsReturnsReceipts(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("GetByID", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 4}, nil).Once()
	messageRepo.On("ListReads", mock.Anything, 9).Return([]models.ReadReceipt{
		{MessageID: 9, UserID: 2},
		{MessageID: 9, UserID: 3},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/4/messages/9/reads", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reads []models.ReadReceipt `json:"reads"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Reads, 2)
	messageRepo.AssertExpectations(t)
}

func TestListReadsForeignMessageNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(convRepo, messageRepo))

	convRepo.On("IsParticipant", mock.Anything, 4, 1).Return(true, nil).Once()
	messageRepo.On("GetByID", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 6}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/4/messages/9/reads", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "ListReads", mock.Anything, 9)
}
