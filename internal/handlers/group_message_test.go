package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

func setupGroupMessageRouter(handler *GroupMessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/groups/:id/messages", handler.Post)
	r.POST("/groups/:id/read", handler.MarkRead)
	return r
}

func newGroupMessageHandler(groupRepo *mocks.GroupRepositoryMock, messageRepo *mocks.GroupMessageRepositoryMock) *GroupMessageHandler {
	return NewGroupMessageHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil, ws.NewHub())
}

func TestMutedMemberCannotPost(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	router := setupGroupMessageRouter(newGroupMessageHandler(groupRepo, messageRepo))

	until := time.Now().Add(time.Hour)
	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{
		GroupID:    2,
		UserID:     1,
		Role:       models.RoleMember,
		MutedUntil: &until,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/2/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	groupRepo.AssertExpectations(t)
}

func TestLapsedMuteAllowsPost(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	router := setupGroupMessageRouter(newGroupMessageHandler(groupRepo, messageRepo))

	until := time.Now().Add(-time.Minute)
	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{
		GroupID:    2,
		UserID:     1,
		Role:       models.RoleMember,
		MutedUntil: &until,
	}, nil).Once()
	messageRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *models.GroupMessage) bool {
		return m.GroupID == 2 && m.SenderID == 1 && m.Content == "hi" && m.Type == "text"
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/2/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGroupMarkReadScopedToGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	router := setupGroupMessageRouter(newGroupMessageHandler(groupRepo, messageRepo))

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleMember}, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 2, 7, 1).Return(models.ReadReceipt{MessageID: 7, UserID: 1}, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 2, 8, 1).Return(models.ReadReceipt{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/2/read", bytes.NewBufferString(`{"messageIds":[7,8]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}
