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

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/groups", handler.Create)
	r.GET("/groups/:id", handler.Get)
	r.DELETE("/groups/:id", handler.Delete)
	r.POST("/groups/:id/members", handler.Join)
	r.DELETE("/groups/:id/members", handler.Leave)
	r.PATCH("/groups/:id/members/:user_id", handler.UpdateMember)
	r.DELETE("/groups/:id/members/:user_id", handler.KickMember)
	return r
}

func TestCreateGroupDefaultsMemberLimit(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("Create", mock.Anything, 1, "book club", (*string)(nil), (*string)(nil), false, 100).Return(models.Group{ID: 2, Name: "book club"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"name":"book club","maxMembers":0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestDeleteGroupOwnerOnly(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleAdmin}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestJoinPrivateGroupForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("Get", mock.Anything, 2, 1).Return(models.Group{ID: 2, IsPrivate: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/2/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestJoinFullGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("Get", mock.Anything, 2, 1).Return(models.Group{ID: 2}, nil).Once()
	groupRepo.On("AddMember", mock.Anything, 2, 1, models.RoleMember).Return(repositories.ErrGroupFull).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/2/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestKickOwnerForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleOwner}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2/members/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestAdminCannotKickAdmin(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleAdmin}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2/members/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestOwnerKicksAdmin(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleOwner}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleAdmin}, nil).Once()
	groupRepo.On("RemoveMember", mock.Anything, 2, 3).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2/members/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestRoleChangeOwnerOnly(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleMember}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/groups/2/members/3", bytes.NewBufferString(`{"role":"admin"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestOwnerPromotesMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleOwner}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleMember}, nil).Once()
	groupRepo.On("SetMemberRole", mock.Anything, 2, 3, models.RoleAdmin).Return(nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleAdmin}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/groups/2/members/3", bytes.NewBufferString(`{"role":"admin"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Member models.GroupMember `json:"member"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.RoleAdmin, resp.Member.Role)
	groupRepo.AssertExpectations(t)
}

func TestMuteOwnerForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	groupRepo.On("GetMember", mock.Anything, 2, 3).Return(models.GroupMember{GroupID: 2, UserID: 3, Role: models.RoleOwner}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/groups/2/members/3", bytes.NewBufferString(`{"muteMinutes":10}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestOwnerLeaveNeedsHandover(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleOwner}, nil).Once()
	groupRepo.On("ListMembers", mock.Anything, 2).Return([]models.GroupMember{
		{GroupID: 2, UserID: 1, Role: models.RoleOwner},
		{GroupID: 2, UserID: 3, Role: models.RoleMember},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestSoleOwnerLeaveDeletesGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetMember", mock.Anything, 2, 1).Return(models.GroupMember{GroupID: 2, UserID: 1, Role: models.RoleOwner}, nil).Once()
	groupRepo.On("ListMembers", mock.Anything, 2).Return([]models.GroupMember{
		{GroupID: 2, UserID: 1, Role: models.RoleOwner},
	}, nil).Once()
	groupRepo.On("Delete", mock.Anything, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/2/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["groupDeleted"])
	groupRepo.AssertExpectations(t)
}
