package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, email, name, passwordHash string) (models.User, error) {
	args := m.Called(ctx, email, name, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetRef(ctx context.Context, id int) (models.UserRef, error) {
	args := m.Called(ctx, id)
	var ref models.UserRef
	if val := args.Get(0); val != nil {
		ref = val.(models.UserRef)
	}
	return ref, args.Error(1)
}

func (m *UserRepositoryMock) List(ctx context.Context, search string, limit int) ([]models.User, error) {
	args := m.Called(ctx, search, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, id int, update repositories.ProfileUpdate) (models.User, error) {
	args := m.Called(ctx, id, update)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateStatus(ctx context.Context, id int, status string) (models.User, error) {
	args := m.Called(ctx, id, status)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateRole(ctx context.Context, id int, role string) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *UserRepositoryMock) RemoveImage(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type ChatRequestRepositoryMock struct {
	mock.Mock
}

func (m *ChatRequestRepositoryMock) Create(ctx context.Context, senderID, receiverID int, message *string) (models.ChatRequest, error) {
	args := m.Called(ctx, senderID, receiverID, message)
	var req models.ChatRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ChatRequest)
	}
	return req, args.Error(1)
}

func (m *ChatRequestRepositoryMock) GetByID(ctx context.Context, id int) (models.ChatRequest, error) {
	args := m.Called(ctx, id)
	var req models.ChatRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ChatRequest)
	}
	return req, args.Error(1)
}

func (m *ChatRequestRepositoryMock) ListForUser(ctx context.Context, userID int, kind string, limit int) ([]models.ChatRequest, error) {
	args := m.Called(ctx, userID, kind, limit)
	var reqs []models.ChatRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ChatRequest)
	}
	return reqs, args.Error(1)
}

func (m *ChatRequestRepositoryMock) PairStatus(ctx context.Context, userID, otherID int) (repositories.PairStatus, error) {
	args := m.Called(ctx, userID, otherID)
	var status repositories.PairStatus
	if val := args.Get(0); val != nil {
		status = val.(repositories.PairStatus)
	}
	return status, args.Error(1)
}

func (m *ChatRequestRepositoryMock) Accept(ctx context.Context, id int) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *ChatRequestRepositoryMock) Reject(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ChatRequestRepositoryMock) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) GetForUser(ctx context.Context, conversationID, userID int) (models.ConversationSummary, error) {
	args := m.Called(ctx, conversationID, userID)
	var summary models.ConversationSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.ConversationSummary)
	}
	return summary, args.Error(1)
}

func (m *ConversationRepositoryMock) FindDirectBetween(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, creatorID int, participantIDs []int, name *string, isGroup bool) (models.ConversationSummary, error) {
	args := m.Called(ctx, creatorID, participantIDs, name, isGroup)
	var summary models.ConversationSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.ConversationSummary)
	}
	return summary, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateOverlay(ctx context.Context, conversationID, userID int, update repositories.OverlayUpdate) error {
	args := m.Called(ctx, conversationID, userID, update)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Leave(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) GetByID(ctx context.Context, id int) (models.Message, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, conversationID, userID, limit int, before *int) (models.MessagePage, error) {
	args := m.Called(ctx, conversationID, userID, limit, before)
	var page models.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(models.MessagePage)
	}
	return page, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error) {
	args := m.Called(ctx, messageID, callerID)
	var groups []models.ReactionGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ReactionGroup)
	}
	return groups, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID, messageID, userID int) (models.ReadReceipt, error) {
	args := m.Called(ctx, conversationID, messageID, userID)
	var receipt models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipt = val.(models.ReadReceipt)
	}
	return receipt, args.Error(1)
}

func (m *MessageRepositoryMock) ListReads(ctx context.Context, messageID int) ([]models.ReadReceipt, error) {
	args := m.Called(ctx, messageID)
	var receipts []models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.ReadReceipt)
	}
	return receipts, args.Error(1)
}

func (m *MessageRepositoryMock) Search(ctx context.Context, conversationID, userID int, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID, query, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListMedia(ctx context.Context, conversationID int, mediaType string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, mediaType, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ClearFromUser(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) Create(ctx context.Context, creatorID int, name string, description, image *string, isPrivate bool, maxMembers int) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, description, image, isPrivate, maxMembers)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) List(ctx context.Context, callerID int, filter, search string) ([]models.Group, error) {
	args := m.Called(ctx, callerID, filter, search)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) Get(ctx context.Context, groupID, callerID int) (models.Group, error) {
	args := m.Called(ctx, groupID, callerID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) Update(ctx context.Context, groupID int, update repositories.GroupUpdate) (models.Group, error) {
	args := m.Called(ctx, groupID, update)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) Delete(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	var member models.GroupMember
	if val := args.Get(0); val != nil {
		member = val.(models.GroupMember)
	}
	return member, args.Error(1)
}

func (m *GroupRepositoryMock) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	args := m.Called(ctx, groupID)
	var members []models.GroupMember
	if val := args.Get(0); val != nil {
		members = val.([]models.GroupMember)
	}
	return members, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID int, role string) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetMemberRole(ctx context.Context, groupID, userID int, role string) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetMemberMute(ctx context.Context, groupID, userID int, until *time.Time) error {
	args := m.Called(ctx, groupID, userID, until)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetMemberNickname(ctx context.Context, groupID, userID int, nickname *string) error {
	args := m.Called(ctx, groupID, userID, nickname)
	return args.Error(0)
}

func (m *GroupRepositoryMock) CountMembers(ctx context.Context, groupID int) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) Create(ctx context.Context, msg *models.GroupMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) GetByID(ctx context.Context, id int) (models.GroupMessage, error) {
	args := m.Called(ctx, id)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListPage(ctx context.Context, groupID, limit int, before *int) (repositories.GroupMessagePage, error) {
	args := m.Called(ctx, groupID, limit, before)
	var page repositories.GroupMessagePage
	if val := args.Get(0); val != nil {
		page = val.(repositories.GroupMessagePage)
	}
	return page, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Edit(ctx context.Context, messageID, senderID int, content string) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) SoftDeleteAny(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error) {
	args := m.Called(ctx, messageID, callerID)
	var groups []models.ReactionGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ReactionGroup)
	}
	return groups, args.Error(1)
}

func (m *GroupMessageRepositoryMock) MarkRead(ctx context.Context, groupID, messageID, userID int) (models.ReadReceipt, error) {
	args := m.Called(ctx, groupID, messageID, userID)
	var receipt models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipt = val.(models.ReadReceipt)
	}
	return receipt, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Search(ctx context.Context, groupID int, query string, limit int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, query, limit)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ClearFromUser(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type CallRepositoryMock struct {
	mock.Mock
}

func (m *CallRepositoryMock) Create(ctx context.Context, initiatorID, receiverID int, callType string, offer json.RawMessage) (models.Call, error) {
	args := m.Called(ctx, initiatorID, receiverID, callType, offer)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) GetByID(ctx context.Context, id int) (models.Call, error) {
	args := m.Called(ctx, id)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) CancelPendingFrom(ctx context.Context, initiatorID int) (int64, error) {
	args := m.Called(ctx, initiatorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CallRepositoryMock) FindIncoming(ctx context.Context, receiverID int) (models.Call, error) {
	args := m.Called(ctx, receiverID)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) FindActive(ctx context.Context, userID int) (models.Call, error) {
	args := m.Called(ctx, userID)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) Answer(ctx context.Context, callID int, answer json.RawMessage) (models.Call, error) {
	args := m.Called(ctx, callID, answer)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) AddCandidate(ctx context.Context, callID, userID int, candidate json.RawMessage) (models.Call, error) {
	args := m.Called(ctx, callID, userID, candidate)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) Finish(ctx context.Context, callID int, fromStatus []string, toStatus string) (models.Call, error) {
	args := m.Called(ctx, callID, fromStatus, toStatus)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) ExpirePending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CallRepositoryMock) History(ctx context.Context, userID, limit int, callType string) ([]models.Call, error) {
	args := m.Called(ctx, userID, limit, callType)
	var calls []models.Call
	if val := args.Get(0); val != nil {
		calls = val.([]models.Call)
	}
	return calls, args.Error(1)
}
