// Package presence tracks short-lived typing indicators in Redis.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypingWindow is how long a typing signal stays visible.
const TypingWindow = 5 * time.Second

// TypingStore keeps one sorted set per room, member = user ID and
// score = unix milliseconds of the latest signal. Stale entries are
// trimmed lazily on read.
type TypingStore struct {
	client *redis.Client
}

func NewTypingStore(client *redis.Client) *TypingStore {
	return &TypingStore{client: client}
}

func conversationKey(id int) string { return fmt.Sprintf("typing:conv:%d", id) }
func groupKey(id int) string        { return fmt.Sprintf("typing:group:%d", id) }

// SetConversation records a typing signal in a direct conversation.
func (s *TypingStore) SetConversation(ctx context.Context, conversationID, userID int) error {
	return s.set(ctx, conversationKey(conversationID), userID)
}

// SetGroup records a typing signal in a group room.
func (s *TypingStore) SetGroup(ctx context.Context, groupID, userID int) error {
	return s.set(ctx, groupKey(groupID), userID)
}

// ClearConversation drops the user's signal early, before the window ends.
func (s *TypingStore) ClearConversation(ctx context.Context, conversationID, userID int) error {
	return s.client.ZRem(ctx, conversationKey(conversationID), strconv.Itoa(userID)).Err()
}

func (s *TypingStore) ClearGroup(ctx context.Context, groupID, userID int) error {
	return s.client.ZRem(ctx, groupKey(groupID), strconv.Itoa(userID)).Err()
}

// Conversation returns user IDs typing right now, excluding the caller.
func (s *TypingStore) Conversation(ctx context.Context, conversationID, callerID int) ([]int, error) {
	return s.live(ctx, conversationKey(conversationID), callerID)
}

func (s *TypingStore) Group(ctx context.Context, groupID, callerID int) ([]int, error) {
	return s.live(ctx, groupKey(groupID), callerID)
}

func (s *TypingStore) set(ctx context.Context, key string, userID int) error {
	now := time.Now()
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: strconv.Itoa(userID)})
	pipe.Expire(ctx, key, 2*TypingWindow)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *TypingStore) live(ctx context.Context, key string, callerID int) ([]int, error) {
	cutoff := time.Now().Add(-TypingWindow).UnixMilli()
	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	members := pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	ids := []int{}
	for _, m := range members.Val() {
		id, err := strconv.Atoi(m)
		if err != nil || id == callerID {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
