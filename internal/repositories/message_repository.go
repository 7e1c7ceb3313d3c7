package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("not the message sender")
	ErrMessageDeleted  = errors.New("message already deleted")
	ErrNotEditable     = errors.New("message not editable")
)

const messageColumns = `id, conversation_id, sender_id, content, type, reply_to_id, is_deleted, is_edited, created_at`

// MessageRepository covers direct-conversation messages, reactions,
// and read receipts.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id int) (models.Message, error)
	ListPage(ctx context.Context, conversationID, userID, limit int, before *int) (models.MessagePage, error)
	Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID, senderID int) error
	ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (added bool, err error)
	ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error)
	MarkRead(ctx context.Context, conversationID, messageID, userID int) (models.ReadReceipt, error)
	ListReads(ctx context.Context, messageID int) ([]models.ReadReceipt, error)
	Search(ctx context.Context, conversationID, userID int, query string, limit int) ([]models.Message, error)
	ListMedia(ctx context.Context, conversationID int, mediaType string, limit int) ([]models.Message, error)
	ClearFromUser(ctx context.Context, userID int) (int64, error)
}

// MessageRepo is the sqlx implementation.
type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts the message. A reply_to_id pointing outside the
// conversation is stored as NULL rather than rejected.
func (r *MessageRepo) Create(ctx context.Context, msg *models.Message) error {
	if msg.ReplyToID != nil {
		var ok bool
		err := r.db.GetContext(ctx, &ok,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1 AND conversation_id=$2 AND is_deleted = FALSE)`,
			*msg.ReplyToID, msg.ConversationID)
		if err != nil {
			return err
		}
		if !ok {
			msg.ReplyToID = nil
		}
	}

	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, type, reply_to_id)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.ReplyToID).StructScan(msg)
	if err != nil {
		return err
	}
	return r.attachRefs(ctx, msg)
}

func (r *MessageRepo) GetByID(ctx context.Context, id int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return msg, r.attachRefs(ctx, &msg)
}

// ListPage returns one page of live messages before the cursor,
// re-sorted chronological, honoring the caller's cleared_at watermark.
// Soft-deleted messages never appear.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID, userID, limit int, before *int) (models.MessagePage, error) {
	var clearedAt sql.NullTime
	err := r.db.GetContext(ctx, &clearedAt,
		`SELECT cleared_at FROM conversation_users WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessagePage{}, ErrConversationNotFound
	}
	if err != nil {
		return models.MessagePage{}, err
	}

	var msgs []models.Message
	err = r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1
          AND is_deleted = FALSE
          AND ($2::timestamptz IS NULL OR created_at > $2)
          AND ($3::int IS NULL OR id < $3)
        ORDER BY id DESC LIMIT $4`,
		conversationID, clearedAt, before, limit+1)
	if err != nil {
		return models.MessagePage{}, err
	}

	page := models.MessagePage{}
	if len(msgs) > limit {
		msgs = msgs[:limit]
		page.HasMore = true
	}
	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for i := range msgs {
		if err := r.attachRefs(ctx, &msgs[i]); err != nil {
			return models.MessagePage{}, err
		}
	}
	if page.HasMore && len(msgs) > 0 {
		cursor := msgs[0].ID
		page.NextCursor = &cursor
	}
	page.Messages = msgs
	return page, nil
}

// Edit replaces the content of the sender's own text message. The WHERE
// clause enforces sender, type and liveness in one statement; the error
// is refined afterwards so callers can tell 403 from 404 from 409.
func (r *MessageRepo) Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$3, is_edited=TRUE
         WHERE id=$1 AND sender_id=$2 AND type='text' AND is_deleted = FALSE
         RETURNING `+messageColumns,
		messageID, senderID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.editFailure(ctx, messageID, senderID)
	}
	if err != nil {
		return models.Message{}, err
	}
	return msg, r.attachRefs(ctx, &msg)
}

func (r *MessageRepo) editFailure(ctx context.Context, messageID, senderID int) error {
	var probe struct {
		SenderID  int    `db:"sender_id"`
		Type      string `db:"type"`
		IsDeleted bool   `db:"is_deleted"`
	}
	err := r.db.GetContext(ctx, &probe,
		`SELECT sender_id, type, is_deleted FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	switch {
	case probe.SenderID != senderID:
		return ErrNotSender
	case probe.IsDeleted:
		return ErrMessageDeleted
	default:
		return ErrNotEditable
	}
}

// SoftDelete tombstones the sender's own message.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, senderID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted=TRUE WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE`,
		messageID, senderID)
	if err != nil {
		return err
	}
	if err := requireRow(res, ErrMessageNotFound); err == nil {
		return nil
	}
	var probe struct {
		SenderID  int  `db:"sender_id"`
		IsDeleted bool `db:"is_deleted"`
	}
	err = r.db.GetContext(ctx, &probe, `SELECT sender_id, is_deleted FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if probe.SenderID != senderID {
		return ErrNotSender
	}
	return ErrMessageDeleted
}

// ToggleReaction adds the (user, message, emoji) row, or removes it when
// it already exists. The unique index makes the insert race-safe.
func (r *MessageRepo) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	return false, err
}

// ListReactions groups a message's reactions per emoji.
func (r *MessageRepo) ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error) {
	var rows []struct {
		Emoji  string  `db:"emoji"`
		UserID int     `db:"user_id"`
		Name   string  `db:"name"`
		Image  *string `db:"image"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT mr.emoji, mr.user_id, u.name, u.image
        FROM message_reactions mr
        JOIN users u ON u.id = mr.user_id
        WHERE mr.message_id=$1
        ORDER BY mr.emoji, mr.created_at`, messageID)
	if err != nil {
		return nil, err
	}

	groups := make([]models.ReactionGroup, 0)
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.Emoji]
		if !ok {
			i = len(groups)
			index[row.Emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: row.Emoji, Users: []models.UserRef{}})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, models.UserRef{ID: row.UserID, Name: row.Name, Image: row.Image})
		if row.UserID == callerID {
			groups[i].HasReacted = true
		}
	}
	return groups, nil
}

// MarkRead upserts the receipt; re-reads keep the original timestamp.
// The message must be a live row of the given conversation, so a
// participant cannot stamp receipts on foreign message ids.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, messageID, userID int) (models.ReadReceipt, error) {
	var receipt models.ReadReceipt
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO read_receipts (message_id, user_id)
         SELECT m.id, $3 FROM messages m
         WHERE m.id=$2 AND m.conversation_id=$1 AND m.is_deleted = FALSE
         ON CONFLICT (message_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
         RETURNING message_id, user_id, read_at`,
		conversationID, messageID, userID).StructScan(&receipt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReadReceipt{}, ErrMessageNotFound
	}
	return receipt, err
}

func (r *MessageRepo) ListReads(ctx context.Context, messageID int) ([]models.ReadReceipt, error) {
	receipts := []models.ReadReceipt{}
	err := r.db.SelectContext(ctx, &receipts,
		`SELECT message_id, user_id, read_at FROM read_receipts WHERE message_id=$1 ORDER BY read_at`,
		messageID)
	return receipts, err
}

// Search does a case-insensitive substring match over live text messages,
// newest first, bounded by the caller's cleared_at watermark.
func (r *MessageRepo) Search(ctx context.Context, conversationID, userID int, query string, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages m
        WHERE m.conversation_id=$1 AND m.is_deleted = FALSE AND m.type='text'
          AND m.content ILIKE '%' || $3 || '%'
          AND m.created_at > COALESCE(
              (SELECT cleared_at FROM conversation_users WHERE conversation_id=$1 AND user_id=$2),
              '-infinity'::timestamptz)
        ORDER BY m.id DESC LIMIT $4`,
		conversationID, userID, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := r.attachRefs(ctx, &msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// ListMedia returns live non-text messages, optionally one media type.
func (r *MessageRepo) ListMedia(ctx context.Context, conversationID int, mediaType string, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 AND is_deleted = FALSE AND type <> 'text'
          AND ($2 = '' OR type = $2)
        ORDER BY id DESC LIMIT $3`,
		conversationID, mediaType, limit)
	return msgs, err
}

// ClearFromUser tombstones every message the user ever sent, used by
// moderation.
func (r *MessageRepo) ClearFromUser(ctx context.Context, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted=TRUE WHERE sender_id=$1 AND is_deleted = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MessageRepo) attachRefs(ctx context.Context, msg *models.Message) error {
	var sender models.UserRef
	err := r.db.GetContext(ctx, &sender, `SELECT id, name, image FROM users WHERE id=$1`, msg.SenderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err == nil {
		msg.Sender = &sender
	}

	if msg.ReplyToID != nil {
		var ref models.ReplyRef
		err := r.db.GetContext(ctx, &ref, `SELECT m.id, m.content, u.name AS sender_name
            FROM messages m JOIN users u ON u.id = m.sender_id
            WHERE m.id=$1`, *msg.ReplyToID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil {
			msg.ReplyTo = &ref
		}
	}
	return nil
}
