package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const groupMessageColumns = `id, group_id, sender_id, content, type, reply_to_id, is_deleted, is_edited, created_at`

// GroupMessagePage is one cursor page of group messages.
type GroupMessagePage struct {
	Messages   []models.GroupMessage `json:"messages"`
	NextCursor *int                  `json:"nextCursor"`
	HasMore    bool                  `json:"hasMore"`
}

// GroupMessageRepository mirrors MessageRepository for group rooms.
// Moderator deletes bypass the sender check.
type GroupMessageRepository interface {
	Create(ctx context.Context, msg *models.GroupMessage) error
	GetByID(ctx context.Context, id int) (models.GroupMessage, error)
	ListPage(ctx context.Context, groupID, limit int, before *int) (GroupMessagePage, error)
	Edit(ctx context.Context, messageID, senderID int, content string) (models.GroupMessage, error)
	SoftDelete(ctx context.Context, messageID, senderID int) error
	SoftDeleteAny(ctx context.Context, messageID int) error
	ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (added bool, err error)
	ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error)
	MarkRead(ctx context.Context, groupID, messageID, userID int) (models.ReadReceipt, error)
	Search(ctx context.Context, groupID int, query string, limit int) ([]models.GroupMessage, error)
	ClearFromUser(ctx context.Context, userID int) (int64, error)
}

// GroupMessageRepo is the sqlx implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

func (r *GroupMessageRepo) Create(ctx context.Context, msg *models.GroupMessage) error {
	if msg.ReplyToID != nil {
		var ok bool
		err := r.db.GetContext(ctx, &ok,
			`SELECT EXISTS(SELECT 1 FROM group_messages WHERE id=$1 AND group_id=$2 AND is_deleted = FALSE)`,
			*msg.ReplyToID, msg.GroupID)
		if err != nil {
			return err
		}
		if !ok {
			msg.ReplyToID = nil
		}
	}

	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO group_messages (group_id, sender_id, content, type, reply_to_id)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+groupMessageColumns,
		msg.GroupID, msg.SenderID, msg.Content, msg.Type, msg.ReplyToID).StructScan(msg)
	if err != nil {
		return err
	}
	return r.attachSender(ctx, msg)
}

func (r *GroupMessageRepo) GetByID(ctx context.Context, id int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+groupMessageColumns+` FROM group_messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.GroupMessage{}, err
	}
	return msg, r.attachSender(ctx, &msg)
}

func (r *GroupMessageRepo) ListPage(ctx context.Context, groupID, limit int, before *int) (GroupMessagePage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages
        WHERE group_id=$1 AND ($2::int IS NULL OR id < $2)
        ORDER BY id DESC LIMIT $3`, groupID, before, limit+1)
	if err != nil {
		return GroupMessagePage{}, err
	}

	page := GroupMessagePage{}
	if len(msgs) > limit {
		msgs = msgs[:limit]
		page.HasMore = true
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for i := range msgs {
		if msgs[i].IsDeleted {
			msgs[i].Content = ""
			msgs[i].ReplyToID = nil
			continue
		}
		if err := r.attachSender(ctx, &msgs[i]); err != nil {
			return GroupMessagePage{}, err
		}
	}
	if page.HasMore && len(msgs) > 0 {
		cursor := msgs[0].ID
		page.NextCursor = &cursor
	}
	page.Messages = msgs
	return page, nil
}

func (r *GroupMessageRepo) Edit(ctx context.Context, messageID, senderID int, content string) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.QueryRowxContext(ctx,
		`UPDATE group_messages SET content=$3, is_edited=TRUE
         WHERE id=$1 AND sender_id=$2 AND type='text' AND is_deleted = FALSE
         RETURNING `+groupMessageColumns,
		messageID, senderID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, r.editFailure(ctx, messageID, senderID)
	}
	if err != nil {
		return models.GroupMessage{}, err
	}
	return msg, r.attachSender(ctx, &msg)
}

func (r *GroupMessageRepo) editFailure(ctx context.Context, messageID, senderID int) error {
	var probe struct {
		SenderID  int    `db:"sender_id"`
		Type      string `db:"type"`
		IsDeleted bool   `db:"is_deleted"`
	}
	err := r.db.GetContext(ctx, &probe,
		`SELECT sender_id, type, is_deleted FROM group_messages WHERE id=$1`, messageID)
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

func (r *GroupMessageRepo) SoftDelete(ctx context.Context, messageID, senderID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_messages SET is_deleted=TRUE WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE`,
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
	err = r.db.GetContext(ctx, &probe,
		`SELECT sender_id, is_deleted FROM group_messages WHERE id=$1`, messageID)
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

// SoftDeleteAny tombstones regardless of sender, for moderators.
func (r *GroupMessageRepo) SoftDeleteAny(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_messages SET is_deleted=TRUE WHERE id=$1 AND is_deleted = FALSE`, messageID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMessageNotFound)
}

func (r *GroupMessageRepo) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO group_message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
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
		`DELETE FROM group_message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	return false, err
}

func (r *GroupMessageRepo) ListReactions(ctx context.Context, messageID, callerID int) ([]models.ReactionGroup, error) {
	var rows []struct {
		Emoji  string  `db:"emoji"`
		UserID int     `db:"user_id"`
		Name   string  `db:"name"`
		Image  *string `db:"image"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT gr.emoji, gr.user_id, u.name, u.image
        FROM group_message_reactions gr
        JOIN users u ON u.id = gr.user_id
        WHERE gr.message_id=$1
        ORDER BY gr.emoji, gr.created_at`, messageID)
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

// MarkRead upserts the receipt for a live message of the given group.
func (r *GroupMessageRepo) MarkRead(ctx context.Context, groupID, messageID, userID int) (models.ReadReceipt, error) {
	var receipt models.ReadReceipt
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO group_read_receipts (message_id, user_id)
         SELECT m.id, $3 FROM group_messages m
         WHERE m.id=$2 AND m.group_id=$1 AND m.is_deleted = FALSE
         ON CONFLICT (message_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
         RETURNING message_id, user_id, read_at`,
		groupID, messageID, userID).StructScan(&receipt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReadReceipt{}, ErrMessageNotFound
	}
	return receipt, err
}

func (r *GroupMessageRepo) Search(ctx context.Context, groupID int, query string, limit int) ([]models.GroupMessage, error) {
	msgs := []models.GroupMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages
        WHERE group_id=$1 AND is_deleted = FALSE AND type='text'
          AND content ILIKE '%' || $2 || '%'
        ORDER BY id DESC LIMIT $3`, groupID, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := r.attachSender(ctx, &msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// ClearFromUser tombstones every group message the user ever sent.
func (r *GroupMessageRepo) ClearFromUser(ctx context.Context, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_messages SET is_deleted=TRUE WHERE sender_id=$1 AND is_deleted = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *GroupMessageRepo) attachSender(ctx context.Context, msg *models.GroupMessage) error {
	var sender models.UserRef
	err := r.db.GetContext(ctx, &sender, `SELECT id, name, image FROM users WHERE id=$1`, msg.SenderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	msg.Sender = &sender
	return nil
}
