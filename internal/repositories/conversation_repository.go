package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// OverlayUpdate mutates the caller's per-conversation flags.
type OverlayUpdate struct {
	Muted    *bool
	Archived *bool
	Pinned   *bool
	Clear    bool
}

// ConversationRepository manages threads and participant overlays.
type ConversationRepository interface {
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	GetForUser(ctx context.Context, conversationID, userID int) (models.ConversationSummary, error)
	FindDirectBetween(ctx context.Context, userID, otherID int) (models.Conversation, error)
	Create(ctx context.Context, creatorID int, participantIDs []int, name *string, isGroup bool) (models.ConversationSummary, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	UpdateOverlay(ctx context.Context, conversationID, userID int, update OverlayUpdate) error
	Leave(ctx context.Context, conversationID, userID int) error
	Touch(ctx context.Context, conversationID int) error
}

// ConversationRepo is the sqlx implementation.
type ConversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type participantRow struct {
	UserID int     `db:"user_id"`
	Role   string  `db:"role"`
	Name   string  `db:"name"`
	Image  *string `db:"image"`
	Status string  `db:"status"`
}

// ListForUser returns the caller's conversations, most recent activity
// first, with participant projections and a last-message preview.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
        FROM conversations c
        JOIN conversation_users cu ON cu.conversation_id = c.id
        WHERE cu.user_id=$1
        ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := r.buildSummary(ctx, conv)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetForUser fetches one conversation, participant-gated.
func (r *ConversationRepo) GetForUser(ctx context.Context, conversationID, userID int) (models.ConversationSummary, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
        FROM conversations c
        JOIN conversation_users cu ON cu.conversation_id = c.id AND cu.user_id=$2
        WHERE c.id=$1`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationSummary{}, ErrConversationNotFound
	}
	if err != nil {
		return models.ConversationSummary{}, err
	}
	return r.buildSummary(ctx, conv)
}

// FindDirectBetween locates the direct conversation shared by two users.
func (r *ConversationRepo) FindDirectBetween(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
        FROM conversations c
        JOIN conversation_users a ON a.conversation_id = c.id AND a.user_id=$1
        JOIN conversation_users b ON b.conversation_id = c.id AND b.user_id=$2
        WHERE c.is_group = FALSE LIMIT 1`, userID, otherID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create inserts a conversation and its memberships atomically.
func (r *ConversationRepo) Create(ctx context.Context, creatorID int, participantIDs []int, name *string, isGroup bool) (models.ConversationSummary, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (name, is_group) VALUES ($1, $2) RETURNING id, name, is_group, created_at, updated_at`,
		name, isGroup).StructScan(&conv); err != nil {
		return models.ConversationSummary{}, err
	}

	memberSet := map[int]string{creatorID: "member"}
	if isGroup {
		memberSet[creatorID] = "admin"
	}
	for _, id := range participantIDs {
		if _, ok := memberSet[id]; !ok {
			memberSet[id] = "member"
		}
	}
	for id, role := range memberSet {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_users (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
			conv.ID, id, role); err != nil {
			return models.ConversationSummary{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.ConversationSummary{}, err
	}
	return r.buildSummary(ctx, conv)
}

// IsParticipant checks membership.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_users WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// UpdateOverlay flips the caller's mute/archive/pin flags or stamps the
// cleared_at watermark.
func (r *ConversationRepo) UpdateOverlay(ctx context.Context, conversationID, userID int, update OverlayUpdate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversation_users SET
            muted = COALESCE($3, muted),
            archived = COALESCE($4, archived),
            pinned = COALESCE($5, pinned),
            cleared_at = CASE WHEN $6 THEN NOW() ELSE cleared_at END
        WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID, update.Muted, update.Archived, update.Pinned, update.Clear)
	if err != nil {
		return err
	}
	return requireRow(res, ErrConversationNotFound)
}

// Leave removes the caller's membership; when nobody remains the
// conversation and its messages go with it, in one transaction.
func (r *ConversationRepo) Leave(ctx context.Context, conversationID, userID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`DELETE FROM conversation_users WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if err != nil {
		return err
	}
	if err = requireRow(res, ErrConversationNotFound); err != nil {
		return err
	}

	var remaining int
	if err = tx.GetContext(ctx, &remaining,
		`SELECT COUNT(*) FROM conversation_users WHERE conversation_id=$1`, conversationID); err != nil {
		return err
	}
	if remaining == 0 {
		// Messages, reactions, and receipts cascade off the conversation.
		if _, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Touch bumps updated_at so the thread sorts to the top.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID)
	return err
}

func (r *ConversationRepo) buildSummary(ctx context.Context, conv models.Conversation) (models.ConversationSummary, error) {
	var rows []participantRow
	err := r.db.SelectContext(ctx, &rows, `SELECT cu.user_id, cu.role, u.name, u.image, u.status
        FROM conversation_users cu
        JOIN users u ON u.id = cu.user_id
        WHERE cu.conversation_id=$1`, conv.ID)
	if err != nil {
		return models.ConversationSummary{}, err
	}

	participants := make([]models.ConversationParticipant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, models.ConversationParticipant{
			UserID: row.UserID,
			Role:   row.Role,
			User: models.UserStatusRef{
				ID:     row.UserID,
				Name:   row.Name,
				Image:  row.Image,
				Status: row.Status,
			},
		})
	}

	summary := models.ConversationSummary{Conversation: conv, Participants: participants}

	var preview models.MessagePreview
	err = r.db.GetContext(ctx, &preview, `SELECT id, content, type, created_at FROM messages
        WHERE conversation_id=$1 AND is_deleted = FALSE
        ORDER BY created_at DESC LIMIT 1`, conv.ID)
	if err == nil {
		summary.LastMessage = &preview
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.ConversationSummary{}, err
	}

	return summary, nil
}
