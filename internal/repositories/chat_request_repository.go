package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("chat request not found")
	ErrAlreadyResponded = errors.New("chat request already responded to")
	ErrDuplicatePending = errors.New("a pending request already exists")
)

// PairStatus summarizes the relationship between two users.
type PairStatus struct {
	Accepted  *models.ChatRequest
	Pending   *models.ChatRequest
	UsedQuota int
}

// ChatRequestRepository manages the contact proposal lifecycle.
type ChatRequestRepository interface {
	Create(ctx context.Context, senderID, receiverID int, message *string) (models.ChatRequest, error)
	GetByID(ctx context.Context, id int) (models.ChatRequest, error)
	ListForUser(ctx context.Context, userID int, kind string, limit int) ([]models.ChatRequest, error)
	PairStatus(ctx context.Context, userID, otherID int) (PairStatus, error)
	Accept(ctx context.Context, id int) (conversationID int, err error)
	Reject(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

// ChatRequestRepo is the sqlx implementation.
type ChatRequestRepo struct {
	db *sqlx.DB
}

func NewChatRequestRepo(db *sqlx.DB) *ChatRequestRepo {
	return &ChatRequestRepo{db: db}
}

const requestColumns = `id, sender_id, receiver_id, status, message, created_at, responded_at`

// Create inserts a pending request. The partial unique index on the
// unordered pair turns a concurrent duplicate into ErrDuplicatePending
// instead of a second pending row.
func (r *ChatRequestRepo) Create(ctx context.Context, senderID, receiverID int, message *string) (models.ChatRequest, error) {
	var req models.ChatRequest
	err := r.db.GetContext(ctx, &req,
		`INSERT INTO chat_requests (sender_id, receiver_id, message) VALUES ($1, $2, $3) RETURNING `+requestColumns,
		senderID, receiverID, message)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.ChatRequest{}, ErrDuplicatePending
		}
		return models.ChatRequest{}, err
	}
	return req, r.attachRefs(ctx, &req)
}

func (r *ChatRequestRepo) GetByID(ctx context.Context, id int) (models.ChatRequest, error) {
	var req models.ChatRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM chat_requests WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.ChatRequest{}, err
	}
	return req, r.attachRefs(ctx, &req)
}

// ListForUser returns requests the user sent, received, or both.
func (r *ChatRequestRepo) ListForUser(ctx context.Context, userID int, kind string, limit int) ([]models.ChatRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM chat_requests WHERE `
	switch kind {
	case "sent":
		query += `sender_id=$1`
	case "received":
		query += `receiver_id=$1`
	default:
		query += `(sender_id=$1 OR receiver_id=$1)`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	var reqs []models.ChatRequest
	if err := r.db.SelectContext(ctx, &reqs, query, userID, limit); err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := r.attachRefs(ctx, &reqs[i]); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// PairStatus fetches the accepted/pending request between two users in
// either direction, plus the sender's used quota over the trailing
// 365 days.
func (r *ChatRequestRepo) PairStatus(ctx context.Context, userID, otherID int) (PairStatus, error) {
	var status PairStatus

	var accepted models.ChatRequest
	err := r.db.GetContext(ctx, &accepted, `SELECT `+requestColumns+` FROM chat_requests
        WHERE status='accepted' AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        LIMIT 1`, userID, otherID)
	if err == nil {
		status.Accepted = &accepted
	} else if !errors.Is(err, sql.ErrNoRows) {
		return PairStatus{}, err
	}

	var pending models.ChatRequest
	err = r.db.GetContext(ctx, &pending, `SELECT `+requestColumns+` FROM chat_requests
        WHERE status='pending' AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        LIMIT 1`, userID, otherID)
	if err == nil {
		status.Pending = &pending
	} else if !errors.Is(err, sql.ErrNoRows) {
		return PairStatus{}, err
	}

	cutoff := time.Now().AddDate(0, 0, -365)
	if err := r.db.GetContext(ctx, &status.UsedQuota,
		`SELECT COUNT(*) FROM chat_requests WHERE sender_id=$1 AND receiver_id=$2 AND created_at >= $3`,
		userID, otherID, cutoff); err != nil {
		return PairStatus{}, err
	}

	return status, nil
}

// Accept marks the request accepted and materializes the direct
// conversation in one transaction. The first statement is a
// compare-and-set on status, so concurrent accepts resolve to exactly
// one conversation.
func (r *ChatRequestRepo) Accept(ctx context.Context, id int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var senderID, receiverID int
	err = tx.QueryRowxContext(ctx,
		`UPDATE chat_requests SET status='accepted', responded_at=NOW()
         WHERE id=$1 AND status='pending' RETURNING sender_id, receiver_id`, id).
		Scan(&senderID, &receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAlreadyResponded
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	// Reuse an existing direct conversation if one survived an earlier
	// connection between the pair.
	var conversationID int
	err = tx.QueryRowxContext(ctx, `SELECT c.id FROM conversations c
        JOIN conversation_users a ON a.conversation_id = c.id AND a.user_id=$1
        JOIN conversation_users b ON b.conversation_id = c.id AND b.user_id=$2
        WHERE c.is_group = FALSE LIMIT 1`, senderID, receiverID).Scan(&conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		if err = tx.QueryRowxContext(ctx,
			`INSERT INTO conversations (is_group) VALUES (FALSE) RETURNING id`).Scan(&conversationID); err != nil {
			return 0, err
		}
		for _, uid := range []int{senderID, receiverID} {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO conversation_users (conversation_id, user_id) VALUES ($1, $2)`,
				conversationID, uid); err != nil {
				return 0, err
			}
		}
	} else if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return conversationID, nil
}

// Reject marks the request rejected; no conversation is created.
func (r *ChatRequestRepo) Reject(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_requests SET status='rejected', responded_at=NOW() WHERE id=$1 AND status='pending'`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrAlreadyResponded)
}

// Delete removes a request row (sender cancellation).
func (r *ChatRequestRepo) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrRequestNotFound)
}

func (r *ChatRequestRepo) attachRefs(ctx context.Context, req *models.ChatRequest) error {
	var sender, receiver models.UserRef
	if err := r.db.GetContext(ctx, &sender, `SELECT id, name, image FROM users WHERE id=$1`, req.SenderID); err == nil {
		req.Sender = &sender
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := r.db.GetContext(ctx, &receiver, `SELECT id, name, image FROM users WHERE id=$1`, req.ReceiverID); err == nil {
		req.Receiver = &receiver
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}
