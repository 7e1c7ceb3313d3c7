package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrCallNotFound  = errors.New("call not found")
	ErrCallNotActive = errors.New("call not in expected state")
)

const callColumns = `id, initiator_id, receiver_id, type, status, metadata, started_at, ended_at`

// CallRepository stores signaling state for one-to-one calls.
type CallRepository interface {
	Create(ctx context.Context, initiatorID, receiverID int, callType string, offer json.RawMessage) (models.Call, error)
	GetByID(ctx context.Context, id int) (models.Call, error)
	CancelPendingFrom(ctx context.Context, initiatorID int) (int64, error)
	FindIncoming(ctx context.Context, receiverID int) (models.Call, error)
	FindActive(ctx context.Context, userID int) (models.Call, error)
	Answer(ctx context.Context, callID int, answer json.RawMessage) (models.Call, error)
	AddCandidate(ctx context.Context, callID, userID int, candidate json.RawMessage) (models.Call, error)
	Finish(ctx context.Context, callID int, fromStatus []string, toStatus string) (models.Call, error)
	ExpirePending(ctx context.Context) (int64, error)
	History(ctx context.Context, userID, limit int, callType string) ([]models.Call, error)
}

// CallRepo is the sqlx implementation.
type CallRepo struct {
	db *sqlx.DB
}

func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{db: db}
}

// Create inserts a pending call carrying the initiator's offer.
func (r *CallRepo) Create(ctx context.Context, initiatorID, receiverID int, callType string, offer json.RawMessage) (models.Call, error) {
	meta := models.CallMeta{Offer: offer}
	var call models.Call
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO calls (initiator_id, receiver_id, type, metadata)
         VALUES ($1, $2, $3, $4) RETURNING `+callColumns,
		initiatorID, receiverID, callType, meta).StructScan(&call)
	if err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

func (r *CallRepo) GetByID(ctx context.Context, id int) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, ErrCallNotFound
	}
	if err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

// CancelPendingFrom cancels the initiator's stale pending calls before a
// new one is placed.
func (r *CallRepo) CancelPendingFrom(ctx context.Context, initiatorID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calls SET status=$2, ended_at=NOW() WHERE initiator_id=$1 AND status=$3`,
		initiatorID, models.CallCancelled, models.CallPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindIncoming returns the newest ringable pending call for the receiver.
func (r *CallRepo) FindIncoming(ctx context.Context, receiverID int) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls
        WHERE receiver_id=$1 AND status=$2 AND started_at > $3
        ORDER BY started_at DESC LIMIT 1`,
		receiverID, models.CallPending, time.Now().Add(-models.PendingCallWindow))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, ErrCallNotFound
	}
	if err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

// FindActive returns the user's current active call, either side.
func (r *CallRepo) FindActive(ctx context.Context, userID int) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls
        WHERE (initiator_id=$1 OR receiver_id=$1) AND status=$2
        ORDER BY started_at DESC LIMIT 1`, userID, models.CallActive)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, ErrCallNotFound
	}
	if err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

// Answer flips a pending call to active and stores the receiver's answer.
func (r *CallRepo) Answer(ctx context.Context, callID int, answer json.RawMessage) (models.Call, error) {
	return r.updateMeta(ctx, callID, []string{models.CallPending}, func(call *models.Call) {
		call.Status = models.CallActive
		call.Metadata.Answer = answer
	}, true)
}

// AddCandidate appends an ICE candidate to the caller's side.
func (r *CallRepo) AddCandidate(ctx context.Context, callID, userID int, candidate json.RawMessage) (models.Call, error) {
	return r.updateMeta(ctx, callID, []string{models.CallPending, models.CallActive}, func(call *models.Call) {
		if call.InitiatorID == userID {
			call.Metadata.IceCandidates.Initiator = append(call.Metadata.IceCandidates.Initiator, candidate)
		} else {
			call.Metadata.IceCandidates.Receiver = append(call.Metadata.IceCandidates.Receiver, candidate)
		}
	}, false)
}

// Finish moves the call to a terminal status when it is in one of the
// expected source states, CAS style.
func (r *CallRepo) Finish(ctx context.Context, callID int, fromStatus []string, toStatus string) (models.Call, error) {
	var call models.Call
	err := r.db.QueryRowxContext(ctx,
		`UPDATE calls SET status=$2, ended_at=NOW()
         WHERE id=$1 AND status = ANY($3) RETURNING `+callColumns,
		callID, toStatus, pq.Array(fromStatus)).StructScan(&call)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, callID); getErr != nil {
			return models.Call{}, getErr
		}
		return models.Call{}, ErrCallNotActive
	}
	if err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

// ExpirePending marks pending calls past the ring window as missed.
func (r *CallRepo) ExpirePending(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calls SET status=$1, ended_at=NOW() WHERE status=$2 AND started_at <= $3`,
		models.CallMissed, models.CallPending, time.Now().Add(-models.PendingCallWindow))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// History lists the user's finished and ongoing calls, newest first.
func (r *CallRepo) History(ctx context.Context, userID, limit int, callType string) ([]models.Call, error) {
	calls := []models.Call{}
	err := r.db.SelectContext(ctx, &calls, `SELECT `+callColumns+` FROM calls
        WHERE (initiator_id=$1 OR receiver_id=$1) AND ($2 = '' OR type=$2)
        ORDER BY started_at DESC LIMIT $3`, userID, callType, limit)
	if err != nil {
		return nil, err
	}
	for i := range calls {
		if err := r.attachRefs(ctx, &calls[i]); err != nil {
			return nil, err
		}
	}
	return calls, nil
}

// updateMeta mutates metadata (and optionally status) under FOR UPDATE so
// concurrent candidate appends do not clobber each other.
func (r *CallRepo) updateMeta(ctx context.Context, callID int, fromStatus []string, mutate func(*models.Call), stamp bool) (models.Call, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Call{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var call models.Call
	err = tx.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls WHERE id=$1 FOR UPDATE`, callID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrCallNotFound
		return models.Call{}, err
	}
	if err != nil {
		return models.Call{}, err
	}

	allowed := false
	for _, s := range fromStatus {
		if call.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		err = ErrCallNotActive
		return models.Call{}, err
	}

	mutate(&call)

	if stamp {
		_, err = tx.ExecContext(ctx, `UPDATE calls SET status=$2, metadata=$3 WHERE id=$1`,
			callID, call.Status, call.Metadata)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE calls SET metadata=$2 WHERE id=$1`,
			callID, call.Metadata)
	}
	if err != nil {
		return models.Call{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Call{}, err
	}
	return call, r.attachRefs(ctx, &call)
}

func (r *CallRepo) attachRefs(ctx context.Context, call *models.Call) error {
	var initiator, receiver models.UserRef
	if err := r.db.GetContext(ctx, &initiator,
		`SELECT id, name, image FROM users WHERE id=$1`, call.InitiatorID); err == nil {
		call.Initiator = &initiator
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := r.db.GetContext(ctx, &receiver,
		`SELECT id, name, image FROM users WHERE id=$1`, call.ReceiverID); err == nil {
		call.Receiver = &receiver
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}
