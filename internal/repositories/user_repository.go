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
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const userColumns = `id, email, name, real_name, image, bio, hobbies, location, website,
    phone, date_of_birth, gender, occupation, password_hash, status, role, last_seen,
    created_at, updated_at`

// ProfileUpdate carries partial profile changes. A nil field is left
// untouched; a pointer to the empty string resets the column to NULL.
type ProfileUpdate struct {
	Name        *string
	RealName    *string
	Bio         *string
	Hobbies     *string
	Location    *string
	Website     *string
	Phone       *string
	DateOfBirth *time.Time
	Gender      *string
	Occupation  *string
	Image       *string
}

// UserRepository is the identity store.
type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (models.User, error)
	GetByID(ctx context.Context, id int) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetRef(ctx context.Context, id int) (models.UserRef, error)
	List(ctx context.Context, search string, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int, update ProfileUpdate) (models.User, error)
	UpdateStatus(ctx context.Context, id int, status string) (models.User, error)
	UpdateRole(ctx context.Context, id int, role string) error
	RemoveImage(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

// UserRepo is the sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user with a credential hash.
func (r *UserRepo) Create(ctx context.Context, email, name, passwordHash string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (email, name, password_hash) VALUES ($1, $2, $3) RETURNING `+userColumns,
		email, name, passwordHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetRef fetches the lightweight projection used in message payloads.
func (r *UserRepo) GetRef(ctx context.Context, id int) (models.UserRef, error) {
	var ref models.UserRef
	err := r.db.GetContext(ctx, &ref, `SELECT id, name, image FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserRef{}, ErrUserNotFound
	}
	return ref, err
}

// List returns users for the admin surface, optionally filtered by a
// name/email substring.
func (r *UserRepo) List(ctx context.Context, search string, limit int) ([]models.User, error) {
	var users []models.User
	if search != "" {
		err := r.db.SelectContext(ctx, &users,
			`SELECT `+userColumns+` FROM users WHERE name ILIKE $1 OR email ILIKE $1 ORDER BY created_at DESC LIMIT $2`,
			"%"+search+"%", limit)
		return users, err
	}
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	return users, err
}

// UpdateProfile applies a partial update. COALESCE keeps untouched
// columns; empty-string pointers reset to NULL via NULLIF.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int, update ProfileUpdate) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `UPDATE users SET
            name = COALESCE($2, name),
            real_name = CASE WHEN $3::boolean THEN NULLIF($4, '') ELSE real_name END,
            bio = CASE WHEN $5::boolean THEN NULLIF($6, '') ELSE bio END,
            hobbies = CASE WHEN $7::boolean THEN NULLIF($8, '') ELSE hobbies END,
            location = CASE WHEN $9::boolean THEN NULLIF($10, '') ELSE location END,
            website = CASE WHEN $11::boolean THEN NULLIF($12, '') ELSE website END,
            phone = CASE WHEN $13::boolean THEN NULLIF($14, '') ELSE phone END,
            date_of_birth = CASE WHEN $15::boolean THEN $16 ELSE date_of_birth END,
            gender = CASE WHEN $17::boolean THEN NULLIF($18, '') ELSE gender END,
            occupation = CASE WHEN $19::boolean THEN NULLIF($20, '') ELSE occupation END,
            image = CASE WHEN $21::boolean THEN NULLIF($22, '') ELSE image END,
            updated_at = NOW()
        WHERE id=$1 RETURNING `+userColumns,
		id,
		update.Name,
		update.RealName != nil, strOrEmpty(update.RealName),
		update.Bio != nil, strOrEmpty(update.Bio),
		update.Hobbies != nil, strOrEmpty(update.Hobbies),
		update.Location != nil, strOrEmpty(update.Location),
		update.Website != nil, strOrEmpty(update.Website),
		update.Phone != nil, strOrEmpty(update.Phone),
		update.DateOfBirth != nil, update.DateOfBirth,
		update.Gender != nil, strOrEmpty(update.Gender),
		update.Occupation != nil, strOrEmpty(update.Occupation),
		update.Image != nil, strOrEmpty(update.Image),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateStatus sets presence and bumps last_seen.
func (r *UserRepo) UpdateStatus(ctx context.Context, id int, status string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`UPDATE users SET status=$2, last_seen=NOW(), updated_at=NOW() WHERE id=$1 RETURNING `+userColumns,
		id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) UpdateRole(ctx context.Context, id int, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, id, role)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

func (r *UserRepo) RemoveImage(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET image=NULL, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

// Delete removes the user; foreign keys cascade to owned content.
func (r *UserRepo) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func requireRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
