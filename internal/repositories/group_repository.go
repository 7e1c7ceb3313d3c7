package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrMemberNotFound = errors.New("group member not found")
	ErrAlreadyMember  = errors.New("already a member")
	ErrGroupFull      = errors.New("group is full")
)

// GroupUpdate carries the settable group fields; nil means keep.
type GroupUpdate struct {
	Name        *string
	Description *string
	Image       *string
	IsPrivate   *bool
	MaxMembers  *int
}

// GroupRepository manages groups and their memberships.
type GroupRepository interface {
	Create(ctx context.Context, creatorID int, name string, description, image *string, isPrivate bool, maxMembers int) (models.Group, error)
	List(ctx context.Context, callerID int, filter, search string) ([]models.Group, error)
	Get(ctx context.Context, groupID, callerID int) (models.Group, error)
	Update(ctx context.Context, groupID int, update GroupUpdate) (models.Group, error)
	Delete(ctx context.Context, groupID int) error
	GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error)
	ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error)
	AddMember(ctx context.Context, groupID, userID int, role string) error
	RemoveMember(ctx context.Context, groupID, userID int) error
	SetMemberRole(ctx context.Context, groupID, userID int, role string) error
	SetMemberMute(ctx context.Context, groupID, userID int, until *time.Time) error
	SetMemberNickname(ctx context.Context, groupID, userID int, nickname *string) error
	CountMembers(ctx context.Context, groupID int) (int, error)
}

// GroupRepo is the sqlx implementation.
type GroupRepo struct {
	db *sqlx.DB
}

func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupProjection = `g.id, g.name, g.description, g.image, g.is_private, g.max_members,
        g.creator_id, g.created_at, g.updated_at,
        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count,
        (SELECT COUNT(*) FROM group_messages m WHERE m.group_id = g.id AND m.is_deleted = FALSE) AS message_count,
        (SELECT gm.role FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $1) AS caller_role`

// Create inserts the group and its owner membership in one transaction.
func (r *GroupRepo) Create(ctx context.Context, creatorID int, name string, description, image *string, isPrivate bool, maxMembers int) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO groups (name, description, image, is_private, max_members, creator_id)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, name, description, image, is_private, max_members, creator_id, created_at, updated_at`,
		name, description, image, isPrivate, maxMembers, creatorID).StructScan(&group); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		group.ID, creatorID, models.RoleOwner); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}

	group.MemberCount = 1
	role := models.RoleOwner
	group.CallerRole = &role
	return group, nil
}

// List returns groups per filter: "my" (memberships), "public", or ""
// for both, with an optional name search.
func (r *GroupRepo) List(ctx context.Context, callerID int, filter, search string) ([]models.Group, error) {
	where := `(g.is_private = FALSE
            OR EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $1))`
	switch filter {
	case "my":
		where = `EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $1)`
	case "public":
		where = `g.is_private = FALSE`
	case "any":
		// moderation listing ignores visibility
		where = `TRUE`
	}

	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupProjection+` FROM groups g
        WHERE `+where+` AND ($2 = '' OR g.name ILIKE '%' || $2 || '%')
        ORDER BY g.updated_at DESC`, callerID, search)
	return groups, err
}

// Get fetches one group. Private groups are hidden from non-members.
func (r *GroupRepo) Get(ctx context.Context, groupID, callerID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupProjection+` FROM groups g WHERE g.id = $2`,
		callerID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	if group.IsPrivate && group.CallerRole == nil {
		return models.Group{}, ErrGroupNotFound
	}
	return group, nil
}

func (r *GroupRepo) Update(ctx context.Context, groupID int, update GroupUpdate) (models.Group, error) {
	var group models.Group
	err := r.db.QueryRowxContext(ctx, `UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            image = COALESCE($4, image),
            is_private = COALESCE($5, is_private),
            max_members = COALESCE($6, max_members),
            updated_at = NOW()
        WHERE id = $1
        RETURNING id, name, description, image, is_private, max_members, creator_id, created_at, updated_at`,
		groupID, update.Name, update.Description, update.Image, update.IsPrivate, update.MaxMembers).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// Delete removes the group; memberships and messages cascade.
func (r *GroupRepo) Delete(ctx context.Context, groupID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrGroupNotFound)
}

func (r *GroupRepo) GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`SELECT group_id, user_id, role, muted_until, nickname, joined_at
         FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, ErrMemberNotFound
	}
	return member, err
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	var rows []struct {
		models.GroupMember
		Name  string  `db:"name"`
		Image *string `db:"image"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT gm.group_id, gm.user_id, gm.role,
            gm.muted_until, gm.nickname, gm.joined_at, u.name, u.image
        FROM group_members gm
        JOIN users u ON u.id = gm.user_id
        WHERE gm.group_id=$1
        ORDER BY CASE gm.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, gm.joined_at`,
		groupID)
	if err != nil {
		return nil, err
	}

	members := make([]models.GroupMember, 0, len(rows))
	for _, row := range rows {
		member := row.GroupMember
		member.User = &models.UserRef{ID: row.UserID, Name: row.Name, Image: row.Image}
		members = append(members, member)
	}
	return members, nil
}

// AddMember joins a user, enforcing the capacity cap inside a
// transaction so concurrent joins cannot overshoot it.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int, role string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group struct {
		MaxMembers int `db:"max_members"`
		Count      int `db:"count"`
	}
	err = tx.GetContext(ctx, &group, `SELECT g.max_members,
            (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS count
        FROM groups g WHERE g.id=$1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGroupNotFound
	}
	if err != nil {
		return err
	}
	if group.Count >= group.MaxMembers {
		err = ErrGroupFull
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
         ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID, role)
	if err != nil {
		return err
	}
	var n int64
	if n, err = res.RowsAffected(); err != nil {
		return err
	}
	if n == 0 {
		err = ErrAlreadyMember
		return err
	}
	return tx.Commit()
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMemberNotFound)
}

func (r *GroupRepo) SetMemberRole(ctx context.Context, groupID, userID int, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role=$3 WHERE group_id=$1 AND user_id=$2`, groupID, userID, role)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMemberNotFound)
}

func (r *GroupRepo) SetMemberMute(ctx context.Context, groupID, userID int, until *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET muted_until=$3 WHERE group_id=$1 AND user_id=$2`, groupID, userID, until)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMemberNotFound)
}

func (r *GroupRepo) SetMemberNickname(ctx context.Context, groupID, userID int, nickname *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET nickname=$3 WHERE group_id=$1 AND user_id=$2`, groupID, userID, nickname)
	if err != nil {
		return err
	}
	return requireRow(res, ErrMemberNotFound)
}

func (r *GroupRepo) CountMembers(ctx context.Context, groupID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM group_members WHERE group_id=$1`, groupID)
	return count, err
}
