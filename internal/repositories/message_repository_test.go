package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewMessageRepo(sqlx.NewDb(mockDB, "postgres")), mock
}

var messageRows = []string{"id", "conversation_id", "sender_id", "content", "type", "reply_to_id", "is_deleted", "is_edited", "created_at"}

func TestListPageExcludesDeletedMessages(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT cleared_at FROM conversation_users`).
		WithArgs(4, 1).
		WillReturnRows(sqlmock.NewRows([]string{"cleared_at"}).AddRow(nil))
	mock.ExpectQuery(`FROM messages\s+WHERE conversation_id=\$1\s+AND is_deleted = FALSE`).
		WillReturnRows(sqlmock.NewRows(messageRows).
			AddRow(9, 4, 2, "hello", "text", nil, false, false, time.Now()))
	mock.ExpectQuery(`SELECT id, name, image FROM users`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "image"}).AddRow(2, "maya", nil))

	page, err := repo.ListPage(context.Background(), 4, 1, 50, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, 9, page.Messages[0].ID)
	assert.False(t, page.Messages[0].IsDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadForeignMessageNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT m\.id, \$3 FROM messages m\s+WHERE m\.id=\$2 AND m\.conversation_id=\$1`).
		WithArgs(4, 9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id", "read_at"}))

	_, err := repo.MarkRead(context.Background(), 4, 9, 1)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
