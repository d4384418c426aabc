package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/repository/postgres"
)

func TestStore_WithinTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	store := postgres.NewStore(db)
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO audit_log").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx repository.Tx) error {
			return tx.Audit().Create(ctx, &domain.AuditEntry{EntityType: domain.EntityItem, EntityID: 1, CreatedAt: time.Now()})
		})
		assert.NoError(t, err)
	})

	t.Run("Rollback", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx repository.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewNotificationRepository(db)
	n := &domain.Notification{
		EventID:     "0b6f3c1e-5b7d-4c42-9a55-0d7b2f1f7a10",
		RecipientID: 3,
		Type:        domain.NotificationCheckout,
		Title:       "Checked out",
		Message:     "Dune is due 2024-01-15",
		Attributes:  map[string]string{"borrowing_id": "1"},
		CreatedAt:   time.Now(),
	}

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(n.EventID, n.RecipientID, n.Type, n.Title, n.Message, []byte(`{"borrowing_id":"1"}`), n.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, int32(42), n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
