package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreatePrincipal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO principals").
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "analyst", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreatePrincipal(context.Background(), principal.Principal{
		Email:        "alice@example.com",
		Role:         principal.RoleAnalyst,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePrincipalDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO principals").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreatePrincipal(context.Background(), principal.Principal{
		Email: "alice@example.com",
		Role:  principal.RoleAnalyst,
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestGetPrincipal(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "role", "password_hash", "created_at", "updated_at"}).
		AddRow("u-1", "alice@example.com", "admin", "hash", now, now)
	mock.ExpectQuery("SELECT id, email, role, password_hash, created_at, updated_at").
		WithArgs("u-1").
		WillReturnRows(rows)

	p, err := store.GetPrincipal(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, principal.RoleAdmin, p.Role)
	require.Equal(t, "alice@example.com", p.Email)
}

func TestGetPrincipalNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, email, role, password_hash, created_at, updated_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetPrincipal(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteMarketNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM markets").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteMarket(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMapErrorPassthrough(t *testing.T) {
	cause := errors.New("connection reset")
	require.Equal(t, cause, mapError(cause))
	require.NoError(t, mapError(nil))
}
