package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlite3"), mock
}

var ticketCols = []string{"id", "title", "description", "solution", "technician", "sector", "user_name",
	"category", "status", "priority", "date_time", "created_at", "updated_at", "resolved_at"}

func TestSQLTicketRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLTicketRepository(db)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(ticketCols).
		AddRow("t-2", "VPN", "", "", "Ana", "TI", "João", "Rede", "Aberto", "Alta", now, now, now, nil).
		AddRow("t-1", "Mouse", "", "ok", "Ana", "TI", "Maria", "Hardware", "Resolvido", "Baixa", now, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets ORDER BY created_at DESC")).WillReturnRows(rows)

	tickets, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "t-2", tickets[0].ID)
	assert.Equal(t, models.PriorityHigh, tickets[0].Priority)
	assert.Nil(t, tickets[0].ResolvedAt)
	require.NotNil(t, tickets[1].ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTicketRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := NewSQLTicketRepository(db,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "t-1" }))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("t-1", "Printer down", "", "", "", "", "", "", "Aberto", "Média",
			now, now, now, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ticket, err := repo.Create(context.Background(), models.TicketInput{Title: "Printer down"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Equal(t, now, ticket.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTicketRepository_UpdateWritesOnlyPatchedColumns(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	repo := NewSQLTicketRepository(db, WithClock(func() time.Time { return now }))

	existing := sqlmock.NewRows(ticketCols).
		AddRow("t-1", "VPN", "", "", "", "", "", "", "Aberto", "Média", created, created, created, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("t-1").WillReturnRows(existing)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?")).
		WithArgs("Resolvido", now, now, "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated := sqlmock.NewRows(ticketCols).
		AddRow("t-1", "VPN", "", "", "", "", "", "", "Resolvido", "Média", created, created, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("t-1").WillReturnRows(updated)

	status := models.StatusResolved
	ticket, err := repo.Update(context.Background(), "t-1", models.TicketPatch{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, ticket.ResolvedAt)
	assert.Equal(t, now, *ticket.ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTicketRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLTicketRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTicketRepository_ListPropagatesErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLTicketRepository(db)

	boom := errors.New("connection refused")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	_, err := repo.List(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSQLReferenceRepository_ListActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLReferenceRepository(db, models.KindUser)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "sector", "active", "created_at"}).
		AddRow("u-1", "Ana", "ana@example.com", "TI", true, now).
		AddRow("u-2", "Bruno", nil, nil, true, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, sector, active, created_at FROM users WHERE active = ? ORDER BY name ASC")).
		WithArgs(true).
		WillReturnRows(rows)

	refs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.NotNil(t, refs[0].Email)
	assert.Equal(t, "ana@example.com", *refs[0].Email)
	assert.Nil(t, refs[1].Sector)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReferenceRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLReferenceRepository(db, models.KindSector)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sectors WHERE active = ? AND LOWER(name) = LOWER(?) AND id <> ?")).
		WithArgs(true, "TI", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := repo.Create(context.Background(), models.ReferenceInput{Name: "TI"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReferenceRepository_CreateLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLReferenceRepository(db, models.KindSector)

	// the check passes, then the unique index rejects the insert
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sectors")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sectors")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), models.ReferenceInput{Name: "TI"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReferenceRepository_RenameLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLReferenceRepository(db, models.KindCategory)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM categories WHERE id = ?")).WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active", "created_at"}).AddRow("c-1", "Hardware", true, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM categories")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET name = ? WHERE id = ?")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'rede'"})

	name := "Rede"
	_, err := repo.Update(context.Background(), "c-1", models.ReferencePatch{Name: &name})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReferenceRepository_CreateTechnician(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := NewSQLReferenceRepository(db, models.KindTechnician,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "tech-1" }))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM technicians")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO technicians (id, name, email, active, created_at) VALUES (?, ?, ?, ?, ?)")).
		WithArgs("tech-1", "Ana", "ana@example.com", true, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	email := "ana@example.com"
	ref, err := repo.Create(context.Background(), models.ReferenceInput{Name: "Ana", Email: &email})
	require.NoError(t, err)
	assert.True(t, ref.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReferenceRepository_Deactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLReferenceRepository(db, models.KindCategory)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET active = ? WHERE id = ?")).
		WithArgs(false, "c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "c-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
