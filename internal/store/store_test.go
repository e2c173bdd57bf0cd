package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var venueCols = []string{"id", "name", "address", "logo", "responsible", "latitude", "longitude", "created_at", "updated_at"}

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should create the schema", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS venues").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, s.EnsureSchema(context.Background()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestVenues(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should list venues in id order", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		rows := pgxmock.NewRows(venueCols).
			AddRow(1, "CRAM", "Rua A", "logo", "Maria", -10.9, -37.0, created, (*time.Time)(nil)).
			AddRow(2, "DEAM", "Rua C", "logo", "Ana", -10.8, -37.1, created, &created)
		mockPool.ExpectQuery(flexibleSQLMatcher(`FROM venues ORDER BY id`)).WillReturnRows(rows)

		venues, err := s.ListVenues(ctx)
		require.NoError(t, err)
		require.Len(t, venues, 2)
		assert.Equal(t, "CRAM", venues[0].Name)
		assert.Nil(t, venues[0].UpdatedAt)
		assert.Equal(t, created, *venues[1].UpdatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map missing rows to ErrNotFound", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(`FROM venues WHERE id = $1`)).
			WithArgs(42).
			WillReturnError(pgx.ErrNoRows)

		_, err := s.GetVenue(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should insert a venue and return the generated id", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		in := VenueInput{Name: "Casa", Address: "Av. X", Logo: "l", Responsible: "F", Latitude: 1, Longitude: 2}
		mockPool.ExpectQuery(flexibleSQLMatcher(`INSERT INTO venues`)).
			WithArgs(in.Name, in.Address, in.Logo, in.Responsible, in.Latitude, in.Longitude, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(venueCols).
				AddRow(11, in.Name, in.Address, in.Logo, in.Responsible, in.Latitude, in.Longitude, created, (*time.Time)(nil)))

		v, err := s.CreateVenue(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 11, v.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should apply a partial update inside a transaction", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedZapCore))

		name := "Novo Nome"
		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(`FROM venues WHERE id = $1 FOR UPDATE`)).
			WithArgs(3).
			WillReturnRows(pgxmock.NewRows(venueCols).
				AddRow(3, "Antigo", "Rua B", "logo", "Resp", -10.0, -37.0, created, (*time.Time)(nil)))
		mockPool.ExpectQuery(flexibleSQLMatcher(`UPDATE venues SET`)).
			WithArgs(3, name, "Rua B", "logo", "Resp", -10.0, -37.0, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(venueCols).
				AddRow(3, name, "Rua B", "logo", "Resp", -10.0, -37.0, created, &created))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		v, err := s.UpdateVenue(ctx, 3, VenuePatch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, v.Name)
		assert.Equal(t, "Rua B", v.Address)
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "no rollback error after commit")
	})

	t.Run("should log rollback failures", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedZapCore))

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(`FROM venues WHERE id = $1 FOR UPDATE`)).
			WithArgs(9).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback().WillReturnError(errors.New("connection reset"))

		_, err := s.UpdateVenue(ctx, 9, VenuePatch{})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
		require.Equal(t, 1, observedLogs.Len())
		assert.Equal(t, "Failed to rollback transaction", observedLogs.All()[0].Message)
	})

	t.Run("should report deleting an unknown venue", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(`DELETE FROM venues WHERE id = $1`)).
			WithArgs(5).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, s.DeleteVenue(ctx, 5), ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("should map unique violations to ErrConflict", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(`INSERT INTO users`)).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

		_, err := s.CreateUser(ctx, User{ID: "u1", Email: "a@b.com"})
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should treat unknown refresh tokens as inactive", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT active FROM refresh_tokens`)).
			WithArgs("tok", "u1").
			WillReturnError(pgx.ErrNoRows)

		active, err := s.RefreshTokenActive(ctx, "u1", "tok")
		require.NoError(t, err)
		assert.False(t, active)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should revoke every token when none is named", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(`UPDATE refresh_tokens SET active = FALSE WHERE user_id = $1`)).
			WithArgs("u1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))

		require.NoError(t, s.RevokeRefreshTokens(ctx, "u1", ""))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveLocation(t *testing.T) {
	ctx := context.Background()
	loc := DeviceLocation{
		Accuracy: "5", DeviceName: "viatura-01", DeviceTime: "2025-03-01T10:00:00",
		IsMoving: true, Latitude: "-10.91", Longitude: "-37.05", Speed: "12", Timestamp: "1740823200",
	}

	t.Run("should insert a new device", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT id FROM device_locations WHERE device_name = $1`)).
			WithArgs(loc.DeviceName).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO device_locations`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		id, updated, err := s.SaveLocation(ctx, loc)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NotEmpty(t, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should update an existing device in place", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT id FROM device_locations WHERE device_name = $1`)).
			WithArgs(loc.DeviceName).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("loc-1"))
		mockPool.ExpectExec(flexibleSQLMatcher(`UPDATE device_locations SET`)).
			WithArgs(loc.DeviceName, loc.Accuracy, loc.DeviceTime, loc.IsMoving, loc.Latitude,
				loc.Longitude, loc.Speed, loc.Timestamp, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		id, updated, err := s.SaveLocation(ctx, loc)
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, "loc-1", id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
