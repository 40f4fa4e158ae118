package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"service-availability-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_RecordSave(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedID       int64
		expectedErr      bool
	}{
		{
			name: "Row inserted",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "save_records"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
				mock.ExpectCommit()
			},
			expectedID: 12,
		},
		{
			name: "Insert fails",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "save_records"`)).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			tc.mockExpectations(mock)

			rec := &model.SaveRecord{
				SessionID: "sess-1",
				ServiceID: "42",
				Mode:      model.SaveModeEdit,
				Shape:     "iso",
				SlotCount: 3,
				Outcome:   model.SaveOutcomeOK,
			}
			err := NewGormStore(gormDB).RecordSave(context.Background(), rec)

			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedID, rec.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_ListSaves(t *testing.T) {
	gormDB, mock := newTestDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "save_records" WHERE service_id = $1 ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "service_id", "mode", "outcome", "slot_count", "created_at"}).
			AddRow(2, "42", "edit", "failed", 1, now).
			AddRow(1, "42", "create", "ok", 3, now.Add(-time.Hour)))

	records, err := NewGormStore(gormDB).ListSaves(context.Background(), "42", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, model.SaveOutcomeFailed, records[0].Outcome)
	assert.Equal(t, model.SaveModeCreate, records[1].Mode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
