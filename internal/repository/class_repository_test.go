package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

func TestClassRepositoryResize(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	// 10 total, 4 available: 6 enrolled. Growing to 15 leaves 9 available.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 4))
	mock.ExpectExec(`UPDATE classes SET total_slots = \$2, available_slots = \$3`).
		WithArgs("class-1", 15, 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	class, err := repo.Resize(context.Background(), "class-1", 15)
	require.NoError(t, err)
	require.Equal(t, 15, class.TotalSlots)
	require.Equal(t, 9, class.AvailableSlots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryResizeBelowEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	// 6 enrolled, shrinking to 5 must fail.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 4))
	mock.ExpectRollback()

	_, err := repo.Resize(context.Background(), "class-1", 5)
	require.True(t, errors.Is(err, appErrors.ErrInvalidCapacity))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryResizeToExactEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	// Shrinking to exactly the enrolled count leaves zero available.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 4))
	mock.ExpectExec(`UPDATE classes SET total_slots = \$2, available_slots = \$3`).
		WithArgs("class-1", 6, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	class, err := repo.Resize(context.Background(), "class-1", 6)
	require.NoError(t, err)
	require.Equal(t, 0, class.AvailableSlots)
	require.NoError(t, mock.ExpectationsWereMet())
}
