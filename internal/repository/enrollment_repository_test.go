package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func classRow(isOpen bool, total, available int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "course_id", "name", "total_slots", "available_slots", "certificate_template",
		"is_open", "start_date", "end_date", "created_at", "updated_at", "deleted_at",
	}).AddRow("class-1", "course-1", "Turma A", total, available, "default", isOpen, nil, nil, now, now, nil)
}

func TestEnrollmentRepositoryEnroll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments`).
		WithArgs("stu-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE classes SET available_slots = available_slots - 1`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Enroll(context.Background(), "stu-1", "class-1")
	require.NoError(t, err)
	require.Equal(t, "stu-1", enrollment.StudentID)
	require.Equal(t, "class-1", enrollment.ClassID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollClosedClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(false, 10, 3))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrClassClosed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollNoCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 0))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrNoCapacity))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments`).
		WithArgs("stu-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, student_id, class_id, enrollment_date FROM enrollments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "enrollment_date"}).
			AddRow("enr-1", "stu-1", "class-1", time.Now()))
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(true, 10, 3))
	mock.ExpectExec(`DELETE FROM enrollments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE classes SET available_slots = available_slots \+ 1`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Cancel(context.Background(), "enr-1", "stu-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancelWrongOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, student_id, class_id, enrollment_date FROM enrollments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "enrollment_date"}).
			AddRow("enr-1", "stu-1", "class-1", time.Now()))
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), "enr-1", "stu-2")
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancelClosedClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, student_id, class_id, enrollment_date FROM enrollments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "enrollment_date"}).
			AddRow("enr-1", "stu-1", "class-1", time.Now()))
	mock.ExpectQuery(`SELECT .+ FROM classes WHERE id = \$1 FOR UPDATE`).
		WithArgs("class-1").
		WillReturnRows(classRow(false, 10, 3))
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), "enr-1", "stu-1")
	require.True(t, errors.Is(err, appErrors.ErrClassClosed))
	require.NoError(t, mock.ExpectationsWereMet())
}
