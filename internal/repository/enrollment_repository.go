package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollments. Enroll and Cancel
// run inside transactions that lock the class row, so the slot counter and
// the enrollment rows always move together.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll reserves a seat for the student. Checks run in a fixed order under
// the row lock: class existence, open flag, capacity, duplicate enrollment.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var class models.Class
	const lockQuery = `SELECT id, course_id, name, total_slots, available_slots, certificate_template, is_open, start_date, end_date, created_at, updated_at, deleted_at
        FROM classes WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err := tx.GetContext(ctx, &class, lockQuery, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock class for enroll: %w", err)
	}

	if !class.IsOpen {
		return nil, appErrors.ErrClassClosed
	}
	if class.AvailableSlots <= 0 {
		return nil, appErrors.ErrNoCapacity
	}

	var existing int
	const dupQuery = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND class_id = $2`
	if err := tx.GetContext(ctx, &existing, dupQuery, studentID, classID); err != nil {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if existing > 0 {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	enrollment := &models.Enrollment{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		ClassID:        classID,
		EnrollmentDate: time.Now().UTC(),
	}
	const insert = `INSERT INTO enrollments (id, student_id, class_id, enrollment_date) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, enrollment.ID, enrollment.StudentID, enrollment.ClassID, enrollment.EnrollmentDate); err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	const decrement = `UPDATE classes SET available_slots = available_slots - 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, decrement, classID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("decrement available slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enroll: %w", err)
	}
	return enrollment, nil
}

// Cancel releases the seat held by an enrollment. When ownerID is non-empty
// the enrollment must belong to that student. Cancellation is refused once
// the class is closed.
func (r *EnrollmentRepository) Cancel(ctx context.Context, enrollmentID, ownerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var enrollment models.Enrollment
	const findQuery = `SELECT id, student_id, class_id, enrollment_date FROM enrollments WHERE id = $1`
	if err := tx.GetContext(ctx, &enrollment, findQuery, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("find enrollment: %w", err)
	}

	if ownerID != "" && enrollment.StudentID != ownerID {
		return appErrors.ErrForbidden
	}

	var class models.Class
	const lockQuery = `SELECT id, course_id, name, total_slots, available_slots, certificate_template, is_open, start_date, end_date, created_at, updated_at, deleted_at
        FROM classes WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &class, lockQuery, enrollment.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock class for cancel: %w", err)
	}

	if !class.IsOpen {
		return appErrors.ErrClassClosed
	}

	const remove = `DELETE FROM enrollments WHERE id = $1`
	if _, err := tx.ExecContext(ctx, remove, enrollmentID); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	const increment = `UPDATE classes SET available_slots = available_slots + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, increment, enrollment.ClassID, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment available slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, enrollment_date FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns the student's enrollments with class and course info.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.enrollment_date,
        c.name AS class_name, c.start_date, c.end_date,
        co.id AS course_id, co.name AS course_name, co.workload AS course_workload
        FROM enrollments e
        JOIN classes c ON c.id = e.class_id
        JOIN courses co ON co.id = c.course_id
        WHERE e.student_id = $1
        ORDER BY e.enrollment_date DESC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return details, nil
}

// Roster returns the students enrolled in a class.
func (r *EnrollmentRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, e.enrollment_date,
        s.name AS student_name, s.email AS student_email, s.cpf AS student_cpf
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.class_id = $1
        ORDER BY s.name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}

// CountByClass returns the number of active enrollments in a class.
func (r *EnrollmentRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}
