package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

// ClassRepository handles persistence of classes. Capacity mutations run in
// transactions holding a row lock so available_slots never drifts from the
// enrollment count.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, course_id, name, total_slots, available_slots, certificate_template, is_open, start_date, end_date, created_at, updated_at, deleted_at`

// FindByID returns a non-deleted class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 AND deleted_at IS NULL LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindDetailByID returns a class with course info and enrollment count.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.course_id, c.name, c.total_slots, c.available_slots, c.certificate_template,
        c.is_open, c.start_date, c.end_date, c.created_at, c.updated_at, c.deleted_at,
        co.name AS course_name, co.workload AS course_workload,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrolled_count
        FROM classes c
        JOIN courses co ON co.id = c.course_id
        WHERE c.id = $1 AND c.deleted_at IS NULL`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class detail: %w", err)
	}
	return &detail, nil
}

// Create inserts a new class with all slots available.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CertificateTemplate == "" {
		class.CertificateTemplate = "default"
	}
	class.AvailableSlots = class.TotalSlots
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, course_id, name, total_slots, available_slots, certificate_template, is_open, start_date, end_date, created_at, updated_at)
        VALUES (:id, :course_id, :name, :total_slots, :available_slots, :certificate_template, :is_open, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update persists non-capacity fields of a class. Slot counts are only
// changed through Resize or the enrollment transactions.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, certificate_template = :certificate_template, is_open = :is_open,
        start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, class)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Resize changes the total capacity while preserving current enrollments.
// The class row is locked for the duration so concurrent enrollments cannot
// interleave with the recomputation.
func (r *ClassRepository) Resize(ctx context.Context, id string, newTotal int) (*models.Class, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resize: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var class models.Class
	lockQuery := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, classColumns)
	if err := tx.GetContext(ctx, &class, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock class for resize: %w", err)
	}

	enrolled := class.TotalSlots - class.AvailableSlots
	if newTotal < enrolled {
		return nil, appErrors.Clone(appErrors.ErrInvalidCapacity,
			fmt.Sprintf("cannot reduce capacity to %d with %d students enrolled", newTotal, enrolled))
	}

	class.TotalSlots = newTotal
	class.AvailableSlots = newTotal - enrolled
	class.UpdatedAt = time.Now().UTC()

	const update = `UPDATE classes SET total_slots = $2, available_slots = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, class.ID, class.TotalSlots, class.AvailableSlots, class.UpdatedAt); err != nil {
		return nil, fmt.Errorf("resize class: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resize: %w", err)
	}
	return &class, nil
}

// SoftDelete marks the class deleted without removing the row.
func (r *ClassRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE classes SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns classes with course info based on filters with total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes c
JOIN courses co ON co.id = c.course_id
WHERE c.deleted_at IS NULL`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("c.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.OnlyOpen {
		conditions = append(conditions, "c.is_open = TRUE AND c.available_slots > 0")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR co.name ILIKE $%d)", len(args)+1, len(args)+2))
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"start_date": "c.start_date",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.course_id, c.name, c.total_slots, c.available_slots, c.certificate_template,
        c.is_open, c.start_date, c.end_date, c.created_at, c.updated_at, c.deleted_at,
        co.name AS course_name, co.workload AS course_workload,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}
