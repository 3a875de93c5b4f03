package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certifyhq/certify-api/internal/models"
)

// CertificateRepository handles persistence of issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, uuid, student_id, course_id, template_id, data_snapshot, issue_date`

// FindByUUID returns a certificate by its public verification token.
func (r *CertificateRepository) FindByUUID(ctx context.Context, token string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE uuid = $1 LIMIT 1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by uuid: %w", err)
	}
	return &cert, nil
}

// FindByStudentAndCourse returns the existing certificate for the pair, if
// any. Issuance is idempotent per student and course.
func (r *CertificateRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE student_id = $1 AND course_id = $2 LIMIT 1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by student and course: %w", err)
	}
	return &cert, nil
}

// ListByStudent returns all certificates issued to a student.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE student_id = $1 ORDER BY issue_date DESC`, certificateColumns)
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list certificates by student: %w", err)
	}
	return certs, nil
}

// Create inserts a new certificate row.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.UUID == "" {
		cert.UUID = uuid.NewString()
	}
	if cert.IssueDate.IsZero() {
		cert.IssueDate = time.Now().UTC()
	}

	const query = `INSERT INTO certificates (id, uuid, student_id, course_id, template_id, data_snapshot, issue_date)
        VALUES (:id, :uuid, :student_id, :course_id, :template_id, :data_snapshot, :issue_date)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}
