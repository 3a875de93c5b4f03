package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type enrollmentRepository interface {
	Enroll(ctx context.Context, studentID, classID string) (*models.Enrollment, error)
	Cancel(ctx context.Context, enrollmentID, ownerID string) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type enrollmentClassRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
}

type enrollmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollmentService handles seat reservation use-cases. The capacity rules
// themselves are enforced inside the repository transactions; this layer
// checks the principal and translates errors for transport.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   enrollmentClassRepository
	students  enrollmentStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, classes enrollmentClassRepository, students enrollmentStudentRepository, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, students: students, validator: validate, logger: logger}
}

// WithMetrics attaches enrollment outcome counters.
func (s *EnrollmentService) WithMetrics(metrics *MetricsService) *EnrollmentService {
	s.metrics = metrics
	return s
}

func (s *EnrollmentService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveEnrollment(outcome)
	}
}

// AvailableClasses lists open classes that still have seats.
func (s *EnrollmentService) AvailableClasses(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	filter.OnlyOpen = true
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Enroll reserves a seat in the class for the student.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active || !student.Authorized {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not authorized to enroll")
	}

	enrollment, err := s.repo.Enroll(ctx, studentID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.observe(strings.ToLower(appErr.Code))
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.observe("enrolled")
	s.logger.Sugar().Infow("student enrolled", "student_id", studentID, "class_id", classID, "enrollment_id", enrollment.ID)
	return enrollment, nil
}

// Cancel releases a seat. Admins may cancel any enrollment; students only
// their own.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID string, claims *models.JWTClaims) error {
	ownerID := ""
	if claims != nil && claims.Role != models.RoleAdmin {
		ownerID = claims.UserID
	}

	if err := s.repo.Cancel(ctx, enrollmentID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	s.observe("cancelled")
	s.logger.Sugar().Infow("enrollment cancelled", "enrollment_id", enrollmentID)
	return nil
}

// Mine lists the student's own enrollments with class and course info.
func (s *EnrollmentService) Mine(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	details, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}
