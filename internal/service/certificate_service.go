package service

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
	"github.com/certifyhq/certify-api/pkg/jobs"
	"github.com/certifyhq/certify-api/pkg/template"
)

type certificateRepository interface {
	FindByUUID(ctx context.Context, token string) (*models.Certificate, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error)
	Create(ctx context.Context, cert *models.Certificate) error
}

type certificateStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
}

type certificateCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIDIncludingDeleted(ctx context.Context, id string) (*models.Course, error)
}

type certificateClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type certificateRosterRepository interface {
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type templateRegistry interface {
	Get(name string) (template.Renderer, error)
	List() []template.Info
}

type certificateStorage interface {
	Path(filename string) string
	Exists(filename string) bool
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(certificateUUID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (certificateUUID, relPath string, expiresAt time.Time, err error)
}

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

// CertificateConfig carries URL construction settings for the service.
type CertificateConfig struct {
	DownloadBaseURL   string
	ValidationBaseURL string
}

// CertificateService issues, renders and validates certificates. Issuance is
// idempotent per student and course; the PDF is always rendered from the
// stored snapshot, never from live rows.
type CertificateService struct {
	repo      certificateRepository
	students  certificateStudentRepository
	courses   certificateCourseRepository
	classes   certificateClassRepository
	roster    certificateRosterRepository
	registry  templateRegistry
	storage   certificateStorage
	signer    downloadSigner
	cleanup   cleanupQueue
	config    CertificateConfig
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewCertificateService constructs the certificate service. The cleanup queue
// may be nil; downloaded bundles then stay on disk until the age sweep.
func NewCertificateService(
	repo certificateRepository,
	students certificateStudentRepository,
	courses certificateCourseRepository,
	classes certificateClassRepository,
	roster certificateRosterRepository,
	registry templateRegistry,
	storage certificateStorage,
	signer downloadSigner,
	cleanup cleanupQueue,
	config CertificateConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:      repo,
		students:  students,
		courses:   courses,
		classes:   classes,
		roster:    roster,
		registry:  registry,
		storage:   storage,
		signer:    signer,
		cleanup:   cleanup,
		config:    config,
		validator: validate,
		logger:    logger,
	}
}

// Issue creates a certificate for the student and course, or returns the
// existing one. The PDF is rendered as part of issuance.
func (s *CertificateService) Issue(ctx context.Context, req models.CertificateIssueRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	existing, err := s.repo.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err == nil {
		if _, renderErr := s.ensureFile(ctx, existing); renderErr != nil {
			return nil, renderErr
		}
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing certificate")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	snapshot := models.CertificateSnapshot{
		StudentName:    student.Name,
		StudentCPF:     student.CPF,
		CourseName:     course.Name,
		CourseWorkload: course.Workload,
	}

	templateID := req.TemplateID
	if req.ClassID != nil {
		class, err := s.classes.FindByID(ctx, *req.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		roster, err := s.roster.Roster(ctx, class.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		enrolled := false
		for _, entry := range roster {
			if entry.StudentID == student.ID {
				enrolled = true
				break
			}
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class")
		}

		snapshot.ClassName = class.Name
		if templateID == nil && class.CertificateTemplate != "" {
			tpl := class.CertificateTemplate
			templateID = &tpl
		}
	}

	cert := &models.Certificate{
		ID:         uuid.NewString(),
		UUID:       uuid.NewString(),
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		TemplateID: templateID,
		Snapshot:   snapshot,
		IssueDate:  time.Now().UTC(),
	}

	if _, err := s.render(cert); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, cert); err != nil {
		_ = s.storage.Delete(cert.UUID + ".pdf")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist certificate")
	}

	if s.metrics != nil {
		s.metrics.ObserveCertificateIssued()
	}
	s.logger.Sugar().Infow("certificate issued", "certificate_uuid", cert.UUID, "student_id", cert.StudentID, "course_id", cert.CourseID)
	return cert, nil
}

// WithMetrics attaches issuance and render instrumentation.
func (s *CertificateService) WithMetrics(metrics *MetricsService) *CertificateService {
	s.metrics = metrics
	return s
}

// BulkIssue issues certificates for every student enrolled in a class and
// bundles the PDFs into a ZIP. Students whose certificate fails to render are
// skipped; the bundle still ships with the rest.
func (s *CertificateService) BulkIssue(ctx context.Context, classID string) (string, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	roster, err := s.roster.Roster(ctx, classID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	zipName := fmt.Sprintf("certificados_turma_%s_%s.zip", classID, time.Now().Format("20060102_150405"))
	zipFile, err := os.Create(s.storage.Path(zipName))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bundle")
	}
	defer zipFile.Close() //nolint:errcheck

	zw := zip.NewWriter(zipFile)
	for _, entry := range roster {
		cert, err := s.Issue(ctx, models.CertificateIssueRequest{
			StudentID: entry.StudentID,
			CourseID:  class.CourseID,
			ClassID:   &classID,
		})
		if err != nil {
			s.logger.Sugar().Warnw("skipping certificate in bundle", "student_id", entry.StudentID, "error", err)
			continue
		}

		pdfRel := cert.UUID + ".pdf"
		if err := s.addToZip(zw, pdfRel, fmt.Sprintf("certificado_%s_%s.pdf", safeFileName(cert.Snapshot.StudentName), cert.UUID)); err != nil {
			s.logger.Sugar().Warnw("skipping certificate in bundle", "certificate_uuid", cert.UUID, "error", err)
			continue
		}

		// individual PDFs are not needed once bundled
		if err := s.storage.Delete(pdfRel); err != nil {
			s.logger.Sugar().Warnw("failed to remove bundled pdf", "file", pdfRel, "error", err)
		}
	}

	if err := zw.Close(); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalise bundle")
	}

	s.logger.Sugar().Infow("certificate bundle created", "class_id", classID, "file", zipName)
	return zipName, nil
}

// Validate resolves a certificate by its public verification token.
func (s *CertificateService) Validate(ctx context.Context, token string) (*models.CertificateValidation, error) {
	cert, err := s.repo.FindByUUID(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return &models.CertificateValidation{
		Valid:          true,
		UUID:           cert.UUID,
		StudentName:    cert.Snapshot.StudentName,
		CourseName:     cert.Snapshot.CourseName,
		CourseWorkload: cert.Snapshot.CourseWorkload,
		IssueDate:      cert.IssueDate,
	}, nil
}

// ByCPF lists a student's certificates as signed download links. This powers
// the public lookup form, so the student record must exist and be active.
func (s *CertificateService) ByCPF(ctx context.Context, cpf string) ([]models.CertificateDownload, error) {
	student, err := s.students.FindByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no certificates found for this cpf")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	certs, err := s.repo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}

	downloads := make([]models.CertificateDownload, 0, len(certs))
	for _, cert := range certs {
		token, expiresAt, err := s.signer.Generate(cert.UUID, cert.UUID+".pdf")
		if err != nil {
			s.logger.Sugar().Warnw("failed to sign download link", "certificate_uuid", cert.UUID, "error", err)
			continue
		}
		downloads = append(downloads, models.CertificateDownload{
			UUID:        cert.UUID,
			CourseName:  cert.Snapshot.CourseName,
			IssueDate:   cert.IssueDate,
			DownloadURL: fmt.Sprintf("%s?token=%s", s.config.DownloadBaseURL, token),
			ExpiresAt:   expiresAt,
		})
	}
	return downloads, nil
}

// ListByStudent returns the certificates issued to a student.
func (s *CertificateService) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	certs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// OpenSigned resolves a signed download token into a readable file handle.
// Missing PDFs are re-rendered from the snapshot before serving.
func (s *CertificateService) OpenSigned(ctx context.Context, token string) (*os.File, string, error) {
	certUUID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	cert, err := s.repo.FindByUUID(ctx, certUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	if _, err := s.ensureFile(ctx, cert); err != nil {
		return nil, "", err
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate file")
	}
	return file, relPath, nil
}

// OpenByUUID returns a readable handle for a certificate PDF, re-rendering it
// from the snapshot when the file has been cleaned up.
func (s *CertificateService) OpenByUUID(ctx context.Context, certUUID string) (*os.File, string, error) {
	cert, err := s.repo.FindByUUID(ctx, certUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	relPath, err := s.ensureFile(ctx, cert)
	if err != nil {
		return nil, "", err
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate file")
	}
	return file, relPath, nil
}

// Templates lists the registered certificate templates.
func (s *CertificateService) Templates() []template.Info {
	return s.registry.List()
}

// OpenArtifact returns a readable handle for a generated artifact such as a
// class bundle.
func (s *CertificateService) OpenArtifact(name string) (*os.File, error) {
	file, err := s.storage.Open(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "artifact not found")
	}
	return file, nil
}

// ScheduleCleanup queues a bundle for deletion once it has been served.
func (s *CertificateService) ScheduleCleanup(relPath string) {
	if s.cleanup == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "delete-artifact",
		Payload: relPath,
	}
	if err := s.cleanup.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to queue artifact cleanup", "file", relPath, "error", err)
	}
}

// ensureFile guarantees the certificate PDF exists on disk.
func (s *CertificateService) ensureFile(_ context.Context, cert *models.Certificate) (string, error) {
	relPath := cert.UUID + ".pdf"
	if s.storage.Exists(relPath) {
		return relPath, nil
	}
	return s.render(cert)
}

// render produces the PDF from the certificate snapshot.
func (s *CertificateService) render(cert *models.Certificate) (string, error) {
	name := "default"
	if cert.TemplateID != nil && *cert.TemplateID != "" {
		name = *cert.TemplateID
	}
	renderer, err := s.registry.Get(name)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return "", appErr
		}
		return "", appErrors.Wrap(err, appErrors.ErrTemplateNotFound.Code, appErrors.ErrTemplateNotFound.Status, "template not found")
	}

	data := template.Data{
		StudentName:    cert.Snapshot.StudentName,
		StudentCPF:     cert.Snapshot.StudentCPF,
		CourseName:     cert.Snapshot.CourseName,
		CourseWorkload: cert.Snapshot.CourseWorkload,
		ClassName:      cert.Snapshot.ClassName,
		IssueDate:      cert.IssueDate,
		UUID:           cert.UUID,
	}
	if s.config.ValidationBaseURL != "" {
		data.ValidationURL = fmt.Sprintf("%s/%s", strings.TrimRight(s.config.ValidationBaseURL, "/"), cert.UUID)
	}

	relPath := cert.UUID + ".pdf"
	start := time.Now()
	if _, err := renderer.Render(data, s.storage.Path(relPath)); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, "certificate rendering failed")
	}
	if s.metrics != nil {
		s.metrics.ObserveRender(time.Since(start))
	}
	return relPath, nil
}

func (s *CertificateService) addToZip(zw *zip.Writer, relPath, nameInZip string) error {
	file, err := s.storage.Open(relPath)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	w, err := zw.Create(nameInZip)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, file); err != nil {
		return err
	}
	return nil
}

// safeFileName keeps letters, digits, spaces, hyphens and underscores, then
// collapses spaces to underscores.
func safeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}
