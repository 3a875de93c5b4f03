package service

import (
	"archive/zip"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
	"github.com/certifyhq/certify-api/pkg/storage"
	"github.com/certifyhq/certify-api/pkg/template"
)

type mockCertificateRepo struct {
	byUUID map[string]*models.Certificate
	byPair map[string]*models.Certificate
}

func newMockCertificateRepo() *mockCertificateRepo {
	return &mockCertificateRepo{
		byUUID: make(map[string]*models.Certificate),
		byPair: make(map[string]*models.Certificate),
	}
}

func pairKey(studentID, courseID string) string { return studentID + "|" + courseID }

func (m *mockCertificateRepo) FindByUUID(_ context.Context, token string) (*models.Certificate, error) {
	if cert, ok := m.byUUID[token]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindByStudentAndCourse(_ context.Context, studentID, courseID string) (*models.Certificate, error) {
	if cert, ok := m.byPair[pairKey(studentID, courseID)]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) ListByStudent(_ context.Context, studentID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	for _, cert := range m.byUUID {
		if cert.StudentID == studentID {
			certs = append(certs, *cert)
		}
	}
	return certs, nil
}

func (m *mockCertificateRepo) Create(_ context.Context, cert *models.Certificate) error {
	m.byUUID[cert.UUID] = cert
	m.byPair[pairKey(cert.StudentID, cert.CourseID)] = cert
	return nil
}

type mockCertStudentRepo struct {
	students map[string]models.Student
}

func (m *mockCertStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertStudentRepo) FindByCPF(_ context.Context, cpf string) (*models.Student, error) {
	for _, s := range m.students {
		if s.CPF == cpf {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockCertCourseRepo struct {
	courses map[string]models.Course
}

func (m *mockCertCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok && c.DeletedAt == nil {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertCourseRepo) FindByIDIncludingDeleted(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockCertClassRepo struct {
	classes map[string]models.Class
}

func (m *mockCertClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockCertRosterRepo struct {
	roster map[string][]models.RosterEntry
}

func (m *mockCertRosterRepo) Roster(_ context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster[classID], nil
}

func newCertificateFixture(t *testing.T) (*CertificateService, *mockCertificateRepo, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repo := newMockCertificateRepo()
	students := &mockCertStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Name: "Maria José da Silva", CPF: "12345678901", Email: "maria@example.com", Active: true, Authorized: true},
		"stu-2": {ID: "stu-2", Name: "João Souza", CPF: "98765432100", Email: "joao@example.com", Active: true, Authorized: true},
	}}
	courses := &mockCertCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Name: "Go Programming", Workload: 40},
	}}
	classes := &mockCertClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", CourseID: "course-1", Name: "2026.1", CertificateTemplate: "default"},
	}}
	roster := &mockCertRosterRepo{roster: map[string][]models.RosterEntry{
		"class-1": {
			{EnrollmentID: "enr-1", StudentID: "stu-1", StudentName: "Maria José da Silva"},
			{EnrollmentID: "enr-2", StudentID: "stu-2", StudentName: "João Souza"},
		},
	}}

	svc := NewCertificateService(
		repo, students, courses, classes, roster,
		template.NewRegistry("", zap.NewNop()),
		store,
		storage.NewSignedURLSigner("secret", time.Hour),
		nil,
		CertificateConfig{DownloadBaseURL: "http://localhost:8080/api/v1/certificates/download", ValidationBaseURL: "http://localhost:8080/validate"},
		nil, zap.NewNop(),
	)
	return svc, repo, store
}

func TestCertificateServiceIssueIdempotent(t *testing.T) {
	svc, _, store := newCertificateFixture(t)

	first, err := svc.Issue(context.Background(), models.CertificateIssueRequest{StudentID: "stu-1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.True(t, store.Exists(first.UUID+".pdf"))
	assert.Equal(t, "Maria José da Silva", first.Snapshot.StudentName)
	assert.Equal(t, 40, first.Snapshot.CourseWorkload)

	second, err := svc.Issue(context.Background(), models.CertificateIssueRequest{StudentID: "stu-1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, first.UUID, second.UUID)
}

func TestCertificateServiceIssueUnknownStudent(t *testing.T) {
	svc, _, _ := newCertificateFixture(t)

	_, err := svc.Issue(context.Background(), models.CertificateIssueRequest{
		StudentID: "00000000-0000-0000-0000-000000000000",
		CourseID:  "course-1",
	})
	require.Error(t, err)
}

func TestCertificateServiceSnapshotFrozen(t *testing.T) {
	svc, repo, _ := newCertificateFixture(t)

	cert, err := svc.Issue(context.Background(), models.CertificateIssueRequest{StudentID: "stu-1", CourseID: "course-1"})
	require.NoError(t, err)

	// verification reads the snapshot, not live rows
	validation, err := svc.Validate(context.Background(), cert.UUID)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Equal(t, "Maria José da Silva", validation.StudentName)
	assert.Equal(t, "Go Programming", validation.CourseName)

	_, ok := repo.byUUID[cert.UUID]
	assert.True(t, ok)
}

func TestCertificateServiceValidateUnknown(t *testing.T) {
	svc, _, _ := newCertificateFixture(t)

	_, err := svc.Validate(context.Background(), "missing-uuid")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCertificateServiceBulkIssue(t *testing.T) {
	svc, _, store := newCertificateFixture(t)

	zipName, err := svc.BulkIssue(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Contains(t, zipName, "certificados_turma_class-1_")
	assert.True(t, store.Exists(zipName))

	reader, err := zip.OpenReader(store.Path(zipName))
	require.NoError(t, err)
	defer reader.Close()
	assert.Len(t, reader.File, 2)
	for _, f := range reader.File {
		assert.Regexp(t, `^certificado_[A-Za-z0-9_-]+_[0-9a-f-]+\.pdf$`, f.Name)
	}

	// bundled PDFs are removed after being added to the ZIP
	for _, f := range reader.File {
		assert.False(t, store.Exists(f.Name))
	}
}

func TestCertificateServiceByCPF(t *testing.T) {
	svc, _, _ := newCertificateFixture(t)

	_, err := svc.Issue(context.Background(), models.CertificateIssueRequest{StudentID: "stu-1", CourseID: "course-1"})
	require.NoError(t, err)

	downloads, err := svc.ByCPF(context.Background(), "12345678901")
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Contains(t, downloads[0].DownloadURL, "token=")
	assert.True(t, downloads[0].ExpiresAt.After(time.Now()))

	_, err = svc.ByCPF(context.Background(), "00000000000")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCertificateServiceReRendersMissingFile(t *testing.T) {
	svc, _, store := newCertificateFixture(t)

	cert, err := svc.Issue(context.Background(), models.CertificateIssueRequest{StudentID: "stu-1", CourseID: "course-1"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(cert.UUID+".pdf"))

	file, relPath, err := svc.OpenByUUID(context.Background(), cert.UUID)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, cert.UUID+".pdf", relPath)
	assert.True(t, store.Exists(relPath))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "Maria_Jos_da_Silva", safeFileName("Maria José da Silva"))
	assert.Equal(t, "Joo-Souza_1", safeFileName("João-Souza_1!"))
	assert.Equal(t, "", safeFileName("!!!"))
}
