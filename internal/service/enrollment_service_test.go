package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type mockClassState struct {
	open      bool
	available int
	deleted   bool
}

type mockEnrollmentRepo struct {
	classes     map[string]*mockClassState
	enrollments map[string]models.Enrollment
	seq         int
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		classes:     make(map[string]*mockClassState),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (m *mockEnrollmentRepo) Enroll(_ context.Context, studentID, classID string) (*models.Enrollment, error) {
	class, ok := m.classes[classID]
	if !ok || class.deleted {
		return nil, sql.ErrNoRows
	}
	if !class.open {
		return nil, appErrors.ErrClassClosed
	}
	if class.available <= 0 {
		return nil, appErrors.ErrNoCapacity
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.ClassID == classID {
			return nil, appErrors.ErrAlreadyEnrolled
		}
	}
	m.seq++
	enrollment := models.Enrollment{ID: fmt.Sprintf("enr-%d", m.seq), StudentID: studentID, ClassID: classID}
	m.enrollments[enrollment.ID] = enrollment
	class.available--
	return &enrollment, nil
}

func (m *mockEnrollmentRepo) Cancel(_ context.Context, enrollmentID, ownerID string) error {
	enrollment, ok := m.enrollments[enrollmentID]
	if !ok {
		return sql.ErrNoRows
	}
	if ownerID != "" && enrollment.StudentID != ownerID {
		return appErrors.ErrForbidden
	}
	class := m.classes[enrollment.ClassID]
	if !class.open {
		return appErrors.ErrClassClosed
	}
	delete(m.enrollments, enrollmentID)
	class.available++
	return nil
}

func (m *mockEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var details []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			details = append(details, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return details, nil
}

type mockClassLister struct{}

func (m *mockClassLister) List(_ context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	if !filter.OnlyOpen {
		return nil, 0, errors.New("expected open-only filter")
	}
	return []models.ClassDetail{}, 0, nil
}

type mockStudentFinder struct {
	students map[string]models.Student
}

func (m *mockStudentFinder) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudents(ids ...string) *mockStudentFinder {
	students := make(map[string]models.Student, len(ids))
	for _, id := range ids {
		students[id] = models.Student{ID: id, Authorized: true, Active: true}
	}
	return &mockStudentFinder{students: students}
}

func TestEnrollmentServiceCapacityExhaustion(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 2}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a", "b", "c"), nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "a", "class-1")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), "b", "class-1")
	require.NoError(t, err)

	// third student hits the capacity wall
	_, err = svc.Enroll(context.Background(), "c", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrNoCapacity))
	assert.Equal(t, 0, repo.classes["class-1"].available)
}

func TestEnrollmentServiceCancelFreesSeat(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 1}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a", "b"), nil, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), "a", "class-1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "b", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrNoCapacity))

	claims := &models.JWTClaims{UserID: "a", Role: models.RoleStudent}
	require.NoError(t, svc.Cancel(context.Background(), enrollment.ID, claims))

	_, err = svc.Enroll(context.Background(), "b", "class-1")
	require.NoError(t, err)
}

func TestEnrollmentServiceDuplicate(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 5}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a"), nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "a", "class-1")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), "a", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestEnrollmentServiceClosedClass(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: false, available: 5}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a"), nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "a", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrClassClosed))
}

func TestEnrollmentServiceUnauthorizedStudent(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 5}
	students := &mockStudentFinder{students: map[string]models.Student{
		"a": {ID: "a", Authorized: false, Active: true},
	}}
	svc := NewEnrollmentService(repo, &mockClassLister{}, students, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "a", "class-1")
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestEnrollmentServiceCancelOwnership(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 5}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a", "b"), nil, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), "a", "class-1")
	require.NoError(t, err)

	other := &models.JWTClaims{UserID: "b", Role: models.RoleStudent}
	err = svc.Cancel(context.Background(), enrollment.ID, other)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	// admins bypass the ownership check
	admin := &models.JWTClaims{UserID: "staff", Role: models.RoleAdmin}
	require.NoError(t, svc.Cancel(context.Background(), enrollment.ID, admin))
}

func TestEnrollmentServiceCancelClosedClass(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.classes["class-1"] = &mockClassState{open: true, available: 5}
	svc := NewEnrollmentService(repo, &mockClassLister{}, activeStudents("a"), nil, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), "a", "class-1")
	require.NoError(t, err)

	repo.classes["class-1"].open = false
	claims := &models.JWTClaims{UserID: "a", Role: models.RoleStudent}
	err = svc.Cancel(context.Background(), enrollment.ID, claims)
	require.True(t, errors.Is(err, appErrors.ErrClassClosed))
}
