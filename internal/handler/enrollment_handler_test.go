package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certifyhq/certify-api/internal/middleware"
	"github.com/certifyhq/certify-api/internal/models"
	"github.com/certifyhq/certify-api/internal/service"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	enrollment *models.Enrollment
	enrollErr  error
	cancelErr  error
	lastClass  string
}

func (f *fakeEnrollmentRepo) Enroll(_ context.Context, studentID, classID string) (*models.Enrollment, error) {
	f.lastClass = classID
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	return f.enrollment, nil
}

func (f *fakeEnrollmentRepo) Cancel(context.Context, string, string) error {
	return f.cancelErr
}

func (f *fakeEnrollmentRepo) ListByStudent(context.Context, string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type fakeClassLister struct {
	classes []models.ClassDetail
}

func (f *fakeClassLister) List(context.Context, models.ClassFilter) ([]models.ClassDetail, int, error) {
	return f.classes, len(f.classes), nil
}

type fakeStudentFinder struct {
	student *models.Student
}

func (f *fakeStudentFinder) FindByID(context.Context, string) (*models.Student, error) {
	return f.student, nil
}

type testEnvelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func newEnrollmentHandler(repo *fakeEnrollmentRepo) *EnrollmentHandler {
	students := &fakeStudentFinder{student: &models.Student{ID: "stu-1", Authorized: true, Active: true}}
	svc := service.NewEnrollmentService(repo, &fakeClassLister{}, students, nil, nil)
	return NewEnrollmentHandler(svc)
}

func TestEnrollmentHandlerEnrollSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeEnrollmentRepo{enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", ClassID: "class-1"}}
	handler := newEnrollmentHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{"class_id":"class-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Enroll(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "class-1", repo.lastClass)

	var envelope testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
	assert.Contains(t, string(envelope.Data), "enr-1")
}

func TestEnrollmentHandlerEnrollRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&fakeEnrollmentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{"class_id":"class-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Enroll(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollmentHandlerEnrollRejectsMissingClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&fakeEnrollmentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerEnrollFullClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeEnrollmentRepo{enrollErr: appErrors.Clone(appErrors.ErrNoCapacity, "")}
	handler := newEnrollmentHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{"class_id":"class-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Enroll(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNoCapacity.Code, envelope.Error.Code)
}

func TestEnrollmentHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&fakeEnrollmentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/enrollments/enr-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Cancel(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
