package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]models.User
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type mockAuthStudentRepo struct {
	students map[string]models.Student
}

func (m *mockAuthStudentRepo) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Email == email {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudentRepo) FindByCPF(_ context.Context, cpf string) (*models.Student, error) {
	for _, s := range m.students {
		if s.CPF == cpf {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudentRepo) Create(_ context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthStudentRepo) {
	t.Helper()
	users := &mockUserRepo{users: map[string]models.User{
		"admin-1": {ID: "admin-1", Email: "admin@example.com", PasswordHash: hashOf(t, "s3cret"), FullName: "Admin", Role: models.RoleAdmin, Active: true},
	}}
	studentHash := hashOf(t, "student-pass")
	students := &mockAuthStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Name: "Maria", Email: "maria@example.com", CPF: "12345678901", PasswordHash: &studentHash, Authorized: true, Active: true},
	}}
	svc := NewAuthService(users, students, nil, zap.NewNop(), AuthConfig{
		Secret: "test-secret",
		Expiry: 30 * time.Minute,
		Issuer: "certify-api",
	})
	return svc, students
}

func TestAuthServiceLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Account.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceStudentLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.StudentLogin(context.Background(), models.LoginRequest{Email: "maria@example.com", Password: "student-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.Account.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
}

func TestAuthServiceStudentLoginUnauthorized(t *testing.T) {
	svc, students := newAuthFixture(t)
	s := students.students["stu-1"]
	s.Authorized = false
	students.students["stu-1"] = s

	_, err := svc.StudentLogin(context.Background(), models.LoginRequest{Email: "maria@example.com", Password: "student-pass"})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	svc, students := newAuthFixture(t)

	student, err := svc.RegisterStudent(context.Background(), models.StudentRegisterRequest{
		Name:     "João Souza",
		Email:    "joao@example.com",
		CPF:      "98765432100",
		Password: "new-pass",
	})
	require.NoError(t, err)
	assert.True(t, student.Authorized)
	assert.NotNil(t, student.PasswordHash)
	_, ok := students.students[student.ID]
	assert.True(t, ok)
}

func TestAuthServiceRegisterStudentDuplicateCPF(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), models.StudentRegisterRequest{
		Name:     "Other",
		Email:    "other@example.com",
		CPF:      "12345678901",
		Password: "pass-123",
	})
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAuthServiceRegisterStudentRejectsFormattedCPF(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), models.StudentRegisterRequest{
		Name:     "Other",
		Email:    "other@example.com",
		CPF:      "123.456.789-01",
		Password: "pass-123",
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
