package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type mockClassRepo struct {
	classes map[string]models.Class
}

func (m *mockClassRepo) List(_ context.Context, _ models.ClassFilter) ([]models.ClassDetail, int, error) {
	details := make([]models.ClassDetail, 0, len(m.classes))
	for _, c := range m.classes {
		details = append(details, models.ClassDetail{Class: c})
	}
	return details, len(details), nil
}

func (m *mockClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindDetailByID(_ context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return &models.ClassDetail{Class: c, EnrolledCount: c.TotalSlots - c.AvailableSlots}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) Create(_ context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "generated"
	}
	class.AvailableSlots = class.TotalSlots
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Update(_ context.Context, class *models.Class) error {
	if _, ok := m.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Resize(_ context.Context, id string, newTotal int) (*models.Class, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	enrolled := c.TotalSlots - c.AvailableSlots
	if newTotal < enrolled {
		return nil, appErrors.ErrInvalidCapacity
	}
	c.TotalSlots = newTotal
	c.AvailableSlots = newTotal - enrolled
	m.classes[id] = c
	return &c, nil
}

func (m *mockClassRepo) SoftDelete(_ context.Context, id string) error {
	if _, ok := m.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.classes, id)
	return nil
}

type mockCourseFinder struct {
	courses map[string]models.Course
}

func (m *mockCourseFinder) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockRosterRepo struct {
	roster map[string][]models.RosterEntry
}

func (m *mockRosterRepo) Roster(_ context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster[classID], nil
}

func newClassFixture() (*ClassService, *mockClassRepo) {
	repo := &mockClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", CourseID: "course-1", Name: "2026.1", TotalSlots: 10, AvailableSlots: 4, IsOpen: true},
	}}
	courses := &mockCourseFinder{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Name: "Go", Workload: 40},
	}}
	roster := &mockRosterRepo{roster: map[string][]models.RosterEntry{}}
	return NewClassService(repo, courses, roster, nil, zap.NewNop()), repo
}

func TestClassServiceCreateUnknownCourse(t *testing.T) {
	svc, _ := newClassFixture()

	_, err := svc.Create(context.Background(), models.ClassCreateRequest{
		CourseID:   "11111111-1111-1111-1111-111111111111",
		Name:       "2026.2",
		TotalSlots: 30,
	})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClassServiceCreate(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]models.Class{}}
	courseID := "11111111-1111-1111-1111-111111111111"
	courses := &mockCourseFinder{courses: map[string]models.Course{
		courseID: {ID: courseID, Name: "Go", Workload: 40},
	}}
	svc := NewClassService(repo, courses, &mockRosterRepo{}, nil, zap.NewNop())

	class, err := svc.Create(context.Background(), models.ClassCreateRequest{
		CourseID:   courseID,
		Name:       "2026.2",
		TotalSlots: 30,
	})
	require.NoError(t, err)
	assert.True(t, class.IsOpen)
	assert.Equal(t, 30, class.AvailableSlots)
}

func TestClassServiceUpdateResize(t *testing.T) {
	svc, repo := newClassFixture()

	// 6 enrolled; growing to 20 leaves 14 available
	newTotal := 20
	class, err := svc.Update(context.Background(), "class-1", models.ClassUpdateRequest{TotalSlots: &newTotal})
	require.NoError(t, err)
	assert.Equal(t, 20, class.TotalSlots)
	assert.Equal(t, 14, class.AvailableSlots)
	assert.Equal(t, 20, repo.classes["class-1"].TotalSlots)
}

func TestClassServiceUpdateResizeBelowEnrollment(t *testing.T) {
	svc, _ := newClassFixture()

	newTotal := 5
	_, err := svc.Update(context.Background(), "class-1", models.ClassUpdateRequest{TotalSlots: &newTotal})
	require.ErrorIs(t, err, appErrors.ErrInvalidCapacity)
}

func TestClassServiceUpdateToggleOpen(t *testing.T) {
	svc, repo := newClassFixture()

	closed := false
	class, err := svc.Update(context.Background(), "class-1", models.ClassUpdateRequest{IsOpen: &closed})
	require.NoError(t, err)
	assert.False(t, class.IsOpen)
	assert.False(t, repo.classes["class-1"].IsOpen)
}

func TestClassServiceGetNotFound(t *testing.T) {
	svc, _ := newClassFixture()

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
