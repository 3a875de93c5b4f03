package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type mockCourseRepo struct {
	courses   map[string]models.Course
	listCalls int
}

func (m *mockCourseRepo) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	m.listCalls++
	courses := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		courses = append(courses, c)
	}
	return courses, len(courses), nil
}

func (m *mockCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(_ context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "generated"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) SoftDelete(_ context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

type memoryCache struct {
	entries map[string][]byte
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, _ string) error {
	c.deletes++
	c.entries = make(map[string][]byte)
	return nil
}

func TestCourseServiceListUsesCache(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Name: "Go", Workload: 40},
	}}
	cache := newMemoryCache()
	svc := NewCourseService(repo, cache, time.Minute, nil, zap.NewNop())

	_, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)

	// second call is served from cache
	assert.Equal(t, 1, repo.listCalls)
}

func TestCourseServiceWriteInvalidatesCache(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{}}
	cache := newMemoryCache()
	svc := NewCourseService(repo, cache, time.Minute, nil, zap.NewNop())

	_, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), models.CourseCreateRequest{Name: "Docker", Workload: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)

	_, _, err = svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCourseServiceGetNotFound(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{}}
	svc := NewCourseService(repo, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseServiceUpdate(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Name: "Go", Workload: 40},
	}}
	svc := NewCourseService(repo, nil, time.Minute, nil, zap.NewNop())

	workload := 60
	course, err := svc.Update(context.Background(), "course-1", models.CourseUpdateRequest{Workload: &workload})
	require.NoError(t, err)
	assert.Equal(t, 60, course.Workload)
	assert.Equal(t, "Go", course.Name)
}
