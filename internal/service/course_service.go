package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/internal/models"
	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
}

type courseClassLister interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const catalogCachePrefix = "catalog:courses"

type cachedCourseList struct {
	Courses    []models.Course   `json:"courses"`
	Pagination models.Pagination `json:"pagination"`
}

// CourseService handles course catalog use-cases. Public listings are served
// through Redis; any write invalidates the whole catalog prefix.
type CourseService struct {
	repo      courseRepository
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	classes   courseClassLister
}

// NewCourseService constructs the course service. A nil cache disables caching.
func NewCourseService(repo courseRepository, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// WithMetrics attaches catalog cache hit/miss counters.
func (s *CourseService) WithMetrics(metrics *MetricsService) *CourseService {
	s.metrics = metrics
	return s
}

// WithClassLister enables the combined course-and-classes listing.
func (s *CourseService) WithClassLister(classes courseClassLister) *CourseService {
	s.classes = classes
	return s
}

// List returns courses and pagination metadata, served from cache when warm.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := s.cacheKey(filter)
	if s.cache != nil {
		var cached cachedCourseList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCatalogCache(true)
			}
			return cached.Courses, &cached.Pagination, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.ObserveCatalogCache(false)
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Pagination: *pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, pagination, nil
}

// ListWithClasses returns the catalog with each course's class sections,
// including capacity state. Class data is read fresh, never cached.
func (s *CourseService) ListWithClasses(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithClasses, *models.Pagination, error) {
	courses, pagination, err := s.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	result := make([]models.CourseWithClasses, 0, len(courses))
	for _, course := range courses {
		entry := models.CourseWithClasses{Course: course, Classes: []models.ClassDetail{}}
		if s.classes != nil {
			classes, _, err := s.classes.List(ctx, models.ClassFilter{CourseID: course.ID, PageSize: 100})
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes for course")
			}
			entry.Classes = classes
		}
		result = append(result, entry)
	}
	return result, pagination, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course and invalidates the catalog cache.
func (s *CourseService) Create(ctx context.Context, req models.CourseCreateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Name:        req.Name,
		Description: req.Description,
		Workload:    req.Workload,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update applies partial edits to a course and invalidates the catalog cache.
func (s *CourseService) Update(ctx context.Context, id string, req models.CourseUpdateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.Workload != nil {
		course.Workload = *req.Workload
	}

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete soft-deletes a course and invalidates the catalog cache. Issued
// certificates keep their snapshot and remain valid.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) cacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%s:%s:%d:%d:%s:%s", catalogCachePrefix, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
