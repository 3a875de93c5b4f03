package models

import "time"

// Course represents an offering in the courses table. Workload is in hours.
// Deleted courses are retained with deleted_at set so issued certificates
// keep resolving.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Workload    int        `db:"workload" json:"workload"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// CourseWithClasses pairs a course with its class sections for the public
// catalog listing.
type CourseWithClasses struct {
	Course
	Classes []ClassDetail `json:"classes"`
}

// CourseCreateRequest is the admin payload for creating a course.
type CourseCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=3"`
	Description *string `json:"description,omitempty"`
	Workload    int     `json:"workload" validate:"required,gt=0"`
}

// CourseUpdateRequest carries partial course edits.
type CourseUpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
	Workload    *int    `json:"workload,omitempty" validate:"omitempty,gt=0"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
