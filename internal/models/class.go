package models

import "time"

// Class represents a scheduled section of a course. AvailableSlots is the
// authoritative remaining capacity and is only mutated inside enrollment
// transactions.
type Class struct {
	ID                  string     `db:"id" json:"id"`
	CourseID            string     `db:"course_id" json:"course_id"`
	Name                string     `db:"name" json:"name"`
	TotalSlots          int        `db:"total_slots" json:"total_slots"`
	AvailableSlots      int        `db:"available_slots" json:"available_slots"`
	CertificateTemplate string     `db:"certificate_template" json:"certificate_template"`
	IsOpen              bool       `db:"is_open" json:"is_open"`
	StartDate           *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate             *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at" json:"-"`
}

// ClassDetail enriches Class with course info and the live enrollment count.
type ClassDetail struct {
	Class
	CourseName     string `db:"course_name" json:"course_name"`
	CourseWorkload int    `db:"course_workload" json:"course_workload"`
	EnrolledCount  int    `db:"enrolled_count" json:"enrolled_count"`
}

// ClassCreateRequest is the admin payload for opening a new class.
type ClassCreateRequest struct {
	CourseID            string     `json:"course_id" validate:"required,uuid"`
	Name                string     `json:"name" validate:"required"`
	TotalSlots          int        `json:"total_slots" validate:"required,gt=0"`
	CertificateTemplate string     `json:"certificate_template,omitempty"`
	IsOpen              *bool      `json:"is_open,omitempty"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	EndDate             *time.Time `json:"end_date,omitempty"`
}

// ClassUpdateRequest carries partial class edits. TotalSlots triggers a
// capacity resize validated against current enrollment.
type ClassUpdateRequest struct {
	Name                *string    `json:"name,omitempty"`
	TotalSlots          *int       `json:"total_slots,omitempty" validate:"omitempty,gt=0"`
	CertificateTemplate *string    `json:"certificate_template,omitempty"`
	IsOpen              *bool      `json:"is_open,omitempty"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	EndDate             *time.Time `json:"end_date,omitempty"`
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	CourseID  string
	OnlyOpen  bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
