package models

import "time"

// Enrollment records a student's seat in a class.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
}

// EnrollmentDetail enriches Enrollment with class and course info for listings.
type EnrollmentDetail struct {
	Enrollment
	ClassName      string     `db:"class_name" json:"class_name"`
	CourseID       string     `db:"course_id" json:"course_id"`
	CourseName     string     `db:"course_name" json:"course_name"`
	CourseWorkload int        `db:"course_workload" json:"course_workload"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
}

// RosterEntry is one student row in a class roster.
type RosterEntry struct {
	EnrollmentID   string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	StudentName    string    `db:"student_name" json:"student_name"`
	StudentEmail   string    `db:"student_email" json:"student_email"`
	StudentCPF     string    `db:"student_cpf" json:"student_cpf"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
}
