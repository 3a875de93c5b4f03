package template

import (
	"time"
)

// Data carries everything a certificate template needs to render. The values
// come from the certificate snapshot, never from live rows, so reissued
// documents stay identical even after a student or course is renamed.
type Data struct {
	StudentName    string    `json:"student_name"`
	StudentCPF     string    `json:"student_cpf"`
	CourseName     string    `json:"course_name"`
	CourseWorkload int       `json:"course_workload"`
	ClassName      string    `json:"class_name"`
	IssueDate      time.Time `json:"issue_date"`
	UUID           string    `json:"uuid"`
	ValidationURL  string    `json:"validation_url"`
}

// Renderer produces a certificate PDF at outPath and returns the written path.
type Renderer interface {
	Name() string
	Description() string
	Render(data Data, outPath string) (string, error)
}

// Info describes a registered template for listing endpoints.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
