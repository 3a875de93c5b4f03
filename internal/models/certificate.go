package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Certificate records an issued document. UUID is the public verification
// token; Snapshot freezes the data the PDF was rendered from.
type Certificate struct {
	ID         string              `db:"id" json:"id"`
	UUID       string              `db:"uuid" json:"uuid"`
	StudentID  string              `db:"student_id" json:"student_id"`
	CourseID   string              `db:"course_id" json:"course_id"`
	TemplateID *string             `db:"template_id" json:"template_id,omitempty"`
	Snapshot   CertificateSnapshot `db:"data_snapshot" json:"data_snapshot"`
	IssueDate  time.Time           `db:"issue_date" json:"issue_date"`
}

// CertificateSnapshot stores the frozen render data persisted as JSONB.
// Once written it never changes, so renames after issuance do not alter
// the document.
type CertificateSnapshot struct {
	StudentName    string `json:"student_name"`
	StudentCPF     string `json:"student_cpf"`
	CourseName     string `json:"course_name"`
	CourseWorkload int    `json:"course_workload"`
	ClassName      string `json:"class_name,omitempty"`
}

// Value marshals the snapshot to JSON for persistence.
func (s CertificateSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal certificate snapshot: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the snapshot struct.
func (s *CertificateSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = CertificateSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CertificateSnapshot", value)
	}
	if len(data) == 0 {
		*s = CertificateSnapshot{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal certificate snapshot: %w", err)
	}
	return nil
}

// CertificateIssueRequest is the admin payload for issuing one certificate.
type CertificateIssueRequest struct {
	StudentID  string  `json:"student_id" validate:"required"`
	CourseID   string  `json:"course_id" validate:"required"`
	ClassID    *string `json:"class_id,omitempty"`
	TemplateID *string `json:"template_id,omitempty"`
}

// CertificateValidation is the public verification response.
type CertificateValidation struct {
	Valid          bool      `json:"valid"`
	UUID           string    `json:"uuid"`
	StudentName    string    `json:"student_name"`
	CourseName     string    `json:"course_name"`
	CourseWorkload int       `json:"course_workload"`
	IssueDate      time.Time `json:"issue_date"`
}

// CertificateDownload describes a signed link to a stored artifact.
type CertificateDownload struct {
	UUID        string    `json:"uuid"`
	CourseName  string    `json:"course_name"`
	IssueDate   time.Time `json:"issue_date"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
