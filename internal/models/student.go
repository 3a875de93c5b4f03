package models

import "time"

// Student represents a learner account stored in the students table.
// CPF is stored as the bare eleven digits.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	CPF          string    `db:"cpf" json:"cpf"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	Authorized   bool      `db:"authorized" json:"authorized"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentRegisterRequest is the self-registration payload.
type StudentRegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	CPF      string `json:"cpf" validate:"required,cpf"`
	Password string `json:"password" validate:"required,min=6"`
}

// StudentUpdateRequest carries administrative edits to a student record.
type StudentUpdateRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=3"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Authorized *bool   `json:"authorized,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Search     string
	Authorized *bool
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
