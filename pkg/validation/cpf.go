package validation

import (
	"github.com/go-playground/validator/v10"
)

// IsCPF reports whether the value is a CPF in the canonical stored form:
// exactly eleven numeric digits, no punctuation.
func IsCPF(value string) bool {
	if len(value) != 11 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RegisterCPF installs the "cpf" tag on the given validator instance.
func RegisterCPF(v *validator.Validate) error {
	return v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return IsCPF(fl.Field().String())
	})
}

// New returns a validator with all custom rules registered.
func New() *validator.Validate {
	v := validator.New()
	_ = RegisterCPF(v)
	return v
}
