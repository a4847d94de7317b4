// Package validator builds the request validator shared by handlers and tests.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New creates a validator with the custom rules used by the request DTOs:
//
//	notblank  rejects whitespace-only strings
//	nopipe    rejects strings containing '|', the QR payload separator
func New() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("notblank", stringRule(func(s string) bool {
		return strings.TrimSpace(s) != ""
	}))
	_ = v.RegisterValidation("nopipe", stringRule(func(s string) bool {
		return !strings.Contains(s, "|")
	}))

	return v
}

// stringRule applies check to string fields and passes any other kind.
func stringRule(check func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return check(str)
	}
}
