// Package validate wraps go-playground/validator with the project's custom rules
// and a flat field -> message error shape.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps JSON field names to a human message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return len(PasswordProblems(fl.Field().String())) == 0
		})
		instance = v
	})
	return instance
}

// Struct validates v. It returns nil or FieldErrors.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return "does not match " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "password":
		return strings.Join(PasswordProblems(fe.Value().(string)), " ")
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// PasswordProblems lists every policy rule the password breaks: at least eight
// characters, exactly one or two ASCII uppercase letters and two or more ASCII
// digits.
func PasswordProblems(password string) []string {
	var upper, digits int
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	var problems []string
	if len([]rune(password)) < 8 {
		problems = append(problems, "Password must be at least 8 characters long.")
	}
	if upper < 1 || upper > 2 {
		problems = append(problems, "Password must contain exactly one or two uppercase letters.")
	}
	if digits < 2 {
		problems = append(problems, "Password must contain 2 or more numbers.")
	}
	return problems
}
