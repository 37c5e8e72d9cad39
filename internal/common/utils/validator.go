// internal/common/utils/validator.go
// Input validation using struct tags

package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Global validator instance
var validate = validator.New()

// ValidateStruct checks a request DTO against its validate tags and
// collapses all field failures into one client-facing error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var msgs []string
	for _, fieldErr := range err.(validator.ValidationErrors) {
		msgs = append(msgs, formatFieldError(fieldErr))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing required field %s", field)
	case "email":
		return fmt.Sprintf("%s is not a valid email address", field)
	case "min":
		return fmt.Sprintf("%s is too short (minimum %s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long (maximum %s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("%s is out of range", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s is not a valid URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
