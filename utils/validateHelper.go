package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Request structs carry gin-style binding tags; honor the same tag here.
	v.SetTagName("binding")
	return v
}

// ValidateStruct applies the struct's binding tags outside of gin, so workflow
// entry points enforce the same required-field rules whether they are reached
// over HTTP or called directly.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
