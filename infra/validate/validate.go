// Package validate holds the request validation rules shared by the HTTP handlers.
package validate

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// orderRefPattern is the reference format every supported gateway accepts as a merchant transaction id
var orderRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// New returns a validator with the custom rules registered
func New() *validator.Validate {
	v := validator.New()
	CustomValidate(v)
	return v
}

// CustomValidate registers the custom rules on v:
//   - orderref: 1 to 64 characters from [A-Za-z0-9_-]
//   - locale: empty, "vn" or "en"
func CustomValidate(v *validator.Validate) {
	_ = v.RegisterValidation("orderref", func(fl validator.FieldLevel) bool {
		return orderRefPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "vn", "en":
			return true
		default:
			return false
		}
	})
}
