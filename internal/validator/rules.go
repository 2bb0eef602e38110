package validator

import (
	"github.com/go-playground/validator/v10"
)

// registerCustomRules adds domain rules to the validator instance.
func registerCustomRules(v *validator.Validate) {
	// otp: exactly six ascii digits.
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 6 {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
}
