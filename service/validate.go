package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"campusride/pkg/apperr"
)

// validate reads the same `binding` tags gin checks on the HTTP path, so the
// admin seeder and other non-HTTP callers get identical rules.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}()

// validationError turns the first failed rule into a Validation error.
// messages is keyed by "Field.tag" or by "Field" for any rule on it.
func validationError(err error, messages map[string]string, fallback string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(fallback)
	}
	fe := verrs[0]
	if msg, ok := messages[fe.StructField()+"."+fe.Tag()]; ok {
		return apperr.Validation(msg)
	}
	if msg, ok := messages[fe.StructField()]; ok {
		return apperr.Validation(msg)
	}
	return apperr.Validation(fallback)
}
