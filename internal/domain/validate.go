package domain

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkStruct прогоняет validate-теги и переводит первую ошибку в ValidationError
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' check", ErrInvalidValue)
	}
	return NewValidationError("struct", err.Error(), ErrInvalidValue)
}
