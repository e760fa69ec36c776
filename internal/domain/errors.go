package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue нарушено предусловие конструктора; объект не создаётся
	ErrInvalidValue = errors.New("invalid value")

	// ErrOutOfStock у предмета нет свободных экземпляров
	ErrOutOfStock = errors.New("out of stock")

	// ErrAlreadyClosed повторное закрытие записи
	ErrAlreadyClosed = errors.New("interaction already closed")
)

// ValidationError описывает, какое поле не прошло проверку.
// Разворачивается в ErrInvalidValue.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrInvalidValue
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}
