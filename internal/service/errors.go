package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyOpenInteractions у владельца уже максимум открытых записей
	ErrTooManyOpenInteractions = errors.New("too many open interactions")

	// ErrRecordClosed правка закрытой записи запрещена политикой
	ErrRecordClosed = errors.New("interaction is closed")

	// ErrSubjectInUse на предмет ссылаются записи журнала или заявки в очереди
	ErrSubjectInUse = errors.New("subject has open interactions")
)

// RegistryError ошибка операции сервиса с исходной причиной внутри
type RegistryError struct {
	Operation string
	Message   string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func NewRegistryError(operation, message string, err error) *RegistryError {
	return &RegistryError{Operation: operation, Message: message, Err: err}
}
