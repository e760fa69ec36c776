package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreNotFound хранилище ещё не создано; это не ошибка данных
	ErrStoreNotFound = errors.New("store not found")

	// ErrCorruptStore данные прочитаны, но не разбираются или нарушают инварианты
	ErrCorruptStore = errors.New("corrupt store")

	// ErrIO ошибка ввода-вывода нижнего уровня
	ErrIO = errors.New("store i/o error")
)

// StoreError ошибка конкретного бэкенда с операцией и причиной
type StoreError struct {
	Backend   string
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap помечает err категорией kind (ErrIO, ErrCorruptStore, ...), сохраняя исходную причину
func Wrap(backend, operation string, kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return &StoreError{Backend: backend, Operation: operation, Err: err}
	}
	return &StoreError{Backend: backend, Operation: operation, Err: fmt.Errorf("%w: %w", kind, err)}
}
