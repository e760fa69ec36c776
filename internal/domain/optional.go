package domain

import (
	"bytes"
	"encoding/json"
)

// Optional явное "значение известно / неизвестно" вместо nil-указателя
type Optional[T any] struct {
	value T
	known bool
}

func Known[T any](v T) Optional[T] { return Optional[T]{value: v, known: true} }

func Unknown[T any]() Optional[T] { return Optional[T]{} }

func (o Optional[T]) Get() (T, bool) { return o.value, o.known }

func (o Optional[T]) IsKnown() bool { return o.known }

// OrElse возвращает значение или def, если оно неизвестно
func (o Optional[T]) OrElse(def T) T {
	if !o.known {
		return def
	}
	return o.value
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.known {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Unknown[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Known(v)
	return nil
}
