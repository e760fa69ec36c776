package domain

import (
	"fmt"
	"time"
)

// Date календарная дата без времени. Календарная корректность не проверяется:
// месяц 13 или день 32 представимы, сравнение идёт по (год, месяц, день).
type Date struct {
	Day   int `json:"dia"`
	Month int `json:"mes"`
	Year  int `json:"anio"`
}

// NewDate собирает дату из года, месяца и дня
func NewDate(year, month, day int) Date {
	return Date{Day: day, Month: month, Year: year}
}

// DateOf берёт дату из time.Time (в его локации)
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Day: d, Month: int(m), Year: y}
}

// Compare возвращает -1, 0 или 1
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(d.Month, o.Month)
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// AddDays сдвигает дату на n дней. Нормализация через time.Date,
// поэтому 2024-01-32 превращается в 2024-02-01.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, time.Month(d.Month), d.Day+n, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
