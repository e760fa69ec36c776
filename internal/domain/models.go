package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Owner клиент или владелец питомца. После создания не меняется.
type Owner struct {
	ID      uuid.UUID        `json:"id"`
	Name    string           `json:"name" validate:"required"`
	Address Optional[string] `json:"address"`
	Phone   string           `json:"phone" validate:"required"`
	Email   string           `json:"email" validate:"omitempty,email"`
}

// NewOwner единственная точка создания владельца
func NewOwner(name string, address Optional[string], phone, email string) (*Owner, error) {
	o := &Owner{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(name),
		Address: address,
		Phone:   strings.TrimSpace(phone),
		Email:   strings.TrimSpace(email),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Owner) Validate() error {
	if o.ID == uuid.Nil {
		return NewValidationError("ID", "cannot be empty", ErrInvalidValue)
	}
	return checkStruct(o)
}

// SameContact сравнение по атрибутам (имя + телефон)
func (o Owner) SameContact(name, phone string) bool {
	return o.Name == name && o.Phone == phone
}

// Genre жанр книги
type Genre string

const (
	GenreNovela   Genre = "Novela"
	GenreInfantil Genre = "Infantil"
	GenreTecnico  Genre = "Tecnico"
	GenreOtros    Genre = "Otros"
)

func (g Genre) Valid() bool {
	switch g {
	case GenreNovela, GenreInfantil, GenreTecnico, GenreOtros:
		return true
	}
	return false
}

// Subject выдаваемый/обслуживаемый предмет (книга или пациент) со счётчиком наличия
type Subject struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code" validate:"required"`
	Title  string    `json:"title" validate:"required"`
	Author string    `json:"author"`
	Pages  int       `json:"pages" validate:"gte=0"`
	Genre  Genre     `json:"genre" validate:"oneof=Novela Infantil Tecnico Otros"`
	Stock  int       `json:"stock" validate:"gte=0"`
}

// NewSubject единственная точка создания предмета
func NewSubject(code, title, author string, pages int, genre Genre, stock int) (*Subject, error) {
	s := &Subject{
		ID:     uuid.New(),
		Code:   strings.TrimSpace(code),
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
		Pages:  pages,
		Genre:  genre,
		Stock:  stock,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subject) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("ID", "cannot be empty", ErrInvalidValue)
	}
	return checkStruct(s)
}

// Take забирает один экземпляр
func (s *Subject) Take() error {
	if s.Stock <= 0 {
		return ErrOutOfStock
	}
	s.Stock--
	return nil
}

// Restore возвращает один экземпляр
func (s *Subject) Restore() {
	s.Stock++
}

// Status состояние записи о выдаче/приёме
type Status string

const (
	StatusOpen   Status = "Prestando"
	StatusClosed Status = "Devuelto"
)

// Interaction запись о выдаче книги или приёме пациента
type Interaction struct {
	ID        uuid.UUID      `json:"id"`
	SubjectID uuid.UUID      `json:"subject_id"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Status    Status         `json:"status"`
	DueOn     Date           `json:"due_on"`
	ClosedOn  Optional[Date] `json:"closed_on"`
	Diagnosis string         `json:"diagnosis"`
}

// NewInteraction открытая запись
func NewInteraction(subjectID, ownerID uuid.UUID, due Date) (*Interaction, error) {
	if subjectID == uuid.Nil {
		return nil, NewValidationError("SubjectID", "cannot be empty", ErrInvalidValue)
	}
	if ownerID == uuid.Nil {
		return nil, NewValidationError("OwnerID", "cannot be empty", ErrInvalidValue)
	}
	return &Interaction{
		ID:        uuid.New(),
		SubjectID: subjectID,
		OwnerID:   ownerID,
		Status:    StatusOpen,
		DueOn:     due,
		ClosedOn:  Unknown[Date](),
	}, nil
}

func (i Interaction) IsOpen() bool { return i.Status == StatusOpen }

// Close переводит запись в Devuelto. Дата закрытия ставится один раз.
func (i *Interaction) Close(on Date) error {
	if !i.IsOpen() {
		return ErrAlreadyClosed
	}
	i.Status = StatusClosed
	i.ClosedOn = Known(on)
	return nil
}

// DueWithin открыта и срок попадает в [ref, ref+days]
func (i Interaction) DueWithin(days int, ref Date) bool {
	if !i.IsOpen() {
		return false
	}
	return !i.DueOn.Before(ref) && !i.DueOn.After(ref.AddDays(days))
}

// IsOverdue открыта и срок строго раньше ref
func (i Interaction) IsOverdue(ref Date) bool {
	return i.IsOpen() && i.DueOn.Before(ref)
}

// ServiceRequest заявка в очереди ожидания; сравнивается структурно
type ServiceRequest struct {
	SubjectID uuid.UUID `json:"subject_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
}
