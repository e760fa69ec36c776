package repository

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/google/uuid"

	"clinic/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")

	// ErrDuplicate код предмета уже занят
	ErrDuplicate = errors.New("already exists")
)

// SubjectFilter параметры фильтрации каталога
type SubjectFilter struct {
	TitleSubstring string
	Genre          domain.Genre
	InStockOnly    bool
}

// InteractionFilter ключ поиска записи в журнале. Пустые поля не участвуют,
// поэтому нулевой фильтр совпадает с любой записью.
type InteractionFilter struct {
	SubjectID uuid.UUID
	OwnerID   uuid.UUID
	OpenOnly  bool
}

func (f InteractionFilter) Matches(in domain.Interaction) bool {
	if f.SubjectID != uuid.Nil && in.SubjectID != f.SubjectID {
		return false
	}
	if f.OwnerID != uuid.Nil && in.OwnerID != f.OwnerID {
		return false
	}
	if f.OpenOnly && !in.IsOpen() {
		return false
	}
	return true
}

// SubjectRepository каталог предметов
type SubjectRepository interface {
	CreateSubject(ctx context.Context, s *domain.Subject) error
	GetSubject(ctx context.Context, id uuid.UUID) (*domain.Subject, error)
	GetSubjectByCode(ctx context.Context, code string) (*domain.Subject, error)
	UpdateSubject(ctx context.Context, s *domain.Subject) error
	DeleteSubject(ctx context.Context, id uuid.UUID) error
	ListSubjects(ctx context.Context, f SubjectFilter) ([]domain.Subject, error)
}

// OwnerRepository каталог владельцев
type OwnerRepository interface {
	CreateOwner(ctx context.Context, o *domain.Owner) error
	GetOwner(ctx context.Context, id uuid.UUID) (*domain.Owner, error)
	FindOwner(ctx context.Context, name, phone string) (*domain.Owner, error)
	ListOwners(ctx context.Context) ([]domain.Owner, error)
}

// WaitQueue очередь ожидания: FIFO, приоритетные заявки встают в голову
type WaitQueue interface {
	Enqueue(ctx context.Context, r domain.ServiceRequest)
	EnqueuePriority(ctx context.Context, r domain.ServiceRequest)
	ServeNext(ctx context.Context) (domain.ServiceRequest, bool)
	Remove(ctx context.Context, r domain.ServiceRequest) int
	Len(ctx context.Context) int
	List(ctx context.Context) []domain.ServiceRequest
}

// InteractionLog журнал записей в порядке добавления
type InteractionLog interface {
	Append(ctx context.Context, in *domain.Interaction) error
	Find(ctx context.Context, f InteractionFilter) (domain.Interaction, bool)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Interaction, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*domain.Interaction) error) error
	UpdateMatching(ctx context.Context, f InteractionFilter, mutate func(*domain.Interaction) error) (int, error)
	Remove(ctx context.Context, id uuid.UUID) bool
	// RemoveMatching с нулевым фильтром очищает весь журнал
	RemoveMatching(ctx context.Context, f InteractionFilter) int
	CountOpen(ctx context.Context, ownerID uuid.UUID) int
	DueWithin(ctx context.Context, days int, ref domain.Date) iter.Seq[domain.Interaction]
	Overdue(ctx context.Context, ref domain.Date) iter.Seq[domain.Interaction]
	List(ctx context.Context) []domain.Interaction
}

// TxManager абстракция транзакции. Для in-memory это глобальная блокировка записи
// с откатом состояния при ошибке.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// State полный снимок хранилища в порядке добавления
type State struct {
	Subjects     []domain.Subject
	Owners       []domain.Owner
	Queue        []domain.ServiceRequest
	Interactions []domain.Interaction
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
