package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"clinic/internal/domain"
	"clinic/internal/platform/logger"
	"clinic/internal/repository"
)

// CatalogService инкапсулирует бизнес-логику вокруг каталога предметов и владельцев
type CatalogService struct {
	subjects repository.SubjectRepository
	owners   repository.OwnerRepository
	queue    repository.WaitQueue
	log      repository.InteractionLog
	tx       repository.TxManager
	logger   *slog.Logger
}

func NewCatalogService(
	subjects repository.SubjectRepository,
	owners repository.OwnerRepository,
	queue repository.WaitQueue,
	log repository.InteractionLog,
	tx repository.TxManager,
	l *slog.Logger,
) *CatalogService {
	if l == nil {
		l = slog.Default()
	}
	return &CatalogService{
		subjects: subjects,
		owners:   owners,
		queue:    queue,
		log:      log,
		tx:       tx,
		logger:   l,
	}
}

func (s *CatalogService) loggerFor(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger).With(slog.String("component", "catalog_service"))
}

// AddSubject заводит новый предмет; ID всегда выдаётся заново
func (s *CatalogService) AddSubject(ctx context.Context, in domain.Subject) (*domain.Subject, error) {
	subj, err := domain.NewSubject(in.Code, in.Title, in.Author, in.Pages, in.Genre, in.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.subjects.CreateSubject(ctx, subj); err != nil {
		return nil, err
	}
	s.loggerFor(ctx).Debug("subject added",
		slog.String("subject_id", subj.ID.String()),
		slog.String("code", subj.Code))
	return subj, nil
}

func (s *CatalogService) GetSubject(ctx context.Context, id uuid.UUID) (*domain.Subject, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("ID", "cannot be empty", domain.ErrInvalidValue)
	}
	return s.subjects.GetSubject(ctx, id)
}

func (s *CatalogService) GetSubjectByCode(ctx context.Context, code string) (*domain.Subject, error) {
	if code == "" {
		return nil, domain.NewValidationError("Code", "cannot be empty", domain.ErrInvalidValue)
	}
	return s.subjects.GetSubjectByCode(ctx, code)
}

func (s *CatalogService) ListSubjects(ctx context.Context, f repository.SubjectFilter) ([]domain.Subject, error) {
	return s.subjects.ListSubjects(ctx, f)
}

// RemoveSubject удаляет предмет, на который не ссылается ни одна запись журнала
// (в любом состоянии) и ни одна заявка в очереди
func (s *CatalogService) RemoveSubject(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.NewValidationError("ID", "cannot be empty", domain.ErrInvalidValue)
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, used := s.log.Find(ctx, repository.InteractionFilter{SubjectID: id}); used {
			return fmt.Errorf("%w: referenced by interactions", ErrSubjectInUse)
		}
		for _, r := range s.queue.List(ctx) {
			if r.SubjectID == id {
				return fmt.Errorf("%w: referenced by waiting requests", ErrSubjectInUse)
			}
		}
		return s.subjects.DeleteSubject(ctx, id)
	})
}

// AddOwner заводит владельца. Совпадение имени и телефона допустимо.
func (s *CatalogService) AddOwner(ctx context.Context, in domain.Owner) (*domain.Owner, error) {
	o, err := domain.NewOwner(in.Name, in.Address, in.Phone, in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.owners.CreateOwner(ctx, o); err != nil {
		return nil, err
	}
	s.loggerFor(ctx).Debug("owner added", slog.String("owner_id", o.ID.String()))
	return o, nil
}

func (s *CatalogService) GetOwner(ctx context.Context, id uuid.UUID) (*domain.Owner, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("ID", "cannot be empty", domain.ErrInvalidValue)
	}
	return s.owners.GetOwner(ctx, id)
}

// FindOwner поиск по контактам; отсутствие не ошибка
func (s *CatalogService) FindOwner(ctx context.Context, name, phone string) (*domain.Owner, bool, error) {
	o, err := s.owners.FindOwner(ctx, name, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func (s *CatalogService) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	return s.owners.ListOwners(ctx)
}
