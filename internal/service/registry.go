package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"clinic/internal/domain"
	"clinic/internal/platform/logger"
	"clinic/internal/repository"
)

// DefaultMaxOpenPerOwner предел открытых записей на одного владельца
const DefaultMaxOpenPerOwner = 5

// MutationPolicy разрешает ли правка диагноза и срока закрытых записей
type MutationPolicy string

const (
	MutationAnyState MutationPolicy = "any_state"
	MutationOpenOnly MutationPolicy = "open_only"
)

func ParseMutationPolicy(s string) (MutationPolicy, error) {
	switch p := MutationPolicy(s); p {
	case MutationAnyState, MutationOpenOnly:
		return p, nil
	case "":
		return MutationAnyState, nil
	}
	return "", domain.NewValidationError("MutationPolicy", fmt.Sprintf("unknown policy %q", s), domain.ErrInvalidValue)
}

// Options настройки реестра; нулевые значения заменяются значениями по умолчанию
type Options struct {
	MaxOpenPerOwner int
	Mutation        MutationPolicy
	Logger          *slog.Logger
}

// Served результат обслуживания заявки из очереди
type Served struct {
	Subject domain.Subject
	Owner   domain.Owner
}

// Registry фасад бизнес-правил: очередь ожидания, открытие и закрытие записей, учёт наличия
type Registry struct {
	subjects repository.SubjectRepository
	owners   repository.OwnerRepository
	queue    repository.WaitQueue
	log      repository.InteractionLog
	tx       repository.TxManager
	maxOpen  int
	mutation MutationPolicy
	logger   *slog.Logger
}

func NewRegistry(
	subjects repository.SubjectRepository,
	owners repository.OwnerRepository,
	queue repository.WaitQueue,
	log repository.InteractionLog,
	tx repository.TxManager,
	opts Options,
) (*Registry, error) {
	switch {
	case subjects == nil:
		return nil, domain.NewValidationError("subjects", "cannot be nil", domain.ErrInvalidValue)
	case owners == nil:
		return nil, domain.NewValidationError("owners", "cannot be nil", domain.ErrInvalidValue)
	case queue == nil:
		return nil, domain.NewValidationError("queue", "cannot be nil", domain.ErrInvalidValue)
	case log == nil:
		return nil, domain.NewValidationError("log", "cannot be nil", domain.ErrInvalidValue)
	case tx == nil:
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrInvalidValue)
	}
	if opts.MaxOpenPerOwner < 0 {
		return nil, domain.NewValidationError("MaxOpenPerOwner", "must be positive", domain.ErrInvalidValue)
	}
	if opts.MaxOpenPerOwner == 0 {
		opts.MaxOpenPerOwner = DefaultMaxOpenPerOwner
	}
	policy, err := ParseMutationPolicy(string(opts.Mutation))
	if err != nil {
		return nil, err
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Registry{
		subjects: subjects,
		owners:   owners,
		queue:    queue,
		log:      log,
		tx:       tx,
		maxOpen:  opts.MaxOpenPerOwner,
		mutation: policy,
		logger:   l,
	}, nil
}

func (r *Registry) loggerFor(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, r.logger).With(slog.String("component", "registry"))
}

// RegisterServiceRequest ставит заявку в конец очереди, приоритетную в голову.
// Наличие предмета не проверяется: встать в очередь можно и за отсутствующим экземпляром.
func (r *Registry) RegisterServiceRequest(ctx context.Context, subjectID, ownerID uuid.UUID, priority bool) error {
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.subjects.GetSubject(ctx, subjectID); err != nil {
			return fmt.Errorf("subject %s: %w", subjectID, err)
		}
		if _, err := r.owners.GetOwner(ctx, ownerID); err != nil {
			return fmt.Errorf("owner %s: %w", ownerID, err)
		}
		req := domain.ServiceRequest{SubjectID: subjectID, OwnerID: ownerID}
		if priority {
			r.queue.EnqueuePriority(ctx, req)
		} else {
			r.queue.Enqueue(ctx, req)
		}
		return nil
	})
	if err != nil {
		return NewRegistryError("register_service_request", "cannot enqueue request", err)
	}
	r.loggerFor(ctx).Debug("request enqueued",
		slog.String("subject_id", subjectID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.Bool("priority", priority))
	return nil
}

// ServeNext снимает голову очереди. Пустая очередь даёт ok=false без ошибки.
// Заявка на удалённый из каталога предмет снимается и возвращается как ErrNotFound.
func (r *Registry) ServeNext(ctx context.Context) (Served, bool, error) {
	var (
		served  Served
		ok      bool
		missing error
	)
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		req, has := r.queue.ServeNext(ctx)
		if !has {
			return nil
		}
		ok = true
		subj, err := r.subjects.GetSubject(ctx, req.SubjectID)
		if err != nil {
			missing = fmt.Errorf("subject %s: %w", req.SubjectID, err)
			return nil
		}
		owner, err := r.owners.GetOwner(ctx, req.OwnerID)
		if err != nil {
			missing = fmt.Errorf("owner %s: %w", req.OwnerID, err)
			return nil
		}
		served = Served{Subject: *subj, Owner: *owner}
		return nil
	})
	if err != nil {
		return Served{}, false, NewRegistryError("serve_next", "cannot serve request", err)
	}
	if missing != nil {
		r.loggerFor(ctx).Warn("dropped dangling request", slog.Any("error", missing))
		return Served{}, true, NewRegistryError("serve_next", "request references missing entity", missing)
	}
	return served, ok, nil
}

// WithdrawRequest убирает все равные заявки; возвращает их число
func (r *Registry) WithdrawRequest(ctx context.Context, subjectID, ownerID uuid.UUID) int {
	n := r.queue.Remove(ctx, domain.ServiceRequest{SubjectID: subjectID, OwnerID: ownerID})
	if n > 0 {
		r.loggerFor(ctx).Debug("requests withdrawn", slog.Int("count", n))
	}
	return n
}

// Waiting заявки в порядке обслуживания
func (r *Registry) Waiting(ctx context.Context) []domain.ServiceRequest {
	return r.queue.List(ctx)
}

// OpenInteraction открывает запись: проверяет предел владельца и наличие, списывает экземпляр.
// Любая ошибка оставляет состояние нетронутым.
func (r *Registry) OpenInteraction(ctx context.Context, subjectID, ownerID uuid.UUID, due domain.Date) (*domain.Interaction, error) {
	var opened *domain.Interaction
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.owners.GetOwner(ctx, ownerID); err != nil {
			return fmt.Errorf("owner %s: %w", ownerID, err)
		}
		subj, err := r.subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("subject %s: %w", subjectID, err)
		}
		if n := r.log.CountOpen(ctx, ownerID); n >= r.maxOpen {
			return fmt.Errorf("%w: owner has %d", ErrTooManyOpenInteractions, n)
		}
		if err := subj.Take(); err != nil {
			return err
		}
		mustHaveStock(subj)
		if err := r.subjects.UpdateSubject(ctx, subj); err != nil {
			return err
		}
		in, err := domain.NewInteraction(subjectID, ownerID, due)
		if err != nil {
			return err
		}
		if err := r.log.Append(ctx, in); err != nil {
			return err
		}
		opened = in
		return nil
	})
	if err != nil {
		r.loggerFor(ctx).Info("open interaction rejected",
			slog.String("subject_id", subjectID.String()),
			slog.String("owner_id", ownerID.String()),
			slog.Any("error", err))
		return nil, NewRegistryError("open_interaction", "cannot open interaction", err)
	}
	r.loggerFor(ctx).Info("interaction opened",
		slog.String("interaction_id", opened.ID.String()),
		slog.String("due_on", due.String()))
	return opened, nil
}

// CloseInteraction закрывает первую открытую запись пары и возвращает экземпляр в наличие
func (r *Registry) CloseInteraction(ctx context.Context, subjectID, ownerID uuid.UUID, on domain.Date) (*domain.Interaction, error) {
	var closed *domain.Interaction
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		in, ok := r.log.Find(ctx, repository.InteractionFilter{SubjectID: subjectID, OwnerID: ownerID, OpenOnly: true})
		if !ok {
			return fmt.Errorf("open interaction: %w", repository.ErrNotFound)
		}
		if err := r.log.Update(ctx, in.ID, func(x *domain.Interaction) error { return x.Close(on) }); err != nil {
			return err
		}
		subj, err := r.subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("subject %s: %w", subjectID, err)
		}
		subj.Restore()
		mustHaveStock(subj)
		if err := r.subjects.UpdateSubject(ctx, subj); err != nil {
			return err
		}
		closed, err = r.log.GetByID(ctx, in.ID)
		return err
	})
	if err != nil {
		return nil, NewRegistryError("close_interaction", "cannot close interaction", err)
	}
	r.loggerFor(ctx).Info("interaction closed",
		slog.String("interaction_id", closed.ID.String()),
		slog.String("closed_on", on.String()))
	return closed, nil
}

// ModifyDiagnosis меняет текст диагноза записи
func (r *Registry) ModifyDiagnosis(ctx context.Context, id uuid.UUID, diagnosis string) error {
	return r.modify(ctx, "modify_diagnosis", id, func(in *domain.Interaction) { in.Diagnosis = diagnosis })
}

// ModifyDueDate меняет срок записи
func (r *Registry) ModifyDueDate(ctx context.Context, id uuid.UUID, due domain.Date) error {
	return r.modify(ctx, "modify_due_date", id, func(in *domain.Interaction) { in.DueOn = due })
}

func (r *Registry) modify(ctx context.Context, op string, id uuid.UUID, apply func(*domain.Interaction)) error {
	err := r.log.Update(ctx, id, func(in *domain.Interaction) error {
		if r.mutation == MutationOpenOnly && !in.IsOpen() {
			return ErrRecordClosed
		}
		apply(in)
		return nil
	})
	if err != nil {
		return NewRegistryError(op, "cannot modify interaction", err)
	}
	return nil
}

// DeleteInteraction удаляет запись без возврата экземпляра; false если записи нет
func (r *Registry) DeleteInteraction(ctx context.Context, id uuid.UUID) bool {
	ok := r.log.Remove(ctx, id)
	if ok {
		r.loggerFor(ctx).Info("interaction deleted", slog.String("interaction_id", id.String()))
	}
	return ok
}

func (r *Registry) GetInteraction(ctx context.Context, id uuid.UUID) (*domain.Interaction, error) {
	return r.log.GetByID(ctx, id)
}

// FindInteraction первая запись по коду предмета и контактам владельца, в любом состоянии
func (r *Registry) FindInteraction(ctx context.Context, subjectCode, ownerName, ownerPhone string) (domain.Interaction, bool, error) {
	subj, err := r.subjects.GetSubjectByCode(ctx, subjectCode)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Interaction{}, false, nil
	}
	if err != nil {
		return domain.Interaction{}, false, err
	}
	owners, err := r.owners.ListOwners(ctx)
	if err != nil {
		return domain.Interaction{}, false, err
	}
	matching := make(map[uuid.UUID]struct{})
	for _, o := range owners {
		if o.SameContact(ownerName, ownerPhone) {
			matching[o.ID] = struct{}{}
		}
	}
	for _, in := range r.log.List(ctx) {
		if in.SubjectID != subj.ID {
			continue
		}
		if _, ok := matching[in.OwnerID]; ok {
			return in, true, nil
		}
	}
	return domain.Interaction{}, false, nil
}

func (r *Registry) CountOpenFor(ctx context.Context, ownerID uuid.UUID) int {
	return r.log.CountOpen(ctx, ownerID)
}

// DueWithin открытые записи со сроком в [ref, ref+days], в порядке журнала
func (r *Registry) DueWithin(ctx context.Context, days int, ref domain.Date) iter.Seq[domain.Interaction] {
	return r.log.DueWithin(ctx, days, ref)
}

// Overdue открытые записи со сроком раньше ref
func (r *Registry) Overdue(ctx context.Context, ref domain.Date) iter.Seq[domain.Interaction] {
	return r.log.Overdue(ctx, ref)
}

func (r *Registry) Interactions(ctx context.Context) []domain.Interaction {
	return r.log.List(ctx)
}

func mustHaveStock(s *domain.Subject) {
	if s.Stock < 0 {
		panic(fmt.Sprintf("subject %s: negative stock %d", s.ID, s.Stock))
	}
}
