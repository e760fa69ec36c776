package repository

import (
	"context"
	"iter"
	"slices"

	"github.com/google/uuid"

	"clinic/internal/domain"
)

// MemoryLog журнал записей поверх общего хранилища. Журнал владеет записями,
// изменения идут через замыкание-мутатор.
type MemoryLog struct{ store *MemoryStore }

func NewMemoryLog(store *MemoryStore) *MemoryLog { return &MemoryLog{store: store} }

var _ InteractionLog = (*MemoryLog)(nil)

func (ml *MemoryLog) Append(ctx context.Context, in *domain.Interaction) error {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if ml.indexOf(in.ID) >= 0 {
		return ErrDuplicate
	}
	ml.store.state.log = append(ml.store.state.log, *in)
	return nil
}

// Find первая подходящая запись в порядке добавления
func (ml *MemoryLog) Find(ctx context.Context, f InteractionFilter) (domain.Interaction, bool) {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	for _, in := range ml.store.state.log {
		if f.Matches(in) {
			return in, true
		}
	}
	return domain.Interaction{}, false
}

func (ml *MemoryLog) GetByID(ctx context.Context, id uuid.UUID) (*domain.Interaction, error) {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	i := ml.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	cp := ml.store.state.log[i]
	return &cp, nil
}

// Update применяет mutate к записи с данным id. Если mutate вернул ошибку,
// запись остаётся как была.
func (ml *MemoryLog) Update(ctx context.Context, id uuid.UUID, mutate func(*domain.Interaction) error) error {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	i := ml.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	cp := ml.store.state.log[i]
	if err := mutate(&cp); err != nil {
		return err
	}
	cp.ID = id
	ml.store.state.log[i] = cp
	return nil
}

// UpdateMatching применяет mutate ко всем подходящим записям.
// Первая ошибка прерывает проход; уже изменённые записи остаются изменёнными,
// для атомарности вызывайте внутри TxManager.
func (ml *MemoryLog) UpdateMatching(ctx context.Context, f InteractionFilter, mutate func(*domain.Interaction) error) (int, error) {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	n := 0
	for i, in := range ml.store.state.log {
		if !f.Matches(in) {
			continue
		}
		cp := in
		if err := mutate(&cp); err != nil {
			return n, err
		}
		cp.ID = in.ID
		ml.store.state.log[i] = cp
		n++
	}
	return n, nil
}

// Remove удаляет запись; отсутствие записи не ошибка
func (ml *MemoryLog) Remove(ctx context.Context, id uuid.UUID) bool {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	i := ml.indexOf(id)
	if i < 0 {
		return false
	}
	ml.store.state.log = slices.Delete(ml.store.state.log, i, i+1)
	return true
}

// RemoveMatching удаляет все подходящие записи; нулевой фильтр подходит всем
func (ml *MemoryLog) RemoveMatching(ctx context.Context, f InteractionFilter) int {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	before := len(ml.store.state.log)
	ml.store.state.log = slices.DeleteFunc(ml.store.state.log, f.Matches)
	return before - len(ml.store.state.log)
}

func (ml *MemoryLog) CountOpen(ctx context.Context, ownerID uuid.UUID) int {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	n := 0
	for _, in := range ml.store.state.log {
		if in.OwnerID == ownerID && in.IsOpen() {
			n++
		}
	}
	return n
}

// DueWithin открытые записи со сроком в [ref, ref+days].
// Последовательность пересчитывается при каждом проходе.
func (ml *MemoryLog) DueWithin(ctx context.Context, days int, ref domain.Date) iter.Seq[domain.Interaction] {
	return ml.filtered(ctx, func(in domain.Interaction) bool { return in.DueWithin(days, ref) })
}

// Overdue открытые записи со сроком строго раньше ref
func (ml *MemoryLog) Overdue(ctx context.Context, ref domain.Date) iter.Seq[domain.Interaction] {
	return ml.filtered(ctx, func(in domain.Interaction) bool { return in.IsOverdue(ref) })
}

func (ml *MemoryLog) List(ctx context.Context) []domain.Interaction {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	return slices.Clone(ml.store.state.log)
}

func (ml *MemoryLog) filtered(ctx context.Context, keep func(domain.Interaction) bool) iter.Seq[domain.Interaction] {
	return func(yield func(domain.Interaction) bool) {
		// snapshot so the caller may mutate the log while ranging
		for _, in := range ml.List(ctx) {
			if !keep(in) {
				continue
			}
			if !yield(in) {
				return
			}
		}
	}
}

// indexOf вызывать под локом
func (ml *MemoryLog) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(ml.store.state.log, func(in domain.Interaction) bool { return in.ID == id })
}
