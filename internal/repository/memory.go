package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"clinic/internal/domain"
)

// memoryState всё, что хранится в памяти; порядок вставки держим отдельными слайсами
type memoryState struct {
	subjects     map[uuid.UUID]domain.Subject
	subjectOrder []uuid.UUID
	owners       map[uuid.UUID]domain.Owner
	ownerOrder   []uuid.UUID
	queue        []domain.ServiceRequest
	log          []domain.Interaction
}

func newMemoryState() memoryState {
	return memoryState{
		subjects: make(map[uuid.UUID]domain.Subject),
		owners:   make(map[uuid.UUID]domain.Owner),
	}
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		subjects:     make(map[uuid.UUID]domain.Subject, len(s.subjects)),
		subjectOrder: slices.Clone(s.subjectOrder),
		owners:       make(map[uuid.UUID]domain.Owner, len(s.owners)),
		ownerOrder:   slices.Clone(s.ownerOrder),
		queue:        slices.Clone(s.queue),
		log:          slices.Clone(s.log),
	}
	for k, v := range s.subjects {
		cp.subjects[k] = v
	}
	for k, v := range s.owners {
		cp.owners[k] = v
	}
	return cp
}

// MemoryStore объединённое in-memory хранилище каталога, очереди и журнала
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ SubjectRepository = (*MemoryStore)(nil)
	_ OwnerRepository   = (*MemoryStore)(nil)
)

// SubjectRepository implementation
func (m *MemoryStore) CreateSubject(ctx context.Context, s *domain.Subject) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, ok := m.state.subjects[s.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.state.subjects {
		if existing.Code == s.Code {
			return ErrDuplicate
		}
	}
	m.state.subjects[s.ID] = *s
	m.state.subjectOrder = append(m.state.subjectOrder, s.ID)
	return nil
}

func (m *MemoryStore) GetSubject(ctx context.Context, id uuid.UUID) (*domain.Subject, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	s, ok := m.state.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := s
	return &cp, nil
}

func (m *MemoryStore) GetSubjectByCode(ctx context.Context, code string) (*domain.Subject, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, id := range m.state.subjectOrder {
		if s := m.state.subjects[id]; s.Code == code {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateSubject(ctx context.Context, s *domain.Subject) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.state.subjects[s.ID]; !ok {
		return ErrNotFound
	}
	m.state.subjects[s.ID] = *s
	return nil
}

func (m *MemoryStore) DeleteSubject(ctx context.Context, id uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.state.subjects[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.subjects, id)
	m.state.subjectOrder = slices.DeleteFunc(m.state.subjectOrder, func(x uuid.UUID) bool { return x == id })
	return nil
}

func (m *MemoryStore) ListSubjects(ctx context.Context, f SubjectFilter) ([]domain.Subject, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Subject, 0)
	for _, id := range m.state.subjectOrder {
		s := m.state.subjects[id]
		if !containsIgnoreCase(s.Title, f.TitleSubstring) {
			continue
		}
		if f.Genre != "" && s.Genre != f.Genre {
			continue
		}
		if f.InStockOnly && s.Stock == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// OwnerRepository implementation
func (m *MemoryStore) CreateOwner(ctx context.Context, o *domain.Owner) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if _, ok := m.state.owners[o.ID]; ok {
		return ErrDuplicate
	}
	m.state.owners[o.ID] = *o
	m.state.ownerOrder = append(m.state.ownerOrder, o.ID)
	return nil
}

func (m *MemoryStore) GetOwner(ctx context.Context, id uuid.UUID) (*domain.Owner, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	o, ok := m.state.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

// FindOwner первый владелец с таким именем и телефоном
func (m *MemoryStore) FindOwner(ctx context.Context, name, phone string) (*domain.Owner, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, id := range m.state.ownerOrder {
		if o := m.state.owners[id]; o.SameContact(name, phone) {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Owner, 0, len(m.state.ownerOrder))
	for _, id := range m.state.ownerOrder {
		out = append(out, m.state.owners[id])
	}
	return out, nil
}

// ExportState копия всего состояния в порядке добавления
func (m *MemoryStore) ExportState(ctx context.Context) State {
	m.rlock(ctx)
	defer m.runlock(ctx)
	st := State{
		Subjects:     make([]domain.Subject, 0, len(m.state.subjectOrder)),
		Owners:       make([]domain.Owner, 0, len(m.state.ownerOrder)),
		Queue:        slices.Clone(m.state.queue),
		Interactions: slices.Clone(m.state.log),
	}
	for _, id := range m.state.subjectOrder {
		st.Subjects = append(st.Subjects, m.state.subjects[id])
	}
	for _, id := range m.state.ownerOrder {
		st.Owners = append(st.Owners, m.state.owners[id])
	}
	return st
}

// ImportState полностью заменяет содержимое хранилища
func (m *MemoryStore) ImportState(ctx context.Context, st State) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	next := newMemoryState()
	for _, s := range st.Subjects {
		next.subjects[s.ID] = s
		next.subjectOrder = append(next.subjectOrder, s.ID)
	}
	for _, o := range st.Owners {
		next.owners[o.ID] = o
		next.ownerOrder = append(next.ownerOrder, o.ID)
	}
	next.queue = slices.Clone(st.Queue)
	next.log = slices.Clone(st.Interactions)
	m.state = next
}

// MemoryTx эмулирует транзакцию блокировкой записи; при ошибке состояние откатывается
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested call: the outer transaction already holds the lock and owns rollback
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	saved := tx.store.state.clone()
	defer func() {
		if p := recover(); p != nil {
			tx.store.state = saved
			panic(p)
		}
	}()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.state = saved
		return err
	}
	return nil
}
