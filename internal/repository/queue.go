package repository

import (
	"context"
	"slices"

	"clinic/internal/domain"
)

// MemoryQueue очередь ожидания поверх общего хранилища
type MemoryQueue struct{ store *MemoryStore }

func NewMemoryQueue(store *MemoryStore) *MemoryQueue { return &MemoryQueue{store: store} }

var _ WaitQueue = (*MemoryQueue)(nil)

// Enqueue ставит заявку в хвост
func (q *MemoryQueue) Enqueue(ctx context.Context, r domain.ServiceRequest) {
	q.store.wlock(ctx)
	defer q.store.wunlock(ctx)
	q.store.state.queue = append(q.store.state.queue, r)
}

// EnqueuePriority ставит заявку в голову: её обслужат следующей,
// даже раньше ранее поставленных приоритетных
func (q *MemoryQueue) EnqueuePriority(ctx context.Context, r domain.ServiceRequest) {
	q.store.wlock(ctx)
	defer q.store.wunlock(ctx)
	q.store.state.queue = slices.Insert(q.store.state.queue, 0, r)
}

// ServeNext снимает голову очереди; на пустой очереди возвращает false
func (q *MemoryQueue) ServeNext(ctx context.Context) (domain.ServiceRequest, bool) {
	q.store.wlock(ctx)
	defer q.store.wunlock(ctx)
	if len(q.store.state.queue) == 0 {
		return domain.ServiceRequest{}, false
	}
	head := q.store.state.queue[0]
	q.store.state.queue = slices.Delete(q.store.state.queue, 0, 1)
	return head, true
}

// Remove удаляет все структурно равные заявки и возвращает их число
func (q *MemoryQueue) Remove(ctx context.Context, r domain.ServiceRequest) int {
	q.store.wlock(ctx)
	defer q.store.wunlock(ctx)
	before := len(q.store.state.queue)
	q.store.state.queue = slices.DeleteFunc(q.store.state.queue, func(x domain.ServiceRequest) bool { return x == r })
	return before - len(q.store.state.queue)
}

func (q *MemoryQueue) Len(ctx context.Context) int {
	q.store.rlock(ctx)
	defer q.store.runlock(ctx)
	return len(q.store.state.queue)
}

// List копия очереди от головы к хвосту
func (q *MemoryQueue) List(ctx context.Context) []domain.ServiceRequest {
	q.store.rlock(ctx)
	defer q.store.runlock(ctx)
	return slices.Clone(q.store.state.queue)
}
