package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/domain"
)

func req() domain.ServiceRequest {
	return domain.ServiceRequest{SubjectID: uuid.New(), OwnerID: uuid.New()}
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	a, b := req(), req()
	q.Enqueue(ctx, a)
	q.Enqueue(ctx, b)

	got, ok := q.ServeNext(ctx)
	require.True(t, ok)
	assert.Equal(t, a, got)
	got, ok = q.ServeNext(ctx)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestQueue_PriorityGoesFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	a, b := req(), req()
	q.Enqueue(ctx, a)
	q.EnqueuePriority(ctx, b)

	got, _ := q.ServeNext(ctx)
	assert.Equal(t, b, got)
	got, _ = q.ServeNext(ctx)
	assert.Equal(t, a, got)
}

func TestQueue_LatestPriorityAtHead(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	n, p1, p2 := req(), req(), req()
	q.Enqueue(ctx, n)
	q.EnqueuePriority(ctx, p1)
	q.EnqueuePriority(ctx, p2)

	assert.Equal(t, []domain.ServiceRequest{p2, p1, n}, q.List(ctx))
}

func TestQueue_EmptyServeIsSafe(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	for range 3 {
		_, ok := q.ServeNext(ctx)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, q.Len(ctx))
}

func TestQueue_RemoveAllEqual(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	a, b := req(), req()
	q.Enqueue(ctx, a)
	q.Enqueue(ctx, b)
	q.Enqueue(ctx, a)

	assert.Equal(t, 2, q.Remove(ctx, a))
	assert.Equal(t, []domain.ServiceRequest{b}, q.List(ctx))

	// absent: no-op
	assert.Equal(t, 0, q.Remove(ctx, a))
	assert.Equal(t, 1, q.Len(ctx))
}
