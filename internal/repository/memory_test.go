package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"clinic/internal/domain"
)

func newSubject(t *testing.T, code, title string, stock int) domain.Subject {
	t.Helper()
	s, err := domain.NewSubject(code, title, "", 100, domain.GenreNovela, stock)
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	return *s
}

func TestMemoryStore_SubjectCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newSubject(t, "S1", "A", 5)
	if err := store.CreateSubject(ctx, &s); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetSubject(ctx, s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("get: %v", err)
	}
	byCode, err := store.GetSubjectByCode(ctx, "S1")
	if err != nil || byCode.ID != s.ID {
		t.Fatalf("get by code: %v", err)
	}

	s.Stock = 4
	if err := store.UpdateSubject(ctx, &s); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.GetSubject(ctx, s.ID)
	if got.Stock != 4 {
		t.Fatalf("stock expected 4, got %v", got.Stock)
	}

	if err := store.DeleteSubject(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSubject(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newSubject(t, "S1", "A", 1)
	b := newSubject(t, "S1", "B", 1)
	if err := store.CreateSubject(ctx, &a); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateSubject(ctx, &b); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestMemoryStore_Owners(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	o, err := domain.NewOwner("Ana", domain.Unknown[string](), "555", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateOwner(ctx, o); err != nil {
		t.Fatal(err)
	}
	found, err := store.FindOwner(ctx, "Ana", "555")
	if err != nil || found.ID != o.ID {
		t.Fatalf("find: %v", err)
	}
	if _, err := store.FindOwner(ctx, "Ana", "000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := store.ListOwners(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 owner, got %d", len(list))
	}
}

func TestMemoryTx_TransactionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	log := NewMemoryLog(store)

	// seed subject
	s := newSubject(t, "S1", "A", 5)
	if err := store.CreateSubject(ctx, &s); err != nil {
		t.Fatal(err)
	}

	// emulate atomic open with stock decrease
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		ss, err := store.GetSubject(ctx, s.ID)
		if err != nil {
			return err
		}
		if err := ss.Take(); err != nil {
			return err
		}
		if err := store.UpdateSubject(ctx, ss); err != nil {
			return err
		}
		in, err := domain.NewInteraction(s.ID, uuid.New(), domain.NewDate(2024, 1, 1))
		if err != nil {
			return err
		}
		return log.Append(ctx, in)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	// check stock after
	ss, _ := store.GetSubject(ctx, s.ID)
	if ss.Stock != 4 {
		t.Fatalf("stock expected 4, got %v", ss.Stock)
	}
	if n := len(log.List(ctx)); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestMemoryTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	queue := NewMemoryQueue(store)

	s := newSubject(t, "S1", "A", 2)
	if err := store.CreateSubject(ctx, &s); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		ss, _ := store.GetSubject(ctx, s.ID)
		ss.Stock = 0
		if err := store.UpdateSubject(ctx, ss); err != nil {
			return err
		}
		queue.Enqueue(ctx, domain.ServiceRequest{SubjectID: s.ID, OwnerID: uuid.New()})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ss, _ := store.GetSubject(ctx, s.ID)
	if ss.Stock != 2 {
		t.Fatalf("stock must be restored, got %v", ss.Stock)
	}
	if queue.Len(ctx) != 0 {
		t.Fatalf("queue must be restored")
	}
}

func TestMemoryTx_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	s := newSubject(t, "S1", "A", 2)
	if err := store.CreateSubject(ctx, &s); err != nil {
		t.Fatal(err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = tx.WithTransaction(ctx, func(ctx context.Context) error {
			_ = store.DeleteSubject(ctx, s.ID)
			panic("bug")
		})
	}()

	// lock released and state restored
	if _, err := store.GetSubject(ctx, s.ID); err != nil {
		t.Fatalf("subject must survive rollback: %v", err)
	}
}

func TestList_Filtering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	add := func(code, title string, genre domain.Genre, stock int) {
		s, err := domain.NewSubject(code, title, "", 10, genre, stock)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.CreateSubject(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	add("A", "Rayuela", domain.GenreNovela, 1)
	add("B", "Principito", domain.GenreInfantil, 0)
	add("C", "Go in Action", domain.GenreTecnico, 3)

	// title contains
	list, _ := store.ListSubjects(ctx, SubjectFilter{TitleSubstring: "in"})
	if len(list) != 2 {
		t.Fatalf("title filter expected 2, got %d", len(list))
	}
	// insertion order
	if list[0].Code != "B" || list[1].Code != "C" {
		t.Fatalf("unexpected order: %v %v", list[0].Code, list[1].Code)
	}

	// genre
	list, _ = store.ListSubjects(ctx, SubjectFilter{Genre: domain.GenreNovela})
	if len(list) != 1 || list[0].Code != "A" {
		t.Fatalf("genre filter fail")
	}

	// stock
	list, _ = store.ListSubjects(ctx, SubjectFilter{InStockOnly: true})
	for _, s := range list {
		if s.Stock == 0 {
			t.Fatalf("stock filter fail")
		}
	}
}

func TestExportImportState(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore()
	s := newSubject(t, "S1", "A", 1)
	if err := src.CreateSubject(ctx, &s); err != nil {
		t.Fatal(err)
	}
	NewMemoryQueue(src).Enqueue(ctx, domain.ServiceRequest{SubjectID: s.ID, OwnerID: uuid.New()})

	st := src.ExportState(ctx)
	dst := NewMemoryStore()
	dst.ImportState(ctx, st)

	if _, err := dst.GetSubject(ctx, s.ID); err != nil {
		t.Fatalf("subject not imported: %v", err)
	}
	if NewMemoryQueue(dst).Len(ctx) != 1 {
		t.Fatalf("queue not imported")
	}
}
