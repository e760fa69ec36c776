//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/domain"
	"clinic/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("CLINIC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CLINIC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	owner := uuid.New()
	want := &storage.Snapshot{
		Libros: []storage.Libro{
			{ID: uuid.New(), ISBN: "978-1", Titulo: "Rayuela", Autor: "Cortazar", Paginas: 600, Genero: domain.GenreNovela, Stock: 0},
			{ID: uuid.New(), ISBN: "978-2", Titulo: "Momo", Genero: domain.GenreInfantil, Stock: 2},
		},
		Clientes: []storage.Cliente{
			{ID: owner, Nombre: "Ana", Direccion: domain.Known("Calle 1"), Telefono: "555"},
			{ID: uuid.New(), Nombre: "Beto", Telefono: "666", Email: "beto@example.com"},
		},
		Prestamos: []storage.Prestamo{
			{ID: uuid.New(), ISBN: "978-1", Cliente: owner, Vencimiento: domain.NewDate(2024, 2, 1)},
			{
				ID: uuid.New(), ISBN: "978-2", Cliente: owner, Vencimiento: domain.NewDate(2024, 1, 1),
				Estado:      storage.Estado{Devuelto: domain.Known(domain.NewDate(2024, 1, 3))},
				Diagnostico: "ok",
			},
		},
		Cola: []storage.Espera{{ISBN: "978-1", Cliente: owner}},
	}

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// second save replaces everything
	want.Cola = nil
	want.Prestamos = want.Prestamos[:1]
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Prestamos, 1)
	assert.Empty(t, got.Cola)
}

func TestStore_RejectsNegativeStock(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	bad := &storage.Snapshot{Libros: []storage.Libro{
		{ID: uuid.New(), ISBN: "x", Titulo: "X", Genero: domain.GenreOtros, Stock: -1},
	}}
	assert.ErrorIs(t, s.Save(ctx, bad), storage.ErrCorruptStore)
}
