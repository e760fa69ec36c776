package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/domain"
	"clinic/internal/storage"
)

func sampleSnapshot() *storage.Snapshot {
	owner := uuid.New()
	return &storage.Snapshot{
		Libros: []storage.Libro{
			{ID: uuid.New(), ISBN: "978-1", Titulo: "Rayuela", Autor: "Cortazar", Paginas: 600, Genero: domain.GenreNovela, Stock: 1},
		},
		Clientes: []storage.Cliente{
			{ID: owner, Nombre: "Ana", Direccion: domain.Known("Calle 1"), Telefono: "555"},
		},
		Prestamos: []storage.Prestamo{
			{ID: uuid.New(), ISBN: "978-1", Cliente: owner, Vencimiento: domain.NewDate(2024, 2, 1)},
			{
				ID: uuid.New(), ISBN: "978-1", Cliente: owner, Vencimiento: domain.NewDate(2024, 1, 1),
				Estado:      storage.Estado{Devuelto: domain.Known(domain.NewDate(2024, 1, 3))},
				Diagnostico: "ok",
			},
		},
		Cola: []storage.Espera{{ISBN: "978-1", Cliente: owner}},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "nested", "registry.json"))
	want := sampleSnapshot()

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	for _, key := range []string{`"libros"`, `"titulo"`, `"vencimiento"`, `"Prestando"`, `"Devuelto"`, `"anio"`} {
		assert.Contains(t, string(raw), key)
	}
}

func TestStore_Missing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestStore_Corrupt(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"libros": [`,
		"negative stock": `{"libros":[{"id":"` + uuid.NewString() + `","isbn":"1","titulo":"T","genero":"Novela","stock":-1}]}`,
		"unknown genre":  `{"libros":[{"id":"` + uuid.NewString() + `","isbn":"1","titulo":"T","genero":"Poesia","stock":1}]}`,
		"bad estado":     `{"prestamos":[{"id":"` + uuid.NewString() + `","isbn":"1","estado":"Perdido"}]}`,
		"dangling loan":  `{"prestamos":[{"id":"` + uuid.NewString() + `","isbn":"1","cliente":"` + uuid.NewString() + `","estado":"Prestando"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := New(path).Load(context.Background())
			assert.ErrorIs(t, err, storage.ErrCorruptStore)
		})
	}
}

func TestStore_SaveIntoUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := New(filepath.Join(blocker, "registry.json")).Save(context.Background(), sampleSnapshot())
	assert.ErrorIs(t, err, storage.ErrIO)
}
