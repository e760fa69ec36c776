// Package postgres хранит снимок реестра в PostgreSQL.
// Save целиком заменяет содержимое таблиц в одной транзакции; порядок строк задаёт колонка seq.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"clinic/internal/domain"
	"clinic/internal/storage"
)

const (
	backend = "postgres"

	// MigrationTableName таблица версий goose
	MigrationTableName = "clinic_schema_migrations"

	undefinedTableCode = "42P01"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{db: db} }

// Open подключается через драйвер pgx и проверяет соединение
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, storage.Wrap(backend, "open", storage.ErrIO, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.Wrap(backend, "open", storage.ErrIO, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

// Migrate применяет встроенные миграции
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return storage.Wrap(backend, "migrate", storage.ErrIO, err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return storage.Wrap(backend, "migrate", storage.ErrIO, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"cola", "prestamos", "clientes", "libros"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return mapError("save", err)
		}
	}
	for i, l := range snap.Libros {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO libros (seq, id, isbn, titulo, autor, paginas, genero, stock)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			i, l.ID, l.ISBN, l.Titulo, l.Autor, l.Paginas, string(l.Genero), l.Stock)
		if err != nil {
			return mapError("save", err)
		}
	}
	for i, c := range snap.Clientes {
		var direccion sql.NullString
		if v, ok := c.Direccion.Get(); ok {
			direccion = sql.NullString{String: v, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO clientes (seq, id, nombre, direccion, telefono, email)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			i, c.ID, c.Nombre, direccion, c.Telefono, c.Email)
		if err != nil {
			return mapError("save", err)
		}
	}
	for i, p := range snap.Prestamos {
		var dia, mes, anio sql.NullInt64
		if d, ok := p.Estado.Devuelto.Get(); ok {
			dia = sql.NullInt64{Int64: int64(d.Day), Valid: true}
			mes = sql.NullInt64{Int64: int64(d.Month), Valid: true}
			anio = sql.NullInt64{Int64: int64(d.Year), Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO prestamos (seq, id, isbn, cliente,
			   vencimiento_dia, vencimiento_mes, vencimiento_anio,
			   devuelto_dia, devuelto_mes, devuelto_anio, diagnostico)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			i, p.ID, p.ISBN, p.Cliente,
			p.Vencimiento.Day, p.Vencimiento.Month, p.Vencimiento.Year,
			dia, mes, anio, p.Diagnostico)
		if err != nil {
			return mapError("save", err)
		}
	}
	for i, e := range snap.Cola {
		_, err = tx.ExecContext(ctx, `INSERT INTO cola (seq, isbn, cliente) VALUES ($1, $2, $3)`, i, e.ISBN, e.Cliente)
		if err != nil {
			return mapError("save", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	return nil
}

// Load отсутствие схемы означает, что снимок ещё не сохранялся
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	snap := &storage.Snapshot{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, isbn, titulo, autor, paginas, genero, stock FROM libros ORDER BY seq`)
	if err != nil {
		return nil, mapError("load", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var l storage.Libro
		var genero string
		if err := r.Scan(&l.ID, &l.ISBN, &l.Titulo, &l.Autor, &l.Paginas, &genero, &l.Stock); err != nil {
			return err
		}
		l.Genero = domain.Genre(genero)
		snap.Libros = append(snap.Libros, l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, nombre, direccion, telefono, email FROM clientes ORDER BY seq`)
	if err != nil {
		return nil, mapError("load", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var c storage.Cliente
		var direccion sql.NullString
		if err := r.Scan(&c.ID, &c.Nombre, &direccion, &c.Telefono, &c.Email); err != nil {
			return err
		}
		if direccion.Valid {
			c.Direccion = domain.Known(direccion.String)
		}
		snap.Clientes = append(snap.Clientes, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, isbn, cliente, vencimiento_dia, vencimiento_mes, vencimiento_anio,
		        devuelto_dia, devuelto_mes, devuelto_anio, diagnostico
		 FROM prestamos ORDER BY seq`)
	if err != nil {
		return nil, mapError("load", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var p storage.Prestamo
		var dia, mes, anio sql.NullInt64
		if err := r.Scan(&p.ID, &p.ISBN, &p.Cliente,
			&p.Vencimiento.Day, &p.Vencimiento.Month, &p.Vencimiento.Year,
			&dia, &mes, &anio, &p.Diagnostico); err != nil {
			return err
		}
		if dia.Valid && mes.Valid && anio.Valid {
			p.Estado.Devuelto = domain.Known(domain.NewDate(int(anio.Int64), int(mes.Int64), int(dia.Int64)))
		}
		snap.Prestamos = append(snap.Prestamos, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT isbn, cliente FROM cola ORDER BY seq`)
	if err != nil {
		return nil, mapError("load", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var e storage.Espera
		if err := r.Scan(&e.ISBN, &e.Cliente); err != nil {
			return err
		}
		snap.Cola = append(snap.Cola, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, storage.Wrap(backend, "load", storage.ErrCorruptStore, err)
	}
	return snap, nil
}

func scanAll(rows *sql.Rows, scan func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return storage.Wrap(backend, "load", storage.ErrCorruptStore, err)
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Wrap(backend, "load", storage.ErrIO, err)
	}
	return nil
}

// mapError переводит ошибки PostgreSQL в категории хранилища
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == undefinedTableCode:
			return storage.Wrap(backend, op, storage.ErrStoreNotFound, err)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			// нарушение ограничений: в снимке битые данные
			return storage.Wrap(backend, op, storage.ErrCorruptStore, err)
		}
	}
	return storage.Wrap(backend, op, storage.ErrIO, err)
}
