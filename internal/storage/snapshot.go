// Package storage описывает снимок состояния реестра и контракт хранилища для него.
// Имена полей снимка совпадают с форматом файла базы (isbn, titulo, cliente).
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"clinic/internal/domain"
	"clinic/internal/repository"
)

// Store постоянное хранилище снимков
type Store interface {
	// Load возвращает ErrStoreNotFound, если снимок ещё не сохранялся
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

type Snapshot struct {
	Libros    []Libro    `json:"libros"`
	Clientes  []Cliente  `json:"clientes"`
	Prestamos []Prestamo `json:"prestamos"`
	Cola      []Espera   `json:"cola"`
}

type Libro struct {
	ID      uuid.UUID    `json:"id"`
	ISBN    string       `json:"isbn"`
	Titulo  string       `json:"titulo"`
	Autor   string       `json:"autor"`
	Paginas int          `json:"paginas"`
	Genero  domain.Genre `json:"genero"`
	Stock   int          `json:"stock"`
}

type Cliente struct {
	ID        uuid.UUID               `json:"id"`
	Nombre    string                  `json:"nombre"`
	Direccion domain.Optional[string] `json:"direccion"`
	Telefono  string                  `json:"telefono"`
	Email     string                  `json:"email"`
}

type Prestamo struct {
	ID          uuid.UUID   `json:"id"`
	ISBN        string      `json:"isbn"`
	Cliente     uuid.UUID   `json:"cliente"`
	Vencimiento domain.Date `json:"vencimiento"`
	Estado      Estado      `json:"estado"`
	Diagnostico string      `json:"diagnostico"`
}

// Espera заявка в очереди ожидания
type Espera struct {
	ISBN    string    `json:"isbn"`
	Cliente uuid.UUID `json:"cliente"`
}

// Estado сериализуется как "Prestando" или {"Devuelto": {"dia":..,"mes":..,"anio":..}}
type Estado struct {
	Devuelto domain.Optional[domain.Date]
}

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

func (e Estado) MarshalJSON() ([]byte, error) {
	if d, ok := e.Devuelto.Get(); ok {
		return codec.Marshal(map[string]domain.Date{string(domain.StatusClosed): d})
	}
	return codec.Marshal(string(domain.StatusOpen))
}

func (e *Estado) UnmarshalJSON(data []byte) error {
	var s string
	if err := codec.Unmarshal(data, &s); err == nil {
		if s != string(domain.StatusOpen) {
			return fmt.Errorf("%w: unknown estado %q", ErrCorruptStore, s)
		}
		*e = Estado{Devuelto: domain.Unknown[domain.Date]()}
		return nil
	}
	var m map[string]domain.Date
	if err := codec.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: estado: %v", ErrCorruptStore, err)
	}
	d, ok := m[string(domain.StatusClosed)]
	if !ok || len(m) != 1 {
		return fmt.Errorf("%w: estado must be %q or {%q: date}", ErrCorruptStore, domain.StatusOpen, domain.StatusClosed)
	}
	*e = Estado{Devuelto: domain.Known(d)}
	return nil
}

// FromState строит снимок из состояния хранилища в памяти
func FromState(st repository.State) *Snapshot {
	codes := make(map[uuid.UUID]string, len(st.Subjects))
	snap := &Snapshot{
		Libros:    make([]Libro, 0, len(st.Subjects)),
		Clientes:  make([]Cliente, 0, len(st.Owners)),
		Prestamos: make([]Prestamo, 0, len(st.Interactions)),
		Cola:      make([]Espera, 0, len(st.Queue)),
	}
	for _, s := range st.Subjects {
		codes[s.ID] = s.Code
		snap.Libros = append(snap.Libros, Libro{
			ID: s.ID, ISBN: s.Code, Titulo: s.Title, Autor: s.Author,
			Paginas: s.Pages, Genero: s.Genre, Stock: s.Stock,
		})
	}
	for _, o := range st.Owners {
		snap.Clientes = append(snap.Clientes, Cliente{
			ID: o.ID, Nombre: o.Name, Direccion: o.Address, Telefono: o.Phone, Email: o.Email,
		})
	}
	for _, in := range st.Interactions {
		snap.Prestamos = append(snap.Prestamos, Prestamo{
			ID:          in.ID,
			ISBN:        codes[in.SubjectID],
			Cliente:     in.OwnerID,
			Vencimiento: in.DueOn,
			Estado:      Estado{Devuelto: in.ClosedOn},
			Diagnostico: in.Diagnosis,
		})
	}
	for _, r := range st.Queue {
		snap.Cola = append(snap.Cola, Espera{ISBN: codes[r.SubjectID], Cliente: r.OwnerID})
	}
	return snap
}

// ToState проверяет снимок и переводит его в состояние хранилища.
// Любое нарушение инвариантов даёт ErrCorruptStore.
func (s *Snapshot) ToState() (repository.State, error) {
	var st repository.State
	byCode := make(map[string]uuid.UUID, len(s.Libros))
	seen := make(map[uuid.UUID]struct{})
	unique := func(kind string, id uuid.UUID) error {
		if _, dup := seen[id]; dup {
			return corrupt("%s %s: duplicate id", kind, id)
		}
		seen[id] = struct{}{}
		return nil
	}

	for i, l := range s.Libros {
		subj := domain.Subject{
			ID: l.ID, Code: l.ISBN, Title: l.Titulo, Author: l.Autor,
			Pages: l.Paginas, Genre: l.Genero, Stock: l.Stock,
		}
		if err := subj.Validate(); err != nil {
			return st, corrupt("libros[%d]: %v", i, err)
		}
		if err := unique("libro", l.ID); err != nil {
			return st, err
		}
		if _, dup := byCode[l.ISBN]; dup {
			return st, corrupt("libros[%d]: duplicate isbn %q", i, l.ISBN)
		}
		byCode[l.ISBN] = l.ID
		st.Subjects = append(st.Subjects, subj)
	}

	owners := make(map[uuid.UUID]struct{}, len(s.Clientes))
	for i, c := range s.Clientes {
		o := domain.Owner{ID: c.ID, Name: c.Nombre, Address: c.Direccion, Phone: c.Telefono, Email: c.Email}
		if err := o.Validate(); err != nil {
			return st, corrupt("clientes[%d]: %v", i, err)
		}
		if err := unique("cliente", c.ID); err != nil {
			return st, err
		}
		owners[c.ID] = struct{}{}
		st.Owners = append(st.Owners, o)
	}

	ref := func(where, isbn string, owner uuid.UUID) (uuid.UUID, error) {
		subjectID, ok := byCode[isbn]
		if !ok {
			return uuid.Nil, corrupt("%s: unknown isbn %q", where, isbn)
		}
		if _, ok := owners[owner]; !ok {
			return uuid.Nil, corrupt("%s: unknown cliente %s", where, owner)
		}
		return subjectID, nil
	}

	for i, p := range s.Prestamos {
		where := fmt.Sprintf("prestamos[%d]", i)
		subjectID, err := ref(where, p.ISBN, p.Cliente)
		if err != nil {
			return st, err
		}
		if p.ID == uuid.Nil {
			return st, corrupt("%s: empty id", where)
		}
		if err := unique("prestamo", p.ID); err != nil {
			return st, err
		}
		status := domain.StatusOpen
		if p.Estado.Devuelto.IsKnown() {
			status = domain.StatusClosed
		}
		st.Interactions = append(st.Interactions, domain.Interaction{
			ID:        p.ID,
			SubjectID: subjectID,
			OwnerID:   p.Cliente,
			Status:    status,
			DueOn:     p.Vencimiento,
			ClosedOn:  p.Estado.Devuelto,
			Diagnosis: p.Diagnostico,
		})
	}

	for i, e := range s.Cola {
		subjectID, err := ref(fmt.Sprintf("cola[%d]", i), e.ISBN, e.Cliente)
		if err != nil {
			return st, err
		}
		st.Queue = append(st.Queue, domain.ServiceRequest{SubjectID: subjectID, OwnerID: e.Cliente})
	}
	return st, nil
}

// Validate проверка снимка без построения состояния
func (s *Snapshot) Validate() error {
	_, err := s.ToState()
	return err
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptStore, fmt.Sprintf(format, args...))
}
