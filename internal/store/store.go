// Package store defines the persistence contract shared by the Postgres and
// SQLite backends.
//
// Writes are batched per table and each call runs in its own transaction: a
// failing row rolls the whole call back. Region and company writes are
// insert-if-absent. Vacancy writes are split into an insert phase for new ids
// and an update phase for ids whose data_hash changed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ned0ra/diplom/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Writer is the write side used by the sync engine.
type Writer interface {
	// InsertRegions inserts regions whose code is absent and returns how many
	// rows were written.
	InsertRegions(ctx context.Context, rows []model.Region) (int, error)
	// InsertCompanies inserts companies whose code is absent.
	InsertCompanies(ctx context.Context, rows []model.Company) (int, error)
	// InsertVacancies inserts vacancies whose id is absent, stamping
	// last_updated with at.
	InsertVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error)
	// UpdateVacancies rewrites vacancies whose stored data_hash differs from
	// the row's, stamping last_updated with at.
	UpdateVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error)
}

// ListOptions filters and pages ListVacancies.
type ListOptions struct {
	RegionCode string
	Limit      int
	Offset     int
}

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 100

// Counts is the number of rows per table.
type Counts struct {
	Regions   int `json:"regions"`
	Companies int `json:"companies"`
	Vacancies int `json:"vacancies"`
}

// Reader is the read side used by the API and by tests.
type Reader interface {
	// ListVacancies returns vacancies joined with company and region, most
	// recently updated first. Values are returned as stored.
	ListVacancies(ctx context.Context, opts ListOptions) ([]model.VacancyView, error)
	GetVacancy(ctx context.Context, id string) (model.Vacancy, error)
	Counts(ctx context.Context) (Counts, error)
}

// Store is a full backend.
type Store interface {
	Writer
	Reader
	// EnsureSchema creates the three tables if they do not exist.
	EnsureSchema(ctx context.Context) error
	Close() error
}

// EffectiveLimit returns the page size to use for o.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
