// Package sqlite is the embedded store used when no Postgres URL is
// configured, and by the sync engine tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout sorts lexically in time order. Times are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	insertRegionSQL = `INSERT INTO region (region_code, region_name, city)
		VALUES (?, ?, ?)
		ON CONFLICT (region_code) DO NOTHING`

	insertCompanySQL = `INSERT INTO company (
			company_code, region_code, source, company_email,
			company_hr_agency, company_inn, company_kpp,
			company_name, company_ogrn, company_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_code) DO NOTHING`

	insertVacancySQL = `INSERT INTO vacancy (
			company_code, salary_min, salary_max, job_name, vac_url,
			employment, schedule, category_specialisation,
			requirement_education, requirement_experience, data_hash, last_updated, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	// Parameters are bound in the same order as insertVacancySQL; the hash is
	// bound a second time for the comparison.
	updateVacancySQL = `UPDATE vacancy SET
			company_code = ?, salary_min = ?, salary_max = ?, job_name = ?,
			vac_url = ?, employment = ?, schedule = ?,
			category_specialisation = ?, requirement_education = ?,
			requirement_experience = ?, data_hash = ?, last_updated = ?
		WHERE id = ? AND data_hash IS NOT ?`

	vacancyColumns = `v.id, v.company_code, v.salary_min, v.salary_max, v.job_name,
		v.vac_url, v.employment, v.schedule, v.category_specialisation,
		v.requirement_education, v.requirement_experience, v.data_hash, v.last_updated`
)

// Store implements store.Store on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer; also keeps the per-connection pragmas in effect
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertRegions implements store.Writer.
func (s *Store) InsertRegions(ctx context.Context, rows []model.Region) (int, error) {
	args := make([][]any, 0, len(rows))
	for _, r := range rows {
		args = append(args, []any{r.Code, r.Name, r.City})
	}
	return s.execBatch(ctx, "region", insertRegionSQL, args)
}

// InsertCompanies implements store.Writer.
func (s *Store) InsertCompanies(ctx context.Context, rows []model.Company) (int, error) {
	args := make([][]any, 0, len(rows))
	for _, c := range rows {
		args = append(args, []any{
			c.Code, c.RegionCode, c.Source, c.Email, c.IsHRAgency,
			c.INN, c.KPP, c.Name, c.OGRN, c.URL,
		})
	}
	return s.execBatch(ctx, "company", insertCompanySQL, args)
}

// InsertVacancies implements store.Writer.
func (s *Store) InsertVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error) {
	args := make([][]any, 0, len(rows))
	for _, v := range rows {
		args = append(args, vacancyArgs(v, at))
	}
	return s.execBatch(ctx, "vacancy", insertVacancySQL, args)
}

// UpdateVacancies implements store.Writer.
func (s *Store) UpdateVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error) {
	args := make([][]any, 0, len(rows))
	for _, v := range rows {
		args = append(args, append(vacancyArgs(v, at), v.DataHash))
	}
	return s.execBatch(ctx, "vacancy", updateVacancySQL, args)
}

func vacancyArgs(v model.Vacancy, at time.Time) []any {
	return []any{
		v.CompanyCode, v.SalaryMin, v.SalaryMax, v.JobName, v.URL,
		v.Employment, v.Schedule, v.Category, v.Education, v.Experience,
		v.DataHash, at.UTC().Format(timeLayout), v.ID,
	}
}

// execBatch runs query once per argument set inside one transaction and
// returns the total number of affected rows.
func (s *Store) execBatch(ctx context.Context, table, query string, args [][]any) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: prepare: %w", table, err)
	}
	defer stmt.Close()

	total := 0
	for i, a := range args {
		res, err := stmt.ExecContext(ctx, a...)
		if err != nil {
			return 0, fmt.Errorf("%s: row %d: %w", table, i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: row %d: %w", table, i, err)
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", table, err)
	}
	return total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVacancy(sc scanner, v *model.Vacancy, extra ...any) error {
	var updated string
	dest := append([]any{
		&v.ID, &v.CompanyCode, &v.SalaryMin, &v.SalaryMax, &v.JobName,
		&v.URL, &v.Employment, &v.Schedule, &v.Category,
		&v.Education, &v.Experience, &v.DataHash, &updated,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return err
	}
	t, err := time.Parse(timeLayout, updated)
	if err != nil {
		return fmt.Errorf("parse last_updated %q: %w", updated, err)
	}
	v.LastUpdated = t
	return nil
}

// ListVacancies implements store.Reader.
func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]model.VacancyView, error) {
	query := `SELECT ` + vacancyColumns + `, c.company_name, c.region_code, r.region_name, r.city
		FROM vacancy v
		JOIN company c ON c.company_code = v.company_code
		JOIN region r ON r.region_code = c.region_code
		WHERE (? = '' OR c.region_code = ?)
		ORDER BY v.last_updated DESC, v.id
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query,
		opts.RegionCode, opts.RegionCode, opts.EffectiveLimit(), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("query vacancies: %w", err)
	}
	defer rows.Close()

	var out []model.VacancyView
	for rows.Next() {
		var v model.VacancyView
		if err := scanVacancy(rows, &v.Vacancy, &v.CompanyName, &v.RegionCode, &v.RegionName, &v.City); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVacancy implements store.Reader.
func (s *Store) GetVacancy(ctx context.Context, id string) (model.Vacancy, error) {
	var v model.Vacancy
	row := s.db.QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancy v WHERE v.id = ?`, id)
	err := scanVacancy(row, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vacancy{}, store.ErrNotFound
	}
	if err != nil {
		return model.Vacancy{}, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	return v, nil
}

// Counts implements store.Reader.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM region),
		(SELECT count(*) FROM company),
		(SELECT count(*) FROM vacancy)`).Scan(&c.Regions, &c.Companies, &c.Vacancies)
	if err != nil {
		return store.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}
