// Package postgres is the production store backed by a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertRegionSQL = `INSERT INTO region (region_code, region_name, city)
		VALUES ($1, $2, $3)
		ON CONFLICT (region_code) DO NOTHING`

	insertCompanySQL = `INSERT INTO company (
			company_code, region_code, source, company_email,
			company_hr_agency, company_inn, company_kpp,
			company_name, company_ogrn, company_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (company_code) DO NOTHING`

	insertVacancySQL = `INSERT INTO vacancy (
			id, company_code, salary_min, salary_max, job_name, vac_url,
			employment, schedule, category_specialisation,
			requirement_education, requirement_experience, data_hash, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	updateVacancySQL = `UPDATE vacancy SET
			company_code = $2, salary_min = $3, salary_max = $4, job_name = $5,
			vac_url = $6, employment = $7, schedule = $8,
			category_specialisation = $9, requirement_education = $10,
			requirement_experience = $11, data_hash = $12, last_updated = $13
		WHERE id = $1 AND data_hash IS DISTINCT FROM $12`

	vacancyColumns = `v.id, v.company_code, v.salary_min, v.salary_max, v.job_name,
		v.vac_url, v.employment, v.schedule, v.category_specialisation,
		v.requirement_education, v.requirement_experience, v.data_hash, v.last_updated`
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool. Close releases it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables. It is safe to call on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// InsertRegions implements store.Writer.
func (s *Store) InsertRegions(ctx context.Context, rows []model.Region) (int, error) {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertRegionSQL, r.Code, r.Name, r.City)
	}
	return s.execBatch(ctx, "region", b)
}

// InsertCompanies implements store.Writer.
func (s *Store) InsertCompanies(ctx context.Context, rows []model.Company) (int, error) {
	b := &pgx.Batch{}
	for _, c := range rows {
		b.Queue(insertCompanySQL,
			c.Code, c.RegionCode, c.Source, c.Email, c.IsHRAgency,
			c.INN, c.KPP, c.Name, c.OGRN, c.URL,
		)
	}
	return s.execBatch(ctx, "company", b)
}

// InsertVacancies implements store.Writer.
func (s *Store) InsertVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error) {
	return s.execBatch(ctx, "vacancy", vacancyBatch(insertVacancySQL, rows, at))
}

// UpdateVacancies implements store.Writer.
func (s *Store) UpdateVacancies(ctx context.Context, rows []model.Vacancy, at time.Time) (int, error) {
	return s.execBatch(ctx, "vacancy", vacancyBatch(updateVacancySQL, rows, at))
}

func vacancyBatch(query string, rows []model.Vacancy, at time.Time) *pgx.Batch {
	b := &pgx.Batch{}
	for _, v := range rows {
		b.Queue(query,
			v.ID, v.CompanyCode, v.SalaryMin, v.SalaryMax, v.JobName, v.URL,
			v.Employment, v.Schedule, v.Category, v.Education, v.Experience,
			v.DataHash, at,
		)
	}
	return b
}

// execBatch sends b inside one transaction and returns the total number of
// affected rows. Any failing statement rolls back the whole batch.
func (s *Store) execBatch(ctx context.Context, table string, b *pgx.Batch) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	br := tx.SendBatch(ctx, b)
	total := 0
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("%s: row %d: %w", table, i, err)
		}
		total += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("%s: close batch: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", table, err)
	}
	return total, nil
}

// ListVacancies implements store.Reader.
func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]model.VacancyView, error) {
	query := `SELECT ` + vacancyColumns + `, c.company_name, c.region_code, r.region_name, r.city
		FROM vacancy v
		JOIN company c ON c.company_code = v.company_code
		JOIN region r ON r.region_code = c.region_code
		WHERE ($1 = '' OR c.region_code = $1)
		ORDER BY v.last_updated DESC, v.id
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, opts.RegionCode, opts.EffectiveLimit(), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("query vacancies: %w", err)
	}
	defer rows.Close()

	var out []model.VacancyView
	for rows.Next() {
		var v model.VacancyView
		if err := rows.Scan(
			&v.ID, &v.CompanyCode, &v.SalaryMin, &v.SalaryMax, &v.JobName,
			&v.URL, &v.Employment, &v.Schedule, &v.Category,
			&v.Education, &v.Experience, &v.DataHash, &v.LastUpdated,
			&v.CompanyName, &v.RegionCode, &v.RegionName, &v.City,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVacancy implements store.Reader.
func (s *Store) GetVacancy(ctx context.Context, id string) (model.Vacancy, error) {
	var v model.Vacancy
	err := s.pool.QueryRow(ctx, `SELECT `+vacancyColumns+` FROM vacancy v WHERE v.id = $1`, id).Scan(
		&v.ID, &v.CompanyCode, &v.SalaryMin, &v.SalaryMax, &v.JobName,
		&v.URL, &v.Employment, &v.Schedule, &v.Category,
		&v.Education, &v.Experience, &v.DataHash, &v.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM region),
		(SELECT count(*) FROM company),
		(SELECT count(*) FROM vacancy)`).Scan(&c.Regions, &c.Companies, &c.Vacancies)
	if err != nil {
		return store.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}
