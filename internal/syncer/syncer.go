// Package syncer reconciles a prepared batch with the store.
//
// Tables are written in region, company, vacancy order so foreign keys hold.
// Each step is its own transaction; a failing step stops the sync and later
// steps are not attempted. Steps already committed stay committed.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/store"
)

// Report counts the rows each step wrote.
type Report struct {
	RegionsInserted   int       `json:"regions_inserted"`
	CompaniesInserted int       `json:"companies_inserted"`
	VacanciesInserted int       `json:"vacancies_inserted"`
	VacanciesUpdated  int       `json:"vacancies_updated"`
	SyncedAt          time.Time `json:"synced_at"`
}

// Changed reports whether the sync wrote anything.
func (r Report) Changed() bool {
	return r.RegionsInserted+r.CompaniesInserted+r.VacanciesInserted+r.VacanciesUpdated > 0
}

// Engine runs syncs against a store.Writer.
type Engine struct {
	w   store.Writer
	log *zap.Logger
	now func() time.Time
}

// New returns an Engine writing to w.
func New(w store.Writer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{w: w, log: log, now: time.Now}
}

// WithClock replaces the clock used for last_updated.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Sync inserts new regions, companies and vacancies, then updates vacancies
// whose fingerprint changed. Every written vacancy gets the same
// last_updated, the time the sync started.
func (e *Engine) Sync(ctx context.Context, b model.Batch) (Report, error) {
	return e.run(ctx, b, true)
}

// InitialLoad is Sync without the vacancy update phase. It is used to fill
// empty tables.
func (e *Engine) InitialLoad(ctx context.Context, b model.Batch) (Report, error) {
	return e.run(ctx, b, false)
}

func (e *Engine) run(ctx context.Context, b model.Batch, update bool) (Report, error) {
	rep := Report{SyncedAt: e.now().UTC()}
	if b.Empty() {
		e.log.Info("empty batch, nothing to sync")
		return rep, nil
	}

	var err error
	if rep.RegionsInserted, err = e.w.InsertRegions(ctx, b.Regions); err != nil {
		return rep, fmt.Errorf("sync region: %w", err)
	}
	if rep.CompaniesInserted, err = e.w.InsertCompanies(ctx, b.Companies); err != nil {
		return rep, fmt.Errorf("sync company: %w", err)
	}
	if rep.VacanciesInserted, err = e.w.InsertVacancies(ctx, b.Vacancies, rep.SyncedAt); err != nil {
		return rep, fmt.Errorf("sync vacancy insert: %w", err)
	}
	if update {
		if rep.VacanciesUpdated, err = e.w.UpdateVacancies(ctx, b.Vacancies, rep.SyncedAt); err != nil {
			return rep, fmt.Errorf("sync vacancy update: %w", err)
		}
	}

	e.log.Info("sync complete",
		zap.Int("regions_in", len(b.Regions)),
		zap.Int("companies_in", len(b.Companies)),
		zap.Int("vacancies_in", len(b.Vacancies)),
		zap.Int("regions_inserted", rep.RegionsInserted),
		zap.Int("companies_inserted", rep.CompaniesInserted),
		zap.Int("vacancies_inserted", rep.VacanciesInserted),
		zap.Int("vacancies_updated", rep.VacanciesUpdated),
	)
	return rep, nil
}
