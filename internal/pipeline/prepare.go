// Package pipeline composes the stages into the two scheduler units, prepare
// and sync, and runs them with per-unit retries.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/archive"
	"github.com/ned0ra/diplom/internal/cleaner"
	"github.com/ned0ra/diplom/internal/flatten"
	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/prepare"
)

// Fetcher returns raw API records.
type Fetcher interface {
	Fetch(ctx context.Context, maxCount int) ([]flatten.Node, error)
}

// PrepareResult is the outcome of one prepare unit.
type PrepareResult struct {
	Batch   model.Batch
	Fetched int
	Skipped []cleaner.Skipped
}

// Preparer runs fetch → archive → flatten → clean → prepare.
type Preparer struct {
	fetcher  Fetcher
	archiver archive.Archiver
	cleaner  *cleaner.Cleaner
	tables   *prepare.Preparer
	log      *zap.Logger
}

// NewPreparer wires the prepare unit. A nil archiver disables archiving.
func NewPreparer(f Fetcher, a archive.Archiver, c *cleaner.Cleaner, p *prepare.Preparer, log *zap.Logger) *Preparer {
	if a == nil {
		a = archive.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Preparer{fetcher: f, archiver: a, cleaner: c, tables: p, log: log}
}

// Prepare fetches up to maxCount records and turns them into a batch. It
// fails only when the fetch is cancelled; malformed records are skipped.
func (p *Preparer) Prepare(ctx context.Context, runID string, maxCount int) (PrepareResult, error) {
	records, err := p.fetcher.Fetch(ctx, maxCount)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("fetch: %w", err)
	}
	p.log.Info("records fetched", zap.String("run_id", runID), zap.Int("count", len(records)))

	if err := p.archiver.Archive(ctx, runID, records); err != nil {
		p.log.Warn("archive failed", zap.String("run_id", runID), zap.Error(err))
	}

	res := PrepareResult{Fetched: len(records)}

	payloads := make([]flatten.Node, 0, len(records))
	for i, rec := range records {
		payload, err := flatten.Payload(rec)
		if err != nil {
			res.Skipped = append(res.Skipped, cleaner.Skipped{Index: i, Reason: err.Error()})
			p.log.Warn("malformed record skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		payloads = append(payloads, payload)
	}

	rows, skipped := p.cleaner.Clean(flatten.FlattenAll(payloads))
	res.Skipped = append(res.Skipped, skipped...)
	res.Batch = p.tables.All(rows)

	p.log.Info("batch prepared",
		zap.String("run_id", runID),
		zap.Int("regions", len(res.Batch.Regions)),
		zap.Int("companies", len(res.Batch.Companies)),
		zap.Int("vacancies", len(res.Batch.Vacancies)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}
