// Package cleaner prunes, fills and splits flattened vacancy rows according
// to a schema.Mapping.
package cleaner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/flatten"
	"github.com/ned0ra/diplom/internal/schema"
)

// TitleMode selects how the job title column is normalized.
type TitleMode string

const (
	// TitleVerbatim keeps the title as received.
	TitleVerbatim TitleMode = "verbatim"
	// TitleFirstWord lower-cases the title and keeps its first word.
	TitleFirstWord TitleMode = "first_word"
)

// ParseTitleMode converts a config value to a TitleMode. Empty means verbatim.
func ParseTitleMode(s string) (TitleMode, error) {
	switch TitleMode(s) {
	case "", TitleVerbatim:
		return TitleVerbatim, nil
	case TitleFirstWord:
		return TitleFirstWord, nil
	}
	return "", fmt.Errorf("unknown title mode %q", s)
}

// CleanedRow is a flat row after pruning, filling and the location split.
// Every column the preparers read is present and non-null.
type CleanedRow struct {
	flatten.FlatRow
}

// Skipped describes an input row the cleaner refused.
type Skipped struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Cleaner applies one schema mapping to batches of rows.
type Cleaner struct {
	mapping schema.Mapping
	title   TitleMode
	log     *zap.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithTitleMode sets title normalization.
func WithTitleMode(m TitleMode) Option {
	return func(c *Cleaner) { c.title = m }
}

// WithLogger sets the logger used to report skipped rows.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cleaner) { c.log = l }
}

// New returns a Cleaner for mapping.
func New(mapping schema.Mapping, opts ...Option) *Cleaner {
	c := &Cleaner{
		mapping: mapping,
		title:   TitleVerbatim,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Clean processes a batch. The fill step covers the union of the batch's
// columns plus every projected column, so all output rows share a key set.
// Rows without a usable location, or with a key column wider than the
// mapping allows, are left out and returned as Skipped.
func (c *Cleaner) Clean(rows []flatten.FlatRow) ([]CleanedRow, []Skipped) {
	columns := c.columns(rows)

	out := make([]CleanedRow, 0, len(rows))
	var skipped []Skipped
	for i, in := range rows {
		row, err := c.cleanRow(in, columns)
		if err != nil {
			s := Skipped{Index: i, ID: in.Text(c.mapping.Vacancy.ID), Reason: err.Error()}
			c.log.Warn("row skipped",
				zap.Int("index", s.Index),
				zap.String("id", s.ID),
				zap.String("reason", s.Reason),
			)
			skipped = append(skipped, s)
			continue
		}
		out = append(out, row)
	}
	return out, skipped
}

// columns returns the ordered union of every non-dropped key in the batch
// followed by the projected columns not seen in any row.
func (c *Cleaner) columns(rows []flatten.FlatRow) []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(k string) {
		if seen[k] || c.mapping.IsDropped(k) {
			return
		}
		seen[k] = true
		cols = append(cols, k)
	}
	for _, r := range rows {
		for _, k := range r.Keys() {
			add(k)
		}
	}
	for _, k := range c.mapping.Required() {
		add(k)
	}
	add(c.mapping.LocationColumn)
	return cols
}

func (c *Cleaner) cleanRow(in flatten.FlatRow, columns []string) (CleanedRow, error) {
	m := c.mapping

	loc := in.Text(m.LocationColumn)
	if !in.Has(m.LocationColumn) || strings.TrimSpace(loc) == "" {
		return CleanedRow{}, fmt.Errorf("missing %s", m.LocationColumn)
	}
	city, address, ok := splitLocation(loc)
	if !ok {
		return CleanedRow{}, fmt.Errorf("%s %q has no city segment", m.LocationColumn, loc)
	}

	row := in.Clone()
	for _, d := range m.Drop {
		row.Delete(d)
	}

	for _, col := range columns {
		if row.Has(col) {
			continue
		}
		if m.IsZeroFill(col) {
			row.Set(col, flatten.Number("0"))
		} else {
			row.Set(col, flatten.String(m.Sentinel))
		}
	}

	city = strings.TrimPrefix(city, m.CityPrefix)
	city = strings.TrimLeft(city, ". ")
	if city == "" {
		city = m.Sentinel
	}
	if address == "" {
		address = m.Sentinel
	}
	row.Set(m.CityColumn, flatten.String(city))
	row.Set(m.AddressColumn, flatten.String(address))

	if c.title == TitleFirstWord {
		if t := row.Text(m.TitleColumn); t != m.Sentinel {
			row.Set(m.TitleColumn, flatten.String(firstWord(t)))
		}
	}

	for _, col := range m.KeyColumns() {
		if w := m.Width(col); w > 0 && utf8.RuneCountInString(row.Text(col)) > w {
			return CleanedRow{}, fmt.Errorf("%s longer than %d characters", col, w)
		}
	}

	return CleanedRow{FlatRow: row}, nil
}

// splitLocation splits "<country>, <city>, <address>" on the first two
// commas, discards the country and trims the rest.
func splitLocation(loc string) (city, address string, ok bool) {
	parts := strings.SplitN(loc, ",", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	city = strings.TrimSpace(parts[1])
	if len(parts) == 3 {
		address = strings.TrimSpace(parts[2])
	}
	return city, address, true
}

func firstWord(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	if len(fields) == 0 {
		return title
	}
	return fields[0]
}
