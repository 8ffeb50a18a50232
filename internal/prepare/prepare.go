// Package prepare projects cleaned rows into the region, company and vacancy
// row-sets, deduplicated by primary key.
//
// Deduplication does not depend on input order: rows are first put in a
// canonical order (vacancy id, then a digest of the whole row) and the first
// row per key wins. Each row-set is returned sorted by primary key.
package prepare

import (
	"crypto/md5"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ned0ra/diplom/internal/cleaner"
	"github.com/ned0ra/diplom/internal/hasher"
	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/schema"
)

// Preparer projects rows with one schema mapping.
type Preparer struct {
	m schema.Mapping
}

// New returns a Preparer for mapping.
func New(mapping schema.Mapping) *Preparer {
	return &Preparer{m: mapping}
}

// All runs the three projections over the same canonical row order.
func (p *Preparer) All(rows []cleaner.CleanedRow) model.Batch {
	ordered := p.canonical(rows)
	return model.Batch{
		Regions:   p.regions(ordered),
		Companies: p.companies(ordered),
		Vacancies: p.vacancies(ordered),
	}
}

// Regions returns one region per region code.
func (p *Preparer) Regions(rows []cleaner.CleanedRow) []model.Region {
	return p.regions(p.canonical(rows))
}

// Companies returns one company per company code.
func (p *Preparer) Companies(rows []cleaner.CleanedRow) []model.Company {
	return p.companies(p.canonical(rows))
}

// Vacancies returns one vacancy per id, each carrying its fingerprint.
func (p *Preparer) Vacancies(rows []cleaner.CleanedRow) []model.Vacancy {
	return p.vacancies(p.canonical(rows))
}

func (p *Preparer) regions(rows []cleaner.CleanedRow) []model.Region {
	c := p.m.Region
	seen := make(map[string]bool)
	var out []model.Region
	for _, r := range rows {
		code := r.Text(c.Code)
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, model.Region{
			Code: code,
			Name: p.text(r, c.Name),
			City: p.text(r, c.City),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (p *Preparer) companies(rows []cleaner.CleanedRow) []model.Company {
	c := p.m.Company
	seen := make(map[string]bool)
	var out []model.Company
	for _, r := range rows {
		code := r.Text(c.Code)
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, model.Company{
			Code:       code,
			RegionCode: p.text(r, c.RegionCode),
			Source:     p.text(r, c.Source),
			Email:      p.text(r, c.Email),
			IsHRAgency: toBool(r.Text(c.HRAgency)),
			INN:        p.text(r, c.INN),
			KPP:        p.text(r, c.KPP),
			Name:       p.text(r, c.Name),
			OGRN:       p.text(r, c.OGRN),
			URL:        p.text(r, c.URL),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (p *Preparer) vacancies(rows []cleaner.CleanedRow) []model.Vacancy {
	c := p.m.Vacancy
	seen := make(map[string]bool)
	var out []model.Vacancy
	for _, r := range rows {
		id := r.Text(c.ID)
		if seen[id] {
			continue
		}
		seen[id] = true
		v := model.Vacancy{
			ID:          id,
			CompanyCode: p.text(r, c.CompanyCode),
			SalaryMin:   toInt(r.Text(c.SalaryMin)),
			SalaryMax:   toInt(r.Text(c.SalaryMax)),
			JobName:     p.text(r, c.JobName),
			URL:         p.text(r, c.URL),
			Employment:  p.text(r, c.Employment),
			Schedule:    p.text(r, c.Schedule),
			Category:    p.text(r, c.Category),
			Education:   p.text(r, c.Education),
			Experience:  p.text(r, c.Experience),
		}
		v.DataHash = Fingerprint(v)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Fingerprint returns the data_hash of v computed from its designated fields.
func Fingerprint(v model.Vacancy) string {
	return hasher.Fingerprint(hasher.Fields{
		CompanyCode: v.CompanyCode,
		SalaryMin:   strconv.Itoa(v.SalaryMin),
		SalaryMax:   strconv.Itoa(v.SalaryMax),
		JobName:     v.JobName,
		Employment:  v.Employment,
		Schedule:    v.Schedule,
		Category:    v.Category,
		Education:   v.Education,
		Experience:  v.Experience,
	})
}

type keyed struct {
	id     string
	digest string
	row    cleaner.CleanedRow
}

func (p *Preparer) canonical(rows []cleaner.CleanedRow) []cleaner.CleanedRow {
	ks := make([]keyed, len(rows))
	for i, r := range rows {
		ks[i] = keyed{id: r.Text(p.m.Vacancy.ID), digest: rowDigest(r), row: r}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].id != ks[j].id {
			return ks[i].id < ks[j].id
		}
		return ks[i].digest < ks[j].digest
	})
	out := make([]cleaner.CleanedRow, len(ks))
	for i, k := range ks {
		out[i] = k.row
	}
	return out
}

// rowDigest hashes every key/value pair of r in sorted key order.
func rowDigest(r cleaner.CleanedRow) string {
	keys := r.Keys()
	sort.Strings(keys)
	h := md5.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(r.Text(k)))
		h.Write([]byte{0})
	}
	return string(h.Sum(nil))
}

// text returns col of r cut to the mapping's width for col.
func (p *Preparer) text(r cleaner.CleanedRow, col string) string {
	s := r.Text(col)
	w := p.m.Width(col)
	if w <= 0 || utf8.RuneCountInString(s) <= w {
		return s
	}
	return string([]rune(s)[:w])
}

// toInt parses a salary. Sentinels and unparseable values become 0; values
// outside the INTEGER column range are clamped to it.
func toInt(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func toBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
