// Package schema holds the versioned column mapping between flattened
// trudvsem payloads and the relational tables.
package schema

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// V1Version names the mapping for the trudvsem v1 vacancy payload.
const V1Version = "trudvsem/v1"

// Sentinel is written into every column a row does not carry.
const Sentinel = "Нет данных"

// Mapping describes how a flat row is pruned, filled and projected.
type Mapping struct {
	Version string

	// Drop lists columns removed from every row when present.
	Drop []string
	// ZeroFill lists columns whose missing values become "0" instead of
	// the sentinel.
	ZeroFill []string
	Sentinel string

	// LocationColumn holds "<country>, <city>, <address>"; it is split into
	// CityColumn and AddressColumn.
	LocationColumn string
	CityColumn     string
	AddressColumn  string
	CityPrefix     string

	// TitleColumn is the job title column affected by title normalization.
	TitleColumn string

	Region  RegionColumns
	Company CompanyColumns
	Vacancy VacancyColumns

	// Widths caps projected text columns, in characters, at the size of
	// their table column. Columns not listed are unbounded.
	Widths map[string]int
}

// RegionColumns names the flat columns projected into the region table.
type RegionColumns struct {
	Code string
	Name string
	City string
}

// CompanyColumns names the flat columns projected into the company table.
type CompanyColumns struct {
	Code       string
	RegionCode string
	Source     string
	Email      string
	HRAgency   string
	INN        string
	KPP        string
	Name       string
	OGRN       string
	URL        string
}

// VacancyColumns names the flat columns projected into the vacancy table.
type VacancyColumns struct {
	ID          string
	CompanyCode string
	SalaryMin   string
	SalaryMax   string
	JobName     string
	URL         string
	Employment  string
	Schedule    string
	Category    string
	Education   string
	Experience  string
}

// V1 returns the mapping for the current trudvsem payload layout.
func V1() Mapping {
	drop := []string{"duty", "company_site", "term_text", "typicalPosition"}
	for i := 0; i < 32; i++ {
		drop = append(drop, "skills_"+strconv.Itoa(i))
	}
	for i := 1; i <= 3; i++ {
		drop = append(drop, fmt.Sprintf("contact_list_%d_contact_type", i))
	}
	for i := 1; i <= 3; i++ {
		drop = append(drop, fmt.Sprintf("contact_list_%d_contact_value", i))
	}
	drop = append(drop,
		"medicalDocuments", "shift_0", "shift_1",
		"requirement_qualification", "hireDate", "benefit",
		"scheduleTypeComment", "addressOffice", "medicalCertificate",
	)

	return Mapping{
		Version:        V1Version,
		Drop:           drop,
		ZeroFill:       []string{"code_profession"},
		Sentinel:       Sentinel,
		LocationColumn: "addresses_address_0_location",
		CityColumn:     "city",
		AddressColumn:  "address",
		CityPrefix:     "г",
		TitleColumn:    "job-name",
		Region: RegionColumns{
			Code: "region_region_code",
			Name: "region_name",
			City: "city",
		},
		Company: CompanyColumns{
			Code:       "company_companycode",
			RegionCode: "region_region_code",
			Source:     "source",
			Email:      "company_email",
			HRAgency:   "company_hr-agency",
			INN:        "company_inn",
			KPP:        "company_kpp",
			Name:       "company_name",
			OGRN:       "company_ogrn",
			URL:        "company_url",
		},
		Vacancy: VacancyColumns{
			ID:          "id",
			CompanyCode: "company_companycode",
			SalaryMin:   "salary_min",
			SalaryMax:   "salary_max",
			JobName:     "job-name",
			URL:         "vac_url",
			Employment:  "employment",
			Schedule:    "schedule",
			Category:    "category_specialisation",
			Education:   "requirement_education",
			Experience:  "requirement_experience",
		},
		Widths: map[string]int{
			"region_region_code":      20,
			"region_name":             100,
			"city":                    100,
			"company_companycode":     50,
			"source":                  50,
			"company_email":           100,
			"company_inn":             20,
			"company_kpp":             20,
			"company_name":            255,
			"company_ogrn":            20,
			"company_url":             255,
			"id":                      36,
			"job-name":                255,
			"vac_url":                 255,
			"employment":              50,
			"schedule":                50,
			"category_specialisation": 100,
			"requirement_education":   100,
			"requirement_experience":  100,
		},
	}
}

var registry = map[string]func() Mapping{
	V1Version: V1,
}

// Lookup returns the mapping registered under version.
func Lookup(version string) (Mapping, error) {
	fn, ok := registry[version]
	if !ok {
		return Mapping{}, fmt.Errorf("unknown schema mapping %q", version)
	}
	return fn(), nil
}

// Required returns every column the preparers read, deduplicated, in
// region, company, vacancy order. The derived city column is excluded.
func (m Mapping) Required() []string {
	cols := []string{
		m.Region.Code, m.Region.Name, m.Region.City,
		m.Company.Code, m.Company.RegionCode, m.Company.Source, m.Company.Email,
		m.Company.HRAgency, m.Company.INN, m.Company.KPP, m.Company.Name,
		m.Company.OGRN, m.Company.URL,
		m.Vacancy.ID, m.Vacancy.CompanyCode, m.Vacancy.SalaryMin, m.Vacancy.SalaryMax,
		m.Vacancy.JobName, m.Vacancy.URL, m.Vacancy.Employment, m.Vacancy.Schedule,
		m.Vacancy.Category, m.Vacancy.Education, m.Vacancy.Experience,
	}

	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == m.CityColumn || c == m.AddressColumn || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Width returns the character limit of col, or 0 when it has none.
func (m Mapping) Width(col string) int {
	return m.Widths[col]
}

// KeyColumns returns the columns that identify a row in each table. They
// are never truncated.
func (m Mapping) KeyColumns() []string {
	return []string{m.Region.Code, m.Company.Code, m.Vacancy.ID}
}

// IsDropped reports whether col is on the drop list.
func (m Mapping) IsDropped(col string) bool {
	for _, d := range m.Drop {
		if d == col {
			return true
		}
	}
	return false
}

// IsZeroFill reports whether col is filled with "0" when missing.
func (m Mapping) IsZeroFill(col string) bool {
	for _, z := range m.ZeroFill {
		if z == col {
			return true
		}
	}
	return false
}

// Validate checks that the mapping is internally consistent: a projected
// column may not also be dropped.
func (m Mapping) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("mapping has no version")
	}
	if m.Sentinel == "" {
		return fmt.Errorf("mapping %s: empty sentinel", m.Version)
	}
	if m.LocationColumn == "" || m.CityColumn == "" || m.AddressColumn == "" {
		return fmt.Errorf("mapping %s: location columns not set", m.Version)
	}
	for col, w := range m.Widths {
		if w < utf8.RuneCountInString(m.Sentinel) {
			return fmt.Errorf("mapping %s: width %d of %q is below the sentinel length", m.Version, w, col)
		}
	}
	for _, c := range append(m.Required(), m.LocationColumn) {
		if c == "" {
			return fmt.Errorf("mapping %s: empty projected column", m.Version)
		}
		if m.IsDropped(c) {
			return fmt.Errorf("mapping %s: column %q is both dropped and projected", m.Version, c)
		}
	}
	return nil
}
