// Package model defines the relational rows shared by the pipeline stages.
package model

import "time"

// Region mirrors a row of the region table.
type Region struct {
	Code string `json:"region_code"`
	Name string `json:"region_name"`
	City string `json:"city"`
}

// Company mirrors a row of the company table. RegionCode references Region.
type Company struct {
	Code       string `json:"company_code"`
	RegionCode string `json:"region_code"`
	Source     string `json:"source"`
	Email      string `json:"company_email"`
	IsHRAgency bool   `json:"company_hr_agency"`
	INN        string `json:"company_inn"`
	KPP        string `json:"company_kpp"`
	Name       string `json:"company_name"`
	OGRN       string `json:"company_ogrn"`
	URL        string `json:"company_url"`
}

// Vacancy mirrors a row of the vacancy table. CompanyCode references Company.
// DataHash is the fingerprint of the fields that define a material change;
// LastUpdated is assigned by the store, never by the preparers.
type Vacancy struct {
	ID          string    `json:"id"`
	CompanyCode string    `json:"company_code"`
	SalaryMin   int       `json:"salary_min"`
	SalaryMax   int       `json:"salary_max"`
	JobName     string    `json:"job_name"`
	URL         string    `json:"vac_url"`
	Employment  string    `json:"employment"`
	Schedule    string    `json:"schedule"`
	Category    string    `json:"category_specialisation"`
	Education   string    `json:"requirement_education"`
	Experience  string    `json:"requirement_experience"`
	DataHash    string    `json:"data_hash"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Batch is the output of one prepare run: three row-sets deduplicated by
// primary key, ready to be written in Region → Company → Vacancy order.
type Batch struct {
	Regions   []Region  `json:"regions"`
	Companies []Company `json:"companies"`
	Vacancies []Vacancy `json:"vacancies"`
}

// Empty reports whether the batch carries no rows at all.
func (b Batch) Empty() bool {
	return len(b.Regions) == 0 && len(b.Companies) == 0 && len(b.Vacancies) == 0
}

// VacancyView is the downstream read shape: a vacancy joined with its
// company and region. SalaryAvg is computed on read.
type VacancyView struct {
	Vacancy
	CompanyName string  `json:"company_name"`
	RegionCode  string  `json:"region_code"`
	RegionName  string  `json:"region_name"`
	City        string  `json:"city"`
	SalaryAvg   float64 `json:"salary_avg"`
}

// Normalized returns the view as the dashboard shows it: a zero salary_max
// takes the value of salary_min and SalaryAvg is the mean of the two.
// Stored rows keep salary_max as received.
func (v VacancyView) Normalized() VacancyView {
	if v.SalaryMax == 0 {
		v.SalaryMax = v.SalaryMin
	}
	v.SalaryAvg = float64(v.SalaryMin+v.SalaryMax) / 2
	return v
}
