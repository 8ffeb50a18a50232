// Package hasher computes the vacancy change fingerprint stored in data_hash.
package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Fields are the designated vacancy fields whose change triggers an update.
// The order of Values is the order they are concatenated in.
type Fields struct {
	CompanyCode string
	SalaryMin   string
	SalaryMax   string
	JobName     string
	Employment  string
	Schedule    string
	Category    string
	Education   string
	Experience  string
}

// Values returns the fields in fingerprint order.
func (f Fields) Values() []string {
	return []string{
		f.CompanyCode,
		f.SalaryMin,
		f.SalaryMax,
		f.JobName,
		f.Employment,
		f.Schedule,
		f.Category,
		f.Education,
		f.Experience,
	}
}

// Fingerprint returns the 32-character hex MD5 of the concatenated fields.
func Fingerprint(f Fields) string {
	sum := md5.Sum([]byte(strings.Join(f.Values(), "")))
	return hex.EncodeToString(sum[:])
}
