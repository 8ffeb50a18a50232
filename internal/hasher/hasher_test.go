package hasher_test

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ned0ra/diplom/internal/hasher"
)

var sample = hasher.Fields{
	CompanyCode: "c1",
	SalaryMin:   "1000",
	SalaryMax:   "0",
	JobName:     "Engineer",
	Employment:  "full",
	Schedule:    "5/2",
	Category:    "IT",
	Education:   "BSc",
	Experience:  "1",
}

func TestFingerprint_KnownValue(t *testing.T) {
	sum := md5.Sum([]byte("c110000Engineerfull5/2ITBSc1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), hasher.Fingerprint(sample))
	assert.Len(t, hasher.Fingerprint(sample), 32)
}

func TestFingerprint_Pure(t *testing.T) {
	want := hasher.Fingerprint(sample)

	var wg sync.WaitGroup
	got := make([]string, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = hasher.Fingerprint(sample)
		}(i)
	}
	wg.Wait()
	for _, g := range got {
		assert.Equal(t, want, g)
	}
}

func TestFingerprint_SensitiveToEachField(t *testing.T) {
	base := hasher.Fingerprint(sample)
	mutations := []func(f *hasher.Fields){
		func(f *hasher.Fields) { f.CompanyCode = "c2" },
		func(f *hasher.Fields) { f.SalaryMin = "1001" },
		func(f *hasher.Fields) { f.SalaryMax = "5" },
		func(f *hasher.Fields) { f.JobName = "Driver" },
		func(f *hasher.Fields) { f.Employment = "part" },
		func(f *hasher.Fields) { f.Schedule = "2/2" },
		func(f *hasher.Fields) { f.Category = "Ops" },
		func(f *hasher.Fields) { f.Education = "MSc" },
		func(f *hasher.Fields) { f.Experience = "3" },
	}
	for i, mutate := range mutations {
		f := sample
		mutate(&f)
		assert.NotEqual(t, base, hasher.Fingerprint(f), "mutation %d", i)
	}
}

func TestFingerprint_EmptyFields(t *testing.T) {
	sum := md5.Sum(nil)
	assert.Equal(t, hex.EncodeToString(sum[:]), hasher.Fingerprint(hasher.Fields{}))
}
