package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ned0ra/diplom/internal/schema"
)

func TestV1_IsValid(t *testing.T) {
	m := schema.V1()
	require.NoError(t, m.Validate())
	assert.Equal(t, schema.V1Version, m.Version)
	assert.Equal(t, "Нет данных", m.Sentinel)
}

func TestV1_DropList(t *testing.T) {
	m := schema.V1()
	for _, col := range []string{"duty", "skills_0", "skills_31", "contact_list_1_contact_type", "contact_list_3_contact_value", "medicalCertificate"} {
		assert.True(t, m.IsDropped(col), col)
	}
	for _, col := range []string{"skills_32", "contact_list_0_contact_type", "id", "job-name"} {
		assert.False(t, m.IsDropped(col), col)
	}
	// 4 singles + 32 skills + 6 contacts + 9 trailing columns
	assert.Len(t, m.Drop, 51)
}

func TestV1_Required(t *testing.T) {
	m := schema.V1()
	req := m.Required()

	assert.Contains(t, req, "company_hr-agency")
	assert.Contains(t, req, "job-name")
	assert.NotContains(t, req, "city")

	seen := map[string]bool{}
	for _, c := range req {
		assert.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
	}
}

func TestLookup(t *testing.T) {
	m, err := schema.Lookup("trudvsem/v1")
	require.NoError(t, err)
	assert.True(t, m.IsZeroFill("code_profession"))

	_, err = schema.Lookup("trudvsem/v0")
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	t.Run("projected column dropped", func(t *testing.T) {
		m := schema.V1()
		m.Drop = append(m.Drop, "salary_min")
		assert.Error(t, m.Validate())
	})

	t.Run("no sentinel", func(t *testing.T) {
		m := schema.V1()
		m.Sentinel = ""
		assert.Error(t, m.Validate())
	})

	t.Run("no location column", func(t *testing.T) {
		m := schema.V1()
		m.LocationColumn = ""
		assert.Error(t, m.Validate())
	})

	t.Run("width below sentinel", func(t *testing.T) {
		m := schema.V1()
		m.Widths["company_inn"] = 5
		assert.ErrorContains(t, m.Validate(), "company_inn")
	})
}

func TestV1_Widths(t *testing.T) {
	m := schema.V1()
	assert.Equal(t, 255, m.Width(m.Company.Name))
	assert.Equal(t, 255, m.Width(m.Vacancy.JobName))
	assert.Equal(t, 36, m.Width(m.Vacancy.ID))
	assert.Equal(t, 0, m.Width(m.Company.HRAgency))
	assert.Equal(t, 0, m.Width(m.Vacancy.SalaryMin))

	for _, col := range m.KeyColumns() {
		assert.Positive(t, m.Width(col), col)
	}
}
