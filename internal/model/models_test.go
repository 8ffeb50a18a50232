package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ned0ra/diplom/internal/model"
)

func TestVacancyView_Normalized(t *testing.T) {
	v := model.VacancyView{Vacancy: model.Vacancy{SalaryMin: 1000, SalaryMax: 0}}
	n := v.Normalized()

	assert.Equal(t, 1000, n.SalaryMax)
	assert.Equal(t, 1000.0, n.SalaryAvg)
	assert.Equal(t, 0, v.SalaryMax, "receiver is not modified")

	n = model.VacancyView{Vacancy: model.Vacancy{SalaryMin: 1000, SalaryMax: 3000}}.Normalized()
	assert.Equal(t, 3000, n.SalaryMax)
	assert.Equal(t, 2000.0, n.SalaryAvg)
}

func TestBatch_Empty(t *testing.T) {
	assert.True(t, model.Batch{}.Empty())
	assert.False(t, model.Batch{Regions: []model.Region{{Code: "r"}}}.Empty())
}
