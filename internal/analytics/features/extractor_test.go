package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
)

func sampleRecord() student.Record {
	return student.Record{
		ID:            "student-001",
		Grades:        []float64{8.0, 7.0, 9.0},
		Attendance:    92.0,
		Behavior:      7.5,
		Age:           15,
		GradeLevel:    9,
		Socioeconomic: 6.0,
		Interventions: []student.InterventionRecord{
			{
				Type:    student.InterventionTutoring,
				Date:    core.NewTimestamp(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
				Outcome: 8.0,
			},
		},
	}
}

func TestExtract_NormalizedComponents(t *testing.T) {
	vec, err := NewExtractor().Extract(sampleRecord())
	require.NoError(t, err)
	require.Len(t, vec, analytics.FeatureCount)

	assert.InDelta(t, 0.8, vec[0], 1e-9)  // average grade 8.0 / 10
	assert.InDelta(t, 0.92, vec[1], 1e-9) // attendance 92 / 100
	assert.InDelta(t, 0.75, vec[2], 1e-9) // behavior 7.5 / 10
	assert.InDelta(t, 15.0/18.0, vec[3], 1e-9)
	assert.InDelta(t, 9.0/12.0, vec[4], 1e-9)
	assert.InDelta(t, 0.6, vec[5], 1e-9)

	// Tutoring occupies the first intervention slot.
	assert.InDelta(t, 0.8, vec[6], 1e-9)
	for slot := 7; slot < analytics.FeatureCount; slot++ {
		assert.Zero(t, vec[slot], "slot %d should be empty", slot)
	}
}

func TestExtract_EveryComponentInUnitInterval(t *testing.T) {
	// Out-of-range inputs clamp instead of escaping [0,1].
	rec := sampleRecord()
	rec.Grades = []float64{14.0, 12.0}
	rec.Attendance = 130
	rec.Age = 25
	rec.GradeLevel = 20

	vec, err := NewExtractor().Extract(rec)
	require.NoError(t, err)
	for i, v := range vec {
		assert.GreaterOrEqual(t, v, 0.0, "component %d", i)
		assert.LessOrEqual(t, v, 1.0, "component %d", i)
	}
}

func TestExtract_EmptyGradeSequence(t *testing.T) {
	rec := sampleRecord()
	rec.Grades = nil

	_, err := NewExtractor().Extract(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmptyGradeSequence))
}

func TestExtract_MostRecentOutcomeWins(t *testing.T) {
	rec := sampleRecord()
	rec.Interventions = []student.InterventionRecord{
		{
			Type:    student.InterventionCounseling,
			Date:    core.NewTimestamp(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)),
			Outcome: 3.0,
		},
		{
			Type:    student.InterventionCounseling,
			Date:    core.NewTimestamp(time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)),
			Outcome: 9.0,
		},
	}

	vec, err := NewExtractor().Extract(rec)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, vec[7], 1e-9) // counseling slot holds the later outcome
}

func TestExtractBatch_PreservesOrder(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.ID = "student-002"
	b.Grades = []float64{4.0}

	vecs, err := NewExtractor().ExtractBatch([]student.Record{a, b})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.8, vecs[0][0], 1e-9)
	assert.InDelta(t, 0.4, vecs[1][0], 1e-9)
}
