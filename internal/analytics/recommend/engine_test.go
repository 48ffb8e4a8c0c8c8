package recommend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/analytics/features"
)

func vec(components ...float64) analytics.FeatureVector {
	v := make(analytics.FeatureVector, analytics.FeatureCount)
	copy(v, components)
	return v
}

func profileRecord(id string, interventions ...student.InterventionRecord) student.Record {
	return student.Record{
		ID:            core.StudentID(id),
		Grades:        []float64{6.0, 6.5, 7.0},
		Attendance:    85.0,
		Behavior:      7.0,
		Age:           14,
		GradeLevel:    8,
		Socioeconomic: 5.0,
		Interventions: interventions,
	}
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	a := vec(0.5, 0.8, 0.3, 0.7)
	sim, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-12)
}

func TestCosineSimilarity_OrthogonalVectors(t *testing.T) {
	sim, err := CosineSimilarity(vec(1, 0), vec(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-12)
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	_, err := CosineSimilarity(vec(), vec(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSimilarityUndefined))
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity(analytics.FeatureVector{1, 0}, analytics.FeatureVector{1, 0, 0})
	require.Error(t, err)
}

func TestRecommend_RanksByObservedEffectiveness(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	target := profileRecord("student-001")
	historical := []student.Record{
		profileRecord("student-002",
			student.InterventionRecord{Type: student.InterventionTutoring, Outcome: 9.0},
			student.InterventionRecord{Type: student.InterventionMentoring, Outcome: 8.0},
			student.InterventionRecord{Type: student.InterventionCounseling, Outcome: 7.5},
			student.InterventionRecord{Type: student.InterventionStudyGroup, Outcome: 5.0},
		),
	}

	recs, err := e.Recommend(target, historical)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Study group never clears the effectiveness cutoff; the rest rank by
	// similarity-weighted outcome.
	assert.Equal(t, student.InterventionTutoring, recs[0].Intervention)
	assert.Equal(t, student.InterventionMentoring, recs[1].Intervention)
	assert.Equal(t, student.InterventionCounseling, recs[2].Intervention)

	for _, r := range recs {
		assert.Equal(t, target.ID, r.StudentID)
		assert.NotEmpty(t, r.Explanation)
		require.Len(t, r.SimilarCases, 1)
		assert.Equal(t, core.StudentID("student-002"), r.SimilarCases[0].StudentID)
		assert.Greater(t, r.SimilarCases[0].Similarity, 0.5)
	}
	assert.Equal(t, analytics.PriorityHigh, recs[0].Priority)
}

func TestRecommend_NoSimilarCases(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	target := student.Record{ID: "student-001", Grades: []float64{10}}
	historical := []student.Record{
		{ID: "student-002", Grades: []float64{0}, Attendance: 100},
	}

	recs, err := e.Recommend(target, historical)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommend_SkipsTargetItself(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	target := profileRecord("student-001",
		student.InterventionRecord{Type: student.InterventionTutoring, Outcome: 9.0})

	recs, err := e.Recommend(target, []student.Record{target})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommend_SkipsMalformedHistorical(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	target := profileRecord("student-001")
	historical := []student.Record{
		{ID: "student-002"}, // no grades at all
		profileRecord("student-003",
			student.InterventionRecord{Type: student.InterventionTutoring, Outcome: 9.0}),
	}

	recs, err := e.Recommend(target, historical)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	require.Len(t, recs[0].SimilarCases, 1)
	assert.Equal(t, core.StudentID("student-003"), recs[0].SimilarCases[0].StudentID)
}

func TestRecordFeedback_EMAIsDeterministic(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	assert.InDelta(t, 0.5, e.FeedbackRate(student.InterventionTutoring), 1e-12)

	e.RecordFeedback(student.InterventionTutoring, true)
	assert.InDelta(t, 0.65, e.FeedbackRate(student.InterventionTutoring), 1e-12)

	e.RecordFeedback(student.InterventionTutoring, true)
	assert.InDelta(t, 0.755, e.FeedbackRate(student.InterventionTutoring), 1e-12)

	e.RecordFeedback(student.InterventionCounseling, false)
	assert.InDelta(t, 0.35, e.FeedbackRate(student.InterventionCounseling), 1e-12)

	// Unknown types are ignored.
	e.RecordFeedback(student.InterventionType("yoga"), true)
	assert.InDelta(t, 0.5, e.FeedbackRate(student.InterventionType("yoga")), 1e-12)
}

func TestRecordFeedback_ShiftsRanking(t *testing.T) {
	e := NewEngine(features.NewExtractor())
	target := profileRecord("student-001")
	historical := []student.Record{
		profileRecord("student-002",
			student.InterventionRecord{Type: student.InterventionTutoring, Outcome: 9.0},
			student.InterventionRecord{Type: student.InterventionMentoring, Outcome: 8.0},
		),
	}

	recs, err := e.Recommend(target, historical)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, student.InterventionTutoring, recs[0].Intervention)

	// Repeated negative feedback drags tutoring below mentoring.
	e.RecordFeedback(student.InterventionTutoring, false)
	e.RecordFeedback(student.InterventionTutoring, false)

	recs, err = e.Recommend(target, historical)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, student.InterventionMentoring, recs[0].Intervention)
}
