package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/adapters/rng"
	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/analytics/features"
)

func testBatch(n int) []student.Record {
	records := make([]student.Record, 0, n)
	for i := 0; i < n; i++ {
		// Alternate clearly passing and clearly failing students.
		grade := 8.5
		attendance := 95.0
		if i%2 == 1 {
			grade = 3.5
			attendance = 60.0
		}
		records = append(records, student.Record{
			ID:            core.StudentID(fmt.Sprintf("student-%03d", i+1)),
			Grades:        []float64{grade, grade + 0.5, grade - 0.5},
			Attendance:    attendance,
			Behavior:      6.0,
			Age:           14,
			GradeLevel:    8,
			Socioeconomic: 5.0,
		})
	}
	return records
}

func testConfig() analytics.RiskModelConfig {
	cfg := analytics.DefaultConfig().RiskModel
	cfg.Epochs = 30
	return cfg
}

func newTestPredictor() *Predictor {
	return NewPredictor(features.NewExtractor(), rng.NewSeededSource(99), nil)
}

func TestPredict_BeforeTraining(t *testing.T) {
	p := newTestPredictor()

	_, err := p.Predict(testBatch(1)[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrModelNotTrained))
	assert.Equal(t, StateUntrained, p.State())
}

func TestTrain_ProducesMetricsAndTrainedState(t *testing.T) {
	p := newTestPredictor()

	metrics, err := p.Train(context.Background(), testBatch(20), testConfig())
	require.NoError(t, err)
	assert.Equal(t, StateTrained, p.State())
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, metrics.Accuracy, 1.0)
	assert.Len(t, metrics.ROC, 11)
	assert.Equal(t, 30, metrics.Epochs)
}

func TestTrain_SecondConcurrentCallFailsFast(t *testing.T) {
	p := newTestPredictor()

	// Hold the training state open the way an in-flight run would.
	prev, prevModel, err := p.beginTraining()
	require.NoError(t, err)

	_, err = p.Train(context.Background(), testBatch(10), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTrainingInProgress))

	p.abortTraining(prev, prevModel)
	assert.Equal(t, StateUntrained, p.State())
}

func TestTrain_CancelledRunRestoresPreviousModel(t *testing.T) {
	p := newTestPredictor()

	_, err := p.Train(context.Background(), testBatch(10), testConfig())
	require.NoError(t, err)

	before, err := p.Snapshot()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Train(ctx, testBatch(10), testConfig())
	require.Error(t, err)

	// The failed run discarded its model; the earlier one survives.
	assert.Equal(t, StateTrained, p.State())
	after, err := p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPredict_ScoreConfidenceAndFactors(t *testing.T) {
	p := newTestPredictor()
	batch := testBatch(20)

	_, err := p.Train(context.Background(), batch, testConfig())
	require.NoError(t, err)

	pred, err := p.Predict(batch[1]) // failing student
	require.NoError(t, err)
	assert.Equal(t, batch[1].ID, pred.StudentID)
	assert.GreaterOrEqual(t, pred.RiskScore, 0.0)
	assert.LessOrEqual(t, pred.RiskScore, 1.0)
	assert.InDelta(t, abs(pred.RiskScore-0.5)*2, pred.Confidence, 1e-9)
	require.Len(t, pred.Factors, analytics.FeatureCount)

	weightSum := 0.0
	for _, f := range pred.Factors {
		assert.GreaterOrEqual(t, f.Weight, 0.0)
		weightSum += f.Weight
	}
	assert.InDelta(t, 1.0, weightSum, 1e-9)
}

func TestTrain_FeatureListMismatch(t *testing.T) {
	p := newTestPredictor()
	cfg := testConfig()
	cfg.Features = []string{"average_grade", "attendance"}

	_, err := p.Train(context.Background(), testBatch(10), cfg)
	require.Error(t, err)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	p := newTestPredictor()
	batch := testBatch(20)

	_, err := p.Train(context.Background(), batch, testConfig())
	require.NoError(t, err)
	want, err := p.Predict(batch[0])
	require.NoError(t, err)

	payload, err := p.Snapshot()
	require.NoError(t, err)

	restored := newTestPredictor()
	require.NoError(t, restored.Restore(payload))
	got, err := restored.Predict(batch[0])
	require.NoError(t, err)
	assert.InDelta(t, want.RiskScore, got.RiskScore, 1e-12)
}

func TestRestore_RejectsCorruptedSnapshot(t *testing.T) {
	cases := map[string][]byte{
		"not json":    []byte("not a snapshot"),
		"wrong input": []byte(`{"sizes":[2,2],"hidden":"relu","output":"sigmoid","weights":[[[0.1,0.2],[0.3,0.4]]],"biases":[[0.5,0.6]]}`),
		"truncated biases": []byte(`{"sizes":[12,16,8,1],"hidden":"relu","output":"sigmoid",` +
			`"weights":[` + weightsJSON(16, 12) + `,` + weightsJSON(8, 16) + `,` + weightsJSON(1, 8) + `],` +
			`"biases":[[0.1],[0.1],[0.1]]}`),
		"wrong output": []byte(`{"sizes":[12,3],"hidden":"relu","output":"sigmoid",` +
			`"weights":[` + weightsJSON(3, 12) + `],"biases":[[0.1,0.1,0.1]]}`),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			p := newTestPredictor()
			require.Error(t, p.Restore(payload))
			// A rejected snapshot must leave the predictor unusable, not
			// half-restored.
			assert.Equal(t, StateUntrained, p.State())
			_, err := p.Predict(testBatch(1)[0])
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrModelNotTrained))
		})
	}
}

func weightsJSON(rows, cols int) string {
	var b strings.Builder
	b.WriteString("[")
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("[")
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(",")
			}
			b.WriteString("0.1")
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
