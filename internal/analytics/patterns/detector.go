package patterns

import (
	"fmt"
	"math"

	montanastats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/errors"
	"edupulse/ports"
)

// Default detection thresholds. The metric set below is configuration
// inherited from the dashboard defaults, not a derived property.
const (
	trendSlopeThreshold  = 0.1
	correlationThreshold = 0.5
	minSamples           = 2
)

// anomalyMetrics and trendMetrics are the three fixed metrics scanned for
// anomalies and trends; correlationPairs are the two fixed metric pairs.
var (
	anomalyMetrics   = []string{"average_grade", "attendance", "behavior"}
	trendMetrics     = []string{"average_grade", "attendance", "behavior"}
	correlationPairs = [][2]string{
		{"average_grade", "attendance"},
		{"behavior", "average_grade"},
	}
)

// Detector runs the stateless statistical pattern scans over a batch.
// Safe for concurrent use.
type Detector struct {
	idgen ports.IDGenerator
}

// NewDetector creates a pattern detector with the injected id generator.
func NewDetector(idgen ports.IDGenerator) *Detector {
	return &Detector{idgen: idgen}
}

// AnalyzeAll scans the default metric set: anomaly and trend detection over
// grades, attendance and behavior, plus the grade-attendance and
// behavior-grade correlations.
func (d *Detector) AnalyzeAll(records []student.Record, cfg analytics.PatternConfig) ([]analytics.EducationalPattern, error) {
	if len(records) < minSamples {
		return nil, errors.InsufficientData(
			fmt.Sprintf("pattern detection needs at least %d students, got %d", minSamples, len(records)))
	}

	ids := make([]core.StudentID, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	var patterns []analytics.EducationalPattern

	for _, metric := range anomalyMetrics {
		values := metricValues(records, metric)
		if p := d.DetectAnomalies(metric, values, ids, cfg.AnomalyThreshold); p != nil {
			patterns = append(patterns, *p)
		}
	}

	for _, metric := range trendMetrics {
		values := metricValues(records, metric)
		if p := d.DetectTrend(metric, values, ids); p != nil {
			patterns = append(patterns, *p)
		}
	}

	for _, pair := range correlationPairs {
		x := metricValues(records, pair[0])
		y := metricValues(records, pair[1])
		if p := d.DetectCorrelation(pair[0], pair[1], x, y, ids); p != nil {
			patterns = append(patterns, *p)
		}
	}

	return patterns, nil
}

// DetectAnomalies flags every student whose metric deviates from the batch
// mean by more than threshold population standard deviations. Returns nil
// when nothing is flagged or the metric has no variance.
func (d *Detector) DetectAnomalies(metric string, values []float64, ids []core.StudentID, threshold float64) *analytics.EducationalPattern {
	if len(values) < minSamples {
		return nil
	}
	mean, err := montanastats.Mean(values)
	if err != nil {
		return nil
	}
	stddev, err := montanastats.StandardDeviationPopulation(values)
	if err != nil || stddev == 0 {
		return nil
	}

	var affected []core.StudentID
	var metrics []analytics.PatternMetric
	maxConfidence := 0.0
	for i, v := range values {
		z := math.Abs(v-mean) / stddev
		if z > threshold {
			affected = append(affected, ids[i])
			metrics = append(metrics, analytics.PatternMetric{
				Name:      metric,
				Value:     v,
				Threshold: threshold * stddev,
			})
			confidence := analytics.Clamp01(z / threshold)
			if confidence > maxConfidence {
				maxConfidence = confidence
			}
		}
	}
	if len(affected) == 0 {
		return nil
	}

	return &analytics.EducationalPattern{
		ID:   d.idgen.NewPatternID(),
		Kind: analytics.PatternAnomaly,
		Description: fmt.Sprintf("%d student(s) deviate from the %s mean of %.2f by more than %.1f standard deviations",
			len(affected), metric, mean, threshold),
		Confidence: maxConfidence,
		Affected:   affected,
		Metrics:    metrics,
	}
}

// DetectTrend fits an ordinary least-squares line of the metric against
// batch index order. The index axis is the order records arrived in, not a
// time axis; no timestamp ordering is applied. Returns nil below the slope
// threshold.
func (d *Detector) DetectTrend(metric string, values []float64, ids []core.StudentID) *analytics.EducationalPattern {
	if len(values) < minSamples {
		return nil
	}

	idx := make([]float64, len(values))
	for i := range idx {
		idx[i] = float64(i)
	}
	_, slope := stat.LinearRegression(idx, values, nil, false)
	if math.IsNaN(slope) || math.Abs(slope) <= trendSlopeThreshold {
		return nil
	}

	direction := "increasing"
	if slope < 0 {
		direction = "decreasing"
	}
	return &analytics.EducationalPattern{
		ID:   d.idgen.NewPatternID(),
		Kind: analytics.PatternTrend,
		Description: fmt.Sprintf("%s shows a %s trend across the batch (slope %.3f per student)",
			metric, direction, slope),
		Confidence: analytics.Clamp01(math.Abs(slope)),
		Affected:   append([]core.StudentID(nil), ids...),
		Metrics: []analytics.PatternMetric{
			{Name: metric, Value: slope, Threshold: trendSlopeThreshold},
		},
	}
}

// DetectCorrelation computes the Pearson coefficient between two metrics.
// Correlation is symmetric in its arguments. Returns nil below the
// magnitude threshold.
func (d *Detector) DetectCorrelation(metricX, metricY string, x, y []float64, ids []core.StudentID) *analytics.EducationalPattern {
	if len(x) < minSamples || len(x) != len(y) {
		return nil
	}
	r, err := montanastats.Pearson(x, y)
	if err != nil || math.IsNaN(r) || math.Abs(r) <= correlationThreshold {
		return nil
	}

	direction := "positive"
	if r < 0 {
		direction = "negative"
	}
	return &analytics.EducationalPattern{
		ID:   d.idgen.NewPatternID(),
		Kind: analytics.PatternCorrelation,
		Description: fmt.Sprintf("%s correlation between %s and %s (r=%.3f)",
			direction, metricX, metricY, r),
		Confidence: analytics.Clamp01(math.Abs(r)),
		Affected:   append([]core.StudentID(nil), ids...),
		Metrics: []analytics.PatternMetric{
			{Name: metricX + "~" + metricY, Value: r, Threshold: correlationThreshold},
		},
	}
}

// metricValues extracts one named metric across the batch. The session
// filters out records with empty grade lists before detection; any that
// slip through contribute 0 for average_grade.
func metricValues(records []student.Record, metric string) []float64 {
	values := make([]float64, len(records))
	for i, rec := range records {
		switch metric {
		case "average_grade":
			avg, err := rec.AverageGrade()
			if err == nil {
				values[i] = avg
			}
		case "attendance":
			values[i] = rec.Attendance
		case "behavior":
			values[i] = rec.Behavior
		}
	}
	return values
}
