package recommend

import (
	"fmt"
	"sort"
	"sync"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/analytics/features"
	"edupulse/internal/errors"
)

const (
	// similarityThreshold is the minimum cosine similarity for a historical
	// student to count as a similar case.
	similarityThreshold = 0.5
	// maxSimilarCases caps the neighborhood size.
	maxSimilarCases = 5
	// effectiveOutcome is the encoded-outcome cutoff above which an
	// intervention slot counts as effective.
	effectiveOutcome = 0.7
	// maxRecommendations caps the ranked output.
	maxRecommendations = 3
	// feedbackAlpha is the smoothing factor of the per-type success-rate EMA.
	feedbackAlpha = 0.3
	// neutralFeedbackRate is the prior success rate before any feedback.
	neutralFeedbackRate = 0.5
)

// Engine ranks intervention types for a student by profile similarity to
// historical students and their observed outcomes. Feedback folds into the
// ranking as a deterministic exponential moving average per type.
type Engine struct {
	extractor *features.Extractor

	mu       sync.RWMutex
	feedback map[student.InterventionType]float64
}

// NewEngine creates a recommendation engine.
func NewEngine(extractor *features.Extractor) *Engine {
	return &Engine{
		extractor: extractor,
		feedback:  make(map[student.InterventionType]float64),
	}
}

// CosineSimilarity computes dot(a,b)/(|a|*|b|). Either vector having zero
// norm leaves the similarity undefined.
func CosineSimilarity(a, b analytics.FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.FeatureDimension(len(b), len(a))
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0, errors.WithCode(errors.CodeSimilarityUndef, core.ErrSimilarityUndefined)
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb), nil
}

type neighbor struct {
	index      int
	similarity float64
	vec        analytics.FeatureVector
}

// Recommend finds the most similar historical students and ranks
// intervention types by their similarity-weighted observed effectiveness.
// Returns an empty slice when no historical student clears the similarity
// threshold.
func (e *Engine) Recommend(target student.Record, historical []student.Record) ([]analytics.InterventionRecommendation, error) {
	targetVec, err := e.extractor.Extract(target)
	if err != nil {
		return nil, err
	}

	var neighbors []neighbor
	for i, rec := range historical {
		if rec.ID == target.ID {
			continue
		}
		vec, err := e.extractor.Extract(rec)
		if err != nil {
			// Malformed historical records are reported by the session;
			// they simply contribute no similar case here.
			continue
		}
		sim, err := CosineSimilarity(targetVec, vec)
		if err != nil {
			return nil, err
		}
		if sim > similarityThreshold {
			neighbors = append(neighbors, neighbor{index: i, similarity: sim, vec: vec})
		}
	}

	// Highest similarity first; equal similarities keep input order so
	// repeated runs rank identically.
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].similarity > neighbors[j].similarity })
	if len(neighbors) > maxSimilarCases {
		neighbors = neighbors[:maxSimilarCases]
	}
	if len(neighbors) == 0 {
		return []analytics.InterventionRecommendation{}, nil
	}

	return e.rank(target.ID, historical, neighbors), nil
}

// rank aggregates effective intervention slots across the neighborhood and
// emits the top types.
func (e *Engine) rank(targetID core.StudentID, historical []student.Record, neighbors []neighbor) []analytics.InterventionRecommendation {
	types := student.KnownInterventionTypes()
	scores := make(map[student.InterventionType]float64)
	counts := make(map[student.InterventionType]int)

	for _, nb := range neighbors {
		for slot, t := range types {
			outcome := nb.vec[6+slot]
			if outcome > effectiveOutcome {
				scores[t] += nb.similarity * outcome
				counts[t]++
			}
		}
	}

	type ranked struct {
		t     student.InterventionType
		score float64
	}
	var order []ranked
	// Vocabulary order makes equal scores rank deterministically.
	for _, t := range types {
		if counts[t] == 0 {
			continue
		}
		avg := scores[t] / float64(counts[t])
		// Feedback multiplier is 1.0 at the neutral rate.
		adjusted := avg * (0.5 + e.feedbackRate(t))
		order = append(order, ranked{t: t, score: adjusted})
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].score > order[j].score })
	if len(order) > maxRecommendations {
		order = order[:maxRecommendations]
	}

	recs := make([]analytics.InterventionRecommendation, 0, len(order))
	for _, r := range order {
		cases := make([]analytics.SimilarCase, 0, len(neighbors))
		for _, nb := range neighbors {
			cases = append(cases, analytics.SimilarCase{
				StudentID:  historical[nb.index].ID,
				Similarity: nb.similarity,
				Outcome:    nb.vec[6+r.t.SlotIndex()],
			})
		}
		successRate := float64(counts[r.t]) / float64(len(neighbors))
		recs = append(recs, analytics.InterventionRecommendation{
			StudentID:    targetID,
			Intervention: r.t,
			Priority:     analytics.PriorityForScore(r.score),
			Confidence:   analytics.Clamp01(r.score),
			Explanation: fmt.Sprintf("%s was effective for %.0f%% of %d similar student(s)",
				r.t, successRate*100, len(neighbors)),
			SimilarCases: cases,
		})
	}
	return recs
}

// RecordFeedback folds one observed outcome for an intervention type into
// the per-type success-rate EMA.
func (e *Engine) RecordFeedback(t student.InterventionType, success bool) {
	if t.SlotIndex() < 0 {
		return
	}
	x := 0.0
	if success {
		x = 1.0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rate, ok := e.feedback[t]
	if !ok {
		rate = neutralFeedbackRate
	}
	e.feedback[t] = feedbackAlpha*x + (1-feedbackAlpha)*rate
}

// feedbackRate returns the current EMA for a type, or the neutral prior.
func (e *Engine) feedbackRate(t student.InterventionType) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if rate, ok := e.feedback[t]; ok {
		return rate
	}
	return neutralFeedbackRate
}

// FeedbackRate exposes the current smoothed success rate for a type.
func (e *Engine) FeedbackRate(t student.InterventionType) float64 {
	return e.feedbackRate(t)
}
