package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/adapters/rng"
	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/internal/analytics/cluster"
	"edupulse/internal/analytics/features"
	"edupulse/internal/analytics/patterns"
	"edupulse/internal/analytics/recommend"
	"edupulse/internal/analytics/risk"
	"edupulse/internal/analytics/session"
	"edupulse/internal/testkit"
)

func newTestServer(t *testing.T, batchSize int) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	extractor := features.NewExtractor()
	source := rng.NewSeededSource(42)
	idgen := testkit.NewSequentialIDGenerator()
	sess := session.New(session.Deps{
		Risk:        risk.NewPredictor(extractor, source, nil),
		Clusters:    cluster.NewAnalyzer(extractor, source, nil),
		Patterns:    patterns.NewDetector(idgen),
		Recommender: recommend.NewEngine(extractor),
		IDGen:       idgen,
	})

	records := testkit.NewTestKit(7).GenerateBatch(batchSize)
	cfg := analytics.DefaultConfig()
	cfg.RiskModel.Epochs = 15
	return NewServer(sess, testkit.NewInMemoryProvider(records), cfg, nil)
}

func TestRunAnalysis_ReturnsFullResult(t *testing.T) {
	srv := newTestServer(t, 18)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result analytics.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "analysis-0001", string(result.ID))
	assert.Len(t, result.RiskPredictions, 18)
	assert.Len(t, result.Clusters, 3)
	assert.NotEmpty(t, result.Recommendations)
}

func TestGetAnalysis_AfterRun(t *testing.T) {
	srv := newTestServer(t, 12)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/analysis-0001", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var result analytics.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "analysis-0001", string(result.ID))
}

func TestGetAnalysis_UnknownID(t *testing.T) {
	srv := newTestServer(t, 12)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
	assert.False(t, body.Error.Retryable)
}

func TestRunAnalysis_TooFewStudents(t *testing.T) {
	srv := newTestServer(t, 1)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_DATA")
}

func TestGetReport_RendersHTML(t *testing.T) {
	srv := newTestServer(t, 12)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/analysis-0001/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>")
}

func TestPostFeedback(t *testing.T) {
	srv := newTestServer(t, 12)

	body := strings.NewReader(`{"intervention":"tutoring","success":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostFeedback_UnknownIntervention(t *testing.T) {
	srv := newTestServer(t, 12)

	body := strings.NewReader(`{"intervention":"yoga","success":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	srv := newTestServer(t, 12)

	for i := 0; i < maxCachedResults+5; i++ {
		srv.cache(&analytics.AnalysisResult{
			ID: core.AnalysisID(fmt.Sprintf("analysis-%04d", i+1)),
		})
	}

	srv.mu.RLock()
	defer srv.mu.RUnlock()
	assert.Len(t, srv.results, maxCachedResults)
	assert.Len(t, srv.order, maxCachedResults)
	// The five oldest runs are gone, the newest survive.
	_, ok := srv.results[core.AnalysisID("analysis-0005")]
	assert.False(t, ok)
	_, ok = srv.results[core.AnalysisID("analysis-0006")]
	assert.True(t, ok)
	_, ok = srv.results[core.AnalysisID(fmt.Sprintf("analysis-%04d", maxCachedResults+5))]
	assert.True(t, ok)
}

func TestPostFeedback_MissingBody(t *testing.T) {
	srv := newTestServer(t, 12)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
