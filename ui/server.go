package ui

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal"
	"edupulse/internal/analytics/session"
	"edupulse/internal/errors"
	"edupulse/ports"
)

// maxCachedResults bounds the in-memory analysis cache. The oldest run is
// evicted first; dashboards only ever link to recent runs.
const maxCachedResults = 64

// Server is the dashboard-facing HTTP API. It exposes analysis runs and
// their results; rendering into charts and cards happens client-side.
type Server struct {
	router   *gin.Engine
	session  *session.Session
	provider ports.RecordProvider
	cfg      analytics.Config
	logger   *internal.Logger

	mu      sync.RWMutex
	results map[core.AnalysisID]*analytics.AnalysisResult
	order   []core.AnalysisID // insertion order, oldest first
}

// NewServer wires the API routes over an analysis session.
func NewServer(sess *session.Session, provider ports.RecordProvider, cfg analytics.Config, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   gin.New(),
		session:  sess,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		results:  make(map[core.AnalysisID]*analytics.AnalysisResult),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.POST("/analysis/run", s.runAnalysis)
	api.GET("/analysis/:id", s.getAnalysis)
	api.GET("/analysis/:id/report", s.getReport)
	api.POST("/feedback", s.postFeedback)
}

// Handler exposes the router for tests and for mounting.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	s.logger.Info("dashboard API listening on %s", addr)
	return s.router.Run(addr)
}

// runAnalysis pulls the current batch from the record provider, runs the
// full analysis session and caches the result.
func (s *Server) runAnalysis(c *gin.Context) {
	records, err := s.provider.Records(c.Request.Context())
	if err != nil {
		s.renderError(c, errors.Wrap(err, "loading student records"))
		return
	}

	result, err := s.session.Run(c.Request.Context(), records, s.cfg)
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.cache(result)

	c.JSON(http.StatusOK, result)
}

func (s *Server) getAnalysis(c *gin.Context) {
	result, ok := s.lookup(c.Param("id"))
	if !ok {
		s.renderError(c, errors.NotFound("analysis"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// getReport renders the analysis as an HTML report.
func (s *Server) getReport(c *gin.Context) {
	result, ok := s.lookup(c.Param("id"))
	if !ok {
		s.renderError(c, errors.NotFound("analysis"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", RenderReportHTML(result))
}

type feedbackRequest struct {
	Intervention string `json:"intervention" binding:"required"`
	Success      bool   `json:"success"`
}

// postFeedback records an observed intervention outcome.
func (s *Server) postFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, errors.InvalidInput("feedback body must include an intervention type"))
		return
	}
	t := student.InterventionType(req.Intervention)
	if t.SlotIndex() < 0 {
		s.renderError(c, errors.InvalidInput("unknown intervention type "+req.Intervention))
		return
	}
	s.session.RecordFeedback(t, req.Success)
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// cache stores a run result, evicting the oldest once the cap is reached.
func (s *Server) cache(result *analytics.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.results[result.ID]; !seen {
		s.order = append(s.order, result.ID)
	}
	s.results[result.ID] = result
	for len(s.order) > maxCachedResults {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) lookup(id string) (*analytics.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[core.AnalysisID(id)]
	return result, ok
}

// renderError maps engine error codes to HTTP statuses and a stable JSON
// shape; raw errors never reach the client.
func (s *Server) renderError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeTrainingInProgress:
		status = http.StatusConflict
	case errors.CodeInsufficientData, errors.CodeEmptyGradeSequence,
		errors.CodeInvalidInput, errors.CodeFeatureDimension:
		status = http.StatusUnprocessableEntity
	case errors.CodeModelNotTrained:
		status = http.StatusConflict
	}

	s.logger.Warn("request failed: %s: %v", code, err)
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   clientMessage(code),
			"retryable": code == errors.CodeTrainingInProgress,
		},
	})
}

// clientMessage returns the user-facing text for an error code.
func clientMessage(code string) string {
	switch code {
	case errors.CodeEmptyGradeSequence:
		return "A student record has no grades and cannot be analyzed."
	case errors.CodeInsufficientData:
		return "Not enough students in the batch to run this analysis."
	case errors.CodeModelNotTrained:
		return "The risk model has not been trained yet. Run an analysis first."
	case errors.CodeTrainingInProgress:
		return "An analysis is already running. Try again shortly."
	case errors.CodeSimilarityUndef:
		return "Student profiles could not be compared."
	case errors.CodeFeatureDimension:
		return "The configured feature list does not match the model."
	case errors.CodeNotFound:
		return "The requested analysis was not found."
	case errors.CodeInvalidInput:
		return "The request was invalid."
	default:
		return "The analysis failed unexpectedly."
	}
}
