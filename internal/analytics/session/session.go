package session

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal"
	"edupulse/internal/analytics/cluster"
	"edupulse/internal/analytics/patterns"
	"edupulse/internal/analytics/recommend"
	"edupulse/internal/analytics/risk"
	apperrors "edupulse/internal/errors"
	"edupulse/ports"
)

// Session orchestrates the four analysis components over one batch of
// student records and assembles the result collections the dashboard
// consumes. Run never returns partial results: all components are awaited
// before assembly.
type Session struct {
	risk        *risk.Predictor
	clusters    *cluster.Analyzer
	patterns    *patterns.Detector
	recommender *recommend.Engine
	idgen       ports.IDGenerator
	store       ports.ModelStore // optional
	modelID     core.ModelID
	logger      *internal.Logger
}

// Deps bundles the session's collaborators. Store and ModelID are optional;
// without them every run trains from scratch.
type Deps struct {
	Risk        *risk.Predictor
	Clusters    *cluster.Analyzer
	Patterns    *patterns.Detector
	Recommender *recommend.Engine
	IDGen       ports.IDGenerator
	Store       ports.ModelStore
	ModelID     core.ModelID
	Logger      *internal.Logger
}

// New creates an analysis session from explicitly injected collaborators.
func New(deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Session{
		risk:        deps.Risk,
		clusters:    deps.Clusters,
		patterns:    deps.Patterns,
		recommender: deps.Recommender,
		idgen:       deps.IDGen,
		store:       deps.Store,
		modelID:     deps.ModelID,
		logger:      logger,
	}
}

// Run analyzes the batch and assembles all four result collections.
//
// Batch policy: records with an empty grade sequence are skipped and
// reported in the result instead of failing the whole batch. At least two
// analyzable records are required.
func (s *Session) Run(ctx context.Context, records []student.Record, cfg analytics.Config) (*analytics.AnalysisResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "invalid analysis configuration")
	}

	valid, skipped := partitionRecords(records)
	if len(valid) < 2 {
		return nil, apperrors.InsufficientData("analysis needs at least 2 students with recorded grades")
	}

	metrics, err := s.ensureTrained(ctx, valid, cfg.RiskModel)
	if err != nil {
		return nil, err
	}

	var (
		predictions     []analytics.RiskPrediction
		clusters        []analytics.StudentCluster
		detected        []analytics.EducationalPattern
		recommendations []analytics.InterventionRecommendation
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, rec := range valid {
			if err := gctx.Err(); err != nil {
				return err
			}
			pred, err := s.risk.Predict(rec)
			if err != nil {
				return apperrors.Wrapf(err, "predicting risk for student %s", rec.ID)
			}
			predictions = append(predictions, pred)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		clusters, err = s.clusters.Analyze(gctx, valid, cfg.Clustering)
		return err
	})

	g.Go(func() error {
		var err error
		detected, err = s.patterns.AnalyzeAll(valid, cfg.Pattern)
		return err
	})

	g.Go(func() error {
		for _, rec := range valid {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := s.recommender.Recommend(rec, valid)
			if err != nil {
				return apperrors.Wrapf(err, "recommending interventions for student %s", rec.ID)
			}
			recommendations = append(recommendations, recs...)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &analytics.AnalysisResult{
		ID:              s.idgen.NewAnalysisID(),
		RiskPredictions: predictions,
		Recommendations: recommendations,
		Clusters:        clusters,
		Patterns:        detected,
		Skipped:         skipped,
		Metrics:         metrics,
		CreatedAt:       core.Now(),
	}
	s.logger.Info("analysis %s complete: %d students, %d skipped, %d patterns",
		result.ID, len(valid), len(skipped), len(detected))
	return result, nil
}

// ensureTrained restores persisted model weights when a store is wired, and
// trains from the batch otherwise. A load failure is non-fatal: the session
// logs it and falls back to training. Returns training metrics only when a
// training run actually happened.
func (s *Session) ensureTrained(ctx context.Context, records []student.Record, cfg analytics.RiskModelConfig) (*analytics.TrainingMetrics, error) {
	if s.store != nil && !core.ID(s.modelID).IsEmpty() {
		snapshot, err := s.store.Load(ctx, s.modelID, "risk")
		if err == nil {
			if err := s.risk.Restore(snapshot.Payload); err == nil {
				s.logger.Debug("risk model %s restored from store", s.modelID)
				return nil, nil
			}
			s.logger.Warn("stored risk model %s is unusable, retraining", s.modelID)
		} else if !errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("loading risk model %s failed: %v", s.modelID, err)
		}
	}

	metrics, err := s.risk.Train(ctx, records, cfg)
	if err != nil {
		return nil, err
	}

	if s.store != nil && !core.ID(s.modelID).IsEmpty() {
		if payload, err := s.risk.Snapshot(); err == nil {
			snap := ports.ModelSnapshot{ModelID: s.modelID, Kind: "risk", Payload: payload}
			if err := s.store.Save(ctx, snap); err != nil {
				s.logger.Warn("saving risk model %s failed: %v", s.modelID, err)
			}
		}
	}
	return &metrics, nil
}

// RecordFeedback forwards intervention outcome feedback to the
// recommendation engine.
func (s *Session) RecordFeedback(t student.InterventionType, success bool) {
	s.recommender.RecordFeedback(t, success)
}

// partitionRecords splits a batch into analyzable records and skipped ones.
func partitionRecords(records []student.Record) ([]student.Record, []analytics.SkippedRecord) {
	valid := make([]student.Record, 0, len(records))
	var skipped []analytics.SkippedRecord
	for _, rec := range records {
		if len(rec.Grades) == 0 {
			skipped = append(skipped, analytics.SkippedRecord{
				StudentID: rec.ID,
				Reason:    "empty grade sequence",
			})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, skipped
}
