package analytics

import (
	"fmt"
	"math"

	"edupulse/domain/core"
	"edupulse/domain/student"
)

// FeatureCount is the fixed length of every feature vector: six scalar
// profile components plus one slot per known intervention type.
const FeatureCount = 6 + 6

// FeatureNames lists the feature components in vector order.
var FeatureNames = []string{
	"average_grade",
	"attendance",
	"behavior",
	"age",
	"grade_level",
	"socioeconomic",
	"outcome_tutoring",
	"outcome_counseling",
	"outcome_mentoring",
	"outcome_parent_meeting",
	"outcome_study_group",
	"outcome_behavioral_plan",
}

// FeatureVector is a fixed-length normalized encoding of one student record.
// Every component lies in [0,1]. Built fresh per analysis call, never persisted.
type FeatureVector []float64

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Norm returns the Euclidean norm of the vector.
func (v FeatureVector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// RiskFactor reports one feature's contribution to a risk prediction.
type RiskFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Impact float64 `json:"impact"`
}

// RiskPrediction is the per-student output of the risk classifier.
type RiskPrediction struct {
	StudentID  core.StudentID `json:"student_id"`
	RiskScore  float64        `json:"risk_score"` // [0,1]
	Confidence float64        `json:"confidence"` // [0,1]
	Factors    []RiskFactor   `json:"factors"`
}

// ROCPoint is one point of the validation-set ROC curve.
type ROCPoint struct {
	Threshold         float64 `json:"threshold"`
	TruePositiveRate  float64 `json:"tpr"`
	FalsePositiveRate float64 `json:"fpr"`
}

// ConfusionMatrix summarizes binary classification outcomes on the validation set.
type ConfusionMatrix struct {
	TruePositives  int `json:"tp"`
	TrueNegatives  int `json:"tn"`
	FalsePositives int `json:"fp"`
	FalseNegatives int `json:"fn"`
}

// TrainingMetrics aggregates validation-set performance after a training run.
type TrainingMetrics struct {
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
	ROC       []ROCPoint      `json:"roc"`
	Epochs    int             `json:"epochs"`
	FinalLoss float64         `json:"final_loss"`
}

// ClusterFeature is one aggregated characteristic of a cluster.
type ClusterFeature struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Importance float64 `json:"importance"`
}

// StudentCluster is one partition cell produced by the cluster analyzer.
// Member sets are disjoint across clusters and cover the whole input batch.
type StudentCluster struct {
	ClusterID       int               `json:"cluster_id"` // [0,k)
	Members         []core.StudentID  `json:"members"`
	Characteristics []ClusterFeature  `json:"characteristics"`
	Recommendations []string          `json:"recommendations"`
	Size            int               `json:"size"`
}

// PatternKind is the tagged variant of a detected pattern.
type PatternKind string

const (
	PatternAnomaly     PatternKind = "anomaly"
	PatternTrend       PatternKind = "trend"
	PatternCorrelation PatternKind = "correlation"
)

// Valid reports whether the kind is one of the known variants.
func (k PatternKind) Valid() bool {
	switch k {
	case PatternAnomaly, PatternTrend, PatternCorrelation:
		return true
	}
	return false
}

// PatternMetric records one metric reading that supports a pattern.
type PatternMetric struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// EducationalPattern is a statistical finding over the whole batch.
type EducationalPattern struct {
	ID          core.PatternID   `json:"id"`
	Kind        PatternKind      `json:"kind"`
	Description string           `json:"description"`
	Confidence  float64          `json:"confidence"` // clamped to [0,1]
	Affected    []core.StudentID `json:"affected"`
	Metrics     []PatternMetric  `json:"metrics"`
}

// Priority is a coarse severity tier derived by thresholding a score.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityForScore maps an average effectiveness score to a tier.
func PriorityForScore(score float64) Priority {
	switch {
	case score > 0.8:
		return PriorityHigh
	case score > 0.5:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// SimilarCase is one historical student supporting a recommendation.
type SimilarCase struct {
	StudentID  core.StudentID `json:"student_id"`
	Similarity float64        `json:"similarity"`
	Outcome    float64        `json:"outcome"` // encoded outcome in [0,1]
}

// InterventionRecommendation ranks one intervention type for a student.
type InterventionRecommendation struct {
	StudentID    core.StudentID           `json:"student_id"`
	Intervention student.InterventionType `json:"intervention"`
	Priority     Priority                 `json:"priority"`
	Confidence   float64                  `json:"confidence"`
	Explanation  string                   `json:"explanation"`
	SimilarCases []SimilarCase            `json:"similar_cases"`
}

// SkippedRecord reports a record the session excluded from the batch.
type SkippedRecord struct {
	StudentID core.StudentID `json:"student_id"`
	Reason    string         `json:"reason"`
}

// AnalysisResult is the assembled output of one AnalysisSession run.
// All four collections are complete: Run never returns partial results.
type AnalysisResult struct {
	ID              core.AnalysisID              `json:"id"`
	RiskPredictions []RiskPrediction             `json:"risk_predictions"`
	Recommendations []InterventionRecommendation `json:"recommendations"`
	Clusters        []StudentCluster             `json:"clusters"`
	Patterns        []EducationalPattern         `json:"patterns"`
	Skipped         []SkippedRecord              `json:"skipped,omitempty"`
	Metrics         *TrainingMetrics             `json:"metrics,omitempty"`
	CreatedAt       core.Timestamp               `json:"created_at"`
}

// RiskModelConfig configures the risk classifier training run.
type RiskModelConfig struct {
	LearningRate    float64  `json:"learning_rate"`
	Epochs          int      `json:"epochs"`
	BatchSize       int      `json:"batch_size"`
	ValidationSplit float64  `json:"validation_split"`
	Features        []string `json:"features"`
	TargetVariable  string   `json:"target_variable"`
}

// ClusteringConfig configures the embedding and k-means stages.
type ClusteringConfig struct {
	NumClusters        int `json:"num_clusters"`
	EmbeddingDimension int `json:"embedding_dimension"`
}

// PatternConfig configures the statistical pattern detectors.
type PatternConfig struct {
	AnomalyThreshold float64 `json:"anomaly_threshold"`
	TimeWindowDays   int     `json:"time_window_days"`
}

// Config is the full engine configuration surface.
type Config struct {
	RiskModel  RiskModelConfig  `json:"risk_model"`
	Clustering ClusteringConfig `json:"clustering"`
	Pattern    PatternConfig    `json:"pattern"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RiskModel: RiskModelConfig{
			LearningRate:    0.01,
			Epochs:          50,
			BatchSize:       16,
			ValidationSplit: 0.2,
			Features:        append([]string(nil), FeatureNames...),
			TargetVariable:  "at_risk",
		},
		Clustering: ClusteringConfig{
			NumClusters:        3,
			EmbeddingDimension: 2,
		},
		Pattern: PatternConfig{
			AnomalyThreshold: 2.0,
			TimeWindowDays:   30,
		},
	}
}

// Validate checks the configuration for structurally invalid values.
func (c Config) Validate() error {
	if c.RiskModel.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.RiskModel.LearningRate)
	}
	if c.RiskModel.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.RiskModel.Epochs)
	}
	if c.RiskModel.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.RiskModel.BatchSize)
	}
	if c.RiskModel.ValidationSplit < 0 || c.RiskModel.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in [0,1), got %f", c.RiskModel.ValidationSplit)
	}
	if len(c.RiskModel.Features) > 0 && len(c.RiskModel.Features) != FeatureCount {
		return core.NewDimensionError(len(c.RiskModel.Features), FeatureCount)
	}
	if c.Clustering.NumClusters < 1 {
		return fmt.Errorf("number of clusters must be at least 1, got %d", c.Clustering.NumClusters)
	}
	if c.Clustering.EmbeddingDimension < 1 {
		return fmt.Errorf("embedding dimension must be at least 1, got %d", c.Clustering.EmbeddingDimension)
	}
	if c.Pattern.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly threshold must be positive, got %f", c.Pattern.AnomalyThreshold)
	}
	return nil
}
