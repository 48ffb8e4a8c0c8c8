package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal"
	"edupulse/internal/analytics/features"
	"edupulse/internal/analytics/neural"
	"edupulse/internal/errors"
	"edupulse/ports"
)

// riskGradeThreshold is the weak-supervision labeling rule: a student whose
// average grade falls below this value is labeled at-risk. Inherited as-is
// from the documented reference behavior.
const riskGradeThreshold = 6.0

// dropoutRate regularizes the hidden layers during training.
const dropoutRate = 0.2

// hiddenSizes defines the two hidden dense layers of the classifier.
var hiddenSizes = []int{16, 8}

// State tracks the predictor life cycle.
type State string

const (
	StateUntrained State = "untrained"
	StateTraining  State = "training"
	StateTrained   State = "trained"
)

// Predictor trains and evaluates the binary risk classifier. Training is
// single-writer: at most one run in flight, concurrent attempts fail fast.
// Prediction is safe concurrently with other predictions.
type Predictor struct {
	extractor *features.Extractor
	rng       ports.RNGPort
	logger    *internal.Logger

	mu    sync.RWMutex
	state State
	model *neural.Network
}

// NewPredictor creates an untrained risk predictor.
func NewPredictor(extractor *features.Extractor, rng ports.RNGPort, logger *internal.Logger) *Predictor {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Predictor{
		extractor: extractor,
		rng:       rng,
		logger:    logger,
		state:     StateUntrained,
	}
}

// State returns the current life-cycle state.
func (p *Predictor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// beginTraining transitions into the Training state, remembering the state
// to restore if the run fails.
func (p *Predictor) beginTraining() (prev State, prevModel *neural.Network, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateTraining {
		return "", nil, errors.WithCode(errors.CodeTrainingInProgress, core.ErrTrainingInProgress)
	}
	prev, prevModel = p.state, p.model
	p.state = StateTraining
	return prev, prevModel, nil
}

func (p *Predictor) commitTraining(model *neural.Network) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateTrained
	p.model = model
}

func (p *Predictor) abortTraining(prev State, prevModel *neural.Network) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = prev
	p.model = prevModel
}

// Train fits the classifier on the batch and returns validation metrics.
// A failed or cancelled run discards the unfinished model and restores
// whatever was trained before; the caller re-invokes explicitly.
func (p *Predictor) Train(ctx context.Context, records []student.Record, cfg analytics.RiskModelConfig) (analytics.TrainingMetrics, error) {
	if len(cfg.Features) > 0 && len(cfg.Features) != analytics.FeatureCount {
		return analytics.TrainingMetrics{}, errors.FeatureDimension(len(cfg.Features), analytics.FeatureCount)
	}

	inputs, targets, err := p.buildPairs(records)
	if err != nil {
		return analytics.TrainingMetrics{}, err
	}
	if len(inputs) < 2 {
		return analytics.TrainingMetrics{}, errors.InsufficientData("risk training needs at least 2 labeled samples")
	}

	prev, prevModel, err := p.beginTraining()
	if err != nil {
		return analytics.TrainingMetrics{}, err
	}

	metrics, model, err := p.runTraining(ctx, inputs, targets, cfg)
	if err != nil {
		p.abortTraining(prev, prevModel)
		return analytics.TrainingMetrics{}, err
	}

	p.commitTraining(model)
	p.logger.Info("risk model trained: %d samples, accuracy=%.3f f1=%.3f", len(inputs), metrics.Accuracy, metrics.F1)
	return metrics, nil
}

// buildPairs extracts features and applies the weak-supervision label.
func (p *Predictor) buildPairs(records []student.Record) (inputs, targets [][]float64, err error) {
	for _, rec := range records {
		vec, err := p.extractor.Extract(rec)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "building training pair for student %s", rec.ID)
		}
		avg, _ := rec.AverageGrade()
		label := 0.0
		if avg < riskGradeThreshold {
			label = 1.0
		}
		inputs = append(inputs, vec)
		targets = append(targets, []float64{label})
	}
	return inputs, targets, nil
}

func (p *Predictor) runTraining(ctx context.Context, inputs, targets [][]float64, cfg analytics.RiskModelConfig) (analytics.TrainingMetrics, *neural.Network, error) {
	// Deterministic tail split: validation takes the last samples, no shuffle.
	valCount := int(float64(len(inputs)) * cfg.ValidationSplit)
	if valCount >= len(inputs) {
		valCount = len(inputs) - 1
	}
	trainCount := len(inputs) - valCount
	trainX, trainY := inputs[:trainCount], targets[:trainCount]
	valX, valY := inputs[trainCount:], targets[trainCount:]
	if len(valX) == 0 {
		// Too few samples for a held-out set; evaluate on the training set.
		valX, valY = trainX, trainY
	}

	initRNG, err := p.rng.SeededStream(ctx, "risk_init", int64(len(inputs)))
	if err != nil {
		return analytics.TrainingMetrics{}, nil, errors.Wrap(err, "acquiring init rng stream")
	}

	sizes := append([]int{analytics.FeatureCount}, hiddenSizes...)
	sizes = append(sizes, 1)
	model, err := neural.New(sizes, neural.ActivationReLU, neural.ActivationSigmoid, initRNG)
	if err != nil {
		return analytics.TrainingMetrics{}, nil, errors.Wrap(err, "building risk network")
	}

	dropRNG, err := p.rng.SeededStream(ctx, "risk_dropout", int64(cfg.Epochs))
	if err != nil {
		return analytics.TrainingMetrics{}, nil, errors.Wrap(err, "acquiring dropout rng stream")
	}

	finalLoss, err := model.Train(ctx, trainX, trainY, neural.TrainOptions{
		LearningRate: cfg.LearningRate,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Dropout:      dropoutRate,
		Loss:         neural.LossBinaryCrossEntropy,
		RNG:          dropRNG,
	})
	if err != nil {
		return analytics.TrainingMetrics{}, nil, errors.Wrap(err, "risk training run failed")
	}

	metrics := evaluate(model, valX, valY)
	metrics.Epochs = cfg.Epochs
	metrics.FinalLoss = finalLoss
	return metrics, model, nil
}

// Predict scores one student with the trained model.
func (p *Predictor) Predict(rec student.Record) (analytics.RiskPrediction, error) {
	p.mu.RLock()
	model := p.model
	state := p.state
	p.mu.RUnlock()

	if state != StateTrained || model == nil {
		return analytics.RiskPrediction{}, errors.WithCode(errors.CodeModelNotTrained, core.ErrModelNotTrained)
	}

	vec, err := p.extractor.Extract(rec)
	if err != nil {
		return analytics.RiskPrediction{}, err
	}

	out, err := model.Forward(vec)
	if err != nil {
		return analytics.RiskPrediction{}, errors.Wrap(err, "risk forward pass")
	}
	score := analytics.Clamp01(out[0])

	return analytics.RiskPrediction{
		StudentID:  rec.ID,
		RiskScore:  score,
		Confidence: analytics.Clamp01(math.Abs(score-0.5) * 2),
		Factors:    featureAttribution(model, vec),
	}, nil
}

// featureAttribution derives per-feature weights from the magnitude of the
// first dense layer, scaled by the input value. This replaces the reference
// placeholder with a deterministic value of the same shape.
func featureAttribution(model *neural.Network, vec analytics.FeatureVector) []analytics.RiskFactor {
	w := model.FirstLayerWeights()
	rows, cols := w.Dims()

	raw := make([]float64, cols)
	total := 0.0
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			raw[c] += math.Abs(w.At(r, c))
		}
		total += raw[c]
	}

	factors := make([]analytics.RiskFactor, 0, cols)
	for c := 0; c < cols; c++ {
		weight := 0.0
		if total > 0 {
			weight = raw[c] / total
		}
		name := "feature"
		if c < len(analytics.FeatureNames) {
			name = analytics.FeatureNames[c]
		}
		factors = append(factors, analytics.RiskFactor{
			Name:   name,
			Weight: weight,
			Impact: weight * vec[c],
		})
	}
	return factors
}

// Snapshot serializes the trained model for the model store.
func (p *Predictor) Snapshot() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateTrained || p.model == nil {
		return nil, errors.WithCode(errors.CodeModelNotTrained, core.ErrModelNotTrained)
	}
	return json.Marshal(p.model)
}

// Restore installs previously saved model weights. Restoring while a
// training run is in flight fails fast like a second train would.
func (p *Predictor) Restore(payload []byte) error {
	var model neural.Network
	if err := json.Unmarshal(payload, &model); err != nil {
		return errors.Wrap(err, "decoding risk model snapshot")
	}
	if model.InputSize() != analytics.FeatureCount {
		return errors.FeatureDimension(model.InputSize(), analytics.FeatureCount)
	}
	if model.OutputSize() != 1 {
		return errors.InvalidInput(
			fmt.Sprintf("risk model snapshot has %d outputs, expected 1", model.OutputSize()))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateTraining {
		return errors.WithCode(errors.CodeTrainingInProgress, core.ErrTrainingInProgress)
	}
	p.state = StateTrained
	p.model = &model
	return nil
}

// evaluate computes validation metrics at the 0.5 decision threshold plus
// an 11-point ROC sweep.
func evaluate(model *neural.Network, inputs, targets [][]float64) analytics.TrainingMetrics {
	scores := make([]float64, len(inputs))
	for i := range inputs {
		out, err := model.Forward(inputs[i])
		if err != nil {
			continue
		}
		scores[i] = out[0]
	}

	var cm analytics.ConfusionMatrix
	for i, score := range scores {
		predicted := score >= 0.5
		actual := targets[i][0] >= 0.5
		switch {
		case predicted && actual:
			cm.TruePositives++
		case !predicted && !actual:
			cm.TrueNegatives++
		case predicted && !actual:
			cm.FalsePositives++
		default:
			cm.FalseNegatives++
		}
	}

	total := float64(len(scores))
	metrics := analytics.TrainingMetrics{Confusion: cm}
	if total > 0 {
		metrics.Accuracy = float64(cm.TruePositives+cm.TrueNegatives) / total
	}
	if cm.TruePositives+cm.FalsePositives > 0 {
		metrics.Precision = float64(cm.TruePositives) / float64(cm.TruePositives+cm.FalsePositives)
	}
	if cm.TruePositives+cm.FalseNegatives > 0 {
		metrics.Recall = float64(cm.TruePositives) / float64(cm.TruePositives+cm.FalseNegatives)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}

	for i := 0; i <= 10; i++ {
		threshold := float64(i) / 10.0
		var tp, fp, fn, tn int
		for j, score := range scores {
			predicted := score >= threshold
			actual := targets[j][0] >= 0.5
			switch {
			case predicted && actual:
				tp++
			case predicted && !actual:
				fp++
			case !predicted && actual:
				fn++
			default:
				tn++
			}
		}
		point := analytics.ROCPoint{Threshold: threshold}
		if tp+fn > 0 {
			point.TruePositiveRate = float64(tp) / float64(tp+fn)
		}
		if fp+tn > 0 {
			point.FalsePositiveRate = float64(fp) / float64(fp+tn)
		}
		metrics.ROC = append(metrics.ROC, point)
	}
	return metrics
}
