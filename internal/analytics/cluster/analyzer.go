package cluster

import (
	"context"
	"fmt"
	"sort"
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

// Autoencoder training hyperparameters. The encoder only has to separate a
// classroom-sized batch, so a short run is enough.
const (
	encoderHiddenSize   = 8
	encoderEpochs       = 30
	encoderLearningRate = 0.05
	encoderBatchSize    = 8
)

// featureImportance holds the fixed, hand-assigned importance weight per
// feature used in cluster characteristics. These are configuration, not
// derived statistics.
var featureImportance = map[string]float64{
	"average_grade": 0.9,
	"attendance":    0.8,
	"behavior":      0.7,
	"socioeconomic": 0.5,
	"age":           0.3,
	"grade_level":   0.3,
}

// interventionSlotImportance is the shared weight for the six encoded
// intervention-outcome slots.
const interventionSlotImportance = 0.4

// Analyzer reduces student profiles to a low-dimensional embedding and
// partitions them with k-means. The encoder is the single shared mutable
// resource: fitting is serialized, projection after a fit is read-only.
type Analyzer struct {
	extractor *features.Extractor
	rng       ports.RNGPort
	logger    *internal.Logger

	mu       sync.RWMutex
	fitting  bool
	encoder  *neural.Network
	embedDim int
}

// NewAnalyzer creates an unfitted cluster analyzer.
func NewAnalyzer(extractor *features.Extractor, rng ports.RNGPort, logger *internal.Logger) *Analyzer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Analyzer{
		extractor: extractor,
		rng:       rng,
		logger:    logger,
	}
}

func (a *Analyzer) beginFit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fitting {
		return errors.WithCode(errors.CodeTrainingInProgress, core.ErrTrainingInProgress)
	}
	a.fitting = true
	return nil
}

func (a *Analyzer) endFit(encoder *neural.Network, embedDim int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fitting = false
	if encoder != nil {
		a.encoder = encoder
		a.embedDim = embedDim
	}
}

// Analyze runs the full two-stage pipeline over the batch: fit the
// autoencoder, project every profile into the embedding space, then
// partition with k-means. Members across the returned clusters form a true
// partition of the batch.
func (a *Analyzer) Analyze(ctx context.Context, records []student.Record, cfg analytics.ClusteringConfig) ([]analytics.StudentCluster, error) {
	if len(records) < cfg.NumClusters {
		return nil, errors.InsufficientData(
			fmt.Sprintf("clustering %d students into %d clusters", len(records), cfg.NumClusters))
	}

	vectors, err := a.extractor.ExtractBatch(records)
	if err != nil {
		return nil, err
	}

	if err := a.beginFit(); err != nil {
		return nil, err
	}

	encoder, err := a.fitEncoder(ctx, vectors, cfg.EmbeddingDimension)
	if err != nil {
		a.endFit(nil, 0)
		return nil, err
	}
	a.endFit(encoder, cfg.EmbeddingDimension)

	embeddings, err := a.embed(encoder, vectors, cfg.EmbeddingDimension)
	if err != nil {
		return nil, err
	}

	kmRNG, err := a.rng.SeededStream(ctx, "kmeans_seed", int64(len(records)))
	if err != nil {
		return nil, errors.Wrap(err, "acquiring k-means rng stream")
	}

	assignments, _, err := kmeans(embeddings, len(records), cfg.EmbeddingDimension, cfg.NumClusters, kmRNG)
	if err != nil {
		return nil, err
	}

	return a.describeClusters(records, vectors, assignments, cfg.NumClusters), nil
}

// fitEncoder trains a symmetric autoencoder on the batch and returns the
// trained network. The encoder half is the first two weight layers.
func (a *Analyzer) fitEncoder(ctx context.Context, vectors []analytics.FeatureVector, embedDim int) (*neural.Network, error) {
	initRNG, err := a.rng.SeededStream(ctx, "encoder_init", int64(len(vectors)))
	if err != nil {
		return nil, errors.Wrap(err, "acquiring encoder rng stream")
	}

	sizes := []int{analytics.FeatureCount, encoderHiddenSize, embedDim, encoderHiddenSize, analytics.FeatureCount}
	net, err := neural.New(sizes, neural.ActivationReLU, neural.ActivationSigmoid, initRNG)
	if err != nil {
		return nil, errors.Wrap(err, "building autoencoder")
	}

	samples := make([][]float64, len(vectors))
	for i, v := range vectors {
		samples[i] = v
	}

	trainRNG, err := a.rng.SeededStream(ctx, "encoder_train", encoderEpochs)
	if err != nil {
		return nil, errors.Wrap(err, "acquiring encoder train rng stream")
	}

	loss, err := net.Train(ctx, samples, samples, neural.TrainOptions{
		LearningRate: encoderLearningRate,
		Epochs:       encoderEpochs,
		BatchSize:    encoderBatchSize,
		Loss:         neural.LossMeanSquaredError,
		RNG:          trainRNG,
	})
	if err != nil {
		return nil, errors.Wrap(err, "autoencoder fit failed")
	}
	a.logger.Debug("autoencoder fitted: %d vectors, reconstruction loss=%.4f", len(vectors), loss)
	return net, nil
}

// embed projects every vector through the encoder half into one contiguous
// row-major buffer.
func (a *Analyzer) embed(encoder *neural.Network, vectors []analytics.FeatureVector, embedDim int) ([]float64, error) {
	buf := make([]float64, len(vectors)*embedDim)
	for i, vec := range vectors {
		emb, err := encoder.Project(vec, 2)
		if err != nil {
			return nil, errors.Wrap(err, "projecting feature vector")
		}
		copy(buf[i*embedDim:(i+1)*embedDim], emb)
	}
	return buf, nil
}

// Project embeds a single record with the fitted encoder. Fails with the
// model-not-trained error before any batch has been analyzed.
func (a *Analyzer) Project(rec student.Record) ([]float64, error) {
	a.mu.RLock()
	encoder := a.encoder
	a.mu.RUnlock()
	if encoder == nil {
		return nil, errors.WithCode(errors.CodeModelNotTrained, core.ErrModelNotTrained)
	}

	vec, err := a.extractor.Extract(rec)
	if err != nil {
		return nil, err
	}
	return encoder.Project(vec, 2)
}

// describeClusters assembles member sets, mean-value characteristics and
// intervention recommendations per cluster.
func (a *Analyzer) describeClusters(records []student.Record, vectors []analytics.FeatureVector, assignments []int, k int) []analytics.StudentCluster {
	clusters := make([]analytics.StudentCluster, k)
	for c := range clusters {
		clusters[c].ClusterID = c
	}

	memberIdx := make([][]int, k)
	for i, c := range assignments {
		memberIdx[c] = append(memberIdx[c], i)
		clusters[c].Members = append(clusters[c].Members, records[i].ID)
	}

	for c := 0; c < k; c++ {
		clusters[c].Size = len(clusters[c].Members)
		clusters[c].Characteristics = meanCharacteristics(vectors, memberIdx[c])
		clusters[c].Recommendations = interventionSummary(records, memberIdx[c])
	}
	return clusters
}

// meanCharacteristics aggregates mean feature values with the fixed
// importance weights.
func meanCharacteristics(vectors []analytics.FeatureVector, members []int) []analytics.ClusterFeature {
	if len(members) == 0 {
		return nil
	}
	chars := make([]analytics.ClusterFeature, 0, analytics.FeatureCount)
	for f := 0; f < analytics.FeatureCount; f++ {
		sum := 0.0
		for _, i := range members {
			sum += vectors[i][f]
		}
		name := analytics.FeatureNames[f]
		importance, ok := featureImportance[name]
		if !ok {
			importance = interventionSlotImportance
		}
		chars = append(chars, analytics.ClusterFeature{
			Name:       name,
			Value:      sum / float64(len(members)),
			Importance: importance,
		})
	}
	return chars
}

// interventionSummary ranks intervention types by average observed outcome
// across the cluster's members and emits the top three as text.
func interventionSummary(records []student.Record, members []int) []string {
	sums := make(map[student.InterventionType]float64)
	counts := make(map[student.InterventionType]int)
	for _, i := range members {
		for _, iv := range records[i].Interventions {
			if iv.Type.SlotIndex() < 0 {
				continue
			}
			sums[iv.Type] += iv.Outcome
			counts[iv.Type]++
		}
	}
	if len(sums) == 0 {
		return nil
	}

	type ranked struct {
		t   student.InterventionType
		avg float64
	}
	var order []ranked
	// Iterate the fixed vocabulary so equal averages rank in slot order.
	for _, t := range student.KnownInterventionTypes() {
		if counts[t] == 0 {
			continue
		}
		order = append(order, ranked{t: t, avg: sums[t] / float64(counts[t])})
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].avg > order[j].avg })

	if len(order) > 3 {
		order = order[:3]
	}
	out := make([]string, 0, len(order))
	for _, r := range order {
		out = append(out, fmt.Sprintf("%s interventions averaged %.1f/10 for this group", r.t, r.avg))
	}
	return out
}
