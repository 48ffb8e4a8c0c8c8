package neural

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation selects the non-linearity applied by a layer.
type Activation string

const (
	ActivationReLU    Activation = "relu"
	ActivationSigmoid Activation = "sigmoid"
	ActivationLinear  Activation = "linear"
)

// Loss selects the objective minimized during training.
type Loss string

const (
	LossBinaryCrossEntropy Loss = "bce"
	LossMeanSquaredError   Loss = "mse"
)

// Network is a small fully-connected feed-forward network. It is sized for
// the analytics engine (a dozen inputs, a handful of hidden units), not for
// general deep learning: all math is dense float64 via gonum.
type Network struct {
	sizes   []int
	hidden  Activation
	output  Activation
	weights []*mat.Dense // one per layer, rows=out, cols=in
	biases  [][]float64
}

// TrainOptions configures a gradient-descent training run.
type TrainOptions struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	Dropout      float64 // applied after each hidden layer during training only
	Loss         Loss
	RNG          *rand.Rand // weight init and dropout masks; required for determinism
}

// New builds a network with the given layer sizes (inputs first). Hidden
// layers use the hidden activation, the last layer the output activation.
// Weights are He-initialized from the supplied RNG.
func New(sizes []int, hidden, output Activation, rng *rand.Rand) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least input and output sizes, got %d", len(sizes))
	}
	for _, s := range sizes {
		if s < 1 {
			return nil, fmt.Errorf("layer sizes must be positive, got %v", sizes)
		}
	}
	if rng == nil {
		return nil, fmt.Errorf("rng is required for deterministic initialization")
	}

	n := &Network{
		sizes:  append([]int(nil), sizes...),
		hidden: hidden,
		output: output,
	}
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		scale := math.Sqrt(2.0 / float64(in))
		w := mat.NewDense(out, in, nil)
		for r := 0; r < out; r++ {
			for c := 0; c < in; c++ {
				w.Set(r, c, rng.NormFloat64()*scale)
			}
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, make([]float64, out))
	}
	return n, nil
}

// InputSize returns the expected input dimension.
func (n *Network) InputSize() int { return n.sizes[0] }

// OutputSize returns the output dimension.
func (n *Network) OutputSize() int { return n.sizes[len(n.sizes)-1] }

// LayerCount returns the number of weight layers.
func (n *Network) LayerCount() int { return len(n.weights) }

// FirstLayerWeights exposes the input-layer weight matrix (rows=units,
// cols=inputs). Used for feature attribution.
func (n *Network) FirstLayerWeights() mat.Matrix { return n.weights[0] }

func (n *Network) activationFor(layer int) Activation {
	if layer == len(n.weights)-1 {
		return n.output
	}
	return n.hidden
}

func applyActivation(act Activation, pre []float64) []float64 {
	out := make([]float64, len(pre))
	for i, z := range pre {
		switch act {
		case ActivationReLU:
			if z > 0 {
				out[i] = z
			}
		case ActivationSigmoid:
			out[i] = 1.0 / (1.0 + math.Exp(-z))
		default:
			out[i] = z
		}
	}
	return out
}

func activationDerivative(act Activation, pre, post []float64) []float64 {
	d := make([]float64, len(pre))
	for i := range pre {
		switch act {
		case ActivationReLU:
			if pre[i] > 0 {
				d[i] = 1
			}
		case ActivationSigmoid:
			d[i] = post[i] * (1 - post[i])
		default:
			d[i] = 1
		}
	}
	return d
}

// Forward runs inference without dropout.
func (n *Network) Forward(input []float64) ([]float64, error) {
	if len(input) != n.InputSize() {
		return nil, fmt.Errorf("input has %d components, network expects %d", len(input), n.InputSize())
	}
	act := input
	for l := range n.weights {
		act = n.layerForward(l, act)
	}
	return act, nil
}

// Project runs the input through the first `layers` weight layers only.
// The cluster analyzer uses this to apply the encoder half of an autoencoder.
func (n *Network) Project(input []float64, layers int) ([]float64, error) {
	if len(input) != n.InputSize() {
		return nil, fmt.Errorf("input has %d components, network expects %d", len(input), n.InputSize())
	}
	if layers < 1 || layers > len(n.weights) {
		return nil, fmt.Errorf("projection depth %d out of range [1,%d]", layers, len(n.weights))
	}
	act := input
	for l := 0; l < layers; l++ {
		act = n.layerForward(l, act)
	}
	return act, nil
}

func (n *Network) layerForward(layer int, input []float64) []float64 {
	out := n.sizes[layer+1]
	pre := make([]float64, out)
	v := mat.NewVecDense(len(input), input)
	res := mat.NewVecDense(out, pre)
	res.MulVec(n.weights[layer], v)
	for i := range pre {
		pre[i] += n.biases[layer][i]
	}
	return applyActivation(n.activationFor(layer), pre)
}

// forwardTraining collects per-layer pre-activations, activations and dropout
// masks for backpropagation. Masks use inverted dropout scaling.
func (n *Network) forwardTraining(input []float64, dropout float64, rng *rand.Rand) (pres, posts, masks [][]float64) {
	act := input
	posts = append(posts, act)
	for l := range n.weights {
		out := n.sizes[l+1]
		pre := make([]float64, out)
		v := mat.NewVecDense(len(act), act)
		res := mat.NewVecDense(out, pre)
		res.MulVec(n.weights[l], v)
		for i := range pre {
			pre[i] += n.biases[l][i]
		}
		post := applyActivation(n.activationFor(l), pre)

		var mask []float64
		if dropout > 0 && l < len(n.weights)-1 {
			mask = make([]float64, out)
			keep := 1 - dropout
			for i := range mask {
				if rng.Float64() < keep {
					mask[i] = 1 / keep
				}
				post[i] *= mask[i]
			}
		}

		pres = append(pres, pre)
		posts = append(posts, post)
		masks = append(masks, mask)
		act = post
	}
	return pres, posts, masks
}

// Train runs mini-batch gradient descent over the provided pairs. Sample
// order is preserved (no shuffling) so identical inputs give identical
// models. Cancellation is checked between epochs; a cancelled run returns
// ctx.Err() and the caller is expected to discard the network.
func (n *Network) Train(ctx context.Context, inputs, targets [][]float64, opts TrainOptions) (float64, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("no training samples")
	}
	if len(inputs) != len(targets) {
		return 0, fmt.Errorf("inputs (%d) and targets (%d) must align", len(inputs), len(targets))
	}
	for i := range inputs {
		if len(inputs[i]) != n.InputSize() {
			return 0, fmt.Errorf("sample %d has %d components, network expects %d", i, len(inputs[i]), n.InputSize())
		}
		if len(targets[i]) != n.OutputSize() {
			return 0, fmt.Errorf("target %d has %d components, network expects %d", i, len(targets[i]), n.OutputSize())
		}
	}
	if opts.LearningRate <= 0 || opts.Epochs < 1 || opts.BatchSize < 1 {
		return 0, fmt.Errorf("invalid training options: lr=%f epochs=%d batch=%d", opts.LearningRate, opts.Epochs, opts.BatchSize)
	}
	if opts.RNG == nil {
		return 0, fmt.Errorf("rng is required for deterministic training")
	}

	finalLoss := 0.0
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		epochLoss := 0.0
		for start := 0; start < len(inputs); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(inputs) {
				end = len(inputs)
			}
			epochLoss += n.trainBatch(inputs[start:end], targets[start:end], opts)
		}
		finalLoss = epochLoss / float64(len(inputs))
	}
	return finalLoss, nil
}

// trainBatch accumulates gradients over one mini-batch and applies a single
// SGD update. Returns the summed sample loss.
func (n *Network) trainBatch(inputs, targets [][]float64, opts TrainOptions) float64 {
	gradW := make([]*mat.Dense, len(n.weights))
	gradB := make([][]float64, len(n.weights))
	for l := range n.weights {
		r, c := n.weights[l].Dims()
		gradW[l] = mat.NewDense(r, c, nil)
		gradB[l] = make([]float64, r)
	}

	batchLoss := 0.0
	for s := range inputs {
		pres, posts, masks := n.forwardTraining(inputs[s], opts.Dropout, opts.RNG)
		output := posts[len(posts)-1]
		batchLoss += sampleLoss(opts.Loss, output, targets[s])

		// Output delta. For sigmoid + BCE the sigmoid derivative cancels.
		delta := make([]float64, len(output))
		switch opts.Loss {
		case LossBinaryCrossEntropy:
			for i := range delta {
				delta[i] = output[i] - targets[s][i]
			}
		default:
			dAct := activationDerivative(n.output, pres[len(pres)-1], output)
			for i := range delta {
				delta[i] = (output[i] - targets[s][i]) * dAct[i]
			}
		}

		for l := len(n.weights) - 1; l >= 0; l-- {
			prev := posts[l]
			for r := 0; r < len(delta); r++ {
				gradB[l][r] += delta[r]
				for c := 0; c < len(prev); c++ {
					gradW[l].Set(r, c, gradW[l].At(r, c)+delta[r]*prev[c])
				}
			}
			if l == 0 {
				break
			}
			// Propagate delta to the previous layer.
			prevDelta := make([]float64, n.sizes[l])
			for c := 0; c < n.sizes[l]; c++ {
				sum := 0.0
				for r := 0; r < len(delta); r++ {
					sum += n.weights[l].At(r, c) * delta[r]
				}
				prevDelta[c] = sum
			}
			dAct := activationDerivative(n.activationFor(l-1), pres[l-1], posts[l])
			for c := range prevDelta {
				prevDelta[c] *= dAct[c]
				if masks[l-1] != nil {
					prevDelta[c] *= masks[l-1][c]
				}
			}
			delta = prevDelta
		}
	}

	// Single SGD step with gradients averaged over the batch.
	step := opts.LearningRate / float64(len(inputs))
	for l := range n.weights {
		r, c := n.weights[l].Dims()
		for i := 0; i < r; i++ {
			n.biases[l][i] -= step * gradB[l][i]
			for j := 0; j < c; j++ {
				n.weights[l].Set(i, j, n.weights[l].At(i, j)-step*gradW[l].At(i, j))
			}
		}
	}
	return batchLoss
}

func sampleLoss(loss Loss, output, target []float64) float64 {
	const eps = 1e-12
	sum := 0.0
	switch loss {
	case LossBinaryCrossEntropy:
		for i := range output {
			p := math.Min(math.Max(output[i], eps), 1-eps)
			sum += -(target[i]*math.Log(p) + (1-target[i])*math.Log(1-p))
		}
	default:
		for i := range output {
			d := output[i] - target[i]
			sum += d * d
		}
		sum /= float64(len(output))
	}
	return sum
}

// snapshot is the serialized form of a network.
type snapshot struct {
	Sizes   []int         `json:"sizes"`
	Hidden  Activation    `json:"hidden"`
	Output  Activation    `json:"output"`
	Weights [][][]float64 `json:"weights"`
	Biases  [][]float64   `json:"biases"`
}

// MarshalJSON serializes the full network state.
func (n *Network) MarshalJSON() ([]byte, error) {
	snap := snapshot{
		Sizes:  n.sizes,
		Hidden: n.hidden,
		Output: n.output,
		Biases: n.biases,
	}
	for _, w := range n.weights {
		r, c := w.Dims()
		rows := make([][]float64, r)
		for i := 0; i < r; i++ {
			rows[i] = make([]float64, c)
			for j := 0; j < c; j++ {
				rows[i][j] = w.At(i, j)
			}
		}
		snap.Weights = append(snap.Weights, rows)
	}
	return json.Marshal(snap)
}

// UnmarshalJSON restores a network from its serialized state.
func (n *Network) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if len(snap.Sizes) < 2 || len(snap.Weights) != len(snap.Sizes)-1 || len(snap.Biases) != len(snap.Sizes)-1 {
		return fmt.Errorf("malformed network snapshot")
	}
	for l, biases := range snap.Biases {
		if len(biases) != snap.Sizes[l+1] {
			return fmt.Errorf("layer %d has %d biases, expected %d", l, len(biases), snap.Sizes[l+1])
		}
	}
	restored := Network{
		sizes:  snap.Sizes,
		hidden: snap.Hidden,
		output: snap.Output,
		biases: snap.Biases,
	}
	for l, rows := range snap.Weights {
		out, in := snap.Sizes[l+1], snap.Sizes[l]
		if len(rows) != out {
			return fmt.Errorf("layer %d has %d rows, expected %d", l, len(rows), out)
		}
		w := mat.NewDense(out, in, nil)
		for r, row := range rows {
			if len(row) != in {
				return fmt.Errorf("layer %d row %d has %d cols, expected %d", l, r, len(row), in)
			}
			for c, val := range row {
				w.Set(r, c, val)
			}
		}
		restored.weights = append(restored.weights, w)
	}
	*n = restored
	return nil
}
