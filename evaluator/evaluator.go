// Package evaluator is the Evaluator Façade: it turns a raw network
// forward pass into the (priors, value) pair the search core consumes,
// handling symmetry selection, softmax temperature, the tanh value
// transform, and legal-move filtering with renormalization.
//
// The math here (softmax's max-subtraction-then-temperature-divide order,
// the tanh value squash) is followed exactly from
// original_source/src/Network.cpp's softmax/get_scored_moves_internal.
package evaluator

import (
	"errors"
	"math"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/features"
)

// ErrWeightsMismatch is returned when a Backend's policy output does not
// have one entry per board vertex plus the pass logit, the shape
// Evaluate requires to index it safely (spec.md section 7).
var ErrWeightsMismatch = errors.New("evaluator: policy output does not match board size")

// ScoredMove pairs a legal move with its prior probability.
type ScoredMove struct {
	Vertex board.Vertex
	Prior  float32
}

// Backend runs a single forward pass over an already-encoded input
// tensor, returning raw policy logits (board.NumVertices+1 entries, the
// last being the pass logit) and a raw value head output in (-inf, inf)
// (pre-tanh).
type Backend interface {
	Infer(planes []float32) (policy []float32, rawValue float32, err error)
}

// RotationPolicy selects which board symmetry to encode a position under
// before running the network.
type RotationPolicy int

const (
	// Direct always encodes under a fixed symmetry (SymIdentity unless
	// overridden), matching Network::Ensemble::DIRECT.
	Direct RotationPolicy = iota
	// RandomRotation draws a uniform-random symmetry per call, matching
	// Network::Ensemble::RANDOM_ROTATION.
	RandomRotation
)

// Evaluator wraps a Backend with the symmetry/softmax/value transform the
// search core expects behind evaluate(position) -> (priors, value).
type Evaluator struct {
	Backend     Backend
	Policy      RotationPolicy
	Temperature float32 // cfg_softmax_temp equivalent; 1.0 if zero
	Symmetry    features.Symmetry // fixed symmetry used when Policy == Direct
	// RandSource, if non-nil, supplies the random symmetry index for
	// RandomRotation. Defaults to a package-level source seeded once.
	RandSource func() int
}

// New returns an Evaluator with the given backend and sane defaults
// (Direct policy under the identity symmetry, temperature 1).
func New(backend Backend) *Evaluator {
	return &Evaluator{Backend: backend, Policy: Direct, Temperature: 1, Symmetry: features.SymIdentity}
}

func (e *Evaluator) pickSymmetry() features.Symmetry {
	if e.Policy == Direct {
		return e.Symmetry
	}
	if e.RandSource != nil {
		return features.Symmetry(e.RandSource() % features.NumSymmetries)
	}
	return features.Symmetry(defaultRand() % features.NumSymmetries)
}

// Evaluate runs the network on pos and returns the legal-move priors
// (renormalized to sum to 1 over legal moves, including Pass) plus the
// position's value from the side-to-move's perspective in [0, 1].
func (e *Evaluator) Evaluate(pos *board.Position) ([]ScoredMove, float32, error) {
	sym := e.pickSymmetry()
	buf := features.Encode(pos, sym)
	defer features.PutBuffer(buf)

	policy, rawValue, err := e.Backend.Infer(*buf)
	if err != nil {
		return nil, 0, err
	}
	if len(policy) != board.NumVertices+1 {
		return nil, 0, ErrWeightsMismatch
	}

	temp := e.Temperature
	if temp == 0 {
		temp = 1
	}
	softmaxed := softmax(policy, temp)

	value := (1 + float32(math.Tanh(float64(rawValue)))) / 2

	var legalSum float32
	moves := make([]ScoredMove, 0, board.NumVertices/4)
	for idx := 0; idx < board.NumVertices; idx++ {
		v := board.Vertex(idx)
		if !pos.IsMoveLegal(pos.ToMove(), v) {
			continue
		}
		original := features.Rotate(v, sym)
		p := softmaxed[int(original)]
		legalSum += p
		moves = append(moves, ScoredMove{Vertex: v, Prior: p})
	}
	passPrior := softmaxed[board.NumVertices]
	legalSum += passPrior

	// smallestNormalFloat32 guards against renormalizing by (near) zero,
	// mirroring Network.cpp's std::numeric_limits<float>::min() check.
	const smallestNormalFloat32 = 1.1754944e-38
	if legalSum > smallestNormalFloat32 {
		for i := range moves {
			moves[i].Prior /= legalSum
		}
		passPrior /= legalSum
	}
	moves = append(moves, ScoredMove{Vertex: board.Pass, Prior: passPrior})

	return moves, value, nil
}

// softmax applies temperature-scaled softmax over logits, subtracting the
// max logit (scaled by temperature) before exponentiating for numerical
// stability, in the same order as Network::softmax.
func softmax(logits []float32, temperature float32) []float32 {
	out := make([]float32, len(logits))
	var maxLogit float32 = logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	alpha := maxLogit / temperature

	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64(v/temperature - alpha)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var randState uint64 = 0x9e3779b97f4a7c15

// defaultRand is a tiny splitmix64-style generator used only to avoid
// pulling in math/rand for a single index draw when no RandSource is
// configured; callers that care about seeding should set RandSource.
func defaultRand() int {
	randState += 0x9e3779b97f4a7c15
	z := randState
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z = z ^ (z >> 31)
	return int(z & 0x7fffffff)
}
