package mcts

import (
	"math"
	"math/rand"
)

// ApplyRootNoise blends Dirichlet(alpha) noise into the priors of n's
// logical (not yet materialized) child entries, in place, the way UCTNode::dirichlet_noise
// does: score = score*(1-epsilon) + epsilon*eta, where eta is drawn from
// a normalized Dirichlet(alpha) sample of the same dimension as the child
// count. Must be called before any materialized children exist; it
// panics otherwise, the way PruneSuperkos panics on the same
// precondition. It silently no-ops (matching the C++'s early-return) if
// the sampled gamma weights all round to zero.
func ApplyRootNoise(n *Node, rng *rand.Rand, alpha, epsilon float32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.materialized) != 0 {
		panic("mcts: ApplyRootNoise called after children were materialized")
	}

	if len(n.children) == 0 {
		return
	}

	samples := make([]float32, len(n.children))
	var sum float32
	for i := range samples {
		g := sampleGamma(rng, float64(alpha))
		samples[i] = float32(g)
		sum += samples[i]
	}

	const smallestNormalFloat32 = 1.1754944e-38
	if sum < smallestNormalFloat32 {
		return
	}

	for i := range n.children {
		eta := samples[i] / sum
		n.children[i].score = n.children[i].score*(1-epsilon) + epsilon*eta
	}
}

// sampleGamma draws from a Gamma(shape, 1) distribution via the
// Marsaglia-Tsang method. No pack example ships a Dirichlet/Gamma sampler
// (this is stdlib math/rand only; see DESIGN.md), so it is hand-rolled
// the way a small, self-contained numerical routine would be in any of
// the teacher's other single-purpose helpers.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Boost by one and correct with a Uniform^(1/shape) factor.
		g := sampleGamma(rng, shape+1)
		u := rng.Float64()
		return g * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*(x*x*x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
