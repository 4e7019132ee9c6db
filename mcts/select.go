package mcts

import (
	"math"

	"github.com/goishi/deepgo/board"
)

// Config carries the search hyperparameters spec.md section 6 exposes.
type Config struct {
	// CPuct scales the exploration term of the PUCT formula.
	CPuct float32
	// NoiseEpsilon and NoiseAlpha parameterize root Dirichlet noise.
	NoiseEpsilon float32
	NoiseAlpha   float32
}

// DefaultConfig returns the search hyperparameters Leela Zero ships by
// default (cfg_puct=0.8, root noise epsilon=0.25, alpha=0.03).
func DefaultConfig() Config {
	return Config{CPuct: 0.8, NoiseEpsilon: 0.25, NoiseAlpha: 0.03}
}

// UCTSelectChild picks the child of n with the highest PUCT value and
// materializes it if it was only a logical entry, then returns it. It
// follows UCTNode::uct_select_child exactly: parentvisits is recomputed
// from currently materialized valid children (never cached, to tolerate
// transposition sharing), an unmaterialized child's winrate defaults to
// the parent's own childInitEval, and ties are broken by the first
// (highest-prior) index.
func UCTSelectChild(n *Node, color board.Color, cpuct float32) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	var parentVisits uint32
	for _, child := range n.materialized {
		if !child.Valid() {
			continue
		}
		parentVisits += child.GetVisits()
	}
	numerator := float32(math.Sqrt(float64(parentVisits)))

	best := -1
	var bestValue float32 = float32(math.Inf(-1))
	for i := range n.children {
		if i < len(n.materialized) && !n.materialized[i].Valid() {
			continue
		}
		stats := n.childStatsLocked(i)
		winrate := stats.GetEval(color)
		psa := stats.Score
		puct := cpuct * psa * numerator / (1 + float32(stats.Visits))
		value := winrate + puct
		if value > bestValue {
			bestValue = value
			best = i
		}
	}

	if best < 0 {
		return nil
	}
	return n.expandAtLocked(best)
}
