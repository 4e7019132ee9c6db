package mcts

import "math/rand"

// RandomizeFirstProportionally materializes all of n's children and
// swaps a visit-count-weighted random one to the front of the
// materialized list, so that callers who always play "the first child"
// after search (as opening-move diversification for self-play) sample
// proportionally to visits instead of always taking the most-visited
// move. Mirrors UCTNode::randomize_first_proportionally exactly,
// including that a child with zero visits can never be picked unless
// every child has zero visits (in which case the cumulative distribution
// is degenerate and the first child is kept).
func RandomizeFirstProportionally(n *Node, rng *rand.Rand) {
	n.MaterializeAll()

	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.materialized) < 2 {
		return
	}

	cumulative := make([]uint32, len(n.materialized))
	var total uint32
	for i, child := range n.materialized {
		total += child.GetVisits()
		cumulative[i] = total
	}
	if total == 0 {
		return
	}

	target := uint32(rng.Int63n(int64(total)))
	chosen := 0
	for i, c := range cumulative {
		if target < c {
			chosen = i
			break
		}
	}

	n.materialized[0], n.materialized[chosen] = n.materialized[chosen], n.materialized[0]
	n.children[0], n.children[chosen] = n.children[chosen], n.children[0]
}
