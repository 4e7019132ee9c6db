package mcts

import (
	"sort"
	"sync/atomic"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/evaluator"
)

// Evaluator is the subset of evaluator.Evaluator's surface CreateChildren
// needs, kept as an interface so tests can stub it the way
// mcts_test.go's MockInferenceClient stubs the teacher's Predictor.
type Evaluator interface {
	Evaluate(pos *board.Position) ([]evaluator.ScoredMove, float32, error)
}

// CreateChildren evaluates pos and populates n's children from the
// resulting priors, in descending score order. It follows
// UCTNode::create_children's two-phase locking exactly: a lock-free
// has_children fast path, then a locked re-check plus an is_expanding
// latch, so that under concurrent descent exactly one goroutine ever
// calls the evaluator for a given node. Returns false (with no error) if
// another goroutine already expanded or is expanding this node.
func CreateChildren(nodeCount *atomic.Int64, n *Node, pos *board.Position, eval Evaluator) (bool, float32, error) {
	if n.HasChildren() {
		return false, 0, nil
	}

	n.mu.Lock()
	if n.hasChildren.Load() {
		n.mu.Unlock()
		return false, 0, nil
	}
	if pos.Passes() >= 2 {
		n.mu.Unlock()
		return false, 0, ErrTerminalPosition
	}
	if n.isExpanding {
		n.mu.Unlock()
		return false, 0, nil
	}
	n.isExpanding = true
	n.mu.Unlock()

	moves, value, err := eval.Evaluate(pos)
	if err != nil {
		return false, 0, err
	}

	netEval := value
	if pos.ToMove() == board.White {
		netEval = 1 - netEval
	}

	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Prior > moves[j].Prior })

	entries := make([]childEntry, len(moves))
	for i, m := range moves {
		entries[i] = childEntry{move: m.Vertex, score: m.Prior}
	}

	n.mu.Lock()
	n.children = entries
	n.childInitEval = netEval
	n.mu.Unlock()
	nodeCount.Add(int64(len(entries)))
	n.hasChildren.Store(true)

	return true, netEval, nil
}
