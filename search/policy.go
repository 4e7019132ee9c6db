package search

import (
	"sort"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/mcts"
)

// VisitCount pairs a root move with how many times it was visited, for
// exposing the root's visit distribution (spec.md section 4.5) to
// training-data emission and spectating.
type VisitCount struct {
	Move   board.Vertex
	Visits uint32
}

// VisitDistribution returns the current root's materialized children's
// visit counts, most-visited first.
func (s *Search) VisitDistribution() []VisitCount {
	children := s.root.Children()
	out := make([]VisitCount, len(children))
	for i, c := range children {
		out[i] = VisitCount{Move: c.Move(), Visits: c.GetVisits()}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Visits > out[j].Visits })
	return out
}

// BestMove returns the root child with the most visits, breaking ties
// by evaluation and then by prior score (prior score alone decides
// zero-visit ties, since get_eval's first-play-urgency fallback would
// otherwise compare equal). It materializes any remaining logical root
// children first, since the comparison needs every child's real stats
// to be meaningful.
func (s *Search) BestMove() board.Vertex {
	s.materializeRootChildren()
	children := s.root.Children()
	if len(children) == 0 {
		return board.Pass
	}
	color := s.pos.ToMove()
	best := children[0]
	for _, c := range children[1:] {
		if betterRootChild(c, best, color) {
			best = c
		}
	}
	return best.Move()
}

func betterRootChild(a, b *mcts.Node, color board.Color) bool {
	av, bv := a.GetVisits(), b.GetVisits()
	if av != bv {
		return av > bv
	}
	if av == 0 {
		return a.Score() > b.Score()
	}
	ae, be := a.GetEval(color), b.GetEval(color)
	if ae != be {
		return ae > be
	}
	return a.Score() > b.Score()
}

// SampledMove picks a root move proportionally to visit count, the way
// self-play opening diversification does via
// randomize_first_proportionally, and returns it. It reorders the root's
// children by swapping the sampled child to the front; BestMove compares
// children by their stats, so that order only matters among children
// whose visits, eval and prior are all equal.
func (s *Search) SampledMove() board.Vertex {
	s.materializeRootChildren()
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	mcts.RandomizeFirstProportionally(s.root, s.rng)
	children := s.root.Children()
	if len(children) == 0 {
		return board.Pass
	}
	return children[0].Move()
}

func (s *Search) materializeRootChildren() {
	s.root.MaterializeAll()
}

// Advance reparents the search onto the child reached by playing move,
// reusing that subtree's statistics, and discards the rest of the tree.
// If move has no corresponding materialized child (never explored), a
// fresh root is created for the resulting position instead, evaluated
// once and expanded (unless the position is terminal).
func (s *Search) Advance(move board.Vertex) error {
	nextPos := s.pos.Play(move)

	for _, c := range s.root.Children() {
		if c.Move() == move {
			s.root = c
			s.pos = nextPos
			return nil
		}
	}

	moves, value, err := s.eval.Evaluate(nextPos)
	if err != nil {
		return err
	}
	rootEval := value
	if nextPos.ToMove() == board.White {
		rootEval = 1 - rootEval
	}
	root := mcts.NewRoot(rootEval)
	_, _, err = mcts.CreateChildren(&s.nodes, root, nextPos, &fixedEvaluator{moves: moves, value: value})
	if err != nil && err != mcts.ErrTerminalPosition {
		return err
	}
	s.root = root
	s.pos = nextPos
	return nil
}
