package mcts

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/evaluator"
)

// stubEvaluator returns a fixed set of scored moves for any position,
// mirroring mcts_test.go's MockInferenceClient stub in the teacher repo.
type stubEvaluator struct {
	moves []evaluator.ScoredMove
	value float32
}

func (s *stubEvaluator) Evaluate(pos *board.Position) ([]evaluator.ScoredMove, float32, error) {
	return s.moves, s.value, nil
}

func uniformMoves(n int) []evaluator.ScoredMove {
	out := make([]evaluator.ScoredMove, n)
	for i := range out {
		out[i] = evaluator.ScoredMove{Vertex: board.Vertex(i), Prior: 1.0 / float32(n)}
	}
	return out
}

func TestCreateChildrenOnlyExpandsOnce(t *testing.T) {
	pos := board.NewGame()
	n := NewRoot(0.5)
	ev := &stubEvaluator{moves: uniformMoves(10), value: 0.5}

	var nodeCount atomic.Int64
	var wg sync.WaitGroup
	successes := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, _, err := CreateChildren(&nodeCount, n, pos, ev)
			if err != nil {
				t.Errorf("CreateChildren: %v", err)
			}
			successes[i] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one goroutine to expand the node, got %d", count)
	}
	if len(n.children) != 10 {
		t.Fatalf("expected 10 logical child entries, got %d", len(n.children))
	}
}

func TestCreateChildrenTerminalReturnsError(t *testing.T) {
	pos := board.NewGame().Play(board.Pass).Play(board.Pass)
	n := NewRoot(0.5)
	ev := &stubEvaluator{moves: uniformMoves(1), value: 0.5}

	var nodeCount atomic.Int64
	ok, _, err := CreateChildren(&nodeCount, n, pos, ev)
	if ok || err != ErrTerminalPosition {
		t.Fatalf("expected ErrTerminalPosition, got ok=%v err=%v", ok, err)
	}
}

func TestUCTSelectChildMaterializesLogicalChild(t *testing.T) {
	pos := board.NewGame()
	n := NewRoot(0.5)
	ev := &stubEvaluator{moves: uniformMoves(5), value: 0.5}
	var nodeCount atomic.Int64
	if _, _, err := CreateChildren(&nodeCount, n, pos, ev); err != nil {
		t.Fatalf("CreateChildren: %v", err)
	}

	child := UCTSelectChild(n, board.Black, 0.8)
	if child == nil {
		t.Fatalf("expected a selected child")
	}
	if len(n.Children()) != 1 {
		t.Fatalf("expected exactly one materialized child after first selection, got %d", len(n.Children()))
	}
}

func TestUCTSelectChildPrefersHigherPriorOnFirstVisit(t *testing.T) {
	pos := board.NewGame()
	n := NewRoot(0.5)
	moves := []evaluator.ScoredMove{
		{Vertex: board.VertexAt(0, 0), Prior: 0.1},
		{Vertex: board.VertexAt(1, 1), Prior: 0.9},
	}
	ev := &stubEvaluator{moves: moves, value: 0.5}
	var nodeCount atomic.Int64
	if _, _, err := CreateChildren(&nodeCount, n, pos, ev); err != nil {
		t.Fatalf("CreateChildren: %v", err)
	}

	child := UCTSelectChild(n, board.Black, 0.8)
	if child.Move() != board.VertexAt(1, 1) {
		t.Fatalf("expected the higher-prior move to be picked first, got %v", child.Move())
	}
}

func TestEnterLeaveNodeVirtualLossRoundTrips(t *testing.T) {
	n := NewRoot(0.5)
	n.EnterNode(0, 0)
	if vl := n.GetStats().VirtualLoss; vl != VirtualLossCount {
		t.Fatalf("expected virtual loss %d after EnterNode, got %d", VirtualLossCount, vl)
	}
	n.LeaveNode(1, 0.7)
	stats := n.GetStats()
	if stats.VirtualLoss != 0 {
		t.Fatalf("expected virtual loss cleared after LeaveNode, got %d", stats.VirtualLoss)
	}
	if stats.Visits != 1 || stats.BlackEvals != 0.7 {
		t.Fatalf("expected visits=1 blackEvals=0.7, got visits=%d blackEvals=%v", stats.Visits, stats.BlackEvals)
	}
}

func TestEnterNodeTakesMaxOfPassedInVisits(t *testing.T) {
	n := NewRoot(0.5)
	n.LeaveNode(5, 2.5) // simulate n already having 5 real visits

	// A transposition-sharing caller tries to seed with fewer visits than
	// n already has; enter_node must not clobber the higher count.
	n.EnterNode(2, 1.0)
	if got := n.GetStats().Visits; got != 5 {
		t.Fatalf("expected EnterNode to preserve the higher existing visit count, got %d", got)
	}

	// A caller seeding with MORE visits than n has does overwrite.
	n.EnterNode(10, 6.0)
	stats := n.GetStats()
	if stats.Visits != 10 || stats.BlackEvals != 6.0 {
		t.Fatalf("expected EnterNode to adopt the larger passed-in stats, got visits=%d blackEvals=%v", stats.Visits, stats.BlackEvals)
	}
}

// buildKoPosition plays out a minimal single-stone ko: Black just
// captured a lone White stone at (2,1) by filling its last liberty at
// (1,1), and recapturing at (2,1) would recreate the exact whole-board
// position from immediately before that capture, i.e. a positional
// superko repeat.
func buildKoPosition(t *testing.T) (*board.Position, board.Vertex) {
	t.Helper()
	pos := board.NewGame()
	for _, v := range []board.Vertex{
		board.VertexAt(3, 1), // B: prop, holds a liberty of the ko stone
		board.VertexAt(0, 1), // W: prop, holds a liberty of the capturing point
		board.VertexAt(2, 0), // B: prop
		board.VertexAt(1, 0), // W: prop
		board.VertexAt(2, 2), // B: prop
		board.VertexAt(1, 2), // W: prop
		board.Pass,           // B: parity filler so White plays the ko stone next
		board.VertexAt(2, 1), // W: the stone Black is about to capture
		board.VertexAt(1, 1), // B: fills its last liberty, capturing it
	} {
		pos = pos.Play(v)
	}
	return pos, board.VertexAt(2, 1)
}

func TestPruneSuperkosRemovesRepeatingMove(t *testing.T) {
	pos, koVertex := buildKoPosition(t)
	if !pos.SuperkoOn(koVertex) {
		t.Fatalf("test setup: expected recapturing at %v to be a superko repeat", koVertex)
	}

	other := board.VertexAt(10, 10)
	n := NewRoot(0.5)
	moves := []evaluator.ScoredMove{
		{Vertex: koVertex, Prior: 0.6},
		{Vertex: other, Prior: 0.4},
	}
	ev := &stubEvaluator{moves: moves, value: 0.5}
	var nodeCount atomic.Int64
	if _, _, err := CreateChildren(&nodeCount, n, pos, ev); err != nil {
		t.Fatalf("CreateChildren: %v", err)
	}

	// PruneSuperkos must run before any child is materialized.
	PruneSuperkos(n, pos)

	n.MaterializeAll()
	for _, child := range n.Children() {
		if child.Move() == koVertex {
			t.Fatalf("expected superko-repeating move %v to be pruned from children", koVertex)
		}
	}

	child := UCTSelectChild(n, pos.ToMove(), 0.8)
	if child == nil || child.Move() != other {
		t.Fatalf("expected the surviving move %v to be selectable, got %v", other, child)
	}
}

func TestApplyRootNoisePreservesPriorSum(t *testing.T) {
	pos := board.NewGame()
	n := NewRoot(0.5)
	ev := &stubEvaluator{moves: uniformMoves(8), value: 0.5}
	var nodeCount atomic.Int64
	CreateChildren(&nodeCount, n, pos, ev)

	rng := rand.New(rand.NewSource(1))
	ApplyRootNoise(n, rng, 0.03, 0.25)

	var sum float32
	for _, e := range n.children {
		sum += e.score
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected priors to still sum to ~1 after noise, got %v", sum)
	}
}
