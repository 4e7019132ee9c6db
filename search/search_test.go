package search

import (
	"context"
	"testing"
	"time"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/evaluator"
)

// stubEvaluator returns a fixed value and a uniform prior over the given
// legal moves plus pass, computed fresh for whatever position it is asked
// to score, mirroring the teacher's MockInferenceClient stub.
type stubEvaluator struct {
	value float32
}

func (s *stubEvaluator) Evaluate(pos *board.Position) ([]evaluator.ScoredMove, float32, error) {
	var moves []evaluator.ScoredMove
	for v := 0; v < board.NumVertices; v++ {
		vv := board.Vertex(v)
		if pos.IsMoveLegal(pos.ToMove(), vv) {
			moves = append(moves, evaluator.ScoredMove{Vertex: vv})
		}
	}
	moves = append(moves, evaluator.ScoredMove{Vertex: board.Pass})
	n := float32(len(moves))
	for i := range moves {
		moves[i].Prior = 1 / n
	}
	return moves, s.value, nil
}

func newTestSearch(t *testing.T, workers int) *Search {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumWorkers = workers
	cfg.NoiseEpsilon = 0 // deterministic priors for these tests
	s, err := New(board.NewGame(), &stubEvaluator{value: 0.5}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSimulateGrowsVisitCounts(t *testing.T) {
	s := newTestSearch(t, 4)
	if err := s.Simulate(200); err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	var total uint32
	for _, vc := range s.VisitDistribution() {
		total += vc.Visits
	}
	if total == 0 {
		t.Fatalf("expected some visits to be recorded")
	}
}

func TestSimulateIsRaceFreeUnderConcurrentWorkers(t *testing.T) {
	s := newTestSearch(t, 16)
	if err := s.Simulate(500); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// If descent/backprop had a data race on shared node state, this
	// would be caught under `go test -race`; functionally we only check
	// that visits were recorded at all (a descent that reaches a leaf
	// another worker is already expanding contributes no visit, so the
	// total can fall short of the simulation count).
	var total uint32
	for _, vc := range s.VisitDistribution() {
		total += vc.Visits
	}
	if total == 0 {
		t.Fatalf("expected visits after 500 simulations across 16 workers")
	}
}

func TestStopHaltsSimulate(t *testing.T) {
	s := newTestSearch(t, 4)
	s.Stop()
	if err := s.Simulate(1000); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// With stop already requested, workers should do essentially no
	// playouts; we only assert this completes promptly (no deadlock),
	// which the surrounding test timeout enforces.
}

func TestRunUntilRespectsDeadline(t *testing.T) {
	s := newTestSearch(t, 4)
	start := time.Now()
	err := s.RunUntil(context.Background(), start.Add(50*time.Millisecond))
	if err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("RunUntil ran far past its deadline: %v", elapsed)
	}
}

func TestBestMoveReturnsAMaterializedRootChild(t *testing.T) {
	s := newTestSearch(t, 4)
	if err := s.Simulate(100); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	move := s.BestMove()
	found := false
	for _, vc := range s.VisitDistribution() {
		if vc.Move == move {
			found = true
		}
	}
	if !found {
		t.Fatalf("BestMove %v not among root's visit distribution", move)
	}
}

func TestAdvanceReusesExploredSubtree(t *testing.T) {
	s := newTestSearch(t, 4)
	if err := s.Simulate(200); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	move := s.BestMove()
	visitsBefore := uint32(0)
	for _, vc := range s.VisitDistribution() {
		if vc.Move == move {
			visitsBefore = vc.Visits
		}
	}

	if err := s.Advance(move); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.root.GetVisits(); visitsBefore > 0 && got != visitsBefore {
		t.Fatalf("expected Advance to reuse the child's visit count %d, got %d", visitsBefore, got)
	}
	if s.pos.ToMove() == board.Empty {
		t.Fatalf("expected a valid to-move color after Advance")
	}
}

func TestNewSeedsRootWithChildren(t *testing.T) {
	s := newTestSearch(t, 1)
	if !s.Root().HasChildren() {
		t.Fatalf("expected New to expand the root's children")
	}
	// VisitDistribution only reports materialized children; the root
	// starts with zero materialized (only logical) children before any
	// simulation runs.
	if n := len(s.VisitDistribution()); n != 0 {
		t.Fatalf("expected no materialized root children before the first simulation, got %d", n)
	}
}
