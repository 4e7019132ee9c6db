// Package search is the Search Driver: it owns a shared mcts.Node tree
// rooted at a board.Position, fans a worker pool out across it running
// PUCT descents, and exposes the root policy operations (best move,
// proportionally-sampled move, visit distribution, tree reuse across
// moves).
//
// The worker-pool fan-out (one goroutine per worker, a shared
// sync.WaitGroup, and a single atomic stop flag checked at the top of
// each descent) is grounded on
// executor/selfplay/worker.go's per-snake goroutine fan-out and on
// _examples/other_examples/H1W0XXX-xionghan__mcts_search.go's runMCTS,
// which is the pack's only from-scratch concurrent MCTS driver.
package search

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/evaluator"
	"github.com/goishi/deepgo/mcts"
)

// Config carries the search hyperparameters spec.md section 6 names.
type Config struct {
	NumWorkers   int
	CPuct        float32
	SoftmaxTemp  float32
	NoiseAlpha   float32
	NoiseEpsilon float32
	Komi         float64
	RandomSeed   int64
}

// DefaultConfig returns Leela-Zero-equivalent defaults.
func DefaultConfig() Config {
	c := mcts.DefaultConfig()
	return Config{
		NumWorkers:   4,
		CPuct:        c.CPuct,
		SoftmaxTemp:  1,
		NoiseAlpha:   c.NoiseAlpha,
		NoiseEpsilon: c.NoiseEpsilon,
		Komi:         7.5,
		RandomSeed:   1,
	}
}

// Search drives a shared PUCT tree from a root position.
type Search struct {
	cfg   Config
	eval  mcts.Evaluator
	root  *mcts.Node
	pos   *board.Position
	nodes atomic.Int64
	stop  atomic.Bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New evaluates pos once to seed the root's initial value estimate,
// expands its children, and applies root Dirichlet noise, mirroring how
// UCTSearch seeds its root before the first playout.
func New(pos *board.Position, eval mcts.Evaluator, cfg Config) (*Search, error) {
	moves, value, err := eval.Evaluate(pos)
	if err != nil {
		return nil, err
	}
	rootEval := value
	if pos.ToMove() == board.White {
		rootEval = 1 - rootEval
	}

	root := mcts.NewRoot(rootEval)
	s := &Search{cfg: cfg, eval: eval, root: root, pos: pos, rng: rand.New(rand.NewSource(cfg.RandomSeed))}

	_, _, err = mcts.CreateChildren(&s.nodes, root, pos, &fixedEvaluator{moves: moves, value: value})
	if err != nil && !errors.Is(err, mcts.ErrTerminalPosition) {
		return nil, err
	}
	if cfg.NoiseEpsilon > 0 {
		s.rngMu.Lock()
		mcts.ApplyRootNoise(root, s.rng, cfg.NoiseAlpha, cfg.NoiseEpsilon)
		s.rngMu.Unlock()
	}
	return s, nil
}

// fixedEvaluator replays an already-computed Evaluate result, used so New
// doesn't score the root position twice.
type fixedEvaluator struct {
	moves []evaluator.ScoredMove
	value float32
}

func (f *fixedEvaluator) Evaluate(pos *board.Position) ([]evaluator.ScoredMove, float32, error) {
	return f.moves, f.value, nil
}

// Root returns the current root node, primarily for spectate snapshots.
func (s *Search) Root() *mcts.Node { return s.root }

// RootPosition returns the position the current root represents.
func (s *Search) RootPosition() *board.Position { return s.pos }

// NodeCount returns the number of nodes created so far.
func (s *Search) NodeCount() int64 { return s.nodes.Load() }

// Stop requests that all in-flight and future Simulate/RunUntil calls
// return as soon as possible. Safe to call concurrently with Simulate.
func (s *Search) Stop() { s.stop.Store(true) }

// PruneSuperkos drops every root move that would repeat a prior
// whole-board position, the way UCTSearch calls kill_superkos on the
// root before starting simulations. Callers must invoke this after New
// and before the first Simulate/RunUntil call: once a root child has
// been materialized by a playout, mcts.PruneSuperkos panics.
func (s *Search) PruneSuperkos() {
	mcts.PruneSuperkos(s.root, s.pos)
}

// Simulate runs exactly n simulations spread across cfg.NumWorkers
// goroutines and blocks until they all complete or Stop is called.
func (s *Search) Simulate(n int) error {
	workers := s.cfg.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	var remaining atomic.Int64
	remaining.Store(int64(n))
	var firstErr atomic.Value

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if s.stop.Load() {
					return
				}
				if remaining.Add(-1) < 0 {
					return
				}
				if err := s.playout(); err != nil {
					firstErr.CompareAndSwap(nil, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if v := firstErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// RunUntil runs simulations continuously across cfg.NumWorkers goroutines
// until ctx is cancelled, deadline passes, or Stop is called, whichever
// comes first. It returns mcts.ErrCancelled when Stop or ctx ended the run,
// and nil when the deadline did.
func (s *Search) RunUntil(ctx context.Context, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	workers := s.cfg.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	var firstErr atomic.Value

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if s.stop.Load() {
					return
				}
				if err := s.playout(); err != nil {
					firstErr.CompareAndSwap(nil, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if v := firstErr.Load(); v != nil {
		return v.(error)
	}
	if s.stop.Load() || errors.Is(ctx.Err(), context.Canceled) {
		return mcts.ErrCancelled
	}
	return nil
}

// playout runs a single PUCT descent from the root to an unexpanded leaf,
// evaluates the leaf, and backpropagates the result. It mirrors
// UCTSearch::play_simulation: enter_node is called once per node while
// descending (installing virtual loss), and leave_node is called once
// per node on the path while unwinding (contributing exactly one visit
// and one eval sum per simulation).
func (s *Search) playout() error {
	node := s.root
	pos := s.pos
	path := []*mcts.Node{node}
	node.EnterNode(0, 0)

	for node.HasChildren() {
		child := mcts.UCTSelectChild(node, pos.ToMove(), s.cfg.CPuct)
		if child == nil {
			break
		}
		pos = pos.Play(child.Move())
		child.EnterNode(0, 0)
		path = append(path, child)
		node = child
	}

	expanded, netEval, err := mcts.CreateChildren(&s.nodes, node, pos, s.eval)

	var leafEval float32
	switch {
	case errors.Is(err, mcts.ErrTerminalPosition):
		score := pos.Score(s.cfg.Komi)
		switch {
		case score > 0:
			leafEval = 1
		case score < 0:
			leafEval = 0
		default:
			leafEval = 0.5
		}
	case err != nil:
		for _, nd := range path {
			nd.LeaveNode(0, 0)
		}
		return err
	case expanded:
		leafEval = netEval
	default:
		// Another worker is expanding this leaf, or already has: this
		// descent is a dead end. Mirror the err != nil branch exactly —
		// unwind virtual loss and contribute no visit — rather than
		// backpropagating this node's own VL-diluted eval as if it were
		// a real evaluation.
		for _, nd := range path {
			nd.LeaveNode(0, 0)
		}
		return nil
	}

	blackEval := float64(leafEval)
	for _, nd := range path {
		nd.LeaveNode(1, blackEval)
	}
	return nil
}
