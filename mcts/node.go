// Package mcts implements the Search Node: PUCT-guided expansion of a
// shared tree under concurrent descent, virtual loss, statistics
// backpropagation, root Dirichlet noise, proportional root sampling, and
// superko pruning of a node's children.
//
// The node layout (a materialized-prefix / logical-suffix child split, a
// two-phase has-children/is-expanding lock dance, and the exact PUCT and
// enter_node/leave_node formulas) is grounded on
// original_source/src/UCTNode.{h,cpp} — the Leela Zero implementation
// spec.md was distilled from — and on the concurrent goroutine-pool
// descent pattern in
// _examples/other_examples/H1W0XXX-xionghan__{node,mcts_search}.go, which
// is the only pack example that actually walks a tree from multiple
// goroutines under per-node locks the way this package must.
package mcts

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goishi/deepgo/board"
)

// VirtualLossCount is the visit-equivalent penalty applied to a node while
// a worker is descending through it, discouraging other workers from
// re-treading the same path before it resolves. Matches Leela's
// VIRTUAL_LOSS_COUNT.
const VirtualLossCount = 3

// childEntry is a (move, prior) pair not yet backed by a materialized
// Node. It is Leela's std::pair<int,float> in m_child_scores.
type childEntry struct {
	move  board.Vertex
	score float32
}

// Node is one vertex of the shared search tree. Every mutation of visits,
// evals, or the children slices happens under mu; virtualLoss, valid, and
// hasChildren use atomics so the hot descent path can probe them without
// taking the lock, while isExpanding is a plain bool guarded by mu.
type Node struct {
	mu sync.Mutex

	move board.Vertex // the move that reaches this node from its parent

	// children holds a (move, prior) entry for every child, in
	// materialized-prefix order: children[i] for i < len(materialized)
	// describes materialized[i]. Entries past the prefix are the
	// unmaterialized "logical" suffix, exactly as Leela's m_child_scores
	// keeps un-expanded children swapped after the expanded prefix.
	children     []childEntry
	materialized []*Node

	visits     uint32
	blackEvals float64

	score         float32 // this node's own prior, set by its parent at creation
	initEval      float32 // this node's own value estimate when first created
	childInitEval float32 // value handed to children created under this node

	virtualLoss atomic.Int32
	valid       atomic.Bool // false once pruned by superko
	hasChildren atomic.Bool
	isExpanding bool // guarded by mu
}

// NewRoot returns a fresh, unexpanded root node with the given initial
// value estimate (typically the evaluator's value for the root position).
func NewRoot(initEval float32) *Node {
	n := &Node{move: board.Pass, score: 1, initEval: initEval, childInitEval: initEval}
	n.valid.Store(true)
	return n
}

func newChild(move board.Vertex, score, initEval float32) *Node {
	n := &Node{move: move, score: score, initEval: initEval, childInitEval: initEval}
	n.valid.Store(true)
	return n
}

// Move returns the move that reaches this node from its parent.
func (n *Node) Move() board.Vertex { return n.move }

// Score returns this node's prior probability, as assigned by its parent.
func (n *Node) Score() float32 { return n.score }

// Valid reports whether the node survived superko pruning.
func (n *Node) Valid() bool { return n.valid.Load() }

// Invalidate marks the node as pruned (a superko-repeating move).
func (n *Node) Invalidate() { n.valid.Store(false) }

// HasChildren reports whether create_children has completed for this
// node.
func (n *Node) HasChildren() bool { return n.hasChildren.Load() }

// FirstVisit reports whether the node has not yet been visited.
func (n *Node) FirstVisit() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visits == 0
}

// Stats is an atomically-obtained snapshot of a node's statistics, used to
// compute a PUCT value without holding the node locked for the duration.
type Stats struct {
	Visits      uint32
	BlackEvals  float64
	Score       float32
	InitEval    float32
	VirtualLoss int32
}

// GetEval returns this stats snapshot's evaluation from color's
// perspective, using the parent's init_eval as a first-play-urgency value
// when the node has no real visits yet. Matches NodeStats::get_eval
// exactly, including that virtual losses count as losses for the visiting
// color when computing total_visits/blackeval.
func (s Stats) GetEval(color board.Color) float32 {
	totalVisits := int64(s.Visits) + int64(s.VirtualLoss)
	if totalVisits == 0 {
		if color == board.White {
			return 1 - s.InitEval
		}
		return s.InitEval
	}
	blackEval := s.BlackEvals
	if color == board.White {
		blackEval += float64(s.VirtualLoss)
	}
	score := float32(blackEval / float64(totalVisits))
	if color == board.White {
		score = 1 - score
	}
	return score
}

// GetStats atomically snapshots the node's statistics.
func (n *Node) GetStats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Stats{
		Visits:      n.visits,
		BlackEvals:  n.blackEvals,
		Score:       n.score,
		InitEval:    n.initEval,
		VirtualLoss: n.virtualLoss.Load(),
	}
}

// GetVisits returns the node's real (non-virtual) visit count.
func (n *Node) GetVisits() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visits
}

// GetEval returns the node's evaluation from color's perspective.
func (n *Node) GetEval(color board.Color) float32 {
	return n.GetStats().GetEval(color)
}

// EnterNode records the start of a descent through this node: it bumps
// virtual loss and, unusually, installs the passed-in visits and evalSum
// each only if it exceeds what the node already has — never
// decreasing the node's recorded statistics. This mirrors
// UCTNode::enter_node verbatim; it exists to let transposition-sharing
// callers seed a freshly-materialized node with a better estimate without
// ever letting a stale seed clobber real accumulated stats.
func (n *Node) EnterNode(visits uint32, evalSum float64) Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	if visits > n.visits {
		n.visits = visits
	}
	if evalSum > n.blackEvals {
		n.blackEvals = evalSum
	}
	n.virtualLoss.Add(VirtualLossCount)
	return Stats{Visits: n.visits, BlackEvals: n.blackEvals, Score: n.score, InitEval: n.initEval, VirtualLoss: n.virtualLoss.Load()}
}

// LeaveNode finishes a descent through this node: it accumulates the
// given visit and eval-sum deltas and removes the virtual loss applied by
// the matching EnterNode. Mirrors UCTNode::leave_node.
func (n *Node) LeaveNode(visits uint32, evalSum float64) Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visits += visits
	n.blackEvals += evalSum
	n.virtualLoss.Add(-VirtualLossCount)
	return Stats{Visits: n.visits, BlackEvals: n.blackEvals, Score: n.score, InitEval: n.initEval, VirtualLoss: n.virtualLoss.Load()}
}

// Update folds a single simulation's black-perspective evaluation into
// this node's running stats, incrementing visits by one without touching
// virtual loss. The search driver does not call it: every node on a
// descent path, the leaf included, is credited through LeaveNode.
func (n *Node) Update(blackEval float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visits++
	n.blackEvals += blackEval
}

// Children returns the materialized children in prefix order. Callers
// must not mutate the returned slice.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.materialized))
	copy(out, n.materialized)
	return out
}

// childStatsLocked returns the statistics that would be used to score child
// index i in m_child_scores order, materializing nothing: if the child is
// already materialized its real stats are used, otherwise a synthetic
// zero-visit Stats carrying the parent's childInitEval is returned. This
// mirrors UCTNode::child_get_stats. Caller must hold n.mu.
func (n *Node) childStatsLocked(i int) Stats {
	if i < len(n.materialized) {
		child := n.materialized[i]
		child.mu.Lock()
		defer child.mu.Unlock()
		return Stats{
			Visits:      child.visits,
			BlackEvals:  child.blackEvals,
			Score:       child.score,
			InitEval:    child.initEval,
			VirtualLoss: child.virtualLoss.Load(),
		}
	}
	entry := n.children[i]
	return Stats{Score: entry.score, InitEval: n.childInitEval}
}

// expandAtLocked materializes the child at logical index i, swapping it into
// the materialized prefix the way UCTNode::expand does (iter_swap then
// emplace_back), and returns it. Caller must hold n.mu.
func (n *Node) expandAtLocked(i int) *Node {
	if i < len(n.materialized) {
		return n.materialized[i]
	}
	dest := len(n.materialized)
	n.children[dest], n.children[i] = n.children[i], n.children[dest]
	entry := n.children[dest]
	child := newChild(entry.move, entry.score, n.childInitEval)
	n.materialized = append(n.materialized, child)
	return child
}

// MaterializeAll forces every logical child of n into existence,
// mirroring the materialize-everything loop UCTNode::
// randomize_first_proportionally runs before it samples. Root policy
// operations that must consider every child's real stats (best move,
// sampled move) call this instead of relying on UCTSelectChild,
// which only ever materializes the single highest-PUCT-value child and
// can stop making progress once that child is already materialized.
func (n *Node) MaterializeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.children {
		n.expandAtLocked(i)
	}
}

// sortRootChildrenLocked orders materialized children by visits
// descending, then by score for zero-visit ties, then by eval — matching
// NodeComp in UCTNode.cpp's sort_root_children.
func sortRootChildrenLocked(children []*Node, color board.Color) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		av, bv := a.GetVisits(), b.GetVisits()
		if av != bv {
			return av > bv
		}
		if av == 0 {
			return a.Score() > b.Score()
		}
		return a.GetEval(color) > b.GetEval(color)
	})
}
