package mcts

import "github.com/goishi/deepgo/board"

// PruneSuperkos drops every non-Pass child of n whose move would repeat a
// prior whole-board position, given pos (the position n itself
// represents). It must be called before any child of n is materialized,
// exactly like UCTNode::kill_superkos: rather than flagging entries
// invalid (a logical, unmaterialized entry carries no such flag),
// it rebuilds n's children list with the repeating moves physically
// removed, the way kill_superkos rebuilds m_child_scores in place.
func PruneSuperkos(n *Node, pos *board.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.materialized) != 0 {
		panic("mcts: PruneSuperkos called after children were materialized")
	}

	kept := n.children[:0:0]
	for _, entry := range n.children {
		if entry.move != board.Pass && pos.SuperkoOn(entry.move) {
			continue
		}
		kept = append(kept, entry)
	}
	n.children = kept
}
