// Package store persists search output as parquet training data, the way
// scraper/store/parquet.go and batch_writer.go persist Battlesnake replay
// rows: a typed row schema, a zstd-compressed parquet.GenericWriter, and a
// tmp-file-then-rename durability pattern so a crash mid-write never
// leaves a half-written file where a training pipeline might pick it up.
package store

// TrainingRow is one recorded search decision: the encoded position isn't
// stored (it's cheaply re-derivable from the Played moves of the game's
// earlier rows + the game's starting position), but the move actually played, the root's visit distribution
// used to derive a policy target, and the eventual game outcome are.
type TrainingRow struct {
	GameID    string  `parquet:"game_id,dict"`
	MoveIndex int32   `parquet:"move_index"`
	ToMove    int8    `parquet:"to_move"` // board.Black or board.White
	Played    int32   `parquet:"played"`  // board.Vertex, board.Pass encoded as -1
	Value     float32 `parquet:"value"`   // root's value estimate for ToMove
	Outcome   float32 `parquet:"outcome"` // game's final result for ToMove, 0 or 1

	// VisitVertices/VisitCounts are parallel arrays over the root's
	// materialized children at the time this row was recorded — a sparse
	// encoding of the full policy target, mirroring how ArchiveTurnRow
	// avoids storing a dense 19x19+1 vector per row.
	VisitVertices []int32  `parquet:"visit_vertices"`
	VisitCounts   []uint32 `parquet:"visit_counts"`
}

// GameRecord accumulates TrainingRows for a single self-play game until
// its outcome is known, since Outcome can't be filled in until the game
// ends.
type GameRecord struct {
	GameID string
	Rows   []TrainingRow
}

// SetOutcome fills in every row's Outcome field from blackWon, converting
// it to each row's own ToMove perspective.
func (g *GameRecord) SetOutcome(blackWon bool) {
	for i := range g.Rows {
		outcome := float32(0)
		if (g.Rows[i].ToMove == 1) == blackWon { // 1 == board.Black
			outcome = 1
		}
		g.Rows[i].Outcome = outcome
	}
}
