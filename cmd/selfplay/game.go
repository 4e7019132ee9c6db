package main

import (
	"fmt"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/evaluator"
	"github.com/goishi/deepgo/search"
	"github.com/goishi/deepgo/store"
)

// gameOptions configures one self-play game, mirroring
// executor/selfplay/worker.go's PlayGameOptions.
type gameOptions struct {
	SearchConfig   search.Config
	Simulations    int
	MaxMoves       int
	SampleMoves    int // number of opening plies sampled proportionally rather than argmax
	OnMoveRecorded func(moveIndex int)
}

// playGame runs one self-play game to completion (two passes or
// MaxMoves), returning its recorded training rows and the game's result
// from Black's perspective.
func playGame(gameID string, eval *evaluator.Evaluator, opts gameOptions) (*store.GameRecord, bool, error) {
	pos := board.NewGame()
	record := &store.GameRecord{GameID: gameID}

	s, err := search.New(pos, eval, opts.SearchConfig)
	if err != nil {
		return nil, false, fmt.Errorf("seed search for game %s: %w", gameID, err)
	}

	for moveIndex := 0; moveIndex < opts.MaxMoves; moveIndex++ {
		if s.RootPosition().Passes() >= 2 {
			break
		}
		// A root reused from the previous move's subtree already has
		// materialized children, and PruneSuperkos only runs before any
		// root child is materialized.
		if len(s.Root().Children()) == 0 {
			s.PruneSuperkos()
		}
		if err := s.Simulate(opts.Simulations); err != nil {
			return nil, false, fmt.Errorf("simulate move %d of game %s: %w", moveIndex, gameID, err)
		}

		visits := s.VisitDistribution()
		var move board.Vertex
		if moveIndex < opts.SampleMoves {
			move = s.SampledMove()
		} else {
			move = s.BestMove()
		}

		toMove := int8(1)
		if s.RootPosition().ToMove() == board.White {
			toMove = 2
		}
		row := store.TrainingRow{
			GameID:    gameID,
			MoveIndex: int32(moveIndex),
			ToMove:    toMove,
			Played:    int32(move),
			Value:     s.Root().GetEval(s.RootPosition().ToMove()),
		}
		row.VisitVertices = make([]int32, len(visits))
		row.VisitCounts = make([]uint32, len(visits))
		for i, v := range visits {
			row.VisitVertices[i] = int32(v.Move)
			row.VisitCounts[i] = v.Visits
		}
		record.Rows = append(record.Rows, row)

		if err := s.Advance(move); err != nil {
			return nil, false, fmt.Errorf("advance game %s past move %d: %w", gameID, moveIndex, err)
		}
		if opts.OnMoveRecorded != nil {
			opts.OnMoveRecorded(moveIndex)
		}
	}

	score := s.RootPosition().Score(opts.SearchConfig.Komi)
	blackWon := score > 0
	record.SetOutcome(blackWon)
	return record, blackWon, nil
}
