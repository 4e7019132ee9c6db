package mcts

import (
	"errors"

	"github.com/goishi/deepgo/evaluator"
)

// Error kinds surfaced across the search core (spec.md section 7).
var (
	// ErrWeightsMismatch is returned when an evaluator's output shape does
	// not match the board it was asked to score. Declared in the
	// evaluator package (which mcts already imports for the Evaluator
	// interface) and re-exported here since it's the CreateChildren/
	// playout caller, not evaluator itself, that needs to recognize it.
	ErrWeightsMismatch = evaluator.ErrWeightsMismatch
	// ErrTerminalPosition is returned by CreateChildren when the position
	// already has two consecutive passes and has no children to create.
	ErrTerminalPosition = errors.New("mcts: position is terminal")
	// ErrCancelled is returned by RunUntil when it stops because Stop was
	// called or its context was cancelled (rather than its deadline
	// passing).
	ErrCancelled = errors.New("mcts: search cancelled")
)
