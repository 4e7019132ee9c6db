// Command selfplay runs concurrent self-play games against an ONNX
// policy/value network, emitting parquet training batches and driving a
// live terminal dashboard, the way executor/main.go drives Battlesnake
// self-play games with the same flag/signal/bubbletea shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/goishi/deepgo/evaluator"
	"github.com/goishi/deepgo/search"
	"github.com/goishi/deepgo/store"
)

func main() {
	outDir := flag.String("out-dir", "./data", "directory to write parquet training batches to")
	modelPath := flag.String("model", "", "path to the ONNX policy/value network")
	workers := flag.Int("workers", 4, "number of concurrent self-play games")
	simsPerMove := flag.Int("sims-per-move", 400, "PUCT simulations run before each move")
	searchThreads := flag.Int("search-threads", 2, "goroutines per game's search tree")
	maxMoves := flag.Int("max-moves", 2*19*19, "move limit before a game is forced to end")
	sampleMoves := flag.Int("sample-moves", 30, "opening plies sampled proportionally instead of argmax")
	gamesPerFlush := flag.Int("games-per-flush", 50, "games buffered per parquet batch file")
	maxGames := flag.Int("max-games", 0, "stop after this many games (0 = unbounded)")
	onnxSessions := flag.Int("onnx-sessions", 2, "independent ONNX sessions in the backend pool")
	onnxBatchSize := flag.Int("onnx-batch-size", 16, "max positions per ONNX batch")
	onnxBatchTimeout := flag.Duration("onnx-batch-timeout", 5*time.Millisecond, "max wait before running a partial ONNX batch")
	komi := flag.Float64("komi", 7.5, "komi added to White's score")
	flag.Parse()

	if *modelPath == "" {
		log.Fatal("selfplay: -model is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := evaluator.NewONNXBackendPool(evaluator.ONNXBackendConfig{
		ModelPath:    *modelPath,
		BatchSize:    *onnxBatchSize,
		BatchTimeout: *onnxBatchTimeout,
	}, *onnxSessions)
	if err != nil {
		log.Fatalf("selfplay: create onnx backend pool: %v", err)
	}
	defer pool.Close()

	eval := evaluator.New(pool)
	eval.Policy = evaluator.RandomRotation

	searchCfg := search.DefaultConfig()
	searchCfg.NumWorkers = *searchThreads
	searchCfg.Komi = *komi

	opts := gameOptions{
		SearchConfig: searchCfg,
		Simulations:  *simsPerMove,
		MaxMoves:     *maxMoves,
		SampleMoves:  *sampleMoves,
	}

	stats := &runStats{}
	prog := tea.NewProgram(newModel(stats))

	go runGames(ctx, eval, opts, *outDir, *workers, *gamesPerFlush, *maxGames, stats, prog)

	if _, err := prog.Run(); err != nil {
		log.Fatalf("selfplay: dashboard: %v", err)
	}
}

type runStats struct {
	gamesFinished atomic.Int64
	movesPlayed   atomic.Int64
	simsRun       atomic.Int64
}

func runGames(ctx context.Context, eval *evaluator.Evaluator, opts gameOptions, outDir string, workers, gamesPerFlush, maxGames int, stats *runStats, prog *tea.Program) {
	var wg sync.WaitGroup
	var gameCounter atomic.Int64
	var flushMu sync.Mutex
	batchIndex := 0
	batch, err := store.NewBatchWriter(outDir, fmt.Sprintf("batch-%04d", batchIndex))
	if err != nil {
		log.Fatalf("selfplay: open initial batch: %v", err)
	}

	flush := func() {
		flushMu.Lock()
		defer flushMu.Unlock()
		if err := batch.Finalize(); err != nil {
			log.Printf("selfplay: finalize batch %d: %v", batchIndex, err)
		}
		batchIndex++
		next, err := store.NewBatchWriter(outDir, fmt.Sprintf("batch-%04d", batchIndex))
		if err != nil {
			log.Fatalf("selfplay: open batch %d: %v", batchIndex, err)
		}
		batch = next
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				n := gameCounter.Add(1)
				if maxGames > 0 && n > int64(maxGames) {
					return
				}
				gameID := fmt.Sprintf("g%08d", n)
				opts := opts
				opts.OnMoveRecorded = func(moveIndex int) {
					stats.movesPlayed.Add(1)
					stats.simsRun.Add(int64(opts.Simulations))
				}

				record, blackWon, err := playGame(gameID, eval, opts)
				if err != nil {
					log.Printf("selfplay: worker %d game %s: %v", worker, gameID, err)
					continue
				}
				log.Printf("selfplay: worker %d finished %s (black won: %v, moves: %d)", worker, gameID, blackWon, len(record.Rows))

				flushMu.Lock()
				if err := batch.WriteRows(record.Rows); err != nil {
					log.Printf("selfplay: write rows for %s: %v", gameID, err)
				}
				batch.NoteGameWritten()
				games, _ := batch.Stats()
				shouldFlush := games >= gamesPerFlush
				flushMu.Unlock()
				if shouldFlush {
					flush()
				}

				stats.gamesFinished.Add(1)
				prog.Send(tickMsg{})
			}
		}(w)
	}

	wg.Wait()
	flush()
	prog.Send(doneMsg{})
}
