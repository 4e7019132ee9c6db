package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// BatchWriter buffers TrainingRows from many concurrently-finishing
// self-play games into one parquet file, flushing to a tmp file that is
// only renamed into outDir once Finalize succeeds — the same
// write-to-tmp-then-rename durability pattern batch_writer.go uses, so a
// process killed mid-batch never leaves a partial file where a training
// job might read it.
type BatchWriter struct {
	mu sync.Mutex

	outDir string
	tmpDir string
	name   string

	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[TrainingRow]

	bufferedGames int
	bufferedRows  int
}

// NewBatchWriter creates a new batch file named name.parquet, writing
// through a .tmp subdirectory of outDir until Finalize.
func NewBatchWriter(outDir, name string) (*BatchWriter, error) {
	tmpDir := filepath.Join(outDir, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch tmp dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch out dir: %w", err)
	}

	tmpPath := filepath.Join(tmpDir, name+".parquet.tmp")
	outPath := filepath.Join(outDir, name+".parquet")

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create batch tmp file %q: %w", tmpPath, err)
	}

	writer := parquet.NewGenericWriter[TrainingRow](f, parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}))
	if err := writer.SetKeyValueMetadata("schema", "training_row_v1"); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("set batch metadata: %w", err)
	}

	return &BatchWriter{
		outDir:  outDir,
		tmpDir:  tmpDir,
		name:    name,
		tmpPath: tmpPath,
		outPath: outPath,
		file:    f,
		writer:  writer,
	}, nil
}

// WriteRows appends rows to the batch.
func (b *BatchWriter) WriteRows(rows []TrainingRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.writer.Write(rows)
	b.bufferedRows += n
	if err != nil {
		return fmt.Errorf("write training rows: %w", err)
	}
	return nil
}

// NoteGameWritten records that one more game's rows have been fully
// written to this batch, for reporting purposes.
func (b *BatchWriter) NoteGameWritten() {
	b.mu.Lock()
	b.bufferedGames++
	b.mu.Unlock()
}

// Stats returns the number of games and rows buffered so far.
func (b *BatchWriter) Stats() (games, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferedGames, b.bufferedRows
}

// Finalize closes the writer and file, then atomically renames the tmp
// file into outDir — or, if zero rows were ever written, discards it.
func (b *BatchWriter) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writer.Close(); err != nil {
		b.file.Close()
		return fmt.Errorf("close batch writer: %w", err)
	}
	if err := b.file.Close(); err != nil {
		return fmt.Errorf("close batch tmp file: %w", err)
	}

	if b.bufferedRows == 0 {
		return os.Remove(b.tmpPath)
	}
	if err := os.Rename(b.tmpPath, b.outPath); err != nil {
		return fmt.Errorf("rename batch %q -> %q: %w", b.tmpPath, b.outPath, err)
	}
	return nil
}
