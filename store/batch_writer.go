package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// BatchWriter streams archive rows for many sessions into one parquet file
// under outDir/tmp and moves it into outDir on Finalize.
type BatchWriter struct {
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[ArchiveTickRow]

	sessions int
	rows     int
}

func NewBatchWriter(outDir string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := batchName()
	tmpPath := filepath.Join(tmpDir, name)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	return &BatchWriter{
		tmpPath: tmpPath,
		outPath: filepath.Join(absOut, name),
		file:    f,
		writer:  parquet.NewGenericWriter[ArchiveTickRow](f, parquetOptions()...),
	}, nil
}

func (b *BatchWriter) OutPath() string { return b.outPath }
func (b *BatchWriter) Rows() int       { return b.rows }

// WriteSession appends one session's rows.
func (b *BatchWriter) WriteSession(rows []ArchiveTickRow) error {
	if b.writer == nil {
		return fmt.Errorf("batch writer is closed")
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := b.writer.Write(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	b.rows += len(rows)
	b.sessions++
	return nil
}

// Finalize closes the file and moves it into place. With no rows written the
// temp file is removed and outPath is empty.
func (b *BatchWriter) Finalize() (outPath string, rows, sessions int, err error) {
	if b.writer == nil {
		return "", 0, 0, nil
	}
	closeErr := b.writer.Close()
	fileErr := b.file.Close()
	b.writer, b.file = nil, nil

	if closeErr != nil || fileErr != nil {
		_ = os.Remove(b.tmpPath)
		return "", 0, 0, fmt.Errorf("close parquet: %v, file: %v", closeErr, fileErr)
	}
	if b.rows == 0 {
		_ = os.Remove(b.tmpPath)
		return "", 0, 0, nil
	}
	if err := os.Rename(b.tmpPath, b.outPath); err != nil {
		_ = os.Remove(b.tmpPath)
		return "", 0, 0, fmt.Errorf("rename parquet: %w", err)
	}
	return b.outPath, b.rows, b.sessions, nil
}
