package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// DefaultFlushRows is how many rows are buffered before a row group is cut.
const DefaultFlushRows = 256

// Recorder appends TurnRows to a Parquet file under dir/tmp and moves it into
// dir on Close, so readers never observe a partial file.
type Recorder struct {
	outDir  string
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[TurnRow]

	flushRows int
	pending   int
	rows      int
}

func NewRecorder(outDir, sessionID string, flushRows int) (*Recorder, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if flushRows <= 0 {
		flushRows = DefaultFlushRows
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("session_%d", time.Now().UnixNano())
	if sessionID != "" {
		name += "_" + sessionID
	}
	name += ".parquet"
	tmpPath := filepath.Join(tmpDir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[TurnRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", SchemaName)

	return &Recorder{
		outDir:    absOut,
		tmpPath:   tmpPath,
		outPath:   filepath.Join(absOut, name),
		file:      f,
		writer:    w,
		flushRows: flushRows,
	}, nil
}

func (r *Recorder) TmpPath() string { return r.tmpPath }
func (r *Recorder) OutPath() string { return r.outPath }
func (r *Recorder) Rows() int       { return r.rows }

func (r *Recorder) Record(row TurnRow) error {
	if r.writer == nil || r.file == nil {
		return fmt.Errorf("recorder is closed")
	}
	if _, err := r.writer.Write([]TurnRow{row}); err != nil {
		return fmt.Errorf("write turn %d: %w", row.Turn, err)
	}
	r.rows++
	r.pending++
	if r.pending >= r.flushRows {
		if err := r.writer.Flush(); err != nil {
			return fmt.Errorf("flush row group: %w", err)
		}
		r.pending = 0
	}
	return nil
}

// Close finishes the file and moves it out of tmp/. If no rows were
// recorded the tmp file is removed and outPath is empty.
func (r *Recorder) Close() (outPath string, rows int, err error) {
	if r.writer == nil && r.file == nil {
		return "", 0, nil
	}
	rows = r.rows

	var closeErr error
	if r.writer != nil {
		closeErr = r.writer.Close()
		r.writer = nil
	}
	var fileErr error
	if r.file != nil {
		_ = r.file.Sync()
		fileErr = r.file.Close()
		r.file = nil
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return "", 0, fmt.Errorf("close parquet file: %w", fileErr)
	}

	if rows == 0 {
		_ = os.Remove(r.tmpPath)
		return "", 0, nil
	}
	if err := os.Rename(r.tmpPath, r.outPath); err != nil {
		return "", 0, fmt.Errorf("rename parquet: %w", err)
	}
	return r.outPath, rows, nil
}
