// Package archive persists samples recovered through the upstream fallback
// to Parquet files, so a later ingestion run can backfill the cache without
// refetching. Writes are best-effort; the serving path never depends on them.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/blockvol/internal/types"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SampleRow represents a sample in Parquet format.
type SampleRow struct {
	Epoch  int64 `parquet:"epoch"`
	Volume int64 `parquet:"volume"`
}

// Sink writes fallback-recovered sample batches into a directory of
// Parquet files, one file per batch.
type Sink struct {
	mu   sync.Mutex
	dir  string
	opts Options

	// now is swapped in tests for stable file names.
	now func() time.Time
}

// NewSink creates a Sink writing into dir.
func NewSink(dir string, opts Options) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Sink{dir: dir, opts: opts, now: time.Now}, nil
}

// Write persists one batch of samples covering rng. Empty batches are
// skipped. It returns the path of the written file.
func (s *Sink) Write(rng types.Range, samples []types.Sample) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("blocks-%s-%d.parquet", rangeLabel(rng), s.now().UnixMilli())
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[SampleRow](f,
		parquet.Compression(getCompression(s.opts.Compression)))

	rows := make([]SampleRow, len(samples))
	for i, sm := range samples {
		rows[i] = SampleRow{Epoch: sm.Epoch, Volume: sm.Volume}
	}

	if _, err := writer.Write(rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return path, nil
}

// ReadFile reads back all samples from one archive file.
func ReadFile(path string) ([]types.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[SampleRow](f)
	defer reader.Close()

	rows := make([]SampleRow, reader.NumRows())
	if len(rows) == 0 {
		return []types.Sample{}, nil
	}

	n, err := reader.Read(rows)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	samples := make([]types.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = types.Sample{Epoch: rows[i].Epoch, Volume: rows[i].Volume}
	}

	return samples, nil
}

func rangeLabel(rng types.Range) string {
	if !rng.Bounded {
		return "default"
	}
	return fmt.Sprintf("%d-%d", rng.Start, rng.End)
}
