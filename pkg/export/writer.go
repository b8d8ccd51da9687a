package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

// defaultSampleSize is how many records the writer buffers before
// inferring and locking the header set.
const defaultSampleSize = 1000

// Result summarizes one entity's export.
type Result struct {
	// RecordCount is the number of data rows written.
	RecordCount int

	// HadTruncation reports whether any value was truncated or
	// degraded to a placeholder during flattening.
	HadTruncation bool

	// SchemaDriftDetected reports whether records after the sample
	// window introduced fields absent from the locked header set.
	SchemaDriftDetected bool

	// DriftedFields names the fields dropped due to schema drift.
	DriftedFields []string
}

// StreamWriter writes record batches to a CSV file incrementally.
//
// It runs as a two-phase state machine. While buffering, incoming
// records accumulate until the sample size is reached (or input ends),
// at which point the union of their key paths is sorted and locked as
// the header. While streaming, later batches append rows using only the
// locked header; fields the sample never saw are dropped, not appended,
// so the column set is stable for the whole file.
type StreamWriter struct {
	// SampleSize overrides the header inference window.
	// Default: 1000
	SampleSize int

	logger *slog.Logger
}

// NewStreamWriter creates a writer with default settings.
func NewStreamWriter() *StreamWriter {
	return &StreamWriter{
		SampleSize: defaultSampleSize,
		logger:     slog.Default().With("component", "export.writer"),
	}
}

// StreamToFile consumes src and writes one CSV file at path. At most
// SampleSize records are held in memory at once (plus the batch being
// flattened). If src yields no records, no file is created and a zero
// Result is returned. The file handle is released on every exit path.
func (w *StreamWriter) StreamToFile(ctx context.Context, src BatchSource, path string) (Result, error) {
	if w.logger == nil {
		w.logger = slog.Default().With("component", "export.writer")
	}
	sampleSize := w.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	var result Result

	// Phase one: buffer flattened records until the sample window
	// closes or input runs out.
	var buffered []FlatRecord
	keys := make(map[string]struct{})
	exhausted := false

	for len(buffered) < sampleSize {
		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			exhausted = true
			break
		}
		if err != nil {
			return result, err
		}

		for _, rec := range batch {
			flat, truncated := Flatten(rec)
			if truncated {
				result.HadTruncation = true
			}
			for k := range flat {
				keys[k] = struct{}{}
			}
			buffered = append(buffered, flat)
		}
	}

	if len(buffered) == 0 {
		// Nothing arrived: no file, zero count. The caller decides
		// whether an empty entity is an error.
		return result, nil
	}

	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	file, err := os.Create(path)
	if err != nil {
		return result, fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(header); err != nil {
		return result, fmt.Errorf("failed to write header: %w", err)
	}

	drifted := make(map[string]struct{})

	writeBatch := func(flats []FlatRecord) error {
		for _, flat := range flats {
			for k := range flat {
				if _, ok := keys[k]; !ok {
					drifted[k] = struct{}{}
				}
			}
			if err := cw.Write(rowFor(flat, header)); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			result.RecordCount++
		}
		cw.Flush()
		return cw.Error()
	}

	if err := writeBatch(buffered); err != nil {
		return result, err
	}
	buffered = nil

	// Phase two: stream remaining batches against the locked header.
	for !exhausted {
		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, err
		}

		flats := make([]FlatRecord, 0, len(batch))
		for _, rec := range batch {
			flat, truncated := Flatten(rec)
			if truncated {
				result.HadTruncation = true
			}
			flats = append(flats, flat)
		}
		if err := writeBatch(flats); err != nil {
			return result, err
		}
	}

	if len(drifted) > 0 {
		result.SchemaDriftDetected = true
		fields := make([]string, 0, len(drifted))
		for k := range drifted {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		result.DriftedFields = fields
		// One warning per run, naming every new field.
		w.logger.Warn("schema drift detected, new fields dropped from output",
			"path", path,
			"fields", fields,
		)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return result, err
	}
	if err := file.Close(); err != nil {
		return result, fmt.Errorf("failed to close %q: %w", path, err)
	}

	return result, nil
}

// rowFor projects a flattened record onto the locked header.
func rowFor(flat FlatRecord, header []string) []string {
	row := make([]string, len(header))
	for i, key := range header {
		if value, ok := flat[key]; ok {
			row[i] = formatCell(value)
		}
	}
	return row
}
