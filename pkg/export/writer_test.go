package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"loomworks/trawl/pkg/api"
)

// sliceSource serves pre-built batches, optionally ending with an error
// instead of io.EOF.
type sliceSource struct {
	batches  [][]api.Record
	finalErr error
	i        int
}

func (s *sliceSource) Next(ctx context.Context) ([]api.Record, error) {
	if s.i >= len(s.batches) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}
		return nil, io.EOF
	}
	batch := s.batches[s.i]
	s.i++
	return batch, nil
}

// readCSV parses the file at path into header and data rows.
func readCSV(t *testing.T, path string) (header []string, rows [][]string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse output csv: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("output csv is empty")
	}
	return all[0], all[1:]
}

func batchesOf(records []api.Record, size int) [][]api.Record {
	var batches [][]api.Record
	for len(records) > 0 {
		n := size
		if n > len(records) {
			n = len(records)
		}
		batches = append(batches, records[:n])
		records = records[n:]
	}
	return batches
}

func TestWriterLocksHeaderAndDropsDriftedFields(t *testing.T) {
	var records []api.Record
	for i := 0; i < 1000; i++ {
		records = append(records, api.Record{"x": float64(i), "y": "stable"})
	}
	for i := 1000; i < 1500; i++ {
		records = append(records, api.Record{"x": float64(i), "y": "stable", "z": "late"})
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	src := &sliceSource{batches: batchesOf(records, 100)}

	result, err := NewStreamWriter().StreamToFile(context.Background(), src, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RecordCount != 1500 {
		t.Errorf("RecordCount = %d, want 1500", result.RecordCount)
	}
	if !result.SchemaDriftDetected {
		t.Error("expected schema drift to be detected")
	}
	if !reflect.DeepEqual(result.DriftedFields, []string{"z"}) {
		t.Errorf("DriftedFields = %v, want [z]", result.DriftedFields)
	}

	header, rows := readCSV(t, path)
	if !reflect.DeepEqual(header, []string{"x", "y"}) {
		t.Errorf("header = %v, want [x y]; drifted fields must not become columns", header)
	}
	if len(rows) != 1500 {
		t.Errorf("expected 1500 data rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 2 {
			t.Fatalf("row %d has %d columns, want 2", i, len(row))
		}
	}
}

func TestWriterSmallInputWritesCompleteFile(t *testing.T) {
	// Ten records, never reaching the sample threshold: the header is
	// derived from all of them in one terminal write.
	var records []api.Record
	for i := 0; i < 5; i++ {
		records = append(records, api.Record{"a": float64(i)})
	}
	for i := 0; i < 5; i++ {
		records = append(records, api.Record{"a": float64(i), "b": "extra"})
	}

	path := filepath.Join(t.TempDir(), "small.csv")
	src := &sliceSource{batches: batchesOf(records, 3)}

	result, err := NewStreamWriter().StreamToFile(context.Background(), src, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RecordCount != 10 {
		t.Errorf("RecordCount = %d, want 10", result.RecordCount)
	}
	if result.SchemaDriftDetected {
		t.Error("keys seen inside the sample window are not drift")
	}

	header, rows := readCSV(t, path)
	if !reflect.DeepEqual(header, []string{"a", "b"}) {
		t.Errorf("header = %v, want union of all sampled keys [a b]", header)
	}
	if len(rows) != 10 {
		t.Errorf("expected 10 rows, got %d", len(rows))
	}
	// Records without b leave the cell empty.
	if rows[0][1] != "" {
		t.Errorf("missing field should be empty, got %q", rows[0][1])
	}
}

func TestWriterZeroRecordsWritesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	src := &sliceSource{}

	result, err := NewStreamWriter().StreamToFile(context.Background(), src, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", result.RecordCount)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("no file should be created for an empty collection")
	}
}

func TestWriterSourceErrorBeforeHeaderLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.csv")
	failure := fmt.Errorf("fetch failed")
	src := &sliceSource{
		batches:  [][]api.Record{{{"a": "1"}}},
		finalErr: failure,
	}

	_, err := NewStreamWriter().StreamToFile(context.Background(), src, path)
	if !errors.Is(err, failure) {
		t.Fatalf("expected source error propagated, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("no file should exist when the source failed before the header locked")
	}
}

func TestWriterSourceErrorWhileStreaming(t *testing.T) {
	var records []api.Record
	for i := 0; i < 12; i++ {
		records = append(records, api.Record{"n": float64(i)})
	}

	path := filepath.Join(t.TempDir(), "partial.csv")
	failure := fmt.Errorf("stream interrupted")
	src := &sliceSource{
		batches:  batchesOf(records, 4),
		finalErr: failure,
	}

	w := NewStreamWriter()
	w.SampleSize = 10

	result, err := w.StreamToFile(context.Background(), src, path)
	if !errors.Is(err, failure) {
		t.Fatalf("expected streaming error propagated, got %v", err)
	}

	// Rows written before the failure survive on disk.
	_, rows := readCSV(t, path)
	if len(rows) != result.RecordCount {
		t.Errorf("file has %d rows but result counted %d", len(rows), result.RecordCount)
	}
	if result.RecordCount != 12 {
		t.Errorf("expected all 12 records written before the failure, got %d", result.RecordCount)
	}
}

func TestWriterPropagatesTruncationFlag(t *testing.T) {
	big := make([]any, 1001)
	for i := range big {
		big[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "trunc.csv")
	src := &sliceSource{batches: [][]api.Record{
		{{"id": "1", "items": big}},
		{{"id": "2", "items": []any{"small"}}},
	}}

	result, err := NewStreamWriter().StreamToFile(context.Background(), src, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HadTruncation {
		t.Error("expected truncation flag for oversized array")
	}
	if result.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", result.RecordCount)
	}
}

func TestWriterQuotesSpecialCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quoted.csv")
	src := &sliceSource{batches: [][]api.Record{{
		{"text": `comma, "quote", newline`},
	}}}

	if _, err := NewStreamWriter().StreamToFile(context.Background(), src, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, rows := readCSV(t, path)
	if rows[0][0] != `comma, "quote", newline` {
		t.Errorf("special characters must survive a csv round trip, got %q", rows[0][0])
	}
}
