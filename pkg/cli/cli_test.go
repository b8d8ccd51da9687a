package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"loomworks/trawl/pkg/api"
	"loomworks/trawl/pkg/export"
)

func TestCommandErrorWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewCommandError("export", cause)

	if !strings.Contains(err.Error(), "export") {
		t.Errorf("error %q does not name the command", err)
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError must unwrap to its cause")
	}
}

func TestWaitNotifierFormatsNotice(t *testing.T) {
	var buf bytes.Buffer
	n := NewWaitNotifier(&buf)

	n.Waiting(42*time.Second, 3)

	out := buf.String()
	if !strings.Contains(out, "42s") || !strings.Contains(out, "attempt 3") {
		t.Errorf("unexpected notice: %q", out)
	}
}

func TestWaitNotifierImplementsWaitReporter(t *testing.T) {
	var _ export.WaitReporter = NewWaitNotifier(nil)
}

func TestPrintRunReport(t *testing.T) {
	started := time.Now()
	report := &export.RunReport{
		RunID:       "run-1",
		ProjectID:   "p1",
		ProjectName: "demo",
		OutputDir:   "exports/demo_p1",
		StartedAt:   started,
		FinishedAt:  started.Add(5 * time.Second),
		Results: []export.EntityResult{
			{
				Kind:   api.KindExperiment,
				Entity: api.Entity{ID: "exp-1", Name: "baseline"},
				File:   "exports/demo_p1/experiments/baseline_exp-1.csv",
				Result: export.Result{
					RecordCount:         100,
					SchemaDriftDetected: true,
					DriftedFields:       []string{"late.field"},
				},
			},
			{
				Kind:   api.KindExperiment,
				Entity: api.Entity{ID: "exp-2", Name: "empty"},
			},
			{
				Kind:   api.KindDataset,
				Entity: api.Entity{ID: "ds-1", Name: "corpus"},
				Err:    errors.New("status 403"),
			},
		},
	}

	var buf bytes.Buffer
	PrintRunReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"2 exported, 1 failed",
		"records:   100",
		"baseline_exp-1.csv",
		"schema drift in 1 field(s)",
		"no records, no file written",
		`FAILED dataset "corpus"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
