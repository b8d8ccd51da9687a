package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"loomworks/trawl/pkg/export"
)

// PrintRunReport renders a run summary for terminal output.
func PrintRunReport(w io.Writer, report *export.RunReport) {
	fmt.Fprintf(w, "\nExport of project %q finished in %s\n",
		report.ProjectName,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second),
	)
	fmt.Fprintf(w, "  entities:  %d exported, %d failed\n", report.Succeeded(), report.Failed())
	fmt.Fprintf(w, "  records:   %d\n", report.TotalRecords())
	if report.OutputDir != "" {
		fmt.Fprintf(w, "  output:    %s\n", report.OutputDir)
	}

	for _, res := range report.Results {
		if res.Failed() {
			fmt.Fprintf(w, "  FAILED %s %q (%s): %v\n",
				res.Kind, res.Entity.Name, res.Entity.ID, res.Err)
			continue
		}
		notes := reportNotes(res)
		if res.File == "" {
			fmt.Fprintf(w, "  %s %q: no records, no file written\n", res.Kind, res.Entity.Name)
			continue
		}
		fmt.Fprintf(w, "  %s %q: %d records -> %s%s\n",
			res.Kind, res.Entity.Name, res.Result.RecordCount, res.File, notes)
	}
}

// reportNotes summarizes data-quality caveats for one entity line.
func reportNotes(res export.EntityResult) string {
	var notes []string
	if res.Result.HadTruncation {
		notes = append(notes, "oversized arrays truncated")
	}
	if res.Result.SchemaDriftDetected {
		notes = append(notes, fmt.Sprintf("schema drift in %d field(s)", len(res.Result.DriftedFields)))
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, "; ") + ")"
}
