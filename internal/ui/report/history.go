package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"nyein/internal/data/history"
)

func RenderHistoryTSV(records []history.BuildRecord) []byte {
	var buf strings.Builder
	buf.WriteString("Started\tOperation\tEntry\tOutcome\tDurationMs\tFiles\tCycles\tSkipped\tCollisions\tOutput\tError\n")
	for _, r := range records {
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Operation,
			r.Entry,
			r.Outcome,
			r.Duration.Milliseconds(),
			r.Files,
			r.Cycles,
			r.Skipped,
			r.Collisions,
			r.Output,
			r.ErrorCode,
		)
	}
	return []byte(buf.String())
}

func RenderHistoryJSON(records []history.BuildRecord) ([]byte, error) {
	if records == nil {
		records = []history.BuildRecord{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// History prints one line per build, newest first as stored.
func History(w io.Writer, records []history.BuildRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, statusStyle.Render("no builds recorded"))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d recent build(s)", len(records))))
	for _, r := range records {
		outcome := successStyle.Render(r.Outcome)
		if r.Outcome != history.OutcomeSuccess {
			outcome = errorStyle.Render(r.Outcome)
		}
		line := fmt.Sprintf("  %s  %-6s %s  %s  %d files  %s",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Operation,
			outcome,
			r.Entry,
			r.Files,
			r.Duration.Round(time.Millisecond),
		)
		if r.ErrorCode != "" {
			line += "  " + r.ErrorCode
		}
		fmt.Fprintln(w, line)
	}
}
