package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/perf"
)

const rule = "============================================================"

// WriteDailyProgress renders the plain-text progress digest.
func WriteDailyProgress(w io.Writer, rep perf.ProgressReport, now time.Time) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Annotation progress - %s\n", now.Format("2006-01-02"))
	sb.WriteString(rule + "\n\n")

	sb.WriteString("Overview\n")
	fmt.Fprintf(&sb, "  Tasks: %d\n", rep.Summary.TotalTasks)
	fmt.Fprintf(&sb, "  Annotators: %d\n\n", rep.Summary.TotalUsers)

	sb.WriteString("Annotators\n")
	sb.WriteString(strings.Repeat("-", len(rule)) + "\n")
	for _, u := range rep.Users {
		rate := 0
		if u.TotalFrames > 0 {
			rate = u.AnnotatedFrames * 100 / u.TotalFrames
		}
		fmt.Fprintf(&sb, "\n%s:\n", u.Name)
		fmt.Fprintf(&sb, "  Jobs: %d completed / %d in progress / %d not started (%d total)\n",
			u.Completed, u.InProgress, u.NotStarted, u.TotalJobs)
		fmt.Fprintf(&sb, "  Frames: %d/%d (%d%%)\n", u.AnnotatedFrames, u.TotalFrames, rate)
		fmt.Fprintf(&sb, "  Shapes: %d\n", u.TotalShapes)
	}

	sb.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&sb, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))

	_, err := io.WriteString(w, sb.String())
	return err
}
