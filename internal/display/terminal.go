// Package display provides terminal output formatting for vidfeed.
package display

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/walker"
)

const (
	separator = " • "
	// Graph event times carry no offset; fractional seconds are accepted when parsing.
	graphDateTime = "2006-01-02T15:04:05"
	shortDateTime = "1/2/06, 3:04 PM"
	maxErrLen     = 120
)

// TerminalFormatter formats command output for terminal display.
type TerminalFormatter struct{}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{}
}

// FormatWelcome greets the signed-in user.
func (f *TerminalFormatter) FormatWelcome(user *graph.User) string {
	return "Welcome " + user.DisplayName + "\n\n"
}

// FormatEvents lists calendar events in the order given.
func (f *TerminalFormatter) FormatEvents(events []graph.Event) string {
	if len(events) == 0 {
		return "No events to display.\n"
	}

	var b strings.Builder
	b.WriteString("Events:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "Subject: %s\n", e.Subject)
		fmt.Fprintf(&b, "  Organizer: %s\n", e.Organizer)
		fmt.Fprintf(&b, "  Start: %s\n", f.FormatDateTime(e.Start))
		fmt.Fprintf(&b, "  End: %s\n", f.FormatDateTime(e.End))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatDateTime renders a calendar time as "<short date time> (<zone>)".
// Unparseable times are shown as received.
func (f *TerminalFormatter) FormatDateTime(dt graph.EventDateTime) string {
	shown := dt.DateTime
	if t, err := time.Parse(graphDateTime, dt.DateTime); err == nil {
		shown = t.Format(shortDateTime)
	}
	return fmt.Sprintf("%s (%s)", shown, dt.TimeZone)
}

// FormatReport summarizes a generate run.
func (f *TerminalFormatter) FormatReport(rep *walker.Report) string {
	var lines []string

	if !rep.VideosRoot {
		lines = append(lines, "No Videos folder found; no feeds written.")
		return strings.Join(lines, "\n") + "\n"
	}

	years := make([]string, 0, len(rep.Written))
	for y := range rep.Written {
		years = append(years, y)
	}
	slices.Sort(years)

	header := fmt.Sprintf("Wrote %s in %s", pluralize(rep.Total(), "item"), pluralize(len(years), "feed"))
	if !rep.FinishedAt.IsZero() {
		header += separator + f.FormatDuration(rep.FinishedAt.Sub(rep.StartedAt))
	}
	lines = append(lines, header)

	for _, y := range years {
		lines = append(lines, fmt.Sprintf("  %s.rss%s%s", y, separator, pluralize(rep.Written[y], "item")))
	}

	if len(rep.Skipped) > 0 {
		lines = append(lines, fmt.Sprintf("Skipped %s: %s", pluralize(len(rep.Skipped), "folder"), strings.Join(rep.Skipped, ", ")))
	}
	if len(rep.Malformed) > 0 {
		lines = append(lines, fmt.Sprintf("Malformed links kept as-is: %s", strings.Join(rep.Malformed, ", ")))
	}
	if len(rep.Failures) > 0 {
		lines = append(lines, fmt.Sprintf("%s:", pluralize(len(rep.Failures), "failure")))
		for _, fl := range rep.Failures {
			where := fl.Folder
			if fl.Video != "" {
				where += "/" + fl.Video
			}
			lines = append(lines, fmt.Sprintf("  [%s] %s%s%s", fl.Year, where, separator, f.TruncateText(fl.Err.Error(), maxErrLen)))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatDuration rounds d for display.
func (f *TerminalFormatter) FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// pluralize returns "1 unit" or "N units".
func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// TruncateText truncates text to maxLen, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return text[:maxLen-3] + "..."
}
