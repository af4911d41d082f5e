package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler signature - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case JoinNested, JoinHash, JoinMerge:
		left := intData(event, "left.size")
		right := intData(event, "right.size")
		result := intData(event, "result.size")
		pred, _ := event.Data["predicate"].(string)

		joinStr := fmt.Sprintf("%s(%s) %d × %d%s%s",
			joinLabel(event.Name),
			f.colorize(pred, color.FgCyan),
			left, right,
			f.arrow(),
			f.colorizeCount("tuples", result))

		// Flag explosive joins
		if left > 0 && right > 0 && (result > left*right/2 || result > 100000) {
			return fmt.Sprintf("%s %s %s", latency, f.colorize("!", color.FgYellow), joinStr)
		}
		return fmt.Sprintf("%s %s", latency, joinStr)

	case JoinRewind:
		op, _ := event.Data["operator"].(string)
		return fmt.Sprintf("%s Rewind(%s)", latency, op)

	case HashBuild:
		return fmt.Sprintf("%s HashBuild %s into %s",
			latency,
			f.colorizeCount("tuples", intData(event, "left.size")),
			f.colorizeCount("groups", intData(event, "group.count")))

	case MergeMaterialize:
		return fmt.Sprintf("%s Materialize left=%s right=%s",
			latency,
			f.colorizeCount("tuples", intData(event, "left.size")),
			f.colorizeCount("tuples", intData(event, "right.size")))

	case SortLevelOne:
		return fmt.Sprintf("%s Level-1 sort%s%s of 4",
			latency,
			f.arrow(),
			f.colorizeCount("runs", intData(event, "run.count")))

	case SortLevelTwo:
		return fmt.Sprintf("%s Level-2 merge%s%s of 8",
			latency,
			f.arrow(),
			f.colorizeCount("runs", intData(event, "run.count")))

	case PartitionRange:
		min, _ := event.Data["key.min"].(string)
		max, _ := event.Data["key.max"].(string)
		return fmt.Sprintf("%s Partition [%s, %s]%s%s",
			latency,
			f.colorize(min, color.FgCyan),
			f.colorize(max, color.FgCyan),
			f.arrow(),
			f.colorizeCount("buckets", intData(event, "bucket.count")))

	case MergeScan:
		return fmt.Sprintf("%s MergeScan %s%s%s",
			latency,
			f.colorizeCount("workers", intData(event, "worker.count")),
			f.arrow(),
			f.colorizeCount("tuples", intData(event, "result.size")))

	case StoreLoad:
		table, _ := event.Data["table"].(string)
		return fmt.Sprintf("%s Load(%s)%s%s",
			latency,
			f.colorize(table, color.FgCyan),
			f.arrow(),
			f.colorizeCount("tuples", intData(event, "tuple.count")))

	case StoreScan:
		table, _ := event.Data["table"].(string)
		return fmt.Sprintf("%s Scan(%s)%s%s",
			latency,
			f.colorize(table, color.FgCyan),
			f.arrow(),
			f.colorizeCount("tuples", intData(event, "tuple.count")))

	case ErrorChild, ErrorWorker:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// joinLabel maps a join event name to its display label
func joinLabel(name string) string {
	switch name {
	case JoinNested:
		return "NestedLoopJoin"
	case JoinHash:
		return "HashJoin"
	case JoinMerge:
		return "MergeJoin"
	default:
		return name
	}
}

// intData reads an int out of event data, tolerating absence
func intData(event Event, key string) int {
	if v, ok := event.Data[key].(int); ok {
		return v
	}
	return 0
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "tuples":
		return color.MagentaString(text)
	case "runs", "buckets", "groups":
		return color.CyanString(text)
	case "workers":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// arrow returns the result separator, colored when enabled.
func (f *OutputFormatter) arrow() string {
	if !f.useColor {
		return " -> "
	}
	return color.YellowString(" -> ")
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	formatter := NewOutputFormatter(os.Stdout)
	return func(event Event) {
		output := formatter.Format(event)
		if output != "" {
			fmt.Fprintln(formatter.writer, output)
		}
	}
}

// isTerminal checks if the file descriptor is a terminal.
// This is a simplified version - in production you'd use a proper terminal detection library.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2) // stdout or stderr
}
