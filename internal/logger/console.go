// Package logger provides the output sinks of a collection run.
//
// ConsoleLogger prints the collection report lines users read on stdout;
// FileLogger keeps a levelled, rotating log of every run. Both are safe for
// concurrent use and satisfy the collect.Logger interface.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nexdatas/nxstools/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger prints report lines to a writer. Report lines (populate,
// append, cannot-open and summaries) are always written; levelled messages
// are filtered by log level and prefixed with [HH:MM:SS] [LEVEL].
// Color output is enabled only when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (via fatih/color) disables colors even on a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := levels[normalized]; ok {
		return normalized
	}
	return "info"
}

var levels = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	if n, ok := levels[level]; ok {
		return n
	}
	return levelInfo
}

func shouldLog(configured, message string) bool {
	return logLevelToInt(message) >= logLevelToInt(configured)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !shouldLog(cl.logLevel, strings.ToLower(level)) {
		return
	}
	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), label, message))
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgCyan)
	}
}

func (cl *ConsoleLogger) write(s string) {
	if cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

func (cl *ConsoleLogger) paint(attr color.Attribute, s string) string {
	if !cl.colorOutput {
		return s
	}
	return color.New(attr).Sprint(s)
}

// LogPopulate announces the target dataset a placeholder populates.
// Format: "populate: <target> with ['<spec>']"
func (cl *ConsoleLogger) LogPopulate(target, spec string) {
	cl.write(fmt.Sprintf("populate: %s with ['%s']\n", cl.paint(color.FgCyan, target), spec))
}

// LogEntry prints one candidate outcome. Appended frames print as
// " * append <path> "; other outcomes print their detail.
func (cl *ConsoleLogger) LogEntry(entry models.Entry) {
	switch entry.Outcome {
	case models.Appended:
		cl.write(fmt.Sprintf(" * append %s \n", entry.Path))
	case models.Skipped:
		cl.write(cl.paint(color.FgYellow, entry.Detail) + "\n")
	default:
		cl.write(cl.paint(color.FgRed, entry.Detail) + "\n")
	}
}

// LogFieldSummary prints the per-field totals.
// Format: " = <target>: N appended, N skipped, N failed (<size>)"
func (cl *ConsoleLogger) LogFieldSummary(report *models.FieldReport) {
	cl.write(fmt.Sprintf(" = %s: %s, %d skipped, %s (%s)\n",
		report.Target,
		cl.paint(color.FgGreen, fmt.Sprintf("%d appended", report.Count(models.Appended))),
		report.Count(models.Skipped),
		cl.failed(report.Count(models.Failed)),
		humanize.Bytes(uint64(report.Bytes())),
	))
}

func (cl *ConsoleLogger) failed(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n == 0 {
		return s
	}
	return cl.paint(color.FgRed, s)
}

// LogFieldError prints why a placeholder field could not be processed.
func (cl *ConsoleLogger) LogFieldError(field string, err error) {
	cl.write(cl.paint(color.FgRed, fmt.Sprintf("Cannot populate %s: %v", field, err)) + "\n")
}

// LogRunComplete is silent on the console; per-field summaries already
// cover the run.
func (cl *ConsoleLogger) LogRunComplete(run *models.RunReport) {
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// NoOpLogger discards all messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogTrace is a no-op implementation.
func (n *NoOpLogger) LogTrace(message string) {
}

// LogDebug is a no-op implementation.
func (n *NoOpLogger) LogDebug(message string) {
}

// LogPopulate is a no-op implementation.
func (n *NoOpLogger) LogPopulate(target, spec string) {
}

// LogEntry is a no-op implementation.
func (n *NoOpLogger) LogEntry(entry models.Entry) {
}

// LogFieldSummary is a no-op implementation.
func (n *NoOpLogger) LogFieldSummary(report *models.FieldReport) {
}

// LogFieldError is a no-op implementation.
func (n *NoOpLogger) LogFieldError(field string, err error) {
}

// LogRunComplete is a no-op implementation.
func (n *NoOpLogger) LogRunComplete(run *models.RunReport) {
}
