package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"

	"github.com/nexdatas/nxstools/internal/models"
)

// LogFileName is the active log file inside the log directory; lumberjack
// rotates it to timestamped backups.
const LogFileName = "nxscollect.log"

// FileOptions configures a FileLogger.
type FileOptions struct {
	Dir     string // Log directory, created when missing
	Level   string // trace, debug, info, warn or error
	MaxSize int    // Megabytes before rotation
	MaxAge  int    // Days to keep rotated files
}

// FileLogger appends levelled lines for every run to a rotating log file.
type FileLogger struct {
	out      io.WriteCloser
	path     string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger opens (or creates) the log file in opts.Dir.
func NewFileLogger(opts FileOptions) (*FileLogger, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("log directory not set")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(opts.Dir, LogFileName)
	return &FileLogger{
		out: &lumberjack.Logger{
			Filename: path,
			MaxSize:  opts.MaxSize,
			MaxAge:   opts.MaxAge,
		},
		path:     path,
		logLevel: normalizeLogLevel(opts.Level),
	}, nil
}

// Path returns the active log file path.
func (fl *FileLogger) Path() string {
	return fl.path
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !shouldLog(fl.logLevel, strings.ToLower(level)) {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fmt.Fprintf(fl.out, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, message)
}

// LogPopulate logs the start of a placeholder field.
func (fl *FileLogger) LogPopulate(target, spec string) {
	fl.LogInfo(fmt.Sprintf("populate %s with %q", target, spec))
}

// LogEntry logs one candidate outcome; appends at debug level, skips as
// warnings and failures as errors.
func (fl *FileLogger) LogEntry(entry models.Entry) {
	switch entry.Outcome {
	case models.Appended:
		fl.LogDebug(fmt.Sprintf("index %d: append %s (%s)", entry.Index, entry.Path, humanize.Bytes(uint64(entry.Bytes))))
	case models.Skipped:
		fl.LogWarn(fmt.Sprintf("index %d: skipped: %s", entry.Index, entry.Detail))
	default:
		fl.LogError(fmt.Sprintf("index %d: failed: %s", entry.Index, entry.Detail))
	}
}

// LogFieldSummary logs the per-field totals.
func (fl *FileLogger) LogFieldSummary(report *models.FieldReport) {
	fl.LogInfo(fmt.Sprintf("%s: %d appended, %d skipped, %d failed, %d frames, %s",
		report.Target,
		report.Count(models.Appended),
		report.Count(models.Skipped),
		report.Count(models.Failed),
		report.Frames,
		humanize.Bytes(uint64(report.Bytes())),
	))
}

// LogFieldError logs a placeholder field that could not be processed.
func (fl *FileLogger) LogFieldError(field string, err error) {
	fl.LogError(fmt.Sprintf("cannot populate %s: %v", field, err))
}

// LogRunComplete logs the run summary line.
func (fl *FileLogger) LogRunComplete(run *models.RunReport) {
	fl.LogInfo(fmt.Sprintf("run %s finished in %s: %s", run.ID, run.Duration().Round(time.Millisecond), run))
}

// Close closes the log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.out.Close()
}
