package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nexdatas/nxstools/internal/collect"
	"github.com/nexdatas/nxstools/internal/config"
	"github.com/nexdatas/nxstools/internal/display"
	"github.com/nexdatas/nxstools/internal/logger"
	"github.com/nexdatas/nxstools/internal/models"
	"github.com/nexdatas/nxstools/internal/nexus/sqlitefile"
	"github.com/nexdatas/nxstools/internal/report"
)

// NewExecuteCommand creates the execute command
func NewExecuteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <file>",
		Short: "Append collected frames to the master file",
		Long: `Append the frames named by every placeholder field to the master file.

A backup copy of the master file is taken first and removed after a
successful run (kept with -r/--keep-old).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, args[0], models.ModeExecute)
		},
	}
}

// NewTestCommand creates the test command
func NewTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <file>",
		Short: "Show what execute would collect without writing",
		Long: `Resolve and decode every file execute would append and print the same
report. The master file is opened read-only and never changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, args[0], models.ModeTest)
		},
	}
}

// addCollectFlags registers the flags shared by every way of starting a run.
func addCollectFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolP("keep-old", "r", false, "Keep the master file backup after execute")
	flags.BoolP("skip-missing", "s", false, "Report missing files as skipped instead of failed")
	flags.String("field", "", "Collect only this placeholder field (NeXus path)")
	flags.String("config", "", "Path to config file (default: .nxstools/config.yaml)")
	flags.String("report", "", "Write a run report (.md, .html or .json)")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flags.String("log-dir", "", "Directory for the rotating run log")
}

// loadConfig reads the configuration file and applies changed flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.FindConfigPath(".")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Build flag pointers for merge (only non-default values)
	var logLevelPtr, logDirPtr *string
	var skipMissingPtr, keepOldPtr *bool
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &v
	}
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &v
	}
	if cmd.Flags().Changed("skip-missing") {
		v, _ := cmd.Flags().GetBool("skip-missing")
		skipMissingPtr = &v
	}
	if cmd.Flags().Changed("keep-old") {
		v, _ := cmd.Flags().GetBool("keep-old")
		keepOldPtr = &v
	}
	cfg.MergeWithFlags(logLevelPtr, logDirPtr, skipMissingPtr, keepOldPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runCollect implements the execute and test commands
func runCollect(cmd *cobra.Command, path string, mode models.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	compression, err := sqlitefile.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath != "" {
		// reject the format before the master file is touched
		if _, err := report.FormatForPath(reportPath); err != nil {
			return err
		}
	}

	log, closeLog, err := newRunLogger(cmd.OutOrStdout(), cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	field, _ := cmd.Flags().GetString("field")
	opts := collect.Options{
		SkipMissing: cfg.SkipMissing,
		KeepOld:     cfg.KeepOld,
		Field:       field,
		SearchDirs:  cfg.SearchDirs,
		Lock:        cfg.Lock,
		Rule: collect.DiscoveryRule{
			FieldName:       cfg.PlaceholderName,
			CollectionClass: cfg.CollectionClass,
		},
		TargetName:  cfg.TargetName,
		DatasetName: cfg.DatasetName,
	}

	collector := collect.New(sqlitefile.New(compression), log)
	run, err := collector.Run(cmd.Context(), path, mode, opts)

	if reportPath != "" && run != nil {
		if rerr := report.WriteFile(reportPath, run); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil && run != nil && run.Backup != "" && !opts.KeepOld {
		display.BackupKept(run.File, run.Backup, err).Display(cmd.ErrOrStderr())
	}
	return err
}

// newRunLogger builds the console logger and, when a log directory is
// configured, a rotating file logger next to it.
func newRunLogger(out io.Writer, cfg *config.Config) (collect.Logger, func(), error) {
	console := logger.NewConsoleLogger(out, cfg.LogLevel)
	if cfg.LogDir == "" {
		return console, func() {}, nil
	}

	fileLog, err := logger.NewFileLogger(logger.FileOptions{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		MaxSize: cfg.LogMaxSize,
		MaxAge:  cfg.LogMaxAge,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	ml := &multiLogger{loggers: []collect.Logger{console, fileLog}}
	return ml, func() { fileLog.Close() }, nil
}

// multiLogger implements collect.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []collect.Logger
}

func (ml *multiLogger) LogTrace(message string) {
	for _, l := range ml.loggers {
		l.LogTrace(message)
	}
}

func (ml *multiLogger) LogDebug(message string) {
	for _, l := range ml.loggers {
		l.LogDebug(message)
	}
}

func (ml *multiLogger) LogPopulate(target, spec string) {
	for _, l := range ml.loggers {
		l.LogPopulate(target, spec)
	}
}

func (ml *multiLogger) LogEntry(entry models.Entry) {
	for _, l := range ml.loggers {
		l.LogEntry(entry)
	}
}

func (ml *multiLogger) LogFieldSummary(r *models.FieldReport) {
	for _, l := range ml.loggers {
		l.LogFieldSummary(r)
	}
}

func (ml *multiLogger) LogFieldError(field string, err error) {
	for _, l := range ml.loggers {
		l.LogFieldError(field, err)
	}
}

func (ml *multiLogger) LogRunComplete(run *models.RunReport) {
	for _, l := range ml.loggers {
		l.LogRunComplete(run)
	}
}
