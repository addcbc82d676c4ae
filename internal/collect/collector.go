// Package collect appends externally written detector frames into the
// growable datasets of a NeXus master file.
//
// A Collector discovers placeholder fields ("postrun" fields inside
// NXcollection groups) and runs one Plan per field. A Plan expands the
// placeholder into candidate file names, decodes each file that exists and
// appends its frame to the "data" dataset next to the collection group, in
// ascending index order. Re-running a collection resumes after the last
// collected index.
package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nexdatas/nxstools/internal/decoder"
	"github.com/nexdatas/nxstools/internal/filelock"
	"github.com/nexdatas/nxstools/internal/logger"
	"github.com/nexdatas/nxstools/internal/models"
	"github.com/nexdatas/nxstools/internal/nexus"
)

// Options controls one collection run.
type Options struct {
	SkipMissing bool     // Report absent files as skipped
	KeepOld     bool     // Keep the master file backup after an execute run
	Field       string   // Explicit placeholder path; empty means discover
	SearchDirs  []string // Extra directories for relative file names
	Lock        bool     // Hold an advisory lock on the master file
	Rule        DiscoveryRule
	TargetName  string
	DatasetName string // Field read from nested hierarchical source files
}

// DefaultOptions returns the options of a plain run.
func DefaultOptions() Options {
	return Options{
		Lock:        true,
		Rule:        DiscoveryRule{FieldName: "postrun", CollectionClass: "NXcollection"},
		TargetName:  "data",
		DatasetName: decoder.DefaultDatasetName,
	}
}

// Collector runs collections against master files opened through an
// injected hierarchical-file backend.
type Collector struct {
	backend  nexus.Backend
	registry *decoder.Registry
	logger   Logger
}

// New creates a Collector. Nested hierarchical source files are decoded with
// the same backend. A nil logger discards all output.
func New(backend nexus.Backend, log Logger) *Collector {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Collector{
		backend:  backend,
		registry: decoder.NewRegistry(backend),
		logger:   log,
	}
}

// Run collects every placeholder of the master file at path. In ModeTest the
// file is opened read-only and nothing is written. Per-field problems are
// reported in the returned report; only run-level failures (missing master
// file, lock, backup, open) are returned as errors, and cancellation of ctx
// returns ctx's error along with the partial report.
func (c *Collector) Run(ctx context.Context, path string, mode models.Mode, opts Options) (*models.RunReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrMasterFileMissing)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	run := models.NewRunReport(abs, mode)
	readOnly := mode == models.ModeTest

	if opts.Lock {
		lock := filelock.NewFileLock(abs)
		if err := lock.Acquire(readOnly); err != nil {
			return nil, err
		}
		defer lock.Unlock()
	}

	var backup *Backup
	if !readOnly {
		backup, err = CreateBackup(abs)
		if err != nil {
			return nil, err
		}
		c.logger.LogDebug(fmt.Sprintf("backup %s (%s)", backup.Path, humanize.Bytes(uint64(backup.Size))))
	}

	runErr := c.collect(ctx, run, abs, mode, opts)
	run.Finished = time.Now()

	if backup != nil {
		switch {
		case opts.KeepOld:
			run.Backup = backup.Path
		case runErr == nil:
			if err := backup.Remove(); err != nil {
				return run, err
			}
		default:
			// leave the backup for the operator
			run.Backup = backup.Path
		}
	}

	c.logger.LogRunComplete(run)
	return run, runErr
}

func (c *Collector) collect(ctx context.Context, run *models.RunReport, path string, mode models.Mode, opts Options) (err error) {
	file, err := c.backend.Open(path, mode == models.ModeTest)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	root, err := file.Root()
	if err != nil {
		return err
	}

	var placeholders []nexus.Field
	if opts.Field != "" {
		field, err := Select(root, opts.Field)
		if err != nil {
			return err
		}
		placeholders = []nexus.Field{field}
	} else {
		placeholders, err = Discover(root, opts.Rule)
		if err != nil {
			return err
		}
	}
	c.logger.LogDebug(fmt.Sprintf("%s: %d placeholder fields", path, len(placeholders)))

	targets := NewTargetManager(file, opts.TargetName)
	registry := c.registry.WithDatasetName(opts.DatasetName)
	locator := NewLocator(path, opts.SearchDirs)
	planOpts := PlanOptions{Mode: mode, SkipMissing: opts.SkipMissing}

	for _, field := range placeholders {
		plan := NewPlan(field, targets, registry, locator, c.logger, planOpts)
		report, err := plan.Run(ctx)
		run.Fields = append(run.Fields, report)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logger.LogFieldError(report.Field, err)
	}
	return nil
}
