package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects whether a collection run writes to the master file.
type Mode int

const (
	ModeExecute Mode = iota // Append frames to the master file
	ModeTest                // Dry run, the master file is opened read-only
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeExecute:
		return "execute"
	case ModeTest:
		return "test"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Outcome is the result of processing one candidate file.
type Outcome int

const (
	Appended Outcome = iota // Frame appended (or would be, in test mode)
	Skipped                 // File absent and skip-missing enabled
	Failed                  // File absent, unsupported or undecodable
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Entry records the outcome for one candidate index.
type Entry struct {
	Index   int     `json:"index"`
	Path    string  `json:"path"` // Display path of the file (or the name when not found)
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
	Bytes   int64   `json:"bytes,omitempty"` // Frame size for appended entries
}

// FieldReport is the collection report of one placeholder field.
type FieldReport struct {
	Field   string  `json:"field"`  // Placeholder field path
	Target  string  `json:"target"` // Target dataset path
	Spec    string  `json:"spec"`   // Placeholder value
	Resume  int     `json:"resume"` // First index considered
	Entries []Entry `json:"entries"`
	Frames  int     `json:"frames"` // Target length after the run
	Error   string  `json:"error,omitempty"`
}

// Add appends an entry to the report.
func (r *FieldReport) Add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Count returns the number of entries with outcome o.
func (r *FieldReport) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Bytes returns the number of frame bytes appended.
func (r *FieldReport) Bytes() int64 {
	var n int64
	for _, e := range r.Entries {
		if e.Outcome == Appended {
			n += e.Bytes
		}
	}
	return n
}

// RunReport is the report of one collection run over a master file.
type RunReport struct {
	ID       string         `json:"id"`
	File     string         `json:"file"`
	Mode     Mode           `json:"mode"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Backup   string         `json:"backup,omitempty"` // Backup path when kept
	Fields   []*FieldReport `json:"fields"`
}

// NewRunReport starts a report for file.
func NewRunReport(file string, mode Mode) *RunReport {
	return &RunReport{
		ID:      uuid.New().String(),
		File:    file,
		Mode:    mode,
		Started: time.Now(),
	}
}

// Totals sums the outcomes over all fields.
func (r *RunReport) Totals() (appended, skipped, failed int) {
	for _, f := range r.Fields {
		appended += f.Count(Appended)
		skipped += f.Count(Skipped)
		failed += f.Count(Failed)
	}
	return appended, skipped, failed
}

// Duration returns the run time, zero while unfinished.
func (r *RunReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// String returns a one-line summary.
func (r *RunReport) String() string {
	a, s, f := r.Totals()
	return fmt.Sprintf("%s %s: %d fields, %d appended, %d skipped, %d failed",
		r.Mode, r.File, len(r.Fields), a, s, f)
}
