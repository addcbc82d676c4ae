// Package report renders collection run reports for archiving next to the
// master file.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/nexdatas/nxstools/internal/filelock"
	"github.com/nexdatas/nxstools/internal/models"
)

// Format is an output format for a run report.
type Format string

const (
	Markdown Format = "markdown"
	HTML     Format = "html"
	JSON     Format = "json"
)

// ErrUnknownFormat is returned for report paths with an unrecognised extension.
var ErrUnknownFormat = errors.New("unknown report format")

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Markdown, nil
	case ".html", ".htm":
		return HTML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q (use .md, .html or .json)", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Render writes run to w in the given format.
func Render(w io.Writer, run *models.RunReport, format Format) error {
	switch format {
	case Markdown:
		_, err := io.WriteString(w, markdown(run))
		return err
	case HTML:
		return renderHTML(w, run)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile renders run into path, replacing it atomically.
func WriteFile(path string, run *models.RunReport) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Render(&buf, run, format); err != nil {
		return err
	}
	if err := filelock.AtomicWrite(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func renderHTML(w io.Writer, run *models.RunReport) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown(run)), &body); err != nil {
		return fmt.Errorf("convert report: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>nxscollect %s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		filepath.Base(run.File), body.String())
	return err
}

func markdown(run *models.RunReport) string {
	var b strings.Builder
	appended, skipped, failed := run.Totals()

	fmt.Fprintf(&b, "# nxscollect %s: %s\n\n", run.Mode, filepath.Base(run.File))
	fmt.Fprintf(&b, "- **Run:** %s\n", run.ID)
	fmt.Fprintf(&b, "- **File:** `%s`\n", run.File)
	fmt.Fprintf(&b, "- **Started:** %s\n", run.Started.Format(time.RFC3339))
	if !run.Finished.IsZero() {
		fmt.Fprintf(&b, "- **Duration:** %s\n", run.Duration().Round(time.Millisecond))
	}
	if run.Backup != "" {
		fmt.Fprintf(&b, "- **Backup:** `%s`\n", run.Backup)
	}
	fmt.Fprintf(&b, "- **Totals:** %d appended, %d skipped, %d failed\n", appended, skipped, failed)

	if len(run.Fields) == 0 {
		b.WriteString("\nNo placeholder fields found.\n")
		return b.String()
	}

	for _, f := range run.Fields {
		fmt.Fprintf(&b, "\n## `%s`\n\n", f.Target)
		fmt.Fprintf(&b, "- **Placeholder:** `%s`\n", f.Field)
		fmt.Fprintf(&b, "- **Files:** `%s`\n", f.Spec)
		fmt.Fprintf(&b, "- **Resumed at:** %d\n", f.Resume)
		fmt.Fprintf(&b, "- **Frames:** %d (%s appended)\n", f.Frames, humanize.Bytes(uint64(f.Bytes())))
		if f.Error != "" {
			fmt.Fprintf(&b, "- **Error:** %s\n", cell(f.Error))
		}
		if len(f.Entries) == 0 {
			continue
		}
		b.WriteString("\n| Index | File | Outcome | Detail |\n|---:|---|---|---|\n")
		for _, e := range f.Entries {
			detail := e.Detail
			if e.Outcome == models.Appended {
				detail = humanize.Bytes(uint64(e.Bytes))
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", e.Index, cell(e.Path), e.Outcome, cell(detail))
		}
	}
	return b.String()
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
