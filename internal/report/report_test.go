package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexdatas/nxstools/internal/models"
)

func sampleRun() *models.RunReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.RunReport{
		ID:       "5f1c1f4e-0000-4000-8000-000000000001",
		File:     "/data/scan_001.nxs",
		Mode:     models.ModeExecute,
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Backup:   "/data/scan_001.nxs.__nxscollect_old__",
		Fields: []*models.FieldReport{{
			Field:  "/entry:NXentry/instrument:NXinstrument/pilatus:NXdetector/collection:NXcollection/postrun",
			Target: "/entry:NXentry/instrument:NXinstrument/pilatus:NXdetector/data",
			Spec:   "img_%05d.tif:0:1",
			Entries: []models.Entry{
				{Index: 0, Path: "scan_001/pilatus/img_00000.tif", Outcome: models.Appended, Bytes: 2048},
				{Index: 1, Path: "img_00001.tif", Outcome: models.Skipped, Detail: "Cannot open any of [a|b]"},
			},
			Frames: 1,
		}},
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"run.md", Markdown},
		{"run.MARKDOWN", Markdown},
		{"run.html", HTML},
		{"run.htm", HTML},
		{"/tmp/run.json", JSON},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatForPath("run.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRender_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRun(), Markdown))
	out := buf.String()

	assert.Contains(t, out, "# nxscollect execute: scan_001.nxs")
	assert.Contains(t, out, "- **Duration:** 1.5s")
	assert.Contains(t, out, "- **Totals:** 1 appended, 1 skipped, 0 failed")
	assert.Contains(t, out, "- **Frames:** 1 (2.0 kB appended)")
	assert.Contains(t, out, "| 0 | scan_001/pilatus/img_00000.tif | appended | 2.0 kB |")
	assert.Contains(t, out, `| 1 | img_00001.tif | skipped | Cannot open any of [a\|b] |`)
}

func TestRender_MarkdownWithoutFields(t *testing.T) {
	run := sampleRun()
	run.Fields = nil
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, run, Markdown))
	assert.Contains(t, buf.String(), "No placeholder fields found.")
}

func TestRender_HTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRun(), HTML))
	out := buf.String()

	assert.Contains(t, out, "<title>nxscollect scan_001.nxs</title>")
	assert.Contains(t, out, "<h1>nxscollect execute: scan_001.nxs</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>scan_001/pilatus/img_00000.tif</td>")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRun(), JSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "execute", decoded["mode"])
	fields := decoded["fields"].([]any)
	require.Len(t, fields, 1)
	entries := fields[0].(map[string]any)["entries"].([]any)
	assert.Equal(t, "skipped", entries[1].(map[string]any)["outcome"])
}

func TestRender_UnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, sampleRun(), Format("pdf"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	require.NoError(t, WriteFile(path, sampleRun()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "5f1c1f4e-0000-4000-8000-000000000001"`)

	err = WriteFile(filepath.Join(dir, "report.pdf"), sampleRun())
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.NoFileExists(t, filepath.Join(dir, "report.pdf"))
}
