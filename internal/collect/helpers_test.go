package collect

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/nexdatas/nxstools/internal/logger"
	"github.com/nexdatas/nxstools/internal/nexus"
	"github.com/nexdatas/nxstools/internal/nexus/sqlitefile"
)

// placeholder describes one detector with a postrun field.
type placeholder struct {
	detector string
	value    string
	attrs    map[string]string
}

type fixture struct {
	t       *testing.T
	dir     string
	master  string
	backend *sqlitefile.Backend
	out     *bytes.Buffer
}

func newFixture(t *testing.T, placeholders ...placeholder) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		t:       t,
		dir:     dir,
		master:  filepath.Join(dir, "scan_001.nxs"),
		backend: sqlitefile.New(sqlitefile.Snappy),
		out:     &bytes.Buffer{},
	}

	file, err := f.backend.Create(f.master)
	require.NoError(t, err)
	root, err := file.Root()
	require.NoError(t, err)
	entry, err := root.CreateGroup("entry12345", "NXentry")
	require.NoError(t, err)
	instrument, err := entry.CreateGroup("instrument", "NXinstrument")
	require.NoError(t, err)
	for _, p := range placeholders {
		det, err := instrument.CreateGroup(p.detector, "NXdetector")
		require.NoError(t, err)
		coll, err := det.CreateGroup("collection", "NXcollection")
		require.NoError(t, err)
		field, err := coll.CreateField("postrun", nexus.String, nil, nil)
		require.NoError(t, err)
		require.NoError(t, field.WriteString(p.value))
		for k, v := range p.attrs {
			require.NoError(t, field.Attributes().Set(k, v))
		}
	}
	require.NoError(t, file.Close())
	return f
}

func (f *fixture) collector() *Collector {
	return New(f.backend, logger.NewConsoleLogger(f.out, "info"))
}

func (f *fixture) options() Options {
	return DefaultOptions()
}

// sourcePath is where a detector's frame file is written by default.
func (f *fixture) sourcePath(detector, name string) string {
	return filepath.Join(f.dir, "scan_001", detector, name)
}

func (f *fixture) writeRaw(detector, name string, values []int32) {
	f.t.Helper()
	f.writeFile(f.sourcePath(detector, name), int32Bytes(values))
}

func (f *fixture) writeTIFF(detector, name string, img image.Image) {
	f.t.Helper()
	var buf bytes.Buffer
	require.NoError(f.t, tiff.Encode(&buf, img, nil))
	f.writeFile(f.sourcePath(detector, name), buf.Bytes())
}

func (f *fixture) writeFile(path string, data []byte) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, data, 0644))
}

func (f *fixture) masterBytes() []byte {
	f.t.Helper()
	data, err := os.ReadFile(f.master)
	require.NoError(f.t, err)
	return data
}

// target opens the master read-only and returns the detector's data field,
// or nil when it does not exist.
func (f *fixture) target(detector string) (nexus.Field, func()) {
	f.t.Helper()
	file, err := f.backend.Open(f.master, true)
	require.NoError(f.t, err)
	root, err := file.Root()
	require.NoError(f.t, err)
	node, err := nexus.Lookup(root, "/entry12345/instrument/"+detector+"/data")
	if err != nil {
		require.ErrorIs(f.t, err, nexus.ErrNotFound)
		file.Close()
		return nil, func() {}
	}
	return node.(nexus.Field), func() { file.Close() }
}

func (f *fixture) lines() []string {
	s := strings.TrimSuffix(f.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func gray(w, h int, seed byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = seed + byte(i)
	}
	return img
}

func int32Frame(n int, seed int32) []int32 {
	v := make([]int32, n)
	for i := range v {
		v[i] = seed*1000 + int32(i) - 50
	}
	return v
}

func int32Bytes(values []int32) []byte {
	buf := make([]byte, 0, 4*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}
