package sqlitefile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexdatas/nxstools/internal/nexus"
)

func createFile(t *testing.T, compression Compression) (nexus.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan_001.nxs")
	f, err := New(compression).Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, path
}

func int32Frame(values ...int32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func TestCreateAndReopen(t *testing.T) {
	f, path := createFile(t, Uncompressed)

	root, err := f.Root()
	require.NoError(t, err)
	assert.Equal(t, "NXroot", root.Class())
	assert.Nil(t, root.Parent())
	assert.Equal(t, "/", nexus.NodePath(root))

	entry, err := root.CreateGroup("entry", "NXentry")
	require.NoError(t, err)
	instrument, err := entry.CreateGroup("instrument", "NXinstrument")
	require.NoError(t, err)
	title, err := entry.CreateField("title", nexus.String, nil, nil)
	require.NoError(t, err)
	require.NoError(t, title.WriteString("scan 1"))
	require.NoError(t, instrument.Attributes().Set("note", "hello"))
	require.NoError(t, f.Close())

	g, err := New(Uncompressed).Open(path, true)
	require.NoError(t, err)
	defer g.Close()
	assert.True(t, g.ReadOnly())

	root, err = g.Root()
	require.NoError(t, err)
	node, err := nexus.Lookup(root, "/entry:NXentry/instrument:NXinstrument")
	require.NoError(t, err)
	grp, ok := node.(nexus.Group)
	require.True(t, ok)
	assert.Equal(t, "NXinstrument", grp.Class())
	assert.Equal(t, "/entry:NXentry/instrument:NXinstrument", nexus.NodePath(grp))

	class, ok, err := grp.Attributes().Get("NX_class")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "NXinstrument", class)

	note, ok, err := grp.Attributes().Get("note")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", note)

	node, err = nexus.Lookup(root, "/entry/title")
	require.NoError(t, err)
	fd, ok := node.(nexus.Field)
	require.True(t, ok)
	s, err := fd.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "scan 1", s)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	f, path := createFile(t, Uncompressed)
	root, err := f.Root()
	require.NoError(t, err)
	_, err = root.CreateGroup("entry", "NXentry")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	g, err := New(Uncompressed).Open(path, true)
	require.NoError(t, err)
	root, err = g.Root()
	require.NoError(t, err)

	_, err = root.CreateGroup("other", "NXentry")
	assert.ErrorIs(t, err, nexus.ErrReadOnly)
	assert.ErrorIs(t, root.Attributes().Set("a", "b"), nexus.ErrReadOnly)
	require.NoError(t, g.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestChildrenSortedAndDuplicates(t *testing.T) {
	f, _ := createFile(t, Uncompressed)
	root, err := f.Root()
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := root.CreateGroup(name, "NXentry")
		require.NoError(t, err)
	}
	_, err = root.CreateGroup("alpha", "NXentry")
	assert.ErrorIs(t, err, nexus.ErrExists)

	children, err := root.Children()
	require.NoError(t, err)
	var names []string
	for _, c := range children {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	has, err := root.Has("mid")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = root.Open("missing")
	assert.ErrorIs(t, err, nexus.ErrNotFound)
}

func TestGrowableField(t *testing.T) {
	for _, c := range []Compression{Uncompressed, Snappy, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			f, path := createFile(t, c)
			root, err := f.Root()
			require.NoError(t, err)

			fd, err := root.CreateField("data", nexus.Int32, []int{0, 2, 2}, nil)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 2}, fd.Chunk())
			assert.Equal(t, 16, fd.SlabSize())

			_, err = fd.ReadSlab(0)
			assert.ErrorIs(t, err, nexus.ErrOutOfRange)

			frames := [][]byte{int32Frame(1, 2, 3, 4), int32Frame(-5, 6, -7, 8)}
			for i, frame := range frames {
				require.NoError(t, fd.Grow(1))
				require.NoError(t, fd.WriteSlab(i, frame))
				require.NoError(t, f.Flush())
			}
			assert.Equal(t, []int{2, 2, 2}, fd.Shape())
			assert.Error(t, fd.WriteSlab(1, []byte{1, 2}))
			require.NoError(t, f.Close())

			g, err := New(Uncompressed).Open(path, true)
			require.NoError(t, err)
			defer g.Close()
			root, err = g.Root()
			require.NoError(t, err)
			node, err := root.Open("data")
			require.NoError(t, err)
			fd = node.(nexus.Field)
			assert.Equal(t, nexus.Int32, fd.DType())
			assert.Equal(t, []int{2, 2, 2}, fd.Shape())

			for i, frame := range frames {
				got, err := fd.ReadSlab(i)
				require.NoError(t, err)
				assert.Equal(t, frame, got)
			}
			all, err := fd.Read()
			require.NoError(t, err)
			assert.Equal(t, append(append([]byte{}, frames[0]...), frames[1]...), all)
		})
	}
}

func TestUnwrittenSlabIsZero(t *testing.T) {
	f, _ := createFile(t, Uncompressed)
	root, err := f.Root()
	require.NoError(t, err)
	fd, err := root.CreateField("data", nexus.Uint16, []int{0, 3}, nil)
	require.NoError(t, err)
	require.NoError(t, fd.Grow(2))

	slab, err := fd.ReadSlab(1)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 6), slab)
}

func TestWholeFieldWrite(t *testing.T) {
	f, _ := createFile(t, Snappy)
	root, err := f.Root()
	require.NoError(t, err)
	fd, err := root.CreateField("frame", nexus.Uint8, []int{2, 3}, nil)
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, fd.Write(data))
	got, err := fd.Read()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.Error(t, fd.Write([]byte{1}))
}

// refuse installs a trigger aborting inserts into table, as a full disk would.
func refuse(t *testing.T, f nexus.File, table string) {
	t.Helper()
	_, err := f.(*file).db.Exec(`CREATE TRIGGER refuse_` + table + ` BEFORE INSERT ON ` + table +
		` BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)
}

func countRows(t *testing.T, f nexus.File, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.(*file).db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestAppendSlab(t *testing.T) {
	f, path := createFile(t, Zstd)
	root, err := f.Root()
	require.NoError(t, err)

	fd, err := root.CreateFieldWithSlab("data", nexus.Int32, []int{2}, int32Frame(1, 2), map[string]string{"last": "0"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, fd.Shape())
	assert.Equal(t, []int{1, 2}, fd.Chunk())

	slot, err := fd.AppendSlab(int32Frame(3, 4), map[string]string{"last": "5"})
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
	_, err = fd.AppendSlab([]byte{1}, nil)
	assert.Error(t, err)
	require.NoError(t, f.Close())

	g, err := New(Uncompressed).Open(path, true)
	require.NoError(t, err)
	defer g.Close()
	root, err = g.Root()
	require.NoError(t, err)
	node, err := root.Open("data")
	require.NoError(t, err)
	fd = node.(nexus.Field)
	assert.Equal(t, []int{2, 2}, fd.Shape())
	all, err := fd.Read()
	require.NoError(t, err)
	assert.Equal(t, int32Frame(1, 2, 3, 4), all)
	last, _, err := fd.Attributes().Get("last")
	require.NoError(t, err)
	assert.Equal(t, "5", last)

	_, err = fd.AppendSlab(int32Frame(5, 6), nil)
	assert.ErrorIs(t, err, nexus.ErrReadOnly)
}

func TestAppendSlabRollsBack(t *testing.T) {
	f, path := createFile(t, Snappy)
	root, err := f.Root()
	require.NoError(t, err)
	fd, err := root.CreateFieldWithSlab("data", nexus.Int32, []int{2}, int32Frame(1, 2), map[string]string{"last": "0"})
	require.NoError(t, err)

	// shape and slab are written before the attribute fails
	refuse(t, f, "attributes")
	_, err = fd.AppendSlab(int32Frame(3, 4), map[string]string{"last": "1"})
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, []int{1, 2}, fd.Shape())
	assert.Equal(t, 1, countRows(t, f, "slabs"))
	require.NoError(t, f.Close())

	g, err := New(Snappy).Open(path, true)
	require.NoError(t, err)
	defer g.Close()
	root, err = g.Root()
	require.NoError(t, err)
	node, err := root.Open("data")
	require.NoError(t, err)
	fd = node.(nexus.Field)
	assert.Equal(t, []int{1, 2}, fd.Shape())
	_, err = fd.ReadSlab(1)
	assert.ErrorIs(t, err, nexus.ErrOutOfRange)
	last, _, err := fd.Attributes().Get("last")
	require.NoError(t, err)
	assert.Equal(t, "0", last)
}

func TestCreateFieldWithSlabRollsBack(t *testing.T) {
	f, _ := createFile(t, Uncompressed)
	root, err := f.Root()
	require.NoError(t, err)

	refuse(t, f, "slabs")
	_, err = root.CreateFieldWithSlab("data", nexus.Uint16, []int{3}, make([]byte, 6), map[string]string{"last": "0"})
	require.ErrorContains(t, err, "disk full")

	has, err := root.Has("data")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Zero(t, countRows(t, f, "attributes WHERE name = 'last'"))

	_, err = root.CreateFieldWithSlab("text", nexus.String, nil, nil, nil)
	assert.Error(t, err)
	_, err = root.CreateFieldWithSlab("data", nexus.Uint16, []int{3}, make([]byte, 4), nil)
	assert.Error(t, err)
}

func TestOpenRejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()

	junk := filepath.Join(dir, "junk.nxs")
	require.NoError(t, os.WriteFile(junk, []byte("this is not a database at all, just text"), 0644))
	_, err := New(Uncompressed).Open(junk, true)
	assert.Error(t, err)

	_, err = New(Uncompressed).Open(filepath.Join(dir, "absent.nxs"), true)
	assert.True(t, os.IsNotExist(err))
}

func TestClosedFile(t *testing.T) {
	f, _ := createFile(t, Uncompressed)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	_, err := f.Root()
	assert.Error(t, err)
	assert.Error(t, f.Flush())
}
