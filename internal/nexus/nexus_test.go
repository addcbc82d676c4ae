package nexus_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexdatas/nxstools/internal/nexus"
	"github.com/nexdatas/nxstools/internal/nexus/sqlitefile"
)

func TestParseDType(t *testing.T) {
	tests := []struct {
		in      string
		want    nexus.DType
		wantErr bool
	}{
		{in: "int32", want: nexus.Int32},
		{in: "NX_INT32", want: nexus.Int32},
		{in: "uint16", want: nexus.Uint16},
		{in: " float ", want: nexus.Float64},
		{in: "NX_FLOAT32", want: nexus.Float32},
		{in: "NX_CHAR", want: nexus.String},
		{in: "string", want: nexus.String},
		{in: "complex64", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := nexus.ParseDType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDTypeSize(t *testing.T) {
	assert.Equal(t, 1, nexus.Uint8.Size())
	assert.Equal(t, 4, nexus.Int32.Size())
	assert.Equal(t, 8, nexus.Float64.Size())
	assert.Equal(t, 0, nexus.String.Size())
	assert.True(t, nexus.Uint16.Numeric())
	assert.False(t, nexus.String.Numeric())
}

func TestElementsAndSameShape(t *testing.T) {
	assert.Equal(t, 1, nexus.Elements(nil))
	assert.Equal(t, 100, nexus.Elements([]int{10, 10}))
	assert.Equal(t, 0, nexus.Elements([]int{0, 10}))
	assert.True(t, nexus.SameShape([]int{2, 3}, []int{2, 3}))
	assert.False(t, nexus.SameShape([]int{2, 3}, []int{3, 2}))
	assert.False(t, nexus.SameShape([]int{2}, []int{2, 1}))
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "/", want: nil},
		{in: "/entry/data", want: []string{"entry", "data"}},
		{in: "/entry:NXentry/instrument:NXinstrument/det/", want: []string{"entry", "instrument", "det"}},
		{in: "entry//collection:NXcollection/postrun", want: []string{"entry", "collection", "postrun"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, nexus.SplitPath(tt.in))
		})
	}
}

func TestLookupAndNodePath(t *testing.T) {
	f, err := sqlitefile.New(sqlitefile.Uncompressed).Create(filepath.Join(t.TempDir(), "m.nxs"))
	require.NoError(t, err)
	defer f.Close()

	root, err := f.Root()
	require.NoError(t, err)
	entry, err := root.CreateGroup("entry", "NXentry")
	require.NoError(t, err)
	det, err := entry.CreateGroup("det", "NXdetector")
	require.NoError(t, err)
	_, err = det.CreateField("data", nexus.Uint8, []int{0, 4}, nil)
	require.NoError(t, err)

	node, err := nexus.Lookup(root, "/entry/det:NXdetector/data")
	require.NoError(t, err)
	assert.Equal(t, "/entry:NXentry/det:NXdetector/data", nexus.NodePath(node))

	_, err = nexus.Lookup(root, "/entry/det/data/more")
	assert.ErrorIs(t, err, nexus.ErrNotGroup)

	_, err = nexus.Lookup(root, "/entry/nothing")
	assert.ErrorIs(t, err, nexus.ErrNotFound)

	node, err = nexus.Lookup(root, "/")
	require.NoError(t, err)
	assert.Equal(t, "/", nexus.NodePath(node))
}
