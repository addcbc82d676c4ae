// Package decoder opens external detector image files as frame sources.
//
// The decoder is picked from the file extension through a fixed table of
// kinds; each kind only carries what it needs to report a frame's shape and
// dtype and to read its bytes. Frames are returned as little-endian element
// bytes in row-major order, the layout nexus fields use.
package decoder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexdatas/nxstools/internal/nexus"
)

var (
	// ErrMissingFile means the candidate file does not exist.
	ErrMissingFile = errors.New("file does not exist")
	// ErrUnsupportedFormat means no decoder handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrDecode means the decoder rejected the file content.
	ErrDecode = errors.New("cannot decode file")
)

// Kind identifies a decoder backend.
type Kind int

const (
	Unknown Kind = iota
	TIFF
	CBF
	Raw
	HierFile
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case TIFF:
		return "tiff"
	case CBF:
		return "cbf"
	case Raw:
		return "raw"
	case HierFile:
		return "hierfile"
	default:
		return "unknown"
	}
}

var kindsByExt = map[string]Kind{
	".tif":  TIFF,
	".tiff": TIFF,
	".cbf":  CBF,
	".raw":  Raw,
	".dat":  Raw,
	".bin":  Raw,
	".h5":   HierFile,
	".hdf5": HierFile,
	".nxs":  HierFile,
	".nx":   HierFile,
}

// KindForPath maps a file name to its decoder kind by extension.
func KindForPath(path string) (Kind, bool) {
	k, ok := kindsByExt[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Hints carries per-placeholder metadata for formats without a header.
type Hints struct {
	DType string // fielddtype attribute, e.g. "int32"
	Shape string // fieldshape attribute, JSON array such as "[10,10]"
}

// FrameSource is one opened external file.
type FrameSource interface {
	Shape() []int
	DType() nexus.DType
	// Read returns prod(Shape())*DType().Size() bytes.
	Read() ([]byte, error)
	Close() error
}

// OpenError describes a failure to open or read one candidate file.
type OpenError struct {
	Path string
	Kind Kind
	Err  error
}

// Error implements the error interface for OpenError.
func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OpenError) Unwrap() error {
	return e.Err
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// DefaultDatasetName is the field read from nested hierarchical files.
const DefaultDatasetName = "data"

// Registry opens frame sources. Nested hierarchical files go through the
// injected backend.
type Registry struct {
	backend     nexus.Backend
	datasetName string
}

// NewRegistry creates a registry; backend may be nil, in which case nested
// hierarchical files are reported as unsupported.
func NewRegistry(backend nexus.Backend) *Registry {
	return &Registry{backend: backend, datasetName: DefaultDatasetName}
}

// WithDatasetName returns a copy of r reading the named field from nested
// hierarchical files. An empty name keeps the current one.
func (r *Registry) WithDatasetName(name string) *Registry {
	c := *r
	if name != "" {
		c.datasetName = name
	}
	return &c
}

// Open resolves path to a frame source. Every failure is an *OpenError.
func (r *Registry) Open(path string, hints Hints) (FrameSource, error) {
	kind, ok := KindForPath(path)
	if !ok {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, filepath.Ext(path))}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &OpenError{Path: path, Kind: kind, Err: ErrMissingFile}
		}
		return nil, &OpenError{Path: path, Kind: kind, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	if info.IsDir() {
		return nil, &OpenError{Path: path, Kind: kind, Err: decodeErr("is a directory")}
	}

	var src FrameSource
	switch kind {
	case TIFF:
		src, err = openTIFF(path)
	case CBF:
		src, err = openCBF(path)
	case Raw:
		src, err = openRaw(path, info.Size(), hints)
	case HierFile:
		if r.backend == nil {
			err = fmt.Errorf("%w: no hierarchical-file backend configured", ErrUnsupportedFormat)
			break
		}
		src, err = openHierFile(r.backend, path, r.datasetName)
	}
	if err != nil {
		return nil, &OpenError{Path: path, Kind: kind, Err: err}
	}
	return src, nil
}

// frame is the shared part of the in-memory sources.
type frame struct {
	shape []int
	dtype nexus.DType
}

func (f *frame) Shape() []int {
	return append([]int(nil), f.shape...)
}

func (f *frame) DType() nexus.DType {
	return f.dtype
}

func (f *frame) size() int {
	return nexus.Elements(f.shape) * f.dtype.Size()
}
