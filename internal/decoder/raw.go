package decoder

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nexdatas/nxstools/internal/nexus"
)

type rawSource struct {
	frame
	path string
}

// openRaw checks a headerless file against the dtype and shape hints.
func openRaw(path string, fileSize int64, hints Hints) (FrameSource, error) {
	if strings.TrimSpace(hints.DType) == "" || strings.TrimSpace(hints.Shape) == "" {
		return nil, decodeErr("raw files need fielddtype and fieldshape attributes")
	}
	dtype, err := nexus.ParseDType(hints.DType)
	if err != nil || !dtype.Numeric() {
		return nil, decodeErr("bad fielddtype %q", hints.DType)
	}
	shape, err := ParseShape(hints.Shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	src := &rawSource{frame: frame{shape: shape, dtype: dtype}, path: path}
	if int64(src.size()) != fileSize {
		return nil, decodeErr("file has %d bytes, %s%v needs %d", fileSize, dtype, shape, src.size())
	}
	return src, nil
}

// ParseShape decodes a fieldshape attribute, a JSON array of non-negative
// dimensions.
func ParseShape(s string) ([]int, error) {
	var shape []int
	if err := json.Unmarshal([]byte(s), &shape); err != nil {
		return nil, fmt.Errorf("bad fieldshape %q: %v", s, err)
	}
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("bad fieldshape %q: negative dimension", s)
		}
	}
	if shape == nil {
		shape = []int{}
	}
	return shape, nil
}

func (s *rawSource) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) != s.size() {
		return nil, decodeErr("file changed size to %d bytes, want %d", len(data), s.size())
	}
	return data, nil
}

func (s *rawSource) Close() error {
	return nil
}
