package decoder

import (
	"errors"
	"fmt"

	"github.com/nexdatas/nxstools/internal/nexus"
)

// hierSource reads one field of a nested hierarchical file. The file stays
// open until Close.
type hierSource struct {
	file  nexus.File
	field nexus.Field
}

func openHierFile(backend nexus.Backend, path, datasetName string) (FrameSource, error) {
	f, err := backend.Open(path, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	field, err := frameField(f, datasetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &hierSource{file: f, field: field}, nil
}

// frameField picks the root field named datasetName, or the only root field.
func frameField(f nexus.File, datasetName string) (nexus.Field, error) {
	root, err := f.Root()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	node, err := root.Open(datasetName)
	if err != nil && !errors.Is(err, nexus.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if node == nil {
		children, err := root.Children()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		var fields []nexus.Field
		for _, c := range children {
			if fd, ok := c.(nexus.Field); ok {
				fields = append(fields, fd)
			}
		}
		if len(fields) != 1 {
			return nil, decodeErr("no %q field and %d root fields", datasetName, len(fields))
		}
		node = fields[0]
	}

	field, ok := node.(nexus.Field)
	if !ok {
		return nil, decodeErr("%s is a group", nexus.NodePath(node))
	}
	if !field.DType().Numeric() {
		return nil, decodeErr("%s holds %s, not numbers", nexus.NodePath(field), field.DType())
	}
	return field, nil
}

func (s *hierSource) Shape() []int {
	return s.field.Shape()
}

func (s *hierSource) DType() nexus.DType {
	return s.field.DType()
}

func (s *hierSource) Read() ([]byte, error) {
	data, err := s.field.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

func (s *hierSource) Close() error {
	return s.file.Close()
}
