package nexus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a named child does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrExists is returned when creating a child whose name is taken.
	ErrExists = errors.New("node already exists")
	// ErrReadOnly is returned by mutating calls on a file opened read-only.
	ErrReadOnly = errors.New("file is opened read-only")
	// ErrNotGroup is returned when a path step resolves to a field.
	ErrNotGroup = errors.New("node is not a group")
	// ErrNotField is returned when a field was expected.
	ErrNotField = errors.New("node is not a field")
	// ErrOutOfRange is returned for slab indexes outside the leading axis.
	ErrOutOfRange = errors.New("slab index out of range")
)

// Backend opens and creates hierarchical files of one storage flavour.
type Backend interface {
	Name() string
	// Create makes a new, empty file, replacing any file at path.
	Create(path string) (File, error)
	// Open opens an existing file.
	Open(path string, readOnly bool) (File, error)
}

// File is an open hierarchical file.
type File interface {
	Path() string
	ReadOnly() bool
	Root() (Group, error)
	// Flush makes every completed write durable.
	Flush() error
	Close() error
}

// Node is the common part of groups and fields.
type Node interface {
	Name() string
	// Parent returns nil for the root group.
	Parent() Group
	Attributes() Attributes
}

// Group is a container node with a NeXus class.
type Group interface {
	Node
	Class() string
	// Children returns the direct children ordered by name.
	Children() ([]Node, error)
	Open(name string) (Node, error)
	Has(name string) (bool, error)
	CreateGroup(name, class string) (Group, error)
	// CreateField creates a field; a nil chunk means one slab per chunk.
	CreateField(name string, dtype DType, shape, chunk []int) (Field, error)
	// CreateFieldWithSlab creates a growable field of shape [1, frameShape...]
	// holding data as its first slab and carrying attrs. Either all of it is
	// stored or none of it.
	CreateFieldWithSlab(name string, dtype DType, frameShape []int, data []byte, attrs map[string]string) (Field, error)
}

// Field is a typed array (or string) node.
type Field interface {
	Node
	DType() DType
	Shape() []int
	Chunk() []int
	// SlabSize is the byte size of one slab along the leading axis.
	SlabSize() int
	// Grow extends the leading axis by n slabs.
	Grow(n int) error
	ReadSlab(i int) ([]byte, error)
	WriteSlab(i int, data []byte) error
	// AppendSlab grows the leading axis by one, stores data in the new slab
	// and sets attrs as a single change, returning the new slab index. On
	// error the field is left as it was.
	AppendSlab(data []byte, attrs map[string]string) (int, error)
	// Read returns the whole field, slabs concatenated in order.
	Read() ([]byte, error)
	// Write replaces the whole field content; len(data) must match the shape.
	Write(data []byte) error
	ReadString() (string, error)
	WriteString(s string) error
}

// Attributes are string-valued node attributes.
type Attributes interface {
	Get(name string) (string, bool, error)
	Set(name, value string) error
	Names() ([]string, error)
}

// NodePath renders the NeXus path of n, groups shown as name:NXclass.
func NodePath(n Node) string {
	var parts []string
	for cur := n; cur != nil; {
		p := cur.Parent()
		if p == nil {
			break
		}
		part := cur.Name()
		if g, ok := cur.(Group); ok && g.Class() != "" {
			part += ":" + g.Class()
		}
		parts = append(parts, part)
		cur = p
	}
	if len(parts) == 0 {
		return "/"
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString("/")
		sb.WriteString(parts[i])
	}
	return sb.String()
}

// SplitPath splits a /a:NXa/b/c path into names, dropping class suffixes.
func SplitPath(path string) []string {
	var names []string
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if i := strings.Index(part, ":"); i >= 0 {
			part = part[:i]
		}
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

// Lookup resolves path from the root group.
func Lookup(root Group, path string) (Node, error) {
	var cur Node = root
	for _, name := range SplitPath(path) {
		g, ok := cur.(Group)
		if !ok {
			return nil, fmt.Errorf("%s: %w", NodePath(cur), ErrNotGroup)
		}
		next, err := g.Open(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cur = next
	}
	return cur, nil
}
