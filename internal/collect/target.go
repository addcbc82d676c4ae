package collect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/nexdatas/nxstools/internal/nexus"
)

// LastIndexAttr records, on the target dataset, the source index of the last
// appended frame.
const LastIndexAttr = "nxscollect_last_index"

// Target is a growable dataset collecting frames. A target returned by
// Ensure for a missing dataset is pending: it is created together with its
// first frame.
type Target struct {
	field nexus.Field

	// pending target
	parent     nexus.Group
	path       string
	dtype      nexus.DType
	frameShape []int
}

// Path returns the NeXus path of the dataset.
func (t *Target) Path() string {
	if t.field == nil {
		return t.path
	}
	return nexus.NodePath(t.field)
}

// Len returns the number of frames along the leading axis.
func (t *Target) Len() int {
	if t.field == nil {
		return 0
	}
	return t.field.Shape()[0]
}

// FrameShape returns the trailing (per-frame) dimensions.
func (t *Target) FrameShape() []int {
	if t.field == nil {
		return append([]int(nil), t.frameShape...)
	}
	return t.field.Shape()[1:]
}

// DType returns the element type.
func (t *Target) DType() nexus.DType {
	if t.field == nil {
		return t.dtype
	}
	return t.field.DType()
}

// LastIndex returns the source index of the last appended frame, if recorded.
func (t *Target) LastIndex() (int, bool, error) {
	if t.field == nil {
		return 0, false, nil
	}
	v, ok, err := t.field.Attributes().Get(LastIndexAttr)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: bad %s attribute %q", t.Path(), LastIndexAttr, v)
	}
	return n, true, nil
}

// checkFrame validates a frame against the dataset schema.
func checkFrame(target string, dtype nexus.DType, frameShape []int, gotDType nexus.DType, gotShape []int) error {
	if dtype != gotDType || !nexus.SameShape(frameShape, gotShape) {
		return &SchemaMismatchError{
			Target:     target,
			DType:      dtype,
			FrameShape: frameShape,
			GotDType:   gotDType,
			GotShape:   gotShape,
		}
	}
	return nil
}

// TargetManager finds, creates and grows target datasets of one open file.
type TargetManager struct {
	file nexus.File
	name string
}

// NewTargetManager returns a manager for datasets called name in file.
func NewTargetManager(file nexus.File, name string) *TargetManager {
	return &TargetManager{file: file, name: name}
}

// TargetPath returns the path the target under parent has, or would have.
func (m *TargetManager) TargetPath(parent nexus.Group) string {
	p := nexus.NodePath(parent)
	if p == "/" {
		return "/" + m.name
	}
	return p + "/" + m.name
}

// Lookup returns the existing target under parent, or nil when there is none.
// A node of that name that cannot hold frames is a SchemaMismatchError.
func (m *TargetManager) Lookup(parent nexus.Group) (*Target, error) {
	node, err := parent.Open(m.name)
	if errors.Is(err, nexus.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	field, ok := node.(nexus.Field)
	if !ok {
		return nil, &SchemaMismatchError{Target: m.TargetPath(parent), Reason: "node is a group"}
	}
	if !field.DType().Numeric() {
		return nil, &SchemaMismatchError{Target: m.TargetPath(parent), Reason: fmt.Sprintf("dtype %s cannot hold frames", field.DType())}
	}
	if len(field.Shape()) == 0 {
		return nil, &SchemaMismatchError{Target: m.TargetPath(parent), Reason: "scalar field has no frame axis"}
	}
	return &Target{field: field}, nil
}

// Ensure returns the target under parent. An existing target must match
// frameShape and dtype; a missing one comes back pending and is only written
// by the first Append.
func (m *TargetManager) Ensure(parent nexus.Group, frameShape []int, dtype nexus.DType) (*Target, error) {
	t, err := m.Lookup(parent)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if err := checkFrame(t.Path(), t.DType(), t.FrameShape(), dtype, frameShape); err != nil {
			return nil, err
		}
		return t, nil
	}
	return &Target{
		parent:     parent,
		path:       m.TargetPath(parent),
		dtype:      dtype,
		frameShape: append([]int(nil), frameShape...),
	}, nil
}

// Append stores buf as the next frame and records index as the last
// collected source index, in one change of the file: either both land or
// neither does. A pending target is created with one-frame chunks. The file
// is flushed before returning, so a crash keeps every frame appended so far.
func (m *TargetManager) Append(t *Target, index int, buf []byte) (int, error) {
	if want := t.DType().Size() * nexus.Elements(t.FrameShape()); len(buf) != want {
		return 0, fmt.Errorf("append to %s: frame has %d bytes, want %d", t.Path(), len(buf), want)
	}
	attrs := map[string]string{LastIndexAttr: strconv.Itoa(index)}

	var slot int
	if t.field == nil {
		field, err := t.parent.CreateFieldWithSlab(m.name, t.dtype, t.frameShape, buf, attrs)
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", t.path, err)
		}
		t.field = field
	} else {
		n, err := t.field.AppendSlab(buf, attrs)
		if err != nil {
			return 0, fmt.Errorf("append to %s: %w", t.Path(), err)
		}
		slot = n
	}
	if err := m.file.Flush(); err != nil {
		return 0, fmt.Errorf("flush %s: %w", m.file.Path(), err)
	}
	return slot, nil
}

// Frame reads back the frame stored at slot.
func (m *TargetManager) Frame(t *Target, slot int) ([]byte, error) {
	if t.field == nil {
		return nil, fmt.Errorf("%s[%d] (length 0): %w", t.path, slot, nexus.ErrOutOfRange)
	}
	return t.field.ReadSlab(slot)
}
