package collect

import (
	"errors"
	"fmt"

	"github.com/nexdatas/nxstools/internal/nexus"
)

var (
	// ErrMasterFileMissing is returned when the master file does not exist.
	ErrMasterFileMissing = errors.New("master file does not exist")
	// ErrNotPlaceholder is returned when an explicit field path does not name
	// a text field.
	ErrNotPlaceholder = errors.New("not a placeholder field")
)

// SchemaMismatchError reports a frame that does not fit the existing target
// dataset. It aborts the placeholder field being collected.
type SchemaMismatchError struct {
	Target     string      // Target dataset path
	DType      nexus.DType // Target dtype
	FrameShape []int       // Target per-frame shape
	GotDType   nexus.DType
	GotShape   []int
	Reason     string // Set when the target itself is unusable
}

// Error implements the error interface for SchemaMismatchError.
func (e *SchemaMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema mismatch for %s: %s", e.Target, e.Reason)
	}
	return fmt.Sprintf("schema mismatch for %s: frames are %s%v, got %s%v",
		e.Target, e.DType, e.FrameShape, e.GotDType, e.GotShape)
}
