package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexdatas/nxstools/internal/decoder"
	"github.com/nexdatas/nxstools/internal/models"
	"github.com/nexdatas/nxstools/internal/nexus"
	"github.com/nexdatas/nxstools/internal/pattern"
)

// Placeholder attributes describing headerless (raw) sources.
const (
	DTypeAttr = "fielddtype"
	ShapeAttr = "fieldshape"
)

// State is the position of a Plan in its state machine.
type State int

const (
	StateInit State = iota
	StateResolving
	StateOpening
	StateAppending
	StateRecording
	StateDone
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolving:
		return "resolving"
	case StateOpening:
		return "opening"
	case StateAppending:
		return "appending"
	case StateRecording:
		return "recording"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Logger receives the progress of a collection run.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogPopulate(target, spec string)
	LogEntry(entry models.Entry)
	LogFieldSummary(report *models.FieldReport)
	LogFieldError(field string, err error)
	LogRunComplete(run *models.RunReport)
}

// frameSink accepts decoded frames in arrival order.
type frameSink interface {
	Append(index int, shape []int, dtype nexus.DType, data []byte) error
	Len() int
}

// fileSink appends into the master file. A missing target is created with
// the first frame.
type fileSink struct {
	targets *TargetManager
	parent  nexus.Group
	target  *Target
}

func (s *fileSink) Append(index int, shape []int, dtype nexus.DType, data []byte) error {
	if s.target == nil {
		t, err := s.targets.Ensure(s.parent, shape, dtype)
		if err != nil {
			return err
		}
		s.target = t
	} else if err := checkFrame(s.target.Path(), s.target.DType(), s.target.FrameShape(), dtype, shape); err != nil {
		return err
	}
	_, err := s.targets.Append(s.target, index, data)
	return err
}

func (s *fileSink) Len() int {
	if s.target == nil {
		return 0
	}
	return s.target.Len()
}

// dryRunSink tracks what appending would do without touching the file.
type dryRunSink struct {
	path       string
	exists     bool
	dtype      nexus.DType
	frameShape []int
	length     int
}

func newDryRunSink(path string, t *Target) *dryRunSink {
	s := &dryRunSink{path: path}
	if t != nil {
		s.exists = true
		s.dtype = t.DType()
		s.frameShape = t.FrameShape()
		s.length = t.Len()
	}
	return s
}

func (s *dryRunSink) Append(index int, shape []int, dtype nexus.DType, data []byte) error {
	if !s.exists {
		s.exists = true
		s.dtype = dtype
		s.frameShape = append([]int(nil), shape...)
	} else if err := checkFrame(s.path, s.dtype, s.frameShape, dtype, shape); err != nil {
		return err
	}
	s.length++
	return nil
}

func (s *dryRunSink) Len() int {
	return s.length
}

// PlanOptions tunes one plan.
type PlanOptions struct {
	Mode        models.Mode
	SkipMissing bool
}

// Plan collects the files described by one placeholder field into the target
// dataset next to its collection group. Candidates are handled one at a time
// in ascending index order, which is also the order frames land in the target.
type Plan struct {
	placeholder nexus.Field
	parent      nexus.Group // holds the target dataset
	detector    string      // directory name searched for files
	targets     *TargetManager
	registry    *decoder.Registry
	locator     Locator
	logger      Logger
	opts        PlanOptions

	state  State
	report *models.FieldReport
}

// NewPlan prepares a plan for placeholder. The target dataset lives in the
// parent of the placeholder's group, or in that group when it is the root.
func NewPlan(placeholder nexus.Field, targets *TargetManager, registry *decoder.Registry, locator Locator, logger Logger, opts PlanOptions) *Plan {
	collection := placeholder.Parent()
	parent := collection
	if gp := collection.Parent(); gp != nil {
		parent = gp
	}
	return &Plan{
		placeholder: placeholder,
		parent:      parent,
		detector:    parent.Name(),
		targets:     targets,
		registry:    registry,
		locator:     locator,
		logger:      logger,
		opts:        opts,
		state:       StateInit,
		report: &models.FieldReport{
			Field:  nexus.NodePath(placeholder),
			Target: targets.TargetPath(parent),
		},
	}
}

// State returns the current state.
func (p *Plan) State() State {
	return p.state
}

// Report returns the field report, complete once Run has returned.
func (p *Plan) Report() *models.FieldReport {
	return p.report
}

// Run executes the plan. Candidate failures are recorded in the report;
// a malformed placeholder, a schema mismatch, a write error or cancellation
// stop the plan and are returned.
func (p *Plan) Run(ctx context.Context) (*models.FieldReport, error) {
	err := p.run(ctx)
	p.state = StateDone
	if err != nil {
		p.report.Error = err.Error()
	}
	return p.report, err
}

func (p *Plan) run(ctx context.Context) error {
	value, err := p.placeholder.ReadString()
	if err != nil {
		return fmt.Errorf("read placeholder: %w", err)
	}
	p.report.Spec = value
	spec, err := pattern.Parse(value)
	if err != nil {
		return err
	}
	hints, err := p.hints()
	if err != nil {
		return err
	}

	existing, err := p.targets.Lookup(p.parent)
	if err != nil {
		return err
	}
	var sink frameSink
	if p.opts.Mode == models.ModeTest {
		sink = newDryRunSink(p.report.Target, existing)
	} else {
		sink = &fileSink{targets: p.targets, parent: p.parent, target: existing}
	}

	resume, err := resumeIndex(spec, existing)
	if err != nil {
		return err
	}
	p.report.Resume = resume
	p.logger.LogPopulate(p.report.Target, value)
	if resume > spec.First {
		p.logger.LogDebug(fmt.Sprintf("%s: resuming at index %d", p.report.Target, resume))
	}

	p.state = StateResolving
	candidates := pattern.Resolve(spec).From(resume)

	var stop error
	for c := range candidates.All() {
		if err := ctx.Err(); err != nil {
			stop = err
			break
		}
		entry, err := p.collect(c, hints, sink)
		if err != nil {
			stop = err
			break
		}
		p.state = StateRecording
		p.report.Add(entry)
		p.logger.LogEntry(entry)
	}

	p.report.Frames = sink.Len()
	p.logger.LogFieldSummary(p.report)
	return stop
}

// hints reads the raw-source attributes of the placeholder.
func (p *Plan) hints() (decoder.Hints, error) {
	var h decoder.Hints
	attrs := p.placeholder.Attributes()
	var err error
	if h.DType, _, err = attrs.Get(DTypeAttr); err != nil {
		return h, err
	}
	if h.Shape, _, err = attrs.Get(ShapeAttr); err != nil {
		return h, err
	}
	return h, nil
}

// resumeIndex is the first source index not yet collected: one past the
// recorded last index, or the spec start plus the frames already present.
func resumeIndex(spec pattern.Spec, t *Target) (int, error) {
	if t == nil {
		return spec.First, nil
	}
	last, ok, err := t.LastIndex()
	if err != nil {
		return 0, err
	}
	if ok {
		return last + 1, nil
	}
	return spec.First + t.Len(), nil
}

// collect processes one candidate. Only errors that must stop the plan are
// returned; everything else becomes the entry's outcome.
func (p *Plan) collect(c pattern.Candidate, hints decoder.Hints, sink frameSink) (models.Entry, error) {
	p.state = StateOpening
	entry := models.Entry{Index: c.Index, Path: c.Name}

	path, tried, ok := p.locator.Find(p.detector, c.Name)
	if !ok {
		entry.Outcome = models.Failed
		if p.opts.SkipMissing {
			entry.Outcome = models.Skipped
		}
		entry.Detail = "Cannot open any of " + p.locator.DisplayAll(tried)
		return entry, nil
	}
	entry.Path = p.locator.Display(path)

	shape, dtype, data, err := p.decode(path, hints)
	if err != nil {
		entry.Outcome = models.Failed
		entry.Detail = fmt.Sprintf("Cannot read %s: %s", entry.Path, reason(err))
		return entry, nil
	}

	p.state = StateAppending
	if err := sink.Append(c.Index, shape, dtype, data); err != nil {
		return entry, err
	}
	entry.Outcome = models.Appended
	entry.Bytes = int64(len(data))
	return entry, nil
}

// decode opens path, reads its frame and closes it again.
func (p *Plan) decode(path string, hints decoder.Hints) ([]int, nexus.DType, []byte, error) {
	src, err := p.registry.Open(path, hints)
	if err != nil {
		return nil, "", nil, err
	}
	defer src.Close()

	shape, dtype := src.Shape(), src.DType()
	p.logger.LogTrace(fmt.Sprintf("decode %s: %s %v", path, dtype, shape))
	data, err := src.Read()
	if err != nil {
		return nil, "", nil, err
	}
	if want := nexus.Elements(shape) * dtype.Size(); len(data) != want {
		return nil, "", nil, fmt.Errorf("%w: read %d bytes, %s%v needs %d", decoder.ErrDecode, len(data), dtype, shape, want)
	}
	return shape, dtype, data, nil
}

// reason strips the path an OpenError carries; the report line shows it.
func reason(err error) string {
	var openErr *decoder.OpenError
	if errors.As(err, &openErr) {
		return openErr.Err.Error()
	}
	return err.Error()
}
