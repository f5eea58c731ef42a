package pipeline

import (
	"errors"
	"sync/atomic"
	"time"

	"projectarchitect/internal/types"
)

// Request is the caller input of one run.
type Request struct {
	Description string `json:"description"`
	ProjectName string `json:"project_name,omitempty"`
}

// Outputs collects the validated result of every completed stage. Each
// field is written once by its stage and never modified afterwards.
type Outputs struct {
	Analysis     *types.Analysis         `json:"analysis,omitempty"`
	Architecture *types.ArchitecturePlan `json:"architecture,omitempty"`
	Structure    *types.ProjectStructure `json:"structure,omitempty"`
	Files        []types.CodeFile        `json:"files,omitempty"`
	Dependencies *types.DependencySpec   `json:"dependencies,omitempty"`
	Manifests    []types.CodeFile        `json:"manifests,omitempty"`
}

// Bundle is the final {path, content} set: generated files with the
// dependency manifests replacing any file at the same path.
func (o Outputs) Bundle() []types.CodeFile {
	manifest := make(map[string]bool, len(o.Manifests))
	for _, m := range o.Manifests {
		manifest[m.Path] = true
	}
	out := make([]types.CodeFile, 0, len(o.Files)+len(o.Manifests))
	for _, f := range o.Files {
		if !manifest[f.Path] {
			out = append(out, f)
		}
	}
	return append(out, o.Manifests...)
}

// Run is the mutable record of one execution. Only the goroutine driving the
// run writes to it; everyone else reads Snapshots.
type Run struct {
	ID          string
	ProjectName string
	Description string
	State       State
	Completed   []State
	Outputs     Outputs
	Err         error
	FailedStage State
	CreatedAt   time.Time
	UpdatedAt   time.Time

	cancel atomic.Bool
	done   chan struct{}
}

func newRun(id string, req Request, now time.Time) *Run {
	return &Run{
		ID:          id,
		ProjectName: req.ProjectName,
		Description: req.Description,
		State:       StateInit,
		CreatedAt:   now,
		UpdatedAt:   now,
		done:        make(chan struct{}),
	}
}

// Advance moves the run to next and applies set to its outputs. It is a
// no-op returning false when the transition is not allowed, in particular
// once the run is terminal.
func (r *Run) Advance(next State, set func(*Outputs)) bool {
	if !r.State.CanTransition(next) {
		return false
	}
	if set != nil {
		set(&r.Outputs)
	}
	r.State = next
	r.UpdatedAt = time.Now()
	return true
}

// complete records the output of the stage currently executing and marks
// it completed. It refuses once the run is terminal.
func (r *Run) complete(set func(*Outputs)) bool {
	if r.State.Terminal() || r.State == StateInit {
		return false
	}
	if set != nil {
		set(&r.Outputs)
	}
	r.Completed = append(r.Completed, r.State)
	r.UpdatedAt = time.Now()
	return true
}

// fail ends the run. A CancellationError ends it CANCELLED, anything else
// FAILED with the stage recorded.
func (r *Run) fail(err error) bool {
	next := StateFailed
	var ce *CancellationError
	if errors.As(err, &ce) {
		next = StateCancelled
	}
	stage := r.State
	if !r.Advance(next, nil) {
		return false
	}
	r.Err = err
	if next == StateFailed {
		r.FailedStage = stage
	}
	return true
}

// RequestCancel flags the run; the driver honours it at the next stage
// boundary.
func (r *Run) RequestCancel() { r.cancel.Store(true) }

func (r *Run) cancelRequested() bool { return r.cancel.Load() }

// Done is closed once the run is terminal and its final snapshot stored.
func (r *Run) Done() <-chan struct{} { return r.done }

// Snapshot is a read-only copy of a run handed to callers.
type Snapshot struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"project_name"`
	Description string    `json:"description"`
	State       State     `json:"state"`
	Completed   []State   `json:"completed"`
	Outputs     Outputs   `json:"outputs"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	FailedStage State     `json:"failed_stage,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot copies the run. Stage outputs are shared: they are immutable
// once set.
func (r *Run) Snapshot() Snapshot {
	s := Snapshot{
		ID:          r.ID,
		ProjectName: r.ProjectName,
		Description: r.Description,
		State:       r.State,
		Completed:   append([]State{}, r.Completed...),
		Outputs:     r.Outputs,
		FailedStage: r.FailedStage,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	s.Outputs.Files = append([]types.CodeFile(nil), r.Outputs.Files...)
	s.Outputs.Manifests = append([]types.CodeFile(nil), r.Outputs.Manifests...)
	if r.Err != nil {
		s.Error = r.Err.Error()
		s.ErrorKind = ErrorKind(r.Err)
	}
	return s
}

// Terminal reports whether the snapshot's run has finished.
func (s Snapshot) Terminal() bool { return s.State.Terminal() }
