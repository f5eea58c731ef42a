package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"

	"projectarchitect/internal/extract"
	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/types"
)

// DefaultMaxConcurrentRuns bounds background runs when no option is given.
const DefaultMaxConcurrentRuns = 4

// Boilerplate supplies template content for declared files the model left
// without code.
type Boilerplate interface {
	Content(ctx context.Context, analysis types.Analysis, file types.FileNode) (string, bool)
}

// Orchestrator sequences the five stages of a run. Execute runs in the
// caller's goroutine; Start registers the run and drives it in the
// background. Both share the same state machine and stage logic.
type Orchestrator struct {
	gen            llmclient.Generator
	store          Store
	events         *EventBroker
	sem            *semaphore.Weighted
	extractor      *extract.Extractor
	boilerplate    Boilerplate
	onFinish       []func(context.Context, Snapshot)
	maxDescription int
	maxTokens      int
	temperature    *float64
	newID          func() string
	now            func() time.Time

	mu   sync.Mutex
	live map[string]*Run
	wg   sync.WaitGroup
}

type Option func(*Orchestrator)

func WithStore(s Store) Option { return func(o *Orchestrator) { o.store = s } }

func WithEvents(b *EventBroker) Option { return func(o *Orchestrator) { o.events = b } }

func WithBoilerplate(b Boilerplate) Option { return func(o *Orchestrator) { o.boilerplate = b } }

func WithExtractor(x *extract.Extractor) Option { return func(o *Orchestrator) { o.extractor = x } }

// WithFinishHook registers fn to receive the terminal snapshot of every run
// before Wait returns it.
func WithFinishHook(fn func(ctx context.Context, snap Snapshot)) Option {
	return func(o *Orchestrator) { o.onFinish = append(o.onFinish, fn) }
}

func WithIDFunc(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

func WithMaxConcurrentRuns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithMaxDescriptionLength(n int) Option {
	return func(o *Orchestrator) { o.maxDescription = n }
}

// WithGenerationParams sets max tokens and temperature on every request.
func WithGenerationParams(maxTokens int, temperature *float64) Option {
	return func(o *Orchestrator) {
		o.maxTokens = maxTokens
		o.temperature = temperature
	}
}

func New(gen llmclient.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:            gen,
		store:          NewMemoryStore(),
		events:         NewEventBroker(),
		sem:            semaphore.NewWeighted(DefaultMaxConcurrentRuns),
		extractor:      extract.New(),
		maxDescription: DefaultMaxDescriptionLength,
		newID:          uuid.NewString,
		now:            time.Now,
		live:           make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events exposes the broker so transports can stream run snapshots.
func (o *Orchestrator) Events() *EventBroker { return o.events }

// Execute runs the pipeline synchronously. The error is a ValidationError
// when req is rejected, otherwise the run's terminal error (a StageError or
// a CancellationError), nil on success.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Snapshot, error) {
	run, err := o.register(req)
	if err != nil {
		return Snapshot{}, err
	}
	o.drive(ctx, run)
	return run.Snapshot(), run.Err
}

// Start registers a run and executes it in the background, returning its
// id. The run outlives ctx; use Cancel to stop it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (string, error) {
	run, err := o.register(req)
	if err != nil {
		return "", err
	}
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.sem.Acquire(bg, 1); err != nil {
			o.end(bg, run, &CancellationError{Stage: StateAnalyzing})
			return
		}
		defer o.sem.Release(1)
		o.drive(bg, run)
	}()
	return run.ID, nil
}

// Get returns the latest snapshot of a run.
func (o *Orchestrator) Get(id string) (Snapshot, bool) {
	return o.store.Get(id)
}

// List returns every registered run, oldest first.
func (o *Orchestrator) List() []Snapshot {
	return o.store.List()
}

// Cancel asks a run to stop at its next stage boundary. Cancelling a
// finished run is a no-op.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	run, ok := o.live[id]
	o.mu.Unlock()
	if ok {
		run.RequestCancel()
		klog.InfoS("run cancellation requested", "run", id)
		return nil
	}
	if _, ok := o.store.Get(id); ok {
		return nil
	}
	return ErrRunNotFound
}

// Wait blocks until the run is terminal or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, id string) (Snapshot, error) {
	o.mu.Lock()
	run, ok := o.live[id]
	o.mu.Unlock()
	if ok {
		select {
		case <-run.Done():
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	snap, ok := o.store.Get(id)
	if !ok {
		return Snapshot{}, ErrRunNotFound
	}
	return snap, nil
}

// Shutdown cancels every live run and waits for background runs to stop.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, run := range o.live {
		run.RequestCancel()
	}
	o.mu.Unlock()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) register(req Request) (*Run, error) {
	req, err := Validate(req, o.maxDescription)
	if err != nil {
		return nil, err
	}
	run := newRun(o.newID(), req, o.now())
	if err := o.store.Create(run.Snapshot()); err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.live[run.ID] = run
	o.mu.Unlock()
	klog.InfoS("run registered", "run", run.ID, "project", run.ProjectName)
	return run, nil
}

// drive executes the stages in order. Cancellation is honoured only
// between stages; a generation aborted because ctx ended also counts as
// cancellation.
func (o *Orchestrator) drive(ctx context.Context, run *Run) {
	ctx = llm.WithRunID(ctx, run.ID)
	started := time.Now()
	for _, st := range stageStates {
		if run.cancelRequested() || ctx.Err() != nil {
			o.end(ctx, run, &CancellationError{Stage: st.state})
			return
		}
		if !run.Advance(st.state, nil) {
			return
		}
		o.publish(run)

		stageStart := time.Now()
		apply, err := o.runStage(ctx, run, st.stage)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				o.end(ctx, run, &CancellationError{Stage: st.state})
				return
			}
			o.end(ctx, run, &StageError{Stage: st.state, Err: err})
			return
		}
		run.complete(apply)
		klog.V(2).InfoS("stage completed", "run", run.ID, "stage", st.state, "elapsed", time.Since(stageStart))
		o.publish(run)
	}
	run.Advance(StateCompleted, nil)
	klog.InfoS("run completed", "run", run.ID, "project", run.ProjectName,
		"files", len(run.Outputs.Files), "elapsed", time.Since(started))
	o.publish(run)
	o.forget(ctx, run)
}

func (o *Orchestrator) end(ctx context.Context, run *Run, err error) {
	if !run.fail(err) {
		return
	}
	if run.State == StateCancelled {
		klog.InfoS("run cancelled", "run", run.ID, "reason", err)
	} else {
		klog.ErrorS(err, "run failed", "run", run.ID, "stage", run.FailedStage, "kind", ErrorKind(err))
	}
	o.publish(run)
	o.forget(ctx, run)
}

func (o *Orchestrator) publish(run *Run) {
	snap := run.Snapshot()
	if err := o.store.Update(snap); err != nil {
		klog.ErrorS(err, "run store update failed", "run", run.ID)
	}
	o.events.Publish(snap)
}

func (o *Orchestrator) forget(ctx context.Context, run *Run) {
	if len(o.onFinish) > 0 {
		snap := run.Snapshot()
		hookCtx := context.WithoutCancel(ctx)
		for _, fn := range o.onFinish {
			fn(hookCtx, snap)
		}
	}
	o.mu.Lock()
	delete(o.live, run.ID)
	o.mu.Unlock()
	close(run.done)
}
