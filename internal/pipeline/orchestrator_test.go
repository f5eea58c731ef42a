package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/deps"
	"projectarchitect/internal/extract"
	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/prompt"
	"projectarchitect/internal/types"
)

func TestExecuteTodoCLI(t *testing.T) {
	gen := todoScript()
	o := New(gen)

	snap, err := o.Execute(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, []State{StateAnalyzing, StateArchitecting, StateStructuring, StateCoding, StateResolving}, snap.Completed)
	assert.Len(t, gen.Calls(), 5)

	out := snap.Outputs
	require.NotNil(t, out.Analysis)
	assert.Equal(t, types.KindCLI, out.Analysis.ProjectType.Tag)
	assert.Equal(t, "python", out.Analysis.ProjectType.Language)
	assert.Equal(t, []types.Requirement{"Add a todo", "List todos", "Mark a todo done"}, out.Analysis.Requirements)

	require.NotNil(t, out.Architecture)
	assert.Equal(t, []string{"CLI", "Store"}, out.Architecture.ComponentNames())
	assert.Equal(t, []types.Dependency{{Source: "CLI", Target: "Store", Kind: "uses"}}, out.Architecture.Dependencies)
	require.Len(t, out.Architecture.DataFlows, 1)
	assert.Equal(t, "CLI", out.Architecture.DataFlows[0].Source)

	require.NotNil(t, out.Structure)
	assert.Equal(t, "todo", out.Structure.Root)
	assert.Equal(t, []string{"todo/__init__.py", "todo/cli.py", "todo/store.py", "tests/test_store.py", "requirements.txt"}, out.Structure.FilePaths())

	var sources []string
	for _, f := range out.Files {
		if types.IsSourceFile(f.Path) {
			sources = append(sources, f.Path)
		}
		assert.True(t, strings.HasSuffix(f.Content, "\n"), f.Path)
	}
	assert.Contains(t, sources, "todo/cli.py")
	assert.Contains(t, sources, "todo/store.py", "echoed root prefix is trimmed")
	assert.Contains(t, sources, "scripts/seed.py", "files outside the structure are kept")

	require.NotNil(t, out.Dependencies)
	assert.Empty(t, deps.Duplicates(*out.Dependencies))
	assert.Equal(t, deps.EcosystemPip, out.Dependencies.Ecosystem)
	assert.Equal(t, []types.Package{
		{Name: "click", Purpose: "CLI parsing"},
		{Name: "rich"},
		{Name: "pyyaml"},
	}, out.Dependencies.Packages(types.CategoryMain))
	assert.Equal(t, []types.Package{{Name: "pytest"}}, out.Dependencies.Packages(types.CategoryTest))

	bundle := map[string]string{}
	for _, f := range out.Bundle() {
		bundle[f.Path] = f.Content
	}
	assert.Equal(t, "click  # CLI parsing\nrich\npyyaml\n", bundle["requirements.txt"])
	assert.Equal(t, "-r requirements.txt\nblack\npytest\n", bundle["requirements-dev.txt"])

	stored, ok := o.Get(snap.ID)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, stored.State)
}

func TestExecuteDerivesProjectName(t *testing.T) {
	snap, err := New(todoScript()).Execute(context.Background(), Request{Description: "a simple todo CLI"})
	require.NoError(t, err)
	assert.Equal(t, "todo-cli", snap.ProjectName)
	assert.Equal(t, "todo-cli", snap.Outputs.Structure.Root)
}

func TestExecuteProseFailsAtAnalyze(t *testing.T) {
	gen := llmclient.NewScriptedClient(stageKey).On(string(prompt.StageAnalyze), llmclient.Reply{Text: proseReply})
	snap, err := New(gen).Execute(context.Background(), Request{Description: "a simple todo CLI"})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateAnalyzing, se.Stage)
	var ee *extract.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []string{extract.StrategyWhole, extract.StrategyFenced, extract.StrategyBalanced, extract.StrategyKeyValue}, ee.Attempted)

	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, StateAnalyzing, snap.FailedStage)
	assert.Equal(t, "extraction", snap.ErrorKind)
	assert.Contains(t, snap.Error, "ANALYZING")
	assert.Empty(t, snap.Completed)
	assert.Nil(t, snap.Outputs.Analysis)
	assert.Len(t, gen.Calls(), 1)
}

func TestExecuteAuthErrorStopsRun(t *testing.T) {
	gen := todoScript()
	gen.ByKey[string(prompt.StageArchitect)] = []llmclient.Reply{{Err: llmclient.NewAuthError("test", errors.New("bad key"))}}

	snap, err := New(gen).Execute(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.Error(t, err)
	assert.Equal(t, llmclient.KindAuth, llmclient.KindOf(err))
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, StateArchitecting, snap.FailedStage)
	assert.Equal(t, "generation_auth", snap.ErrorKind)
	assert.Equal(t, []State{StateAnalyzing}, snap.Completed)
	assert.NotNil(t, snap.Outputs.Analysis)
	assert.Nil(t, snap.Outputs.Architecture)
	assert.Len(t, gen.Calls(), 2)
}

func TestExecuteGenerationFailuresThroughRetry(t *testing.T) {
	transient := llmclient.Reply{Err: llmclient.NewTransientError("test", errors.New("503"))}
	limited := llmclient.Reply{Err: llmclient.NewRateLimitError("test", errors.New("429"), 0)}
	malformed := llmclient.Reply{Err: llmclient.NewMalformedError("test", errors.New("no candidates"))}

	cases := []struct {
		name      string
		replies   []llmclient.Reply
		state     State
		kind      string
		structure int
		sleeps    int
	}{
		{name: "transient exhausted", replies: []llmclient.Reply{transient}, state: StateFailed, kind: "generation_transient", structure: 3, sleeps: 2},
		{name: "rate limit exhausted", replies: []llmclient.Reply{limited}, state: StateFailed, kind: "generation_rate_limit", structure: 3, sleeps: 2},
		{name: "malformed not retried", replies: []llmclient.Reply{malformed}, state: StateFailed, kind: "generation_malformed_response", structure: 1},
		{name: "blank text is malformed", replies: []llmclient.Reply{{Text: "  "}}, state: StateFailed, kind: "generation_malformed_response", structure: 1},
		{name: "transient then recovered", replies: []llmclient.Reply{transient, {Text: structureReply}}, state: StateCompleted, structure: 2, sleeps: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := todoScript()
			script.ByKey[string(prompt.StageStructure)] = tc.replies

			var sleeps int
			gen := llm.Wrap(script, llm.Retry(
				llm.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2},
				llm.WithSleeper(func(context.Context, time.Duration) error { sleeps++; return nil }),
			))

			snap, err := New(gen).Execute(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
			assert.Equal(t, tc.state, snap.State)
			assert.Equal(t, tc.sleeps, sleeps)

			structureCalls := 0
			for _, c := range script.Calls() {
				if strings.Contains(c.Prompt, "Lay out the directory and file tree") {
					structureCalls++
				}
			}
			assert.Equal(t, tc.structure, structureCalls)

			if tc.state == StateCompleted {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, StateStructuring, snap.FailedStage)
			assert.Equal(t, tc.kind, snap.ErrorKind)
			assert.Contains(t, snap.Error, "STRUCTURING")
			assert.Equal(t, []State{StateAnalyzing, StateArchitecting}, snap.Completed)
			assert.Nil(t, snap.Outputs.Structure)
			assert.Nil(t, snap.Outputs.Files)
		})
	}
}

func TestExecuteStructureWithoutFilesFails(t *testing.T) {
	gen := todoScript()
	gen.ByKey[string(prompt.StageStructure)] = []llmclient.Reply{{Text: `{"files": [{"path": "../escape.py"}]}`}}
	snap, err := New(gen).Execute(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.Error(t, err)
	assert.Equal(t, StateStructuring, snap.FailedStage)
	assert.Nil(t, snap.Outputs.Structure)
}

func TestExecuteValidation(t *testing.T) {
	o := New(todoScript(), WithMaxDescriptionLength(20))
	cases := []Request{
		{Description: "   "},
		{Description: strings.Repeat("x", 21)},
		{Description: "ok", ProjectName: "1bad"},
		{Description: "ok", ProjectName: "has space"},
		{Description: "ok", ProjectName: "a" + strings.Repeat("b", MaxProjectNameLength)},
	}
	for _, req := range cases {
		_, err := o.Execute(context.Background(), req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", req)
	}
	assert.Empty(t, o.List())
}

func TestExecuteCancelledContext(t *testing.T) {
	gen := todoScript()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := New(gen).Execute(ctx, Request{Description: "a simple todo CLI"})
	var ce *CancellationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StateAnalyzing, ce.Stage)
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, "cancelled", snap.ErrorKind)
	assert.Empty(t, gen.Calls())
}

func TestStartAndWait(t *testing.T) {
	ids := []string{"run-1", "run-2", "run-3"}
	var mu sync.Mutex
	next := 0
	o := New(todoScript(), WithMaxConcurrentRuns(2), WithIDFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[next]
		next++
		return id
	}))

	for range ids {
		_, err := o.Start(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
		require.NoError(t, err)
	}
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		snap, err := o.Wait(ctx, id)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, snap.State, id)
	}
	list := o.List()
	require.Len(t, list, 3)
	assert.Equal(t, "run-1", list[0].ID)

	_, err := o.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, o.Cancel("missing"), ErrRunNotFound)
	assert.NoError(t, o.Cancel("run-1"), "cancelling a finished run is a no-op")
}

func TestStartOutlivesCallerContext(t *testing.T) {
	o := New(todoScript())
	ctx, cancel := context.WithCancel(context.Background())
	id, err := o.Start(ctx, Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.NoError(t, err)
	cancel()

	snap, err := o.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
}

func TestCancelBetweenStages(t *testing.T) {
	gated := newGated(todoScript())
	o := New(gated)
	id, err := o.Start(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.NoError(t, err)

	<-gated.entered
	snap, ok := o.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateAnalyzing, snap.State)

	require.NoError(t, o.Cancel(id))
	close(gated.release)

	snap, err = o.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, []State{StateAnalyzing}, snap.Completed, "the in-flight stage finishes")
	assert.NotNil(t, snap.Outputs.Analysis)
	assert.Nil(t, snap.Outputs.Architecture)
	assert.Contains(t, snap.Error, string(StateArchitecting))
}

func TestEventsStreamToTerminal(t *testing.T) {
	gated := newGated(todoScript())
	o := New(gated, WithIDFunc(func() string { return "watched" }))
	id, err := o.Start(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.NoError(t, err)

	<-gated.entered
	ch, unsubscribe := o.Events().Subscribe(id, 32)
	defer unsubscribe()
	close(gated.release)

	var states []State
	for snap := range ch {
		states = append(states, snap.State)
	}
	require.NotEmpty(t, states)
	assert.Equal(t, StateCompleted, states[len(states)-1])
}

type pyBoilerplate struct{}

func (pyBoilerplate) Content(_ context.Context, _ types.Analysis, f types.FileNode) (string, bool) {
	if strings.HasSuffix(f.Path, "__init__.py") {
		return "", true
	}
	return "", false
}

func TestBoilerplateFillsMissingFiles(t *testing.T) {
	snap, err := New(todoScript(), WithBoilerplate(pyBoilerplate{})).
		Execute(context.Background(), Request{Description: "a simple todo CLI", ProjectName: "todo"})
	require.NoError(t, err)
	var paths []string
	for _, f := range snap.Outputs.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "todo/__init__.py")
}

func TestSanitizePlan(t *testing.T) {
	var warnings []string
	plan := SanitizePlan(types.ArchitecturePlan{
		Components: []types.Component{{Name: " API "}, {Name: "api"}, {Name: ""}, {Name: "DB"}},
		Dependencies: []types.Dependency{
			{Source: "api", Target: "db"},
			{Source: "api", Target: "cache"},
		},
		DataFlows: []types.DataFlow{{Source: "ghost", Target: "DB"}},
	}, func(msg, detail string) { warnings = append(warnings, msg) })

	assert.Equal(t, []string{"API", "DB"}, plan.ComponentNames())
	assert.Equal(t, []types.Dependency{{Source: "API", Target: "DB"}}, plan.Dependencies)
	assert.Empty(t, plan.DataFlows)
	assert.Len(t, warnings, 3)
}
