package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StateAnalyzing, true},
		{StateInit, StateArchitecting, false},
		{StateAnalyzing, StateArchitecting, true},
		{StateArchitecting, StateAnalyzing, false},
		{StateResolving, StateCompleted, true},
		{StateCoding, StateFailed, true},
		{StateInit, StateCancelled, true},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateCancelled, false},
		{StateCancelled, StateAnalyzing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStateIsFinal(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateFailed, StateCancelled} {
		r := newRun("r", Request{Description: "d"}, time.Now())
		for _, s := range []State{StateAnalyzing, StateArchitecting, StateStructuring, StateCoding, StateResolving} {
			require.True(t, r.Advance(s, nil))
			require.True(t, r.complete(nil))
		}
		switch terminal {
		case StateCompleted:
			require.True(t, r.Advance(StateCompleted, nil))
		case StateFailed:
			require.True(t, r.fail(&StageError{Stage: r.State, Err: errors.New("boom")}))
		case StateCancelled:
			require.True(t, r.fail(&CancellationError{Stage: StateCompleted}))
		}
		before := r.Snapshot()

		called := false
		set := func(o *Outputs) {
			called = true
			o.Files = append(o.Files, types.CodeFile{Path: "late.go"})
		}
		for _, s := range []State{StateAnalyzing, StateCompleted, StateFailed, StateCancelled} {
			assert.False(t, r.Advance(s, set), "%s after %s", s, terminal)
		}
		assert.False(t, r.complete(set))
		assert.False(t, r.fail(errors.New("again")))
		assert.False(t, called)
		after := r.Snapshot()
		assert.Equal(t, before.State, after.State)
		assert.Equal(t, before.Completed, after.Completed)
		assert.Equal(t, before.Outputs, after.Outputs)
		assert.Equal(t, before.Error, after.Error)
	}
}

func TestFailRecordsStage(t *testing.T) {
	r := newRun("r", Request{Description: "d"}, time.Now())
	require.True(t, r.Advance(StateAnalyzing, nil))
	require.True(t, r.fail(&StageError{Stage: StateAnalyzing, Err: errors.New("boom")}))
	assert.Equal(t, StateFailed, r.State)
	assert.Equal(t, StateAnalyzing, r.FailedStage)

	r = newRun("r", Request{Description: "d"}, time.Now())
	require.True(t, r.fail(&CancellationError{Stage: StateAnalyzing}))
	assert.Equal(t, StateCancelled, r.State)
	assert.Empty(t, r.FailedStage)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newRun("r", Request{Description: "d"}, time.Now())
	require.True(t, r.Advance(StateAnalyzing, nil))
	r.complete(func(o *Outputs) { o.Files = []types.CodeFile{{Path: "a.go"}} })
	snap := r.Snapshot()
	snap.Outputs.Files[0].Path = "changed"
	snap.Completed[0] = StateFailed
	assert.Equal(t, "a.go", r.Outputs.Files[0].Path)
	assert.Equal(t, StateAnalyzing, r.Completed[0])
}

func TestBundleManifestsReplaceFiles(t *testing.T) {
	o := Outputs{
		Files:     []types.CodeFile{{Path: "main.py"}, {Path: "requirements.txt", Content: "old"}},
		Manifests: []types.CodeFile{{Path: "requirements.txt", Content: "new"}},
	}
	assert.Equal(t, []types.CodeFile{{Path: "main.py"}, {Path: "requirements.txt", Content: "new"}}, o.Bundle())
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Unix(100, 0)
	require.NoError(t, s.Create(Snapshot{ID: "b", State: StateInit, CreatedAt: t0}))
	require.NoError(t, s.Create(Snapshot{ID: "a", State: StateInit, CreatedAt: t0.Add(time.Second)}))
	assert.Error(t, s.Create(Snapshot{ID: "a"}))
	assert.Error(t, s.Create(Snapshot{ID: " "}))
	assert.ErrorIs(t, s.Update(Snapshot{ID: "zzz"}), ErrRunNotFound)

	require.NoError(t, s.Update(Snapshot{ID: "b", State: StateCompleted, CreatedAt: t0}))
	require.NoError(t, s.Update(Snapshot{ID: "b", State: StateAnalyzing, CreatedAt: t0}))
	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, got.State, "terminal snapshots are never replaced")

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}

func TestEventBroker(t *testing.T) {
	b := NewEventBroker()
	ch, unsubscribe := b.Subscribe("r1", 2)
	other, unsubscribeOther := b.Subscribe("r2", 1)
	defer unsubscribeOther()

	b.Publish(Snapshot{ID: "r1", State: StateAnalyzing})
	b.Publish(Snapshot{ID: "r1", State: StateArchitecting})
	b.Publish(Snapshot{ID: "r1", State: StateStructuring}) // dropped, buffer full
	b.Publish(Snapshot{ID: "r1", State: StateFailed})

	var got []State
	for s := range ch {
		got = append(got, s.State)
	}
	assert.Equal(t, []State{StateArchitecting, StateFailed}, got)
	unsubscribe()

	select {
	case <-other:
		t.Fatal("other run received an event")
	default:
	}
}
