package workspace

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/sequence"
)

const launchPlan = "Step 1: Announce the launch date\nStep 2: Send the teaser email\nStep 3: Publish the landing page"

func loaded(t *testing.T) *Workspace {
	t.Helper()
	ws := New()
	ws.Load(launchPlan)
	require.Equal(t, StatePopulated, ws.State())
	return ws
}

func TestLoadReplacesSequence(t *testing.T) {
	t.Parallel()

	ws := New()
	assert.Equal(t, StateEmpty, ws.State())

	change := ws.Load("Step 4: a\nStep 9: b")
	assert.Equal(t, "Step 1: a\nStep 2: b", change.Text)
	assert.True(t, sequence.Changed(change.Diff))

	change = ws.Load("Only a question?")
	assert.Equal(t, []domain.Step{{ID: 1, Content: "Only a question?"}}, ws.Steps())
	assert.Equal(t, "Step 1: Only a question?", change.Text)

	ws.Load("  ")
	assert.Equal(t, StateEmpty, ws.State())
	assert.Empty(t, ws.Serialize())
}

func TestEndToEndSerializeReproducesModelText(t *testing.T) {
	t.Parallel()

	ws := New()
	ws.Load(launchPlan)

	steps := ws.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, domain.Step{ID: 1, Content: "Announce the launch date"}, steps[0])
	assert.Equal(t, domain.Step{ID: 2, Content: "Send the teaser email"}, steps[1])
	assert.Equal(t, launchPlan, ws.Serialize())
}

func TestCommitEdit(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	require.NoError(t, ws.BeginEdit(2))

	ok, err := ws.CommitEdit(2, "  Send the teaser\n email to {{list}}  ")
	require.NoError(t, err)
	assert.True(t, ok)

	_, editing := ws.Editing()
	assert.False(t, editing)
	assert.Equal(t,
		"Step 1: Announce the launch date\nStep 2: Send the teaser email to {{list}}\nStep 3: Publish the landing page",
		ws.Serialize())
}

func TestCommitEditRejectsBlankContent(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	require.NoError(t, ws.BeginEdit(1))

	for _, blank := range []string{"", "   ", "\n\t"} {
		ok, err := ws.CommitEdit(1, blank)
		require.NoError(t, err)
		assert.False(t, ok)

		id, editing := ws.Editing()
		assert.True(t, editing)
		assert.Equal(t, 1, id)
	}
	assert.Equal(t, launchPlan, ws.Serialize())
}

func TestCommitEditRequiresEditing(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	_, err := ws.CommitEdit(1, "new")
	assert.ErrorIs(t, err, ErrNotEditing)

	_, err = ws.CommitEdit(7, "new")
	assert.ErrorIs(t, err, ErrStepNotFound)

	assert.ErrorIs(t, ws.BeginEdit(0), ErrStepNotFound)
	assert.ErrorIs(t, ws.BeginEdit(4), ErrStepNotFound)
	assert.ErrorIs(t, ws.CancelEdit(2), ErrNotEditing)
}

func TestBeginEditCancelsOtherEdit(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	require.NoError(t, ws.BeginEdit(1))
	require.NoError(t, ws.BeginEdit(3))

	id, editing := ws.Editing()
	require.True(t, editing)
	assert.Equal(t, 3, id)

	_, err := ws.CommitEdit(1, "late commit")
	assert.ErrorIs(t, err, ErrNotEditing)
	assert.Equal(t, launchPlan, ws.Serialize())
}

func TestCancelEditDiscardsDraft(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	require.NoError(t, ws.BeginEdit(2))
	require.NoError(t, ws.CancelEdit(2))

	_, editing := ws.Editing()
	assert.False(t, editing)
	assert.Equal(t, launchPlan, ws.Serialize())
}

func TestLoadCancelsEdit(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	require.NoError(t, ws.BeginEdit(3))
	ws.Load("Step 1: only")

	_, editing := ws.Editing()
	assert.False(t, editing)
}

func TestIDsStayDenseAcrossEdits(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	ws := loaded(t)
	want := []int{1, 2, 3}

	for i := 0; i < 500; i++ {
		id := rng.Intn(5) // includes out-of-range ids
		switch rng.Intn(4) {
		case 0:
			_ = ws.BeginEdit(id)
		case 1:
			_, _ = ws.CommitEdit(id, []string{"", "  ", "edited", "line\nbreak"}[rng.Intn(4)])
		case 2:
			_ = ws.CancelEdit(id)
		case 3:
			_ = ws.SetVariable("v", "x")
		}

		steps := ws.Steps()
		ids := make([]int, len(steps))
		for j, s := range steps {
			ids[j] = s.ID
		}
		require.Equal(t, want, ids)
		require.Equal(t, steps, sequence.Parse(ws.Serialize()))
	}
}

func TestRenderedResolvesVariablesWithoutMutatingSteps(t *testing.T) {
	t.Parallel()

	ws := New()
	ws.Load("Step 1: Email {{list}}\nStep 2: Ship {{product}}")
	require.NoError(t, ws.SetVariable("list", "beta testers"))

	rendered := ws.Rendered()
	assert.Equal(t, "Email beta testers", rendered[0].Content)
	assert.Equal(t, "Ship {{product}}", rendered[1].Content)
	assert.Equal(t, "Step 1: Email {{list}}\nStep 2: Ship {{product}}", ws.Serialize())

	assert.True(t, ws.DeleteVariable("list"))
	assert.Equal(t, "Email {{list}}", ws.Rendered()[0].Content)
	assert.Empty(t, ws.Variables())
	assert.Error(t, ws.SetVariable("bad key", "x"))
}

func TestRequestLifecycle(t *testing.T) {
	t.Parallel()

	ws := New()
	id, err := ws.BeginRequest()
	require.NoError(t, err)
	assert.True(t, ws.Pending())

	_, err = ws.BeginRequest()
	assert.ErrorIs(t, err, ErrRequestInFlight)

	change, applied := ws.CompleteRequest(id, "Step 1: a")
	assert.True(t, applied)
	assert.Equal(t, "Step 1: a", change.Text)
	assert.False(t, ws.Pending())

	// A reply delivered twice is stale the second time.
	_, applied = ws.CompleteRequest(id, "Step 1: b")
	assert.False(t, applied)
	assert.Equal(t, "Step 1: a", ws.Serialize())
}

func TestAbandonDropsStaleReply(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	first, err := ws.BeginRequest()
	require.NoError(t, err)
	ws.Abandon()

	// The abandoned call has not returned yet, so the session is still busy.
	assert.True(t, ws.Pending())
	_, err = ws.BeginRequest()
	require.ErrorIs(t, err, ErrRequestInFlight)

	_, applied := ws.CompleteRequest(first, "Step 1: stale")
	assert.False(t, applied)
	assert.False(t, ws.Pending())
	assert.Equal(t, launchPlan, ws.Serialize())

	second, err := ws.BeginRequest()
	require.NoError(t, err)
	assert.Greater(t, second, first)

	_, applied = ws.CompleteRequest(second, "Step 1: fresh")
	assert.True(t, applied)
	assert.Equal(t, "Step 1: fresh", ws.Serialize())
}

func TestFailedStaleRequestReleasesSession(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	id, err := ws.BeginRequest()
	require.NoError(t, err)
	ws.Abandon()

	ws.FailRequest(id)
	assert.False(t, ws.Pending())
	_, err = ws.BeginRequest()
	assert.NoError(t, err)
}

func TestFailRequestKeepsSequence(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	id, err := ws.BeginRequest()
	require.NoError(t, err)

	ws.FailRequest(id)
	assert.False(t, ws.Pending())
	assert.Equal(t, launchPlan, ws.Serialize())

	_, err = ws.BeginRequest()
	assert.NoError(t, err)
}

func TestCommitWhilePendingSupersedesReply(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	id, err := ws.BeginRequest()
	require.NoError(t, err)

	require.NoError(t, ws.BeginEdit(1))
	ok, err := ws.CommitEdit(1, "Announce on Monday")
	require.NoError(t, err)
	require.True(t, ok)

	// Superseded, but the call is still running.
	assert.True(t, ws.Pending())
	_, err = ws.BeginRequest()
	require.ErrorIs(t, err, ErrRequestInFlight)

	_, applied := ws.CompleteRequest(id, "Step 1: model rewrite")
	assert.False(t, applied)
	assert.False(t, ws.Pending())
	assert.Equal(t, "Announce on Monday", ws.Steps()[0].Content)
}

func TestLoadWhilePendingSupersedesReply(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	id, err := ws.BeginRequest()
	require.NoError(t, err)

	ws.Load("Step 1: typed by user")

	_, applied := ws.CompleteRequest(id, "Step 1: model")
	assert.False(t, applied)
	assert.Equal(t, "Step 1: typed by user", ws.Serialize())
	assert.False(t, ws.Pending())
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	ws := New()
	snap := ws.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.NotNil(t, snap.Steps)

	ws.Load(launchPlan)
	require.NoError(t, ws.SetVariable("x", "y"))
	require.NoError(t, ws.BeginEdit(2))

	snap = ws.Snapshot()
	assert.Equal(t, StatePopulated, snap.State)
	assert.Equal(t, launchPlan, snap.Text)
	assert.Equal(t, 2, snap.Editing)
	assert.Len(t, snap.Rendered, 3)
	assert.Equal(t, []domain.Variable{{Key: "x", Value: "y"}}, snap.Variables)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	ws := loaded(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = ws.BeginEdit(1 + (n+j)%3)
				_, _ = ws.CommitEdit(1+(n+j)%3, "edit")
				_ = ws.Snapshot()
				if id, err := ws.BeginRequest(); err == nil {
					ws.CompleteRequest(id, launchPlan)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, ws.Steps(), 3)
}
