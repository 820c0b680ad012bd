package workspace

import (
	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/sequence"
)

// Snapshot is a consistent view of the workspace for rendering.
type Snapshot struct {
	State     State             `json:"state"`
	Steps     []domain.Step     `json:"steps"`
	Rendered  []domain.Step     `json:"rendered"`
	Text      string            `json:"text"`
	Editing   int               `json:"editing,omitempty"`
	Variables []domain.Variable `json:"variables"`
	Pending   bool              `json:"pending"`
}

// Snapshot captures the full workspace state under a single lock.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Snapshot{
		State:     w.stateLocked(),
		Steps:     nonNil(cloneSteps(w.steps)),
		Rendered:  nonNil(w.renderedLocked()),
		Text:      sequence.Serialize(w.steps),
		Editing:   w.editing,
		Variables: w.vars.List(),
		Pending:   w.inFlight != 0,
	}
}

func nonNil(steps []domain.Step) []domain.Step {
	if steps == nil {
		return []domain.Step{}
	}
	return steps
}
