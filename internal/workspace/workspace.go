// Package workspace owns the editable step list of one live session.
//
// A Workspace is scoped to a single session and is never shared between
// sessions. All methods are safe for concurrent use: the session's read loop
// and its in-flight completion may touch the same Workspace.
package workspace

import (
	"errors"
	"strings"
	"sync"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/sequence"
	"github.com/kaihuan-huang/HR-AI/internal/variables"
)

var (
	// ErrStepNotFound is returned for an id outside the current sequence.
	ErrStepNotFound = errors.New("step not found")
	// ErrNotEditing is returned when committing or cancelling a step that is not being edited.
	ErrNotEditing = errors.New("step is not being edited")
	// ErrRequestInFlight is returned when a completion is already pending for the session.
	ErrRequestInFlight = errors.New("a completion request is already in flight")
)

// State is the coarse workspace state.
type State string

const (
	// StateEmpty means no sequence has been loaded.
	StateEmpty State = "empty"
	// StatePopulated means at least one step exists.
	StatePopulated State = "populated"
)

// Change describes the effect of a Load.
type Change struct {
	Text string          `json:"text"`
	Diff []sequence.Line `json:"diff,omitempty"`
}

// Workspace is the canonical step list of one session plus its variables.
type Workspace struct {
	mu sync.Mutex

	steps   []domain.Step
	editing int // id of the step in Editing, 0 when every step is Viewing
	vars    variables.Table

	lastRequest uint64 // last id issued by BeginRequest
	inFlight    uint64 // request still running, 0 when idle
	loadable    uint64 // request whose reply may still be loaded, 0 when superseded
}

// New returns an empty workspace.
func New() *Workspace {
	return &Workspace{}
}

// Load replaces the entire step list with the parse of raw and cancels any
// in-progress edit. The reply of a pending request will no longer be loaded.
func (w *Workspace) Load(raw string) Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadable = 0
	return w.loadLocked(raw)
}

func (w *Workspace) loadLocked(raw string) Change {
	before := sequence.Serialize(w.steps)
	w.steps = sequence.Parse(raw)
	w.editing = 0
	after := sequence.Serialize(w.steps)
	return Change{Text: after, Diff: sequence.Diff(before, after)}
}

// State reports whether the workspace holds a sequence.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Workspace) stateLocked() State {
	if len(w.steps) == 0 {
		return StateEmpty
	}
	return StatePopulated
}

// BeginEdit moves a step into Editing. A step already being edited is
// cancelled first; at most one step is editable at a time.
func (w *Workspace) BeginEdit(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.indexLocked(id) < 0 {
		return ErrStepNotFound
	}
	w.editing = id
	return nil
}

// CommitEdit stores new content for the step being edited. Blank content is
// rejected: it returns false, changes nothing, and the step stays in Editing.
// Content is normalized to a single trimmed line so the serialized sequence
// keeps one step per line.
func (w *Workspace) CommitEdit(id int, content string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexLocked(id)
	if idx < 0 {
		return false, ErrStepNotFound
	}
	if w.editing != id {
		return false, ErrNotEditing
	}
	normalized := normalizeContent(content)
	if normalized == "" {
		return false, nil
	}

	w.steps[idx].Content = normalized
	w.editing = 0
	// The user's edit is newer than whatever the model is about to return.
	w.loadable = 0
	return true, nil
}

// CancelEdit discards the in-progress edit of a step.
func (w *Workspace) CancelEdit(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.indexLocked(id) < 0 {
		return ErrStepNotFound
	}
	if w.editing != id {
		return ErrNotEditing
	}
	w.editing = 0
	return nil
}

// Editing returns the id of the step being edited.
func (w *Workspace) Editing() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editing, w.editing != 0
}

// Serialize renders the canonical "Step <id>: <content>" text. This is the
// workspace context sent with the next completion request.
func (w *Workspace) Serialize() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sequence.Serialize(w.steps)
}

// Steps returns a copy of the current steps.
func (w *Workspace) Steps() []domain.Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneSteps(w.steps)
}

// Rendered returns the steps with variables substituted. Stored content is
// left untouched.
func (w *Workspace) Rendered() []domain.Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.renderedLocked()
}

func (w *Workspace) renderedLocked() []domain.Step {
	vars := w.vars.List()
	rendered := cloneSteps(w.steps)
	for i := range rendered {
		rendered[i].Content = variables.Resolve(rendered[i].Content, vars)
	}
	return rendered
}

// SetVariable adds or updates a display variable.
func (w *Workspace) SetVariable(key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vars.Set(key, value)
}

// DeleteVariable removes a display variable.
func (w *Workspace) DeleteVariable(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vars.Delete(key)
}

// Variables returns the variables in insertion order.
func (w *Workspace) Variables() []domain.Variable {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vars.List()
}

func (w *Workspace) indexLocked(id int) int {
	// Ids are dense, so the id doubles as a position.
	if id < 1 || id > len(w.steps) || w.steps[id-1].ID != id {
		return -1
	}
	return id - 1
}

func normalizeContent(content string) string {
	var parts []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func cloneSteps(steps []domain.Step) []domain.Step {
	if steps == nil {
		return nil
	}
	out := make([]domain.Step, len(steps))
	copy(out, steps)
	return out
}
