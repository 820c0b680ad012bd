package live

import (
	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/sequence"
	"github.com/kaihuan-huang/HR-AI/internal/workspace"
)

// Client message types.
const (
	msgSend           = "send"
	msgLoad           = "load"
	msgBeginEdit      = "begin_edit"
	msgCommitEdit     = "commit_edit"
	msgCancelEdit     = "cancel_edit"
	msgSetVariable    = "set_variable"
	msgDeleteVariable = "delete_variable"
	msgReset          = "reset"
	msgPing           = "ping"
)

// Server event types.
const (
	EventState        = "state"
	EventHistory      = "history"
	EventTurns        = "turns"
	EventEditRejected = "edit_rejected"
	EventError        = "error"
	EventPong         = "pong"
)

// clientMessage is a message received from the browser.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
	StepID  int    `json:"step_id,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Event is a message sent to the browser.
type Event struct {
	Type          string              `json:"type"`
	RequestID     uint64              `json:"request_id,omitempty"`
	State         *workspace.Snapshot `json:"state,omitempty"`
	Diff          []sequence.Line     `json:"diff,omitempty"`
	Turns         []domain.Turn       `json:"turns,omitempty"`
	UserTurn      *domain.Turn        `json:"user_turn,omitempty"`
	AssistantTurn *domain.Turn        `json:"assistant_turn,omitempty"`
	Applied       bool                `json:"applied,omitempty"`
	StepID        int                 `json:"step_id,omitempty"`
	Code          string              `json:"code,omitempty"`
	Error         string              `json:"error,omitempty"`
	Retryable     bool                `json:"retryable,omitempty"`
}
