package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/sequence"
	"github.com/kaihuan-huang/HR-AI/internal/variables"
)

type parseRequest struct {
	Text string `json:"text"`
}

type renderRequest struct {
	Text      string            `json:"text"`
	Variables []domain.Variable `json:"variables"`
}

type sequenceResponse struct {
	Steps      []domain.Step `json:"steps"`
	Text       string        `json:"text"`
	HasMarkers bool          `json:"has_markers"`
}

// ParseSequence handles POST /api/sequence/parse.
func (h *Handler) ParseSequence(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !h.decode(w, r, &req) {
		return
	}

	steps := sequence.Parse(req.Text)
	JSON(w, http.StatusOK, sequenceResponse{
		Steps:      nonNilSteps(steps),
		Text:       sequence.Serialize(steps),
		HasMarkers: sequence.HasMarkers(req.Text),
	})
}

// RenderSequence handles POST /api/sequence/render. Stored text is never
// modified; only the returned steps carry resolved placeholders.
func (h *Handler) RenderSequence(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !h.decode(w, r, &req) {
		return
	}

	table, err := variables.NewTable(req.Variables...)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	steps := sequence.Parse(req.Text)
	for i := range steps {
		steps[i].Content = table.Resolve(steps[i].Content)
	}
	JSON(w, http.StatusOK, sequenceResponse{
		Steps:      nonNilSteps(steps),
		Text:       sequence.Serialize(steps),
		HasMarkers: sequence.HasMarkers(req.Text),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func nonNilSteps(steps []domain.Step) []domain.Step {
	if steps == nil {
		return []domain.Step{}
	}
	return steps
}
