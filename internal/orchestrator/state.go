// Package orchestrator drives a recipe generation from the user's selection
// to a typed result: settings check, payload build, the optional image phase,
// the recipe request and the routing of outcomes back to the view layer.
package orchestrator

import "github.com/dishcovery/dishcovery-client/internal/domain"

// State is a step of the generation state machine.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateBuilding         State = "building"
	StateSending          State = "sending"
	StateAwaitingResponse State = "awaiting_response"
	StateSuccess          State = "success"
	StateFailed           State = "failed"
)

// IsTerminal reports whether s ends a generation.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Phase distinguishes the two requests of the two-phase flow.
type Phase string

const (
	PhaseNone   Phase = ""
	PhaseImage  Phase = "image"
	PhaseRecipe Phase = "recipe"
)

// Snapshot is what the view layer renders.
type Snapshot struct {
	State        State                    `json:"state"`
	Phase        Phase                    `json:"phase,omitempty"`
	Busy         bool                     `json:"busy"`
	Error        *domain.APIError         `json:"error,omitempty"`
	ShowSettings bool                     `json:"showSettings"`
	Result       *domain.GenerationResult `json:"result,omitempty"`
	Token        string                   `json:"token,omitempty"`
}
