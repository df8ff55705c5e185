// Package workflow owns the client-side state machine of a deed
// generation run. A single Engine instance holds the one live State;
// there are no package-level singletons.
package workflow

import (
	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/generation"
)

// Step is the phase of the guided workflow.
type Step string

const (
	StepIdle       Step = "IDLE"
	StepTypeSelect Step = "TYPE_SELECT"
	StepCollecting Step = "COLLECTING"
	StepValidating Step = "VALIDATING"
	StepReview     Step = "REVIEW"
	StepGenerating Step = "GENERATING"
	StepDone       Step = "DONE"
)

// State is the whole observable state of a run. Snapshots handed to
// subscribers are value copies; slices and maps inside them must be
// treated as read-only.
type State struct {
	Step Step

	WorkflowID    string
	DossierID     string
	TypeActe      string
	CategorieBien string
	SousType      string
	Detection     map[string]any

	Sections       []acte.Section
	CurrentSection int
	Donnees        map[string]any

	Progression        acte.Progression
	ValidationMessages []acte.ValidationMessage

	GenerationEvents []generation.Event
	FichierURL       string
	ConformiteScore  int

	Error     string
	IsLoading bool
}

// initialState is the value Reset returns to.
func initialState() State {
	return State{
		Step:    StepIdle,
		Donnees: map[string]any{},
	}
}

// Snapshot is the durable subset of State written to the draft store.
// Transient fields (validation messages, generation log, error,
// loading) are intentionally absent and reset to defaults on restore.
type Snapshot struct {
	Step            Step             `json:"step"`
	WorkflowID      string           `json:"workflow_id"`
	DossierID       string           `json:"dossier_id"`
	TypeActe        string           `json:"type_acte"`
	CategorieBien   string           `json:"categorie_bien,omitempty"`
	SousType        string           `json:"sous_type,omitempty"`
	Detection       map[string]any   `json:"detection,omitempty"`
	Sections        []acte.Section   `json:"sections"`
	CurrentSection  int              `json:"current_section"`
	Donnees         map[string]any   `json:"donnees"`
	Progression     acte.Progression `json:"progression"`
	FichierURL      string           `json:"fichier_url,omitempty"`
	ConformiteScore int              `json:"conformite_score,omitempty"`
}

// snapshot extracts the durable subset of a state.
func snapshot(s State) Snapshot {
	return Snapshot{
		Step:            s.Step,
		WorkflowID:      s.WorkflowID,
		DossierID:       s.DossierID,
		TypeActe:        s.TypeActe,
		CategorieBien:   s.CategorieBien,
		SousType:        s.SousType,
		Detection:       s.Detection,
		Sections:        s.Sections,
		CurrentSection:  s.CurrentSection,
		Donnees:         s.Donnees,
		Progression:     s.Progression,
		FichierURL:      s.FichierURL,
		ConformiteScore: s.ConformiteScore,
	}
}

// restore builds a state from a durable snapshot, resetting every
// transient field to its default.
func restore(snap Snapshot) State {
	s := initialState()
	s.Step = snap.Step
	// An in-flight step cannot be resumed; fall back to the stable
	// step it was entered from.
	switch snap.Step {
	case StepValidating:
		s.Step = StepCollecting
	case StepGenerating:
		s.Step = StepReview
	}
	s.WorkflowID = snap.WorkflowID
	s.DossierID = snap.DossierID
	s.TypeActe = snap.TypeActe
	s.CategorieBien = snap.CategorieBien
	s.SousType = snap.SousType
	s.Detection = snap.Detection
	s.Sections = snap.Sections
	s.CurrentSection = snap.CurrentSection
	if snap.Donnees != nil {
		s.Donnees = snap.Donnees
	}
	s.Progression = snap.Progression
	s.FichierURL = snap.FichierURL
	s.ConformiteScore = snap.ConformiteScore
	return s
}
