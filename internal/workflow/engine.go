package workflow

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/api"
	"github.com/mrogier/actaflow/internal/fields"
	"github.com/mrogier/actaflow/internal/generation"
	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/stream"
)

// Backend is the slice of the HTTP client the engine drives. Declared
// here so the engine can be exercised against a fake.
type Backend interface {
	StartWorkflow(ctx context.Context, req acte.StartRequest) (*acte.StartResponse, error)
	RefetchSections(ctx context.Context, req acte.StartRequest) ([]acte.Section, error)
	SubmitAnswers(ctx context.Context, workflowID string, donnees map[string]any) (*acte.SubmitResponse, error)
	StreamGeneration(ctx context.Context, workflowID string) (stream.Source, error)
}

// Store persists the durable draft snapshot. A nil Store disables
// persistence.
type Store interface {
	Save(snap Snapshot) error
	// Load returns (nil, nil) when no restorable snapshot exists.
	Load() (*Snapshot, error)
	Delete() error
}

// Listener observes state snapshots after each mutation.
type Listener func(State)

// Engine owns the single live State and serializes every mutation.
type Engine struct {
	mu        sync.Mutex
	state     State
	backend   Backend
	store     Store
	listeners []Listener
}

// NewEngine builds an engine in the initial state. store may be nil.
func NewEngine(backend Backend, store Store) *Engine {
	return &Engine{
		backend: backend,
		store:   store,
		state:   initialState(),
	}
}

// Subscribe registers a listener invoked with a snapshot after every
// mutation. Listeners must not call back into the engine synchronously.
func (e *Engine) Subscribe(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OpenTypeSelect moves an idle engine to the type-selection step.
func (e *Engine) OpenTypeSelect() {
	e.mutate(func(s *State) {
		if s.Step == StepIdle {
			s.Step = StepTypeSelect
			s.Error = ""
		}
	}, false)
}

// SelectType starts a workflow run for the chosen acte type. On failure
// the engine returns to Idle with the error set and nothing persisted.
func (e *Engine) SelectType(ctx context.Context, req acte.StartRequest) error {
	e.mutate(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	}, false)

	resp, err := e.backend.StartWorkflow(ctx, req)
	if err == nil {
		err = acte.CompileSections(resp.Sections)
		if err != nil {
			err = fmt.Errorf("compiling sections: %w", err)
		}
	}
	if err != nil {
		e.mutate(func(s *State) {
			s.Step = StepIdle
			s.IsLoading = false
			s.Error = api.UserMessage(err)
		}, false)
		return err
	}

	e.mutate(func(s *State) {
		s.Step = StepCollecting
		s.IsLoading = false
		s.WorkflowID = resp.WorkflowID
		s.DossierID = resp.DossierID
		s.TypeActe = req.TypeActe
		s.CategorieBien = req.CategorieBien
		s.SousType = req.SousType
		s.Detection = resp.Detection
		s.Sections = resp.Sections
		s.CurrentSection = 0
		s.Donnees = map[string]any{}
		s.ValidationMessages = nil
		s.Progression = recomputeProgression(s.Progression, s.Donnees, s.Sections)
	}, true)
	log.Info(log.CatWorkflow, "Workflow selected",
		"type_acte", req.TypeActe, "workflow_id", resp.WorkflowID, "sections", len(resp.Sections))
	return nil
}

// UpdateField writes one answer into the donnees tree without mutating
// the previous tree, then recomputes local progression.
func (e *Engine) UpdateField(path string, value any) {
	e.mutate(func(s *State) {
		s.Donnees = fields.Set(s.Donnees, path, value)
		s.Progression = recomputeProgression(s.Progression, s.Donnees, s.Sections)
	}, true)
}

// GoToSection jumps to another section while collecting. Out-of-range
// indexes and calls outside Collecting are no-ops.
func (e *Engine) GoToSection(index int) {
	e.mutate(func(s *State) {
		if s.Step != StepCollecting {
			return
		}
		if index < 0 || index >= len(s.Sections) {
			return
		}
		s.CurrentSection = index
	}, true)
}

// SubmitCurrentSection sends the whole donnees tree to the server. On
// success validation messages are replaced and the workflow advances,
// entering Review when the server reports completion. On failure the
// section index and every entered answer survive.
func (e *Engine) SubmitCurrentSection(ctx context.Context) error {
	var workflowID string
	var donnees map[string]any
	ok := false
	e.mutate(func(s *State) {
		if s.Step != StepCollecting {
			return
		}
		ok = true
		s.Step = StepValidating
		s.IsLoading = true
		s.Error = ""
		workflowID = s.WorkflowID
		donnees = s.Donnees
	}, false)
	if !ok {
		return nil
	}

	resp, err := e.backend.SubmitAnswers(ctx, workflowID, donnees)
	if err != nil {
		e.mutate(func(s *State) {
			s.Step = StepCollecting
			s.IsLoading = false
			s.Error = api.UserMessage(err)
		}, false)
		return err
	}

	e.mutate(func(s *State) {
		s.IsLoading = false
		s.Progression = resp.Progression
		s.ValidationMessages = resp.Validation.Messages

		if hasBlockingError(resp.Validation.Messages) {
			s.Step = StepCollecting
			return
		}
		if resp.Progression.Pourcentage >= 100 || s.CurrentSection >= len(s.Sections)-1 {
			s.Step = StepReview
			return
		}
		s.Step = StepCollecting
		s.CurrentSection++
	}, true)
	log.Debug(log.CatWorkflow, "Section submitted",
		"workflow_id", workflowID, "pourcentage", resp.Progression.Pourcentage)
	return nil
}

// StartGeneration opens the generation stream and drains it to the
// terminal event, appending each step to the generation log. It blocks
// until the stream ends; run it from its own goroutine or command.
func (e *Engine) StartGeneration(ctx context.Context) error {
	var workflowID string
	ok := false
	e.mutate(func(s *State) {
		if s.Step != StepReview {
			return
		}
		ok = true
		s.Step = StepGenerating
		s.Error = ""
		s.GenerationEvents = nil
		workflowID = s.WorkflowID
	}, true)
	if !ok {
		return nil
	}

	src, err := e.backend.StreamGeneration(ctx, workflowID)
	if err != nil {
		e.mutate(func(s *State) {
			s.Step = StepReview
			s.Error = api.UserMessage(err)
		}, false)
		return err
	}

	runErr := generation.Run(ctx, src, generation.Callbacks{
		OnStep: func(ev generation.Event) {
			e.mutate(func(s *State) {
				s.GenerationEvents = append(s.GenerationEvents, ev)
			}, false)
		},
		OnComplete: func(res generation.Result) {
			e.mutate(func(s *State) {
				s.Step = StepDone
				s.FichierURL = res.FichierURL
				s.ConformiteScore = res.Conformite
				markLastEvent(s, generation.StatutTermine)
			}, true)
		},
		OnError: func(msg string) {
			e.mutate(func(s *State) {
				s.Step = StepReview
				s.Error = msg
				markLastEvent(s, generation.StatutErreur)
			}, false)
		},
	})
	if runErr != nil {
		e.mutate(func(s *State) {
			if s.Step == StepGenerating {
				s.Step = StepReview
				if s.Error == "" {
					s.Error = "Connexion au serveur perdue pendant la génération."
				}
			}
		}, false)
		return runErr
	}
	log.Info(log.CatWorkflow, "Generation finished", "workflow_id", workflowID)
	return nil
}

// ApplyChatProgress adopts a completion percentage reported by the
// conversational channel's done event.
func (e *Engine) ApplyChatProgress(pct int) {
	if pct < 0 || pct > 100 {
		return
	}
	e.mutate(func(s *State) {
		s.Progression.Pourcentage = pct
	}, true)
}

// RestoreDraft loads the durable snapshot, refetching section
// definitions when the snapshot carries none. It reports whether a
// draft was restored; any failure leaves the engine in its initial
// state rather than surfacing a hard error.
func (e *Engine) RestoreDraft(ctx context.Context) bool {
	if e.store == nil {
		return false
	}
	snap, err := e.store.Load()
	if err != nil {
		log.Warn(log.CatWorkflow, "Draft not restorable", "error", err)
		return false
	}
	if snap == nil {
		return false
	}

	if len(snap.Sections) == 0 && snap.TypeActe != "" {
		sections, err := e.backend.RefetchSections(ctx, acte.StartRequest{
			TypeActe:      snap.TypeActe,
			CategorieBien: snap.CategorieBien,
			SousType:      snap.SousType,
		})
		if err != nil {
			log.Warn(log.CatWorkflow, "Draft not restorable: section refetch failed", "error", err)
			return false
		}
		snap.Sections = sections
	}

	// Compiled display conditions do not survive serialization.
	if err := acte.CompileSections(snap.Sections); err != nil {
		log.Warn(log.CatWorkflow, "Draft not restorable: sections invalid", "error", err)
		return false
	}

	restored := restore(*snap)
	if restored.CurrentSection < 0 {
		restored.CurrentSection = 0
	}
	if max := len(restored.Sections) - 1; max >= 0 && restored.CurrentSection > max {
		restored.CurrentSection = max
	}

	e.mu.Lock()
	e.state = restored
	e.mu.Unlock()
	e.notify()
	log.Info(log.CatWorkflow, "Draft restored",
		"workflow_id", restored.WorkflowID, "step", string(restored.Step))
	return true
}

// Reset returns the engine to the initial state and deletes the
// durable snapshot.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.state = initialState()
	e.mu.Unlock()
	if e.store != nil {
		if err := e.store.Delete(); err != nil {
			log.ErrorErr(log.CatWorkflow, "Failed to delete draft snapshot", err)
		}
	}
	e.notify()
}

// mutate applies fn to the state under the lock, optionally persists
// the durable subset, then notifies listeners outside the lock.
func (e *Engine) mutate(fn func(*State), persist bool) {
	e.mu.Lock()
	fn(&e.state)
	snap := snapshot(e.state)
	e.mu.Unlock()

	if persist && e.store != nil {
		if err := e.store.Save(snap); err != nil {
			log.ErrorErr(log.CatDB, "Failed to persist draft snapshot", err)
		}
	}
	e.notify()
}

func (e *Engine) notify() {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	current := e.state
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(current)
	}
}

// recomputeProgression refreshes the filled-field counters from the
// flattened donnees tree. The percentage is derived only when a total
// is known; otherwise the last server-reported value stands.
func recomputeProgression(p acte.Progression, donnees map[string]any, sections []acte.Section) acte.Progression {
	p.ChampsRemplis = len(fields.Flatten(donnees))
	if p.ChampsTotal == 0 {
		p.ChampsTotal = acte.CountQuestions(sections)
	}
	if p.ChampsTotal > 0 {
		p.Pourcentage = int(math.Round(float64(p.ChampsRemplis) / float64(p.ChampsTotal) * 100))
	}
	return p
}

func hasBlockingError(msgs []acte.ValidationMessage) bool {
	for _, m := range msgs {
		if m.Niveau == "" || m.Niveau == "erreur" {
			return true
		}
	}
	return false
}

func markLastEvent(s *State, statut generation.Statut) {
	if n := len(s.GenerationEvents); n > 0 {
		s.GenerationEvents[n-1].Statut = statut
	}
}
