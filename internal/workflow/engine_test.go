package workflow

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/generation"
	"github.com/mrogier/actaflow/internal/stream"
)

type fakeBackend struct {
	startResp   *acte.StartResponse
	startErr    error
	startCalls  int
	refetch     []acte.Section
	refetchErr  error
	submitResp  *acte.SubmitResponse
	submitErr   error
	lastDonnees map[string]any
	genChunks   [][]byte
	genErr      error
}

func (f *fakeBackend) StartWorkflow(ctx context.Context, req acte.StartRequest) (*acte.StartResponse, error) {
	f.startCalls++
	return f.startResp, f.startErr
}

func (f *fakeBackend) RefetchSections(ctx context.Context, req acte.StartRequest) ([]acte.Section, error) {
	return f.refetch, f.refetchErr
}

func (f *fakeBackend) SubmitAnswers(ctx context.Context, workflowID string, donnees map[string]any) (*acte.SubmitResponse, error) {
	f.lastDonnees = donnees
	return f.submitResp, f.submitErr
}

func (f *fakeBackend) StreamGeneration(ctx context.Context, workflowID string) (stream.Source, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &scriptedSource{chunks: f.genChunks, final: io.EOF}, nil
}

type scriptedSource struct {
	chunks [][]byte
	final  error
}

func (s *scriptedSource) NextChunk(ctx context.Context) ([]byte, error) {
	if len(s.chunks) == 0 {
		return nil, s.final
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *scriptedSource) Close() error { return nil }

type memStore struct {
	snap    *Snapshot
	saves   int
	deletes int
	loadErr error
}

func (m *memStore) Save(snap Snapshot) error {
	m.snap = &snap
	m.saves++
	return nil
}

func (m *memStore) Load() (*Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap, nil
}

func (m *memStore) Delete() error {
	m.snap = nil
	m.deletes++
	return nil
}

func twoSections() []acte.Section {
	return []acte.Section{
		{ID: "vendeur", Titre: "Le vendeur", Questions: []acte.Question{
			{ID: "q1", Type: acte.TypeText, Variable: "vendeur.nom", Obligatoire: true},
			{ID: "q2", Type: acte.TypeText, Variable: "vendeur.prenom"},
		}},
		{ID: "bien", Titre: "Le bien", Questions: []acte.Question{
			{ID: "q3", Type: acte.TypeText, Variable: "bien.adresse"},
			{ID: "q4", Type: acte.TypeNumber, Variable: "bien.surface"},
		}},
	}
}

func startedEngine(t *testing.T, backend *fakeBackend, store Store) *Engine {
	t.Helper()
	if backend.startResp == nil {
		backend.startResp = &acte.StartResponse{
			WorkflowID: "wf-1",
			DossierID:  "d-1",
			Sections:   twoSections(),
		}
	}
	engine := NewEngine(backend, store)
	require.NoError(t, engine.SelectType(context.Background(), acte.StartRequest{TypeActe: "vente"}))
	return engine
}

func TestSelectType_Success(t *testing.T) {
	store := &memStore{}
	engine := startedEngine(t, &fakeBackend{}, store)

	state := engine.Snapshot()
	assert.Equal(t, StepCollecting, state.Step)
	assert.Equal(t, "wf-1", state.WorkflowID)
	assert.Equal(t, "vente", state.TypeActe)
	assert.Equal(t, 0, state.CurrentSection)
	assert.Empty(t, state.Donnees)
	assert.False(t, state.IsLoading)
	assert.Equal(t, 4, state.Progression.ChampsTotal)
	require.NotNil(t, store.snap, "successful start persists a draft")
	assert.Equal(t, StepCollecting, store.snap.Step)
}

func TestSelectType_FailureReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("boom")}
	engine := NewEngine(backend, &memStore{})

	err := engine.SelectType(context.Background(), acte.StartRequest{TypeActe: "vente"})

	require.Error(t, err)
	state := engine.Snapshot()
	assert.Equal(t, StepIdle, state.Step)
	assert.NotEmpty(t, state.Error)
	assert.False(t, state.IsLoading)
}

func TestSelectType_BadConditionIsLoadError(t *testing.T) {
	backend := &fakeBackend{startResp: &acte.StartResponse{
		WorkflowID: "wf-1",
		Sections: []acte.Section{{ID: "s", Questions: []acte.Question{
			{ID: "q", Type: acte.TypeText, Variable: "x", ConditionAffichage: "a && b"},
		}}},
	}}
	engine := NewEngine(backend, nil)

	err := engine.SelectType(context.Background(), acte.StartRequest{TypeActe: "vente"})

	require.Error(t, err)
	assert.Equal(t, StepIdle, engine.Snapshot().Step)
}

func TestUpdateField_RecomputesProgression(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)

	engine.UpdateField("vendeur.nom", "Durand")

	state := engine.Snapshot()
	v, ok := state.Donnees["vendeur"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Durand", v["nom"])
	assert.Equal(t, 1, state.Progression.ChampsRemplis)
	assert.Equal(t, 25, state.Progression.Pourcentage)
}

func TestUpdateField_DoesNotMutatePreviousTree(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)
	engine.UpdateField("vendeur.nom", "Durand")
	before := engine.Snapshot().Donnees

	engine.UpdateField("vendeur.nom", "Martin")

	v := before["vendeur"].(map[string]any)
	assert.Equal(t, "Durand", v["nom"])
}

func TestGoToSection(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)

	engine.GoToSection(1)
	assert.Equal(t, 1, engine.Snapshot().CurrentSection)

	// Out of range is a no-op.
	engine.GoToSection(5)
	assert.Equal(t, 1, engine.Snapshot().CurrentSection)
	engine.GoToSection(-1)
	assert.Equal(t, 1, engine.Snapshot().CurrentSection)
}

func TestSubmitCurrentSection_Advances(t *testing.T) {
	backend := &fakeBackend{submitResp: &acte.SubmitResponse{
		Progression: acte.Progression{Pourcentage: 50, ChampsRemplis: 2, ChampsTotal: 4},
	}}
	engine := startedEngine(t, backend, nil)
	engine.UpdateField("vendeur.nom", "Durand")

	require.NoError(t, engine.SubmitCurrentSection(context.Background()))

	state := engine.Snapshot()
	assert.Equal(t, StepCollecting, state.Step)
	assert.Equal(t, 1, state.CurrentSection)
	assert.Equal(t, 50, state.Progression.Pourcentage)
	require.NotNil(t, backend.lastDonnees)
	assert.Contains(t, backend.lastDonnees, "vendeur", "whole donnees tree is submitted")
}

func TestSubmitCurrentSection_FinalSectionAt100EntersReview(t *testing.T) {
	backend := &fakeBackend{submitResp: &acte.SubmitResponse{
		Progression: acte.Progression{Pourcentage: 100, ChampsRemplis: 4, ChampsTotal: 4},
	}}
	engine := startedEngine(t, backend, nil)
	engine.GoToSection(1)

	require.NoError(t, engine.SubmitCurrentSection(context.Background()))

	state := engine.Snapshot()
	assert.Equal(t, StepReview, state.Step)
	assert.Equal(t, 100, state.Progression.Pourcentage)
}

func TestSubmitCurrentSection_BlockingValidationStays(t *testing.T) {
	resp := &acte.SubmitResponse{
		Progression: acte.Progression{Pourcentage: 10},
	}
	resp.Validation.Messages = []acte.ValidationMessage{
		{Champ: "vendeur.nom", Message: "Nom manquant", Niveau: "erreur"},
	}
	engine := startedEngine(t, &fakeBackend{submitResp: resp}, nil)

	require.NoError(t, engine.SubmitCurrentSection(context.Background()))

	state := engine.Snapshot()
	assert.Equal(t, StepCollecting, state.Step)
	assert.Equal(t, 0, state.CurrentSection)
	require.Len(t, state.ValidationMessages, 1)
}

func TestSubmitCurrentSection_FailureKeepsIndexAndData(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("boom")}
	engine := startedEngine(t, backend, nil)
	engine.UpdateField("vendeur.nom", "Durand")

	err := engine.SubmitCurrentSection(context.Background())

	require.Error(t, err)
	state := engine.Snapshot()
	assert.Equal(t, StepCollecting, state.Step)
	assert.Equal(t, 0, state.CurrentSection)
	assert.NotEmpty(t, state.Error)
	v, _ := state.Donnees["vendeur"].(map[string]any)
	assert.Equal(t, "Durand", v["nom"], "entered data survives a failed submission")
}

func TestStartGeneration_Completes(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &acte.SubmitResponse{Progression: acte.Progression{Pourcentage: 100}},
		genChunks: [][]byte{
			[]byte("event: step\ndata: {\"etape\":\"analyse\"}\n\n"),
			[]byte("event: step\ndata: {\"etape\":\"redaction\"}\n\n"),
			[]byte("event: complete\ndata: {\"fichier\":\"/x.docx\",\"conformite\":92}\n\n"),
		},
	}
	engine := startedEngine(t, backend, nil)
	engine.GoToSection(1)
	require.NoError(t, engine.SubmitCurrentSection(context.Background()))
	require.Equal(t, StepReview, engine.Snapshot().Step)

	require.NoError(t, engine.StartGeneration(context.Background()))

	state := engine.Snapshot()
	assert.Equal(t, StepDone, state.Step)
	assert.Equal(t, "/x.docx", state.FichierURL)
	assert.Equal(t, 92, state.ConformiteScore)
	require.Len(t, state.GenerationEvents, 2)
	assert.Equal(t, generation.StatutTermine, state.GenerationEvents[1].Statut)
}

func TestStartGeneration_OnlyFromReview(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)

	require.NoError(t, engine.StartGeneration(context.Background()))

	assert.Equal(t, StepCollecting, engine.Snapshot().Step, "generation is unreachable outside review")
}

func TestStartGeneration_ConnectionLostReturnsToReview(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &acte.SubmitResponse{Progression: acte.Progression{Pourcentage: 100}},
		genChunks: [][]byte{
			[]byte("event: step\ndata: {\"etape\":\"analyse\"}\n\n"),
		},
	}
	engine := startedEngine(t, backend, nil)
	engine.GoToSection(1)
	require.NoError(t, engine.SubmitCurrentSection(context.Background()))

	err := engine.StartGeneration(context.Background())

	require.Error(t, err)
	state := engine.Snapshot()
	assert.Equal(t, StepReview, state.Step)
	assert.NotEmpty(t, state.Error)
	assert.NotEqual(t, StepDone, state.Step)
}

func TestReset_ReturnsExactInitialState(t *testing.T) {
	store := &memStore{}
	backend := &fakeBackend{submitResp: &acte.SubmitResponse{Progression: acte.Progression{Pourcentage: 40}}}
	engine := startedEngine(t, backend, store)
	engine.UpdateField("vendeur.nom", "Durand")
	require.NoError(t, engine.SubmitCurrentSection(context.Background()))

	engine.Reset()

	assert.Equal(t, initialState(), engine.Snapshot())
	assert.Nil(t, store.snap, "reset deletes the durable snapshot")
	assert.Equal(t, 1, store.deletes)
}

func TestRestoreDraft_RoundTrip(t *testing.T) {
	store := &memStore{}
	engine := startedEngine(t, &fakeBackend{}, store)
	engine.UpdateField("vendeur.nom", "Durand")
	engine.GoToSection(1)
	saved := engine.Snapshot()

	fresh := NewEngine(&fakeBackend{}, store)
	require.True(t, fresh.RestoreDraft(context.Background()))

	state := fresh.Snapshot()
	assert.Equal(t, saved.Step, state.Step)
	assert.Equal(t, saved.Donnees, state.Donnees)
	assert.Equal(t, saved.CurrentSection, state.CurrentSection)
	assert.Equal(t, len(saved.Sections), len(state.Sections))
	assert.Empty(t, state.Error)
	assert.False(t, state.IsLoading)
}

func TestRestoreDraft_RefetchesMissingSections(t *testing.T) {
	store := &memStore{snap: &Snapshot{
		Step:           StepCollecting,
		WorkflowID:     "wf-1",
		TypeActe:       "vente",
		CurrentSection: 0,
		Donnees:        map[string]any{"vendeur": map[string]any{"nom": "Durand"}},
	}}
	backend := &fakeBackend{refetch: twoSections()}
	engine := NewEngine(backend, store)

	require.True(t, engine.RestoreDraft(context.Background()))

	state := engine.Snapshot()
	assert.Len(t, state.Sections, 2)
	assert.Equal(t, StepCollecting, state.Step)
}

func TestRestoreDraft_RefetchFailureIsNotRestorable(t *testing.T) {
	store := &memStore{snap: &Snapshot{Step: StepCollecting, TypeActe: "vente"}}
	backend := &fakeBackend{refetchErr: errors.New("boom")}
	engine := NewEngine(backend, store)

	assert.False(t, engine.RestoreDraft(context.Background()))
	assert.Equal(t, initialState(), engine.Snapshot())
}

func TestRestoreDraft_ClampsSectionIndex(t *testing.T) {
	store := &memStore{snap: &Snapshot{
		Step:           StepCollecting,
		TypeActe:       "vente",
		Sections:       twoSections(),
		CurrentSection: 9,
		Donnees:        map[string]any{},
	}}
	engine := NewEngine(&fakeBackend{}, store)

	require.True(t, engine.RestoreDraft(context.Background()))
	assert.Equal(t, 1, engine.Snapshot().CurrentSection)
}

func TestRestoreDraft_InFlightStepFallsBack(t *testing.T) {
	store := &memStore{snap: &Snapshot{
		Step:     StepGenerating,
		TypeActe: "vente",
		Sections: twoSections(),
		Donnees:  map[string]any{},
	}}
	engine := NewEngine(&fakeBackend{}, store)

	require.True(t, engine.RestoreDraft(context.Background()))
	assert.Equal(t, StepReview, engine.Snapshot().Step)
}

func TestRestoreDraft_NoSnapshot(t *testing.T) {
	engine := NewEngine(&fakeBackend{}, &memStore{})
	assert.False(t, engine.RestoreDraft(context.Background()))
}

func TestSubscribe_ObservesMutations(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)

	var seen []Step
	engine.Subscribe(func(s State) { seen = append(seen, s.Step) })

	engine.UpdateField("vendeur.nom", "Durand")
	engine.Reset()

	require.NotEmpty(t, seen)
	assert.Equal(t, StepIdle, seen[len(seen)-1])
}

func TestApplyChatProgress(t *testing.T) {
	engine := startedEngine(t, &fakeBackend{}, nil)

	engine.ApplyChatProgress(60)
	assert.Equal(t, 60, engine.Snapshot().Progression.Pourcentage)

	// Out-of-range values are ignored.
	engine.ApplyChatProgress(120)
	assert.Equal(t, 60, engine.Snapshot().Progression.Pourcentage)
}

func TestOpenTypeSelect(t *testing.T) {
	engine := NewEngine(&fakeBackend{}, nil)

	engine.OpenTypeSelect()
	assert.Equal(t, StepTypeSelect, engine.Snapshot().Step)

	// Only valid from idle.
	engine.state.Step = StepCollecting
	engine.OpenTypeSelect()
	assert.Equal(t, StepCollecting, engine.Snapshot().Step)
}
