package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/api"
	"github.com/mrogier/actaflow/internal/catalog"
	"github.com/mrogier/actaflow/internal/chat"
	"github.com/mrogier/actaflow/internal/stream"
	"github.com/mrogier/actaflow/internal/ui/wizard"
	"github.com/mrogier/actaflow/internal/workflow"
)

type fakeBackend struct{}

func (fakeBackend) StartWorkflow(ctx context.Context, req acte.StartRequest) (*acte.StartResponse, error) {
	return &acte.StartResponse{
		WorkflowID: "wf-test",
		DossierID:  "d-test",
		Sections: []acte.Section{
			{ID: "vendeur", Titre: "Le vendeur", Questions: []acte.Question{
				{ID: "q1", Type: acte.TypeText, Libelle: "Nom du vendeur", Variable: "vendeur.nom", Obligatoire: true},
			}},
			{ID: "bien", Titre: "Le bien", Questions: []acte.Question{
				{ID: "q2", Type: acte.TypeText, Libelle: "Adresse du bien", Variable: "bien.adresse"},
			}},
		},
	}, nil
}

func (f fakeBackend) RefetchSections(ctx context.Context, req acte.StartRequest) ([]acte.Section, error) {
	resp, _ := f.StartWorkflow(ctx, req)
	return resp.Sections, nil
}

func (fakeBackend) SubmitAnswers(ctx context.Context, workflowID string, donnees map[string]any) (*acte.SubmitResponse, error) {
	return &acte.SubmitResponse{}, nil
}

func (fakeBackend) StreamGeneration(ctx context.Context, workflowID string) (stream.Source, error) {
	return nil, context.Canceled
}

func (fakeBackend) StreamChat(ctx context.Context, req api.ChatRequest) (stream.Source, error) {
	return nil, context.Canceled
}

func (fakeBackend) SendFeedback(ctx context.Context, req api.FeedbackRequest) error {
	return nil
}

func TestApp_TypeSelectionThroughFirstSection(t *testing.T) {
	types, err := catalog.Load()
	require.NoError(t, err)

	backend := fakeBackend{}
	engine := workflow.NewEngine(backend, nil)
	controller := chat.NewController(backend, nil)
	app := NewApp(engine, controller, wizard.New(types))

	tm := teatest.NewTestModel(t, app, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Quel acte souhaitez-vous préparer ?"))
	}, teatest.WithDuration(3*time.Second))

	// First catalog entry is the sale, which refines by property kind.
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Nature du bien"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Le vendeur"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}
