// Package ui assembles the application model: the wizard and chat views
// side by side, bridged to the workflow engine and the chat controller.
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrogier/actaflow/internal/chat"
	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/ui/chatview"
	"github.com/mrogier/actaflow/internal/ui/styles"
	"github.com/mrogier/actaflow/internal/ui/wizard"
	"github.com/mrogier/actaflow/internal/workflow"
)

// view selects which pane has the keyboard.
type view int

const (
	viewWizard view = iota
	viewChat
)

// stateMsg carries a fresh workflow snapshot into the program loop.
type stateMsg workflow.State

// transcriptMsg carries a fresh chat transcript into the program loop.
type transcriptMsg struct {
	messages  []chat.Message
	streaming bool
}

// drainedMsg signals that a background operation finished; any state
// change already arrived through the subscriptions.
type drainedMsg struct{}

// App is the root bubbletea model.
type App struct {
	engine     *workflow.Engine
	controller *chat.Controller

	wizard wizard.Model
	chat   chatview.Model
	active view

	stateCh      chan workflow.State
	transcriptCh chan transcriptMsg

	width  int
	height int

	workflowID string
}

// NewApp wires the views to the engine and controller subscriptions.
func NewApp(engine *workflow.Engine, controller *chat.Controller, wizardView wizard.Model) *App {
	app := &App{
		engine:       engine,
		controller:   controller,
		wizard:       wizardView,
		chat:         chatview.New(),
		stateCh:      make(chan workflow.State, 16),
		transcriptCh: make(chan transcriptMsg, 16),
	}

	engine.Subscribe(func(s workflow.State) {
		select {
		case app.stateCh <- s:
		default:
			// A newer snapshot is already queued.
		}
	})
	controller.Subscribe(func(messages []chat.Message) {
		select {
		case app.transcriptCh <- transcriptMsg{messages: messages, streaming: controller.Streaming()}:
		default:
		}
	})
	return app
}

// Init restores the draft, falling back to type selection.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.wizard.Init(),
		a.chat.Init(),
		a.listenState(),
		a.listenTranscript(),
		func() tea.Msg {
			if !a.engine.RestoreDraft(context.Background()) {
				a.engine.OpenTypeSelect()
			}
			return drainedMsg{}
		},
	)
}

func (a *App) listenState() tea.Cmd {
	return func() tea.Msg { return stateMsg(<-a.stateCh) }
}

func (a *App) listenTranscript() tea.Cmd {
	return func() tea.Msg { return <-a.transcriptCh }
}

// Update routes messages to the active view and turns view intents
// into engine and controller operations.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.wizard = a.wizard.SetSize(msg.Width, msg.Height-1)
		a.chat = a.chat.SetSize(msg.Width, msg.Height-1)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+t":
			if a.active == viewWizard {
				a.active = viewChat
			} else {
				a.active = viewWizard
			}
			return a, nil
		}
		return a.routeToActiveView(msg)

	case stateMsg:
		state := workflow.State(msg)
		a.wizard = a.wizard.SetState(state)
		if state.WorkflowID != a.workflowID {
			a.workflowID = state.WorkflowID
			a.controller.AttachWorkflow(state.WorkflowID, state.DossierID)
		}
		return a, a.listenState()

	case transcriptMsg:
		a.chat = a.chat.SetMessages(msg.messages, msg.streaming)
		return a, a.listenTranscript()

	case drainedMsg:
		a.wizard = a.wizard.SetState(a.engine.Snapshot())
		return a, nil

	case wizard.SelectTypeMsg:
		return a, a.runOp(func(ctx context.Context) {
			if err := a.engine.SelectType(ctx, msg.Request); err != nil {
				log.ErrorErr(log.CatUI, "Type selection failed", err)
			}
		})

	case wizard.UpdateFieldMsg:
		a.engine.UpdateField(msg.Path, msg.Value)
		return a, nil

	case wizard.GoToSectionMsg:
		a.engine.GoToSection(msg.Index)
		return a, nil

	case wizard.SubmitSectionMsg:
		return a, a.runOp(func(ctx context.Context) {
			if err := a.engine.SubmitCurrentSection(ctx); err != nil {
				log.ErrorErr(log.CatUI, "Section submission failed", err)
			}
		})

	case wizard.StartGenerationMsg:
		return a, a.runOp(func(ctx context.Context) {
			if err := a.engine.StartGeneration(ctx); err != nil {
				log.ErrorErr(log.CatUI, "Generation failed", err)
			}
		})

	case wizard.ResetMsg:
		a.engine.Reset()
		a.engine.OpenTypeSelect()
		return a, nil

	case chatview.SendMsg:
		return a, a.runOp(func(ctx context.Context) {
			if err := a.controller.Send(ctx, msg.Text); err != nil {
				log.ErrorErr(log.CatUI, "Chat turn failed", err)
			}
		})

	case chatview.FeedbackMsg:
		return a, a.runOp(func(ctx context.Context) {
			if err := a.controller.Feedback(ctx, msg.MessageID, msg.Rating); err != nil {
				log.ErrorErr(log.CatUI, "Feedback failed", err)
			}
		})
	}

	return a.routeToActiveView(msg)
}

// runOp executes a blocking operation on the command goroutine; its
// effects come back through the subscriptions.
func (a *App) runOp(op func(context.Context)) tea.Cmd {
	return func() tea.Msg {
		op(context.Background())
		return drainedMsg{}
	}
}

func (a *App) routeToActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if a.active == viewWizard {
		a.wizard, cmd = a.wizard.Update(msg)
	} else {
		a.chat, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

// View renders the active pane under a one-line header.
func (a *App) View() string {
	if a.width == 0 {
		return ""
	}

	wizardTab, chatTab := "Dossier", "Assistant"
	if a.active == viewWizard {
		wizardTab = styles.Selected.Render("[" + wizardTab + "]")
		chatTab = styles.Muted.Render(" " + chatTab + " ")
	} else {
		wizardTab = styles.Muted.Render(" " + wizardTab + " ")
		chatTab = styles.Selected.Render("[" + chatTab + "]")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Title.Render("actaflow "),
		wizardTab, " ", chatTab,
		styles.Hint.Render("  ctrl+t changer de vue · ctrl+c quitter"),
	)

	body := a.wizard.View()
	if a.active == viewChat {
		body = a.chat.View()
	}
	return header + "\n" + body
}
