// Package wizard renders the guided deed workflow: type selection,
// section-by-section question collection, validation findings, review
// summary, and the live generation log.
package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/catalog"
	"github.com/mrogier/actaflow/internal/fields"
	"github.com/mrogier/actaflow/internal/generation"
	"github.com/mrogier/actaflow/internal/ui/styles"
	"github.com/mrogier/actaflow/internal/workflow"
)

// SelectTypeMsg asks the app to start a workflow for the chosen type.
type SelectTypeMsg struct {
	Request acte.StartRequest
}

// UpdateFieldMsg asks the app to record one answer.
type UpdateFieldMsg struct {
	Path  string
	Value any
}

// SubmitSectionMsg asks the app to submit the current section.
type SubmitSectionMsg struct{}

// GoToSectionMsg asks the app to jump to another section.
type GoToSectionMsg struct {
	Index int
}

// StartGenerationMsg asks the app to launch document generation.
type StartGenerationMsg struct{}

// ResetMsg asks the app to abandon the draft and start over.
type ResetMsg struct{}

// typeSelection is the two-stage cursor of the type-select step.
type typeSelection struct {
	stage     int // 0 = type, 1 = categorie_bien
	typeIndex int
	catIndex  int
}

// Model is the wizard view.
type Model struct {
	width  int
	height int

	state workflow.State
	types []catalog.ActeType

	selection      typeSelection
	questionCursor int
	input          textinput.Model
	progress       progress.Model
	spinner        spinner.Model
	showProgress   bool
}

// New creates the wizard over the embedded acte-type catalog.
func New(types []catalog.ActeType) Model {
	input := textinput.New()
	input.Placeholder = "Votre réponse"
	input.CharLimit = 500
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AccentColor)

	return Model{
		types:        types,
		input:        input,
		progress:     progress.New(progress.WithDefaultGradient()),
		spinner:      sp,
		showProgress: true,
	}
}

// WithProgressBar toggles the completion bar of the collecting step.
func (m Model) WithProgressBar(show bool) Model {
	m.showProgress = show
	return m
}

// Init starts the spinner ticking.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetSize resizes the view.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.progress.Width = max(width-20, 10)
	m.input.Width = max(width-8, 20)
	return m
}

// SetState adopts a fresh workflow snapshot, pre-filling the input with
// the stored answer of the highlighted question.
func (m Model) SetState(state workflow.State) Model {
	sectionChanged := state.CurrentSection != m.state.CurrentSection || state.Step != m.state.Step
	m.state = state
	if sectionChanged {
		m.questionCursor = 0
		m.loadAnswer()
	}
	return m
}

// Update handles key and tick messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state.Step {
		case workflow.StepIdle, workflow.StepTypeSelect:
			return m.updateTypeSelect(msg)
		case workflow.StepCollecting:
			return m.updateCollecting(msg)
		case workflow.StepReview:
			return m.updateReview(msg)
		case workflow.StepDone:
			if msg.String() == "r" {
				return m, func() tea.Msg { return ResetMsg{} }
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateTypeSelect(msg tea.KeyMsg) (Model, tea.Cmd) {
	current := m.currentType()
	switch msg.String() {
	case "up", "k":
		if m.selection.stage == 0 && m.selection.typeIndex > 0 {
			m.selection.typeIndex--
		} else if m.selection.stage == 1 && m.selection.catIndex > 0 {
			m.selection.catIndex--
		}
	case "down", "j":
		if m.selection.stage == 0 && m.selection.typeIndex < len(m.types)-1 {
			m.selection.typeIndex++
		} else if m.selection.stage == 1 && current != nil && m.selection.catIndex < len(current.CategoriesBien)-1 {
			m.selection.catIndex++
		}
	case "esc":
		if m.selection.stage == 1 {
			m.selection.stage = 0
			m.selection.catIndex = 0
		}
	case "enter":
		if current == nil {
			return m, nil
		}
		if m.selection.stage == 0 && len(current.CategoriesBien) > 0 {
			m.selection.stage = 1
			return m, nil
		}
		req := acte.StartRequest{TypeActe: current.ID}
		if m.selection.stage == 1 {
			req.CategorieBien = current.CategoriesBien[m.selection.catIndex]
		}
		m.selection = typeSelection{}
		return m, func() tea.Msg { return SelectTypeMsg{Request: req} }
	}
	return m, nil
}

func (m Model) updateCollecting(msg tea.KeyMsg) (Model, tea.Cmd) {
	visible := m.visibleQuestions()
	switch msg.String() {
	case "up":
		if m.questionCursor > 0 {
			m.questionCursor--
			m.loadAnswer()
		}
		return m, nil
	case "down":
		if m.questionCursor < len(visible)-1 {
			m.questionCursor++
			m.loadAnswer()
		}
		return m, nil
	case "left":
		index := m.state.CurrentSection - 1
		return m, func() tea.Msg { return GoToSectionMsg{Index: index} }
	case "right":
		index := m.state.CurrentSection + 1
		return m, func() tea.Msg { return GoToSectionMsg{Index: index} }
	case "enter":
		if m.questionCursor >= len(visible) {
			return m, nil
		}
		q := visible[m.questionCursor]
		value, ok := parseAnswer(q, m.input.Value())
		if !ok {
			return m, nil
		}
		if m.questionCursor < len(visible)-1 {
			m.questionCursor++
		}
		path := q.Variable
		m.input.Reset()
		return m, func() tea.Msg { return UpdateFieldMsg{Path: path, Value: value} }
	case "ctrl+s":
		return m, func() tea.Msg { return SubmitSectionMsg{} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateReview(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "g", "enter":
		return m, func() tea.Msg { return StartGenerationMsg{} }
	case "left":
		// Back to the last section to amend answers.
		index := len(m.state.Sections) - 1
		return m, func() tea.Msg { return GoToSectionMsg{Index: index} }
	}
	return m, nil
}

// View renders the step-specific screen.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var body string
	switch m.state.Step {
	case workflow.StepIdle, workflow.StepTypeSelect:
		body = m.viewTypeSelect()
	case workflow.StepCollecting:
		body = m.viewCollecting()
	case workflow.StepValidating:
		body = m.spinner.View() + " " + styles.Hint.Render("Validation des réponses en cours...")
	case workflow.StepReview:
		body = m.viewReview()
	case workflow.StepGenerating:
		body = m.viewGeneration()
	case workflow.StepDone:
		body = m.viewDone()
	}

	var b strings.Builder
	if m.state.Error != "" {
		b.WriteString(styles.ErrorText.Render("✗ " + m.state.Error))
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	return b.String()
}

func (m Model) viewTypeSelect() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Quel acte souhaitez-vous préparer ?"))
	b.WriteString("\n\n")

	if m.selection.stage == 1 {
		current := m.currentType()
		b.WriteString(styles.SectionTitle.Render(current.Libelle))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("Nature du bien :"))
		b.WriteString("\n\n")
		for i, cat := range current.CategoriesBien {
			b.WriteString(renderChoice(cat, i == m.selection.catIndex))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(styles.Hint.Render("entrée valider · échap revenir"))
		return b.String()
	}

	for i, at := range m.types {
		line := at.Libelle
		if at.Description != "" {
			line += "  " + styles.Muted.Render(styles.Truncate(at.Description, max(m.width-len(at.Libelle)-8, 10)))
		}
		b.WriteString(renderChoice(line, i == m.selection.typeIndex))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.Hint.Render("↑/↓ choisir · entrée valider"))
	return b.String()
}

func (m Model) viewCollecting() string {
	section := m.currentSection()
	if section == nil {
		return styles.Hint.Render("Aucune section à afficher.")
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Section %d/%d — %s",
		m.state.CurrentSection+1, len(m.state.Sections), section.Titre)))
	b.WriteString("\n")
	if section.Description != "" {
		b.WriteString(styles.Muted.Render(section.Description))
		b.WriteString("\n")
	}
	if m.showProgress {
		b.WriteString(m.progress.ViewAs(float64(m.state.Progression.Pourcentage) / 100))
		b.WriteString(styles.Muted.Render(fmt.Sprintf(" %d %%", m.state.Progression.Pourcentage)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	flat := fields.Flatten(m.state.Donnees)
	visible := m.visibleQuestions()
	for i, q := range visible {
		b.WriteString(m.renderQuestion(q, flat, i == m.questionCursor))
		b.WriteString("\n")
	}

	if m.questionCursor < len(visible) {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	for _, v := range m.state.ValidationMessages {
		line := fmt.Sprintf("%s : %s", v.Champ, v.Message)
		if v.Niveau == "avertissement" {
			b.WriteString(styles.WarningText.Render("⚠ " + line))
		} else {
			b.WriteString(styles.ErrorText.Render("✗ " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Hint.Render("entrée enregistrer · ↑/↓ question · ←/→ section · ctrl+s soumettre la section"))
	return b.String()
}

func (m Model) renderQuestion(q acte.Question, flat map[string]any, selected bool) string {
	label := q.Libelle
	if q.Obligatoire {
		label += " *"
	}
	if len(q.Options) > 0 {
		label += styles.Muted.Render(" (" + strings.Join(q.Options, " / ") + ")")
	}

	answer := ""
	if v, ok := flat[q.Variable]; ok {
		answer = styles.SuccessText.Render(" → " + formatAnswer(v))
	}

	if selected {
		return styles.Selected.Render("› "+label) + answer
	}
	return "  " + label + answer
}

func (m Model) viewReview() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Récapitulatif du dossier"))
	b.WriteString("\n\n")

	flat := fields.Flatten(m.state.Donnees)
	for _, section := range m.state.Sections {
		b.WriteString(styles.SectionTitle.Render(section.Titre))
		b.WriteString("\n")
		for _, q := range section.VisibleQuestions(flat) {
			if v, ok := flat[q.Variable]; ok {
				b.WriteString(fmt.Sprintf("  %s : %s\n", q.Libelle, formatAnswer(v)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.Hint.Render("g générer l'acte · ← modifier les réponses"))
	return b.String()
}

func (m Model) viewGeneration() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Génération de l'acte en cours"))
	b.WriteString("\n\n")
	b.WriteString(m.renderGenerationLog())
	b.WriteString("\n")
	b.WriteString(m.spinner.View() + " " + styles.Hint.Render("Le serveur rédige le document..."))
	return b.String()
}

func (m Model) viewDone() string {
	var b strings.Builder
	b.WriteString(styles.SuccessText.Render("✓ Acte généré"))
	b.WriteString("\n\n")
	b.WriteString(m.renderGenerationLog())
	b.WriteString("\n")
	b.WriteString(styles.SectionTitle.Render("Document : "))
	b.WriteString(m.state.FichierURL)
	b.WriteString("\n")
	b.WriteString(styles.SectionTitle.Render("Conformité : "))
	b.WriteString(fmt.Sprintf("%d %%", m.state.ConformiteScore))
	b.WriteString("\n\n")
	b.WriteString(styles.Hint.Render("r nouveau dossier"))
	return b.String()
}

func (m Model) renderGenerationLog() string {
	var b strings.Builder
	for _, ev := range m.state.GenerationEvents {
		mark := "…"
		switch ev.Statut {
		case generation.StatutTermine:
			mark = styles.SuccessText.Render("✓")
		case generation.StatutErreur:
			mark = styles.ErrorText.Render("✗")
		}
		line := ev.Etape
		if ev.Detail != "" {
			line += " — " + ev.Detail
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", mark, line))
	}
	return b.String()
}

func (m Model) currentType() *catalog.ActeType {
	if m.selection.typeIndex < 0 || m.selection.typeIndex >= len(m.types) {
		return nil
	}
	return &m.types[m.selection.typeIndex]
}

func (m Model) currentSection() *acte.Section {
	if m.state.CurrentSection < 0 || m.state.CurrentSection >= len(m.state.Sections) {
		return nil
	}
	return &m.state.Sections[m.state.CurrentSection]
}

func (m Model) visibleQuestions() []acte.Question {
	section := m.currentSection()
	if section == nil {
		return nil
	}
	return section.VisibleQuestions(fields.Flatten(m.state.Donnees))
}

// loadAnswer pre-fills the input with the stored answer of the
// highlighted question.
func (m *Model) loadAnswer() {
	visible := m.visibleQuestions()
	if m.questionCursor >= len(visible) {
		m.input.Reset()
		return
	}
	if v, ok := fields.Get(m.state.Donnees, visible[m.questionCursor].Variable); ok {
		m.input.SetValue(formatAnswer(v))
		return
	}
	m.input.Reset()
}

// parseAnswer converts the raw input into the typed value the question
// expects. It reports false when the input cannot be interpreted,
// leaving the field untouched.
func parseAnswer(q acte.Question, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	switch q.Type {
	case acte.TypeNumber:
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case acte.TypeBoolean:
		switch strings.ToLower(raw) {
		case "oui", "o", "true":
			return true, true
		case "non", "n", "false":
			return false, true
		}
		return nil, false
	case acte.TypeArray:
		parts := strings.Split(raw, ";")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, len(out) > 0
	default:
		return raw, true
	}
}

func formatAnswer(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		if value {
			return "oui"
		}
		return "non"
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, formatAnswer(item))
		}
		return strings.Join(parts, " ; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderChoice(label string, selected bool) string {
	if selected {
		return styles.Selected.Render("› " + label)
	}
	return "  " + label
}
