// Package acte holds the domain model of a deed-generation workflow:
// sections, typed questions, display conditions, and the wire types the
// backend contract exchanges.
package acte

import (
	"fmt"

	"github.com/mrogier/actaflow/internal/fields"
)

// QuestionType tags the variant of a question.
type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeLongText QuestionType = "long-text"
	TypeNumber   QuestionType = "number"
	TypeBoolean  QuestionType = "boolean"
	TypeChoice   QuestionType = "choice"
	TypeDate     QuestionType = "date"
	TypeArray    QuestionType = "array"
	TypeContact  QuestionType = "contact"
)

// MaxQuestionDepth bounds sub-question nesting. The question tree is
// recursive and server-provided; the guard turns a cyclic or absurdly
// deep payload into a load error instead of unbounded recursion.
const MaxQuestionDepth = 5

// Question is one prompt in a section. Variable is the dot-path of the
// answer's leaf in the donnees tree. Sub-questions are shown only while
// the parent's own value is truthy.
type Question struct {
	ID                 string       `json:"id"`
	Type               QuestionType `json:"type"`
	Libelle            string       `json:"libelle"`
	Variable           string       `json:"variable"`
	Obligatoire        bool         `json:"obligatoire"`
	Options            []string     `json:"options,omitempty"`
	ConditionAffichage string       `json:"condition_affichage,omitempty"`
	SousQuestions      []Question   `json:"sous_questions,omitempty"`

	// cond is the compiled form of ConditionAffichage. Populated by
	// CompileSections; not serialized, so sections restored from a
	// draft must be recompiled.
	cond *Condition
}

// Section is a titled group of questions presented together.
type Section struct {
	ID          string     `json:"id"`
	Titre       string     `json:"titre"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// CompileSections parses every display condition in place and enforces
// the nesting depth guard. It must run each time sections are loaded,
// whether from the network or from a restored draft.
func CompileSections(sections []Section) error {
	for si := range sections {
		if err := compileQuestions(sections[si].Questions, 1); err != nil {
			return fmt.Errorf("section %s: %w", sections[si].ID, err)
		}
	}
	return nil
}

func compileQuestions(questions []Question, depth int) error {
	if depth > MaxQuestionDepth {
		return fmt.Errorf("question nesting exceeds depth %d", MaxQuestionDepth)
	}
	for i := range questions {
		q := &questions[i]
		if !q.Type.valid() {
			return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
		}
		if q.ConditionAffichage != "" {
			cond, err := ParseCondition(q.ConditionAffichage)
			if err != nil {
				return fmt.Errorf("question %s: %w", q.ID, err)
			}
			q.cond = cond
		}
		if err := compileQuestions(q.SousQuestions, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (t QuestionType) valid() bool {
	switch t {
	case TypeText, TypeLongText, TypeNumber, TypeBoolean, TypeChoice, TypeDate, TypeArray, TypeContact:
		return true
	}
	return false
}

// Visible reports whether the question should be shown given the
// flattened donnees tree. Questions without a condition are always
// visible.
func (q *Question) Visible(flat map[string]any) bool {
	return q.cond.Evaluate(flat)
}

// VisibleQuestions returns the section's questions that should render
// for the given flattened tree, expanding sub-questions of truthy
// parents, in document order. The depth guard bounds the walk.
func (s *Section) VisibleQuestions(flat map[string]any) []Question {
	var out []Question
	collectVisible(&out, s.Questions, flat, 1)
	return out
}

func collectVisible(out *[]Question, questions []Question, flat map[string]any, depth int) {
	if depth > MaxQuestionDepth {
		return
	}
	for i := range questions {
		q := questions[i]
		if !q.Visible(flat) {
			continue
		}
		*out = append(*out, q)
		if parentTruthy(flat, q.Variable) {
			collectVisible(out, q.SousQuestions, flat, depth+1)
		}
	}
}

// parentTruthy reports whether the answer at the variable path counts
// as filled, gating sub-question display.
func parentTruthy(flat map[string]any, variable string) bool {
	return fields.Truthy(flat[variable])
}

// CountQuestions returns the total number of questions across sections,
// including nested sub-questions, bounded by the depth guard. It is the
// denominator of the progression percentage.
func CountQuestions(sections []Section) int {
	total := 0
	for i := range sections {
		total += countQuestions(sections[i].Questions, 1)
	}
	return total
}

func countQuestions(questions []Question, depth int) int {
	if depth > MaxQuestionDepth {
		return 0
	}
	total := len(questions)
	for i := range questions {
		total += countQuestions(questions[i].SousQuestions, depth+1)
	}
	return total
}
