package api

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/fields"
)

// Validation severity levels, matching the server's vocabulary.
const (
	NiveauErreur        = "erreur"
	NiveauAvertissement = "avertissement"
)

// dateLayouts are the accepted input formats for date questions.
var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ValidateField checks one answer against its question's rules without
// any network call. An empty result means the value is acceptable.
func ValidateField(q *acte.Question, value any) []acte.ValidationMessage {
	var msgs []acte.ValidationMessage

	if !fields.Truthy(value) {
		// A false boolean is a given answer, not a missing one.
		if _, isBool := value.(bool); isBool {
			return nil
		}
		if q.Obligatoire {
			msgs = append(msgs, acte.ValidationMessage{
				Champ:   q.Variable,
				Message: "Ce champ est obligatoire.",
				Niveau:  NiveauErreur,
			})
		}
		return msgs
	}

	switch q.Type {
	case acte.TypeNumber:
		if !isNumeric(value) {
			msgs = append(msgs, acte.ValidationMessage{
				Champ:   q.Variable,
				Message: "Saisissez un nombre valide.",
				Niveau:  NiveauErreur,
			})
		}
	case acte.TypeDate:
		if s, ok := value.(string); !ok || !isDate(s) {
			msgs = append(msgs, acte.ValidationMessage{
				Champ:   q.Variable,
				Message: "Saisissez une date au format JJ/MM/AAAA.",
				Niveau:  NiveauErreur,
			})
		}
	case acte.TypeBoolean:
		if _, ok := value.(bool); !ok {
			msgs = append(msgs, acte.ValidationMessage{
				Champ:   q.Variable,
				Message: "Répondez par oui ou par non.",
				Niveau:  NiveauErreur,
			})
		}
	case acte.TypeChoice:
		if s, ok := value.(string); !ok || !slices.Contains(q.Options, s) {
			msgs = append(msgs, acte.ValidationMessage{
				Champ:   q.Variable,
				Message: fmt.Sprintf("Choisissez une option parmi : %s.", strings.Join(q.Options, ", ")),
				Niveau:  NiveauErreur,
			})
		}
	}
	return msgs
}

func isNumeric(value any) bool {
	switch v := value.(type) {
	case float64, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	}
	return false
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
