package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrogier/actaflow/internal/acte"
)

func TestValidateField(t *testing.T) {
	tests := []struct {
		name     string
		question acte.Question
		value    any
		wantMsgs int
	}{
		{"required empty", acte.Question{Type: acte.TypeText, Variable: "v", Obligatoire: true}, "", 1},
		{"required nil", acte.Question{Type: acte.TypeText, Variable: "v", Obligatoire: true}, nil, 1},
		{"optional empty", acte.Question{Type: acte.TypeText, Variable: "v"}, "", 0},
		{"text filled", acte.Question{Type: acte.TypeText, Variable: "v"}, "Durand", 0},
		{"number numeric string", acte.Question{Type: acte.TypeNumber, Variable: "v"}, "42.5", 0},
		{"number float", acte.Question{Type: acte.TypeNumber, Variable: "v"}, float64(3), 0},
		{"number junk", acte.Question{Type: acte.TypeNumber, Variable: "v"}, "beaucoup", 1},
		{"date iso", acte.Question{Type: acte.TypeDate, Variable: "v"}, "2024-05-12", 0},
		{"date french", acte.Question{Type: acte.TypeDate, Variable: "v"}, "12/05/2024", 0},
		{"date junk", acte.Question{Type: acte.TypeDate, Variable: "v"}, "hier", 1},
		{"boolean ok", acte.Question{Type: acte.TypeBoolean, Variable: "v"}, true, 0},
		{"boolean junk", acte.Question{Type: acte.TypeBoolean, Variable: "v"}, "oui", 1},
		{"choice member", acte.Question{Type: acte.TypeChoice, Variable: "v", Options: []string{"a", "b"}}, "a", 0},
		{"choice outsider", acte.Question{Type: acte.TypeChoice, Variable: "v", Options: []string{"a", "b"}}, "c", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := ValidateField(&tt.question, tt.value)
			assert.Len(t, msgs, tt.wantMsgs)
		})
	}
}

func TestValidateField_MessagesCarryVariableAndLevel(t *testing.T) {
	q := acte.Question{Type: acte.TypeNumber, Variable: "bien.surface", Obligatoire: true}

	msgs := ValidateField(&q, "pas un nombre")
	require.Len(t, msgs, 1)
	assert.Equal(t, "bien.surface", msgs[0].Champ)
	assert.Equal(t, NiveauErreur, msgs[0].Niveau)
	assert.NotEmpty(t, msgs[0].Message)
}
