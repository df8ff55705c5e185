package acte

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrogier/actaflow/internal/fields"
)

// ConditionOp is the comparison a display condition performs.
type ConditionOp string

const (
	OpEquals    ConditionOp = "eq"
	OpNotEquals ConditionOp = "neq"
	OpTruthy    ConditionOp = "truthy"
)

// Condition is the typed predicate a question's condition_affichage
// string compiles to. Conditions are parsed once when sections are
// loaded and evaluated against the flattened donnees tree, so a
// malformed condition fails loudly at load time instead of silently
// rendering the question.
type Condition struct {
	Variable string
	Op       ConditionOp
	Value    any
}

// ParseCondition compiles a condition string. Supported forms:
//
//	"variable == value"
//	"variable != value"
//	"variable"           (truthy test)
//
// Values may be single- or double-quoted strings, true/false, numbers,
// or bare words (treated as strings).
func ParseCondition(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty condition")
	}

	for _, probe := range []struct {
		token string
		op    ConditionOp
	}{
		{"!=", OpNotEquals},
		{"==", OpEquals},
	} {
		if idx := strings.Index(expr, probe.token); idx >= 0 {
			variable := strings.TrimSpace(expr[:idx])
			rawValue := strings.TrimSpace(expr[idx+len(probe.token):])
			if variable == "" {
				return nil, fmt.Errorf("condition %q: missing variable", expr)
			}
			if rawValue == "" {
				return nil, fmt.Errorf("condition %q: missing value", expr)
			}
			return &Condition{Variable: variable, Op: probe.op, Value: parseLiteral(rawValue)}, nil
		}
	}

	if strings.ContainsAny(expr, " \t<>=!&|") {
		return nil, fmt.Errorf("condition %q: unsupported expression", expr)
	}
	return &Condition{Variable: expr, Op: OpTruthy}, nil
}

// parseLiteral interprets the right-hand side of a comparison.
func parseLiteral(raw string) any {
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

// Evaluate applies the condition against a flattened donnees tree.
func (c *Condition) Evaluate(flat map[string]any) bool {
	if c == nil {
		return true
	}
	current := flat[c.Variable]
	switch c.Op {
	case OpTruthy:
		return fields.Truthy(current)
	case OpEquals:
		return literalEqual(current, c.Value)
	case OpNotEquals:
		return !literalEqual(current, c.Value)
	default:
		return false
	}
}

// literalEqual compares a stored value with a condition literal,
// tolerating the numeric widening JSON round-trips introduce.
func literalEqual(stored, literal any) bool {
	if stored == literal {
		return true
	}
	sn, sok := asNumber(stored)
	ln, lok := asNumber(literal)
	if sok && lok {
		return sn == ln
	}
	ss, sok := stored.(string)
	ls, lok := literal.(string)
	return sok && lok && ss == ls
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
