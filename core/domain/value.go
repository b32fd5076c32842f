// Package domain holds the value types shared by the dialogue machine, the
// profile store and the transports.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the expected type of an answer collected by a dialogue step.
type Kind string

const (
	// KindText accepts any non-blank string.
	KindText Kind = "text"
	// KindNumber accepts a finite real number.
	KindNumber Kind = "number"
)

// ParseKind maps a configuration value to a Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "string", "":
		return KindText, nil
	case "number", "float", "real":
		return KindNumber, nil
	}
	return "", fmt.Errorf("unknown step kind %q; allowed: text, number", raw)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindText || k == KindNumber
}

// Value is a single collected answer.
type Value struct {
	Kind   Kind
	Text   string
	Number float64
}

// TextValue builds a text Value.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// NumberValue builds a numeric Value.
func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Number: f}
}

// String renders the value the way it is shown back to users.
func (v Value) String() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// Answer binds a collected value to the step that produced it.
type Answer struct {
	Step  string
	Value Value
}

// Answers is the ordered mapping from step name to collected value.
type Answers []Answer

// Get returns the value stored for step.
func (a Answers) Get(step string) (Value, bool) {
	for _, ans := range a {
		if ans.Step == step {
			return ans.Value, true
		}
	}
	return Value{}, false
}

// Clone returns an independent copy of a.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	copy(out, a)
	return out
}

// Steps lists the step names in order.
func (a Answers) Steps() []string {
	names := make([]string, len(a))
	for i, ans := range a {
		names[i] = ans.Step
	}
	return names
}
