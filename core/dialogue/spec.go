package dialogue

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/financebot/core/domain"
)

// Step is one prompt of a form.
type Step struct {
	Name   string
	Kind   domain.Kind
	Prompt string
}

// Spec is an ordered, immutable list of steps shared by every session.
type Spec struct {
	steps []Step
}

// NewSpec validates steps and returns a Spec holding its own copy of them.
func NewSpec(steps ...Step) (*Spec, error) {
	if len(steps) == 0 {
		return nil, errors.New("dialogue: spec needs at least one step")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, st := range steps {
		if strings.TrimSpace(st.Name) == "" {
			return nil, fmt.Errorf("dialogue: step %d has no name", i)
		}
		if _, dup := seen[st.Name]; dup {
			return nil, fmt.Errorf("dialogue: duplicate step %q", st.Name)
		}
		seen[st.Name] = struct{}{}
		if !st.Kind.Valid() {
			return nil, fmt.Errorf("dialogue: step %q has invalid kind %q", st.Name, st.Kind)
		}
		if strings.TrimSpace(st.Prompt) == "" {
			return nil, fmt.Errorf("dialogue: step %q has no prompt", st.Name)
		}
	}
	return &Spec{steps: append([]Step(nil), steps...)}, nil
}

// MustSpec is NewSpec for package-level definitions; it panics on invalid input.
func MustSpec(steps ...Step) *Spec {
	s, err := NewSpec(steps...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of steps.
func (s *Spec) Len() int { return len(s.steps) }

// Step returns the step at index i.
func (s *Spec) Step(i int) Step { return s.steps[i] }

// Steps returns a copy of all steps.
func (s *Spec) Steps() []Step { return append([]Step(nil), s.steps...) }

// StepConfig is the YAML form of a Step.
type StepConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Prompt string `yaml:"prompt"`
}

// SpecFromConfig converts configured steps into a Spec.
func SpecFromConfig(cfg []StepConfig) (*Spec, error) {
	steps := make([]Step, 0, len(cfg))
	for _, c := range cfg {
		kind, err := domain.ParseKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("dialogue: step %q: %w", c.Name, err)
		}
		steps = append(steps, Step{Name: strings.TrimSpace(c.Name), Kind: kind, Prompt: c.Prompt})
	}
	return NewSpec(steps...)
}

// Validation reasons reported in ValidationError.
const (
	ReasonEmpty     = "empty"
	ReasonNotNumber = "not_a_number"
	ReasonNotFinite = "not_finite"
)

// Parse coerces raw input to the step's kind.
func (st Step) Parse(raw string) (domain.Value, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.Value{}, &ValidationError{Step: st.Name, Reason: ReasonEmpty}
	}
	if st.Kind == domain.KindText {
		return domain.TextValue(text), nil
	}

	// accept a decimal comma when it is the only separator
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	// strconv also takes hex floats such as 0x1p-2
	if strings.Contains(strings.ToLower(text), "0x") {
		return domain.Value{}, &ValidationError{Step: st.Name, Reason: ReasonNotNumber}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return domain.Value{}, &ValidationError{Step: st.Name, Reason: ReasonNotNumber}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Value{}, &ValidationError{Step: st.Name, Reason: ReasonNotFinite}
	}
	return domain.NumberValue(f), nil
}
