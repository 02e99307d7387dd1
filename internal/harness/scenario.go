package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlgraph/internal/model"
)

// Scenario is a scripted sequence of graph operations with assertions on
// the committed result.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Definitions is an optional directory of CUE topology definitions
	// applied before the first step. Relative paths resolve against the
	// scenario file's directory.
	Definitions string `yaml:"definitions,omitempty"`

	// Steps run in order in one reusable transaction handle.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the steps, against committed state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one graph operation.
type Step struct {
	Op string `yaml:"op"`

	// Ref names the element created by addVertex or addEdge.
	Ref string `yaml:"ref,omitempty"`

	// Target is the ref of an existing element.
	Target string `yaml:"target,omitempty"`

	Label string `yaml:"label,omitempty"`
	Out   string `yaml:"out,omitempty"`
	In    string `yaml:"in,omitempty"`

	// Direction is in, out or both (the default) for edges and vertices.
	Direction string   `yaml:"direction,omitempty"`
	Labels    []string `yaml:"labels,omitempty"`

	Properties map[string]any `yaml:"properties,omitempty"`

	// Key and Value are the property set by setProperty.
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Types forces property types by key, e.g. {age: INTEGER}. Untyped
	// values are inferred: integers are LONG, decimals DOUBLE.
	Types map[string]string `yaml:"types,omitempty"`

	// Error is the expected error code. The step fails if the operation
	// succeeds or fails with another code.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpAddVertex    = "addVertex"
	OpAddEdge      = "addEdge"
	OpLoad         = "load"
	OpEdges        = "edges"
	OpVertices     = "vertices"
	OpSetProperty  = "setProperty"
	OpRemoveVertex = "removeVertex"
	OpRemoveEdge   = "removeEdge"
	OpCommit       = "commit"
	OpRollback     = "rollback"
)

// LoadScenario reads a scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) {
		scenario.Definitions = filepath.Join(filepath.Dir(path), scenario.Definitions)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that every target refers to
// an element created by an earlier step.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	vertices := map[string]bool{}
	edges := map[string]bool{}
	defined := func(name string) bool { return vertices[name] || edges[name] }

	for i, step := range s.Steps {
		if err := validateStep(step, vertices, edges); err != nil {
			return fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		if step.Error != "" || step.Ref == "" {
			continue
		}
		if defined(step.Ref) {
			return fmt.Errorf("steps[%d] %s: ref %q is already defined", i, step.Op, step.Ref)
		}
		switch step.Op {
		case OpAddVertex:
			vertices[step.Ref] = true
		case OpAddEdge:
			edges[step.Ref] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, defined); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, vertices, edges map[string]bool) error {
	switch step.Error {
	case "", string(model.ErrCodeValidation), string(model.ErrCodeNotFound),
		string(model.ErrCodeConsistency), string(model.ErrCodeStore):
	default:
		return fmt.Errorf("unknown error code %q", step.Error)
	}
	for key, name := range step.Types {
		if _, err := model.ParsePropertyType(name); err != nil {
			return fmt.Errorf("types.%s: %w", key, err)
		}
	}

	requireVertex := func(field, name string) error {
		if name == "" {
			return fmt.Errorf("%s is required", field)
		}
		if !vertices[name] {
			return fmt.Errorf("%s %q is not a vertex ref", field, name)
		}
		return nil
	}

	switch step.Op {
	case OpAddVertex:
		if step.Label == "" {
			return fmt.Errorf("label is required")
		}
		if step.Ref == "" && step.Error == "" {
			return fmt.Errorf("ref is required")
		}
	case OpAddEdge:
		if step.Label == "" {
			return fmt.Errorf("label is required")
		}
		if step.Ref == "" && step.Error == "" {
			return fmt.Errorf("ref is required")
		}
		if err := requireVertex("out", step.Out); err != nil {
			return err
		}
		return requireVertex("in", step.In)
	case OpEdges, OpVertices:
		if step.Direction != "" {
			if _, err := model.ParseDirection(step.Direction); err != nil {
				return err
			}
		}
		return requireVertex("target", step.Target)
	case OpRemoveVertex:
		return requireVertex("target", step.Target)
	case OpRemoveEdge:
		if !edges[step.Target] {
			return fmt.Errorf("target %q is not an edge ref", step.Target)
		}
	case OpLoad:
		if !vertices[step.Target] && !edges[step.Target] {
			return fmt.Errorf("target %q is not defined", step.Target)
		}
	case OpSetProperty:
		if !vertices[step.Target] && !edges[step.Target] {
			return fmt.Errorf("target %q is not defined", step.Target)
		}
		if step.Key == "" {
			return fmt.Errorf("key is required")
		}
		if step.Value == nil && step.Error == "" {
			return fmt.Errorf("value is required")
		}
	case OpCommit, OpRollback:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op")
	}
	return nil
}

// values converts the step's properties to typed property values.
func (s Step) values() (map[string]any, error) {
	out := make(map[string]any, len(s.Properties))
	for k, v := range s.Properties {
		conv, err := s.value(k, v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = conv
	}
	return out, nil
}

func (s Step) value(key string, v any) (any, error) {
	if name, ok := s.Types[key]; ok {
		pt, err := model.ParsePropertyType(name)
		if err != nil {
			return nil, err
		}
		return model.ConvertValue(pt, v)
	}
	return model.InferValue(v)
}
