package plan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Definition is a declarative plan read from YAML. Phases reference each
// other by key and may be listed in any order.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Phases      []PhaseDefinition `yaml:"phases"`
}

// PhaseDefinition declares one phase and its tasks.
type PhaseDefinition struct {
	Key          string           `yaml:"key"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description,omitempty"`
	ExitCriteria []string         `yaml:"exit_criteria,omitempty"`
	DependsOn    []string         `yaml:"depends_on,omitempty"`
	Tasks        []TaskDefinition `yaml:"tasks,omitempty"`
}

// TaskDefinition declares one task and its subtasks.
type TaskDefinition struct {
	Title       string              `yaml:"title"`
	Description string              `yaml:"description,omitempty"`
	Context     *TaskContext        `yaml:"context,omitempty"`
	Subtasks    []SubtaskDefinition `yaml:"subtasks,omitempty"`
}

// SubtaskDefinition declares one subtask.
type SubtaskDefinition struct {
	Title           string `yaml:"title"`
	Description     string `yaml:"description,omitempty"`
	ThinkingProcess string `yaml:"thinking_process,omitempty"`
	Order           int    `yaml:"order,omitempty"`
}

// LoadDefinition reads a plan definition from a YAML file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindNotFound, errors.ErrCodePlanNotFound,
			fmt.Sprintf("read plan definition %s", path), err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a YAML plan definition
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidDefinition,
			"unmarshal plan definition", err).
			WithSuggestion("Check the YAML syntax of the definition file")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks names, keys, references, and dependency cycles
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("plan definition must have a name")
	}

	keys := make(map[string]bool, len(d.Phases))
	for i, ph := range d.Phases {
		if strings.TrimSpace(ph.Key) == "" {
			return invalid("phase at index %d has no key", i)
		}
		if keys[ph.Key] {
			return invalid("duplicate phase key %q at index %d", ph.Key, i)
		}
		keys[ph.Key] = true
		if strings.TrimSpace(ph.Name) == "" {
			return invalid("phase %q has no name", ph.Key)
		}
		for j, t := range ph.Tasks {
			if strings.TrimSpace(t.Title) == "" {
				return invalid("task at index %d of phase %q has no title", j, ph.Key)
			}
		}
	}

	graph := make(map[string][]string, len(d.Phases))
	ids := make([]string, 0, len(d.Phases))
	for i, ph := range d.Phases {
		for _, dep := range ph.DependsOn {
			if !keys[dep] {
				return errors.Validation(errors.ErrCodeUnknownDependency,
					"phase at index %d (%s) has dependency %q that does not exist in plan", i, ph.Key, dep)
			}
		}
		graph[ph.Key] = ph.DependsOn
		ids = append(ids, ph.Key)
	}
	return detectCycle(ids, graph)
}

// Ordered returns the phase definitions so that every phase follows its
// dependencies, keeping the listed order wherever dependencies allow it.
func (d *Definition) Ordered() []PhaseDefinition {
	placed := make(map[string]bool, len(d.Phases))
	out := make([]PhaseDefinition, 0, len(d.Phases))
	for len(out) < len(d.Phases) {
		progressed := false
		for _, ph := range d.Phases {
			if placed[ph.Key] {
				continue
			}
			ready := true
			for _, dep := range ph.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[ph.Key] = true
				out = append(out, ph)
				progressed = true
				break
			}
		}
		if !progressed {
			// Only reachable for unvalidated definitions with a cycle.
			break
		}
	}
	return out
}

// Apply creates the phases, tasks, and subtasks of the definition in p. It
// returns the phase id assigned to each definition key.
func (d *Definition) Apply(p *Plan) (map[string]domain.PhaseID, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	assigned := make(map[string]domain.PhaseID, len(d.Phases))
	for _, pd := range d.Ordered() {
		deps := make([]domain.PhaseID, 0, len(pd.DependsOn))
		for _, key := range pd.DependsOn {
			deps = append(deps, assigned[key])
		}
		ph, err := p.CreatePhase(PhaseSpec{
			Name:         pd.Name,
			Description:  pd.Description,
			ExitCriteria: pd.ExitCriteria,
			DependsOn:    deps,
		})
		if err != nil {
			return assigned, fmt.Errorf("phase %q: %w", pd.Key, err)
		}
		assigned[pd.Key] = ph.ID

		for _, td := range pd.Tasks {
			t, err := p.CreateTask(ph.ID, TaskSpec{Title: td.Title, Description: td.Description, Context: td.Context})
			if err != nil {
				return assigned, fmt.Errorf("phase %q task %q: %w", pd.Key, td.Title, err)
			}
			for _, sd := range td.Subtasks {
				if _, err := p.AddSubtask(t.ID, SubtaskSpec{
					Title:           sd.Title,
					Description:     sd.Description,
					ThinkingProcess: sd.ThinkingProcess,
					Order:           sd.Order,
				}); err != nil {
					return assigned, fmt.Errorf("task %q subtask %q: %w", td.Title, sd.Title, err)
				}
			}
		}
	}
	return assigned, nil
}
