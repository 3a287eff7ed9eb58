package catalog

import (
	_ "embed"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"costguardian/pkg/errors"
)

// DefaultQuality is used for a model that a task's quality map does not list
const DefaultQuality = 0.7

//go:embed models.yaml
var defaultCatalogYAML []byte

// Catalog is the versioned model capability and task preference table.
// It is loaded once at startup and never mutated afterwards.
type Catalog struct {
	Version string                      `yaml:"version" json:"version"`
	Models  map[string]Capabilities     `yaml:"models" json:"models"`
	Tasks   map[TaskType]TaskPreference `yaml:"tasks" json:"tasks"`

	ids []string
}

// Default returns the compiled-in catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// MustDefault returns the compiled-in catalog and panics if it is invalid
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog file %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Mark(errors.ErrInvalidCatalog, err, "failed to decode catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.ids = make([]string, 0, len(c.Models))
	for id := range c.Models {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)

	return &c, nil
}

// Validate enforces the catalog invariants
func (c *Catalog) Validate() error {
	var problems errors.MultiError

	if c.Version == "" {
		problems.Add(errors.NewValidationError("version", "is required", c.Version))
	}
	if len(c.Models) == 0 {
		problems.Add(errors.NewValidationError("models", "at least one model is required", len(c.Models)))
	}

	for id, m := range c.Models {
		if m.Provider == "" {
			problems.Add(errors.NewValidationError("models."+id+".provider", "is required", m.Provider))
		}
		if m.ContextWindowTokens <= 0 {
			problems.Add(errors.NewValidationError("models."+id+".context_window_tokens", "must be positive", m.ContextWindowTokens))
		}
		if !m.ResponseSpeed.IsValid() {
			problems.Add(errors.NewValidationError("models."+id+".response_speed", "unknown speed", m.ResponseSpeed))
		}
		if m.CostPerMillionTokens.Input < 0 || m.CostPerMillionTokens.Output < 0 {
			problems.Add(errors.NewValidationError("models."+id+".cost_per_million_tokens", "must not be negative", m.CostPerMillionTokens))
		}
	}

	for _, task := range AllTaskTypes() {
		if _, ok := c.Tasks[task]; !ok {
			problems.Add(errors.NewValidationError("tasks."+task.String(), "is missing", nil))
		}
	}

	for task, pref := range c.Tasks {
		if !task.IsValid() {
			problems.Add(errors.NewValidationError("tasks", "unknown task type", task))
			continue
		}
		for _, id := range pref.Preferred {
			if _, ok := c.Models[id]; !ok {
				problems.Add(errors.NewValidationError("tasks."+task.String()+".preferred", "references unknown model", id))
			}
		}
		for id, q := range pref.Quality {
			if _, ok := c.Models[id]; !ok {
				problems.Add(errors.NewValidationError("tasks."+task.String()+".quality", "references unknown model", id))
			}
			if q < 0 || q > 1 {
				problems.Add(errors.NewValidationError("tasks."+task.String()+".quality."+id, "must be within [0,1]", q))
			}
		}
	}

	if err := problems.ToError(); err != nil {
		return errors.Mark(errors.ErrInvalidCatalog, err, "catalog validation failed")
	}
	return nil
}

// ModelIDs returns all model ids in a stable order
func (c *Catalog) ModelIDs() []string {
	return c.ids
}

// Model looks up a model by id
func (c *Catalog) Model(id string) (Capabilities, bool) {
	m, ok := c.Models[id]
	return m, ok
}

// Quality returns the task-specific quality of a model
func (c *Catalog) Quality(task TaskType, modelID string) float64 {
	if q, ok := c.Tasks[task].Quality[modelID]; ok {
		return q
	}
	return DefaultQuality
}

// IsPreferred reports whether the model is on the task's preferred list
func (c *Catalog) IsPreferred(task TaskType, modelID string) bool {
	return slices.Contains(c.Tasks[task].Preferred, modelID)
}
