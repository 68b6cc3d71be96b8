package dynamic

import (
	"gopkg.in/yaml.v3"
)

// SearchConfig represents the YAML configuration of a saved search
type SearchConfig struct {
	// Name is the unique tool identifier (e.g., "people-by-city")
	Name string `yaml:"name"`

	// Description explains what the search returns
	Description string `yaml:"description"`

	// Intent tells agents WHEN to use this search
	Intent string `yaml:"intent,omitempty"`

	// Labels restricts the searched records
	Labels []string `yaml:"labels,omitempty"`

	// Where, Aggregate and OrderBy are kept as nodes so mapping keys stay in
	// file order when they are rendered to JSON.
	Where     yaml.Node `yaml:"where,omitempty"`
	Aggregate yaml.Node `yaml:"aggregate,omitempty"`
	OrderBy   yaml.Node `yaml:"orderBy,omitempty"`

	GroupBy []string `yaml:"groupBy,omitempty"`

	// Limit is the page size used when the caller does not pass one
	Limit int `yaml:"limit,omitempty"`

	// Parameters defines typed inputs referenced as "{{name}}" values
	Parameters []ParameterConfig `yaml:"parameters,omitempty"`

	// Category is derived from the folder structure (e.g., "people", "activity")
	// This is an internal field, not from YAML
	Category string `yaml:"-"`
}

// ParameterConfig defines a typed input parameter
type ParameterConfig struct {
	// Name is the parameter identifier
	Name string `yaml:"name"`

	// Type is the JSON Schema type (string, integer, number, boolean, array, object)
	Type string `yaml:"type"`

	// Description explains the parameter's purpose
	Description string `yaml:"description,omitempty"`

	// Default value (type depends on Type field)
	Default interface{} `yaml:"default,omitempty"`

	// Required indicates if this parameter must be provided
	Required bool `yaml:"required,omitempty"`
}

func (c *SearchConfig) parameter(name string) (ParameterConfig, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterConfig{}, false
}
