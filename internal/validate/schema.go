// Package validate checks and coerces raw parameter maps against the
// parameter schema a plugin declares in its manifest, and caps execution
// output to the configured size budget.
package validate

// Rule describes the validation applied to a single parameter. Zero-valued
// pointer fields mean "no constraint".
type Rule struct {
	// Type is one of string, integer, float, boolean, array, object.
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required"`
	Default  any    `json:"default,omitempty" yaml:"default"`

	Min *float64 `json:"min,omitempty" yaml:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max"`

	MinLength *int   `json:"min_length,omitempty" yaml:"min_length"`
	MaxLength *int   `json:"max_length,omitempty" yaml:"max_length"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern"`

	Enum []any `json:"enum,omitempty" yaml:"enum"`

	// Items applies to every element of an array parameter.
	Items *Rule `json:"items,omitempty" yaml:"items"`

	// Properties applies per-key to an object parameter. Keys absent from
	// Properties pass through when AllowAdditionalProperties permits.
	Properties map[string]Rule `json:"properties,omitempty" yaml:"properties"`

	// AllowAdditionalProperties defaults to true when nil.
	AllowAdditionalProperties *bool `json:"allow_additional_properties,omitempty" yaml:"allow_additional_properties"`
}

// Schema is the full parameter schema of one plugin.
type Schema struct {
	Parameters map[string]Rule

	// AllowAdditional controls unrecognized top-level keys; nil means true.
	AllowAdditional *bool
}

func (s Schema) allowAdditional() bool {
	return s.AllowAdditional == nil || *s.AllowAdditional
}

func (r Rule) allowAdditionalProperties() bool {
	return r.AllowAdditionalProperties == nil || *r.AllowAdditionalProperties
}

// Supported type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)
