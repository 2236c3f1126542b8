package registry

import (
	"fmt"

	"plugin-exec-engine/internal/validate"
)

// Manifest is the static metadata a plugin declares: identity, the entry
// point symbol to invoke, and the parameter schema its inputs are validated
// against.
type Manifest struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description"`
	EntryPoint  string `json:"entry_point" yaml:"entry_point"`

	Parameters map[string]validate.Rule `json:"parameters,omitempty" yaml:"parameters"`

	// AllowAdditionalParameters defaults to true when omitted.
	AllowAdditionalParameters *bool `json:"allow_additional_parameters,omitempty" yaml:"allow_additional_parameters"`

	Tags []string `json:"tags,omitempty" yaml:"tags"`
}

func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if m.EntryPoint == "" {
		return fmt.Errorf("manifest %q: entry_point is required", m.Name)
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %q: version is required", m.Name)
	}
	return nil
}

// Schema returns the validator schema declared by this manifest.
func (m *Manifest) Schema() validate.Schema {
	return validate.Schema{
		Parameters:      m.Parameters,
		AllowAdditional: m.AllowAdditionalParameters,
	}
}
