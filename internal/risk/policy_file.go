package risk

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPolicyFile overlays the YAML document at path on base. Fields absent
// from the file keep their base value. An empty path or a missing file
// returns base unchanged.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return Policy{}, fmt.Errorf("risk: read policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

// ParsePolicy overlays a YAML document on base and validates the result.
func ParsePolicy(data []byte, base Policy) (Policy, error) {
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("risk: parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
