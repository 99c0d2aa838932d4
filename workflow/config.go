package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/beacon/condition"
)

// Branch is one named alternative of a branch step.
type Branch struct {
	Name       string                `json:"name"`
	Conditions []condition.Condition `json:"conditions"`
}

// BranchConfig is the config of a branch step. Branches are tried in
// order; the first whose conditions all hold wins, otherwise Default.
type BranchConfig struct {
	Branches []Branch `json:"branches"`
	Default  string   `json:"default,omitempty"`
}

// DecodeConfig decodes a step config into out.
func DecodeConfig(config map[string]any, out any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal step config: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode step config: %w", err)
	}
	return nil
}
