package survey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Battery is a named, ordered set of canonical variables sharing a
// response scale and a semantic theme. Membership is fixed configuration;
// it is never inferred from the data of a particular run.
type Battery struct {
	Name  string   `yaml:"name"`
	Scale string   `yaml:"scale"`
	Items []string `yaml:"items"`
}

// LabelRule pairs a keyword set with a human-readable construct label.
// Rules are evaluated in order; the first match wins.
type LabelRule struct {
	Keywords []string `yaml:"keywords"`
	Label    string   `yaml:"label"`
}

// BatterySet is the battery configuration file: the attribute batteries
// plus the ordered label rules used to name derived constructs.
type BatterySet struct {
	Batteries  []Battery   `yaml:"batteries"`
	LabelRules []LabelRule `yaml:"label_rules"`
}

// LoadBatteries reads and validates a battery definition file.
func LoadBatteries(path string) (*BatterySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read battery file: %w", err)
	}
	var bs BatterySet
	if err := yaml.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	if err := bs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid battery config %s: %w", path, err)
	}
	return &bs, nil
}

// Validate checks battery name uniqueness and non-empty memberships.
func (bs *BatterySet) Validate() error {
	seen := make(map[string]struct{}, len(bs.Batteries))
	for _, b := range bs.Batteries {
		if b.Name == "" {
			return fmt.Errorf("battery with empty name")
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("duplicate battery name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
		if len(b.Items) == 0 {
			return fmt.Errorf("battery %q has no items", b.Name)
		}
		itemSeen := make(map[string]struct{}, len(b.Items))
		for _, item := range b.Items {
			if _, dup := itemSeen[item]; dup {
				return fmt.Errorf("battery %q lists %q twice", b.Name, item)
			}
			itemSeen[item] = struct{}{}
		}
	}
	for i, rule := range bs.LabelRules {
		if rule.Label == "" {
			return fmt.Errorf("label rule %d has empty label", i)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("label rule %q has no keywords", rule.Label)
		}
	}
	return nil
}

// Get returns a battery by name.
func (bs *BatterySet) Get(name string) (*Battery, bool) {
	for i := range bs.Batteries {
		if bs.Batteries[i].Name == name {
			return &bs.Batteries[i], true
		}
	}
	return nil, false
}
