package survey

import (
	"fmt"
	"strings"
)

// Namer assigns human-readable labels to derived constructs (factors,
// clusters) by matching their top-loading item names against the ordered
// label rules. A namer is stateful across one extraction: repeated labels
// get an incrementing counter suffix so every construct name is unique.
type Namer struct {
	rules []LabelRule
	used  map[string]int
}

// NewNamer creates a namer over an ordered rule list.
func NewNamer(rules []LabelRule) *Namer {
	return &Namer{rules: rules, used: make(map[string]int)}
}

// Name labels one construct from its top item names. Rules are tried in
// order; a rule matches when any of its keywords occurs as a substring of
// the joined, lowercased item names. With no match the construct falls
// back to an anonymous "Dimension N" label using the 1-based ordinal.
func (n *Namer) Name(topItems []string, ordinal int) string {
	joined := strings.ToLower(strings.Join(topItems, " "))

	label := ""
	for _, rule := range n.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(joined, strings.ToLower(kw)) {
				label = rule.Label
				break
			}
		}
		if label != "" {
			break
		}
	}
	if label == "" {
		label = fmt.Sprintf("Dimension %d", ordinal)
	}

	n.used[label]++
	if count := n.used[label]; count > 1 {
		return fmt.Sprintf("%s %d", label, count)
	}
	return label
}
