package survey

import (
	"fmt"
	"strings"
)

// DictionaryEntry documents one canonical variable for the emitted data
// dictionary: where it came from, what scale it uses, and how to read it.
type DictionaryEntry struct {
	Variable  string
	Category  string
	Scale     string
	ScaleInfo string
	Source    string
}

// SchemaDictionary builds dictionary entries for every schema variable in
// declaration order, so the emitted table is stable across runs.
func SchemaDictionary(s *Schema) []DictionaryEntry {
	entries := make([]DictionaryEntry, 0, len(s.Variables))
	for i := range s.Variables {
		v := &s.Variables[i]
		entries = append(entries, DictionaryEntry{
			Variable:  v.Name,
			Category:  v.Category,
			Scale:     v.Scale,
			ScaleInfo: v.ScaleInfo,
			Source:    locatorDescription(s, v),
		})
	}
	return entries
}

// DerivedEntry documents a variable added by a downstream stage
// (top-box flags, composites, factor scores).
func DerivedEntry(name, category, scale, info, derivedFrom string) DictionaryEntry {
	return DictionaryEntry{
		Variable:  name,
		Category:  category,
		Scale:     scale,
		ScaleInfo: info,
		Source:    "derived: " + derivedFrom,
	}
}

func locatorDescription(s *Schema, v *VariableSpec) string {
	switch s.Kind {
	case SchemaPositional:
		return fmt.Sprintf("column %d", s.EffectiveIndex(v))
	case SchemaNamed:
		return "header ~ " + strings.Join(v.Patterns, " & ")
	default:
		return ""
	}
}
