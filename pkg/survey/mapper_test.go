package survey

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func waveSchema() *Schema {
	return &Schema{
		Name:        "test_waves",
		Kind:        SchemaPositional,
		WaveIndex:   intPtr(0),
		Offset:      1,
		DefaultWave: 1,
		Months:      map[int]string{1: "2025-01", 2: "2025-02", 3: "2025-03"},
		Segment: &SegmentSpec{
			Variable: "segment_code",
			Labels:   map[string]string{"A": "Young Families", "B": "Young Adults"},
		},
		Variables: []VariableSpec{
			{Name: "segment_code", Category: "demographics", Scale: ScaleCode, Index: intPtr(0)},
			{Name: "familiarity_tdl", Category: "perception", Scale: ScaleRating, Index: intPtr(1)},
			{Name: "likelihood_tdl", Category: "perception", Scale: ScaleRating, Index: intPtr(2)},
		},
	}
}

func TestMapTableOffsetAndIDs(t *testing.T) {
	m, err := NewMapper(waveSchema())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	// Layout: wave at pinned column 0, then baseline indexes shifted by
	// the offset: segment at 1, familiarity at 2, likelihood at 3.
	rows := [][]string{
		{"1", "A", "4", "5"},
		{"2", "B", "3", "2"},
		{"9", "A", "5", "5"},
	}
	result, err := m.MapTable([]string{"wave", "seg", "fam", "lik"}, rows)
	if err != nil {
		t.Fatalf("MapTable: %v", err)
	}
	if len(result.Respondents) != 3 {
		t.Fatalf("got %d respondents, want 3", len(result.Respondents))
	}

	for i, r := range result.Respondents {
		if r.ID != i+1 {
			t.Errorf("respondent %d has ID %d, want 1-based emission order", i, r.ID)
		}
	}
	if result.Respondents[0].Code != "R00001" {
		t.Errorf("respondent code = %q, want R00001", result.Respondents[0].Code)
	}

	r1 := result.Respondents[0]
	if r1.Wave != 1 || r1.Month != "2025-01" {
		t.Errorf("wave/month = %d/%q, want 1/2025-01", r1.Wave, r1.Month)
	}
	if v, _ := r1.Float("familiarity_tdl"); v != 4 {
		t.Errorf("familiarity = %v, want 4 (offset applied)", v)
	}
	if r1.Segment != "Young Families" {
		t.Errorf("segment = %q, want Young Families", r1.Segment)
	}

	// Wave 9 is outside the lookup: month Unknown, never an error.
	r3 := result.Respondents[2]
	if r3.Wave != 9 || r3.Month != UnknownMonth {
		t.Errorf("out-of-range wave mapped to %d/%q, want 9/%q", r3.Wave, r3.Month, UnknownMonth)
	}
}

func TestMapTableShortRows(t *testing.T) {
	m, err := NewMapper(waveSchema())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	rows := [][]string{
		{"1", "A"}, // likelihood column absent
	}
	result, err := m.MapTable(nil, rows)
	if err != nil {
		t.Fatalf("MapTable: %v", err)
	}
	if result.ShortRows != 1 {
		t.Errorf("ShortRows = %d, want 1", result.ShortRows)
	}
	r := result.Respondents[0]
	if r.Has("likelihood_tdl") {
		t.Errorf("cell past row end must map to missing")
	}
	if !r.Has("familiarity_tdl") {
		t.Errorf("in-range cells of a short row must still map")
	}
}

func TestMapTableUnlabeledSegmentKeepsCode(t *testing.T) {
	m, err := NewMapper(waveSchema())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	result, err := m.MapTable(nil, [][]string{{"1", "Z", "3", "3"}})
	if err != nil {
		t.Fatalf("MapTable: %v", err)
	}
	if result.Respondents[0].Segment != "Z" {
		t.Errorf("unmapped segment code should stay groupable, got %q", result.Respondents[0].Segment)
	}
	if result.UnlabeledSegments != 1 {
		t.Errorf("UnlabeledSegments = %d, want 1", result.UnlabeledSegments)
	}
}

func TestMapTableNamedSchema(t *testing.T) {
	schema := &Schema{
		Name:        "test_named",
		Kind:        SchemaNamed,
		DefaultWave: 1,
		Months:      map[int]string{1: "2025-01"},
		Variables: []VariableSpec{
			{Name: "familiarity_tdl", Scale: ScaleRating, Patterns: []string{"Familiarity", "TDL"}},
			{Name: "opinion_tdl", Scale: ScaleRating, Patterns: []string{"Opinion", "TDL"}},
			{Name: "never_present", Scale: ScaleRating, Patterns: []string{"No Such Header"}},
		},
	}
	m, err := NewMapper(schema)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	header := []string{"Q1. Familiarity - TDL", "Q2. Opinion - TDL", "Q1. Familiarity - USJ"}
	result, err := m.MapTable(header, [][]string{{"5", "4", "2"}})
	if err != nil {
		t.Fatalf("MapTable: %v", err)
	}

	r := result.Respondents[0]
	if v, _ := r.Float("familiarity_tdl"); v != 5 {
		t.Errorf("familiarity_tdl = %v, want first matching header (5)", v)
	}
	if v, _ := r.Float("opinion_tdl"); v != 4 {
		t.Errorf("opinion_tdl = %v, want 4", v)
	}
	if r.Has("never_present") {
		t.Errorf("variable with no header match must be missing")
	}
	if len(result.UnmatchedVariables) != 1 || result.UnmatchedVariables[0] != "never_present" {
		t.Errorf("UnmatchedVariables = %v, want [never_present]", result.UnmatchedVariables)
	}
	if r.Wave != 1 || r.Month != "2025-01" {
		t.Errorf("schema without wave column must use the default wave")
	}
}

func TestMapTableGenderAndLocality(t *testing.T) {
	schema := waveSchema()
	schema.Variables = append(schema.Variables,
		VariableSpec{Name: "gender", Scale: ScaleCode, Index: intPtr(3)},
		VariableSpec{Name: "prefecture_code", Scale: ScaleCode, Index: intPtr(4)},
	)
	schema.Gender = &GenderSpec{
		Variable: "gender",
		Labels:   map[string]string{"1": "Male", "2": "Female"},
		Fallback: "Other",
	}
	schema.Locality = &LocalitySpec{
		Variable:   "prefecture_code",
		LocalCodes: []int{13, 14},
		LocalLabel: "Local",
		OtherLabel: "Domestic",
	}

	m, err := NewMapper(schema)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	rows := [][]string{
		{"1", "A", "4", "5", "2", "13"},
		{"1", "B", "3", "4", "3", "27"},
	}
	result, err := m.MapTable(nil, rows)
	if err != nil {
		t.Fatalf("MapTable: %v", err)
	}

	tests := []struct {
		idx      int
		gender   string
		locality string
	}{
		{0, "Female", "Local"},
		{1, "Other", "Domestic"},
	}
	for _, tt := range tests {
		r := result.Respondents[tt.idx]
		if g, _ := r.Label("gender_label"); g != tt.gender {
			t.Errorf("respondent %d gender_label = %q, want %q", tt.idx, g, tt.gender)
		}
		if l, _ := r.Label("locality"); l != tt.locality {
			t.Errorf("respondent %d locality = %q, want %q", tt.idx, l, tt.locality)
		}
	}
}
