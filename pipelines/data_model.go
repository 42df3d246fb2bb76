package pipelines

import (
	"encoding/json"
	"fmt"

	"github.com/surveypath/surveypath-go/pkg/survey"
)

// DataValue is a typed value stored in a PluginContext and passed
// between pipeline steps.
type DataValue interface {
	// Type returns the data type identifier
	Type() string

	// Validate checks if the data is valid
	Validate() error

	// Serialize converts the data to bytes
	Serialize() ([]byte, error)

	// Deserialize populates the data from bytes
	Deserialize([]byte) error

	// Size returns the approximate memory size in bytes
	Size() int

	// Clone creates a deep copy of the data
	Clone() DataValue
}

// TableData is a raw delimited table as read from a survey export:
// a header row and string cells, before any mapping or recoding.
type TableData struct {
	Name       string     `json:"name"`
	SourcePath string     `json:"source_path,omitempty"`
	Encoding   string     `json:"encoding,omitempty"`
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
}

// NewTableData creates a TableData with the given header.
func NewTableData(name string, header []string) *TableData {
	return &TableData{
		Name:   name,
		Header: header,
		Rows:   make([][]string, 0),
	}
}

// Type returns "table"
func (t *TableData) Type() string { return "table" }

// Validate checks that every row matches the header width. Short rows
// from truncated exports are the caller's problem to pad or drop before
// constructing the table.
func (t *TableData) Validate() error {
	if len(t.Header) == 0 {
		return fmt.Errorf("table %q has no header", t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("table %q row %d has %d cells, header has %d",
				t.Name, i, len(row), len(t.Header))
		}
	}
	return nil
}

// Serialize converts to JSON bytes
func (t *TableData) Serialize() ([]byte, error) {
	return json.Marshal(t)
}

// Deserialize populates from JSON bytes
func (t *TableData) Deserialize(data []byte) error {
	return json.Unmarshal(data, t)
}

// Size returns approximate memory size
func (t *TableData) Size() int {
	size := len(t.Name) + len(t.SourcePath) + len(t.Encoding)
	for _, h := range t.Header {
		size += len(h)
	}
	for _, row := range t.Rows {
		for _, cell := range row {
			size += len(cell)
		}
	}
	return size
}

// Clone creates a deep copy
func (t *TableData) Clone() DataValue {
	header := append([]string(nil), t.Header...)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return &TableData{
		Name:       t.Name,
		SourcePath: t.SourcePath,
		Encoding:   t.Encoding,
		Header:     header,
		Rows:       rows,
	}
}

// NumRows returns the number of data rows.
func (t *TableData) NumRows() int { return len(t.Rows) }

// NumColumns returns the header width.
func (t *TableData) NumColumns() int { return len(t.Header) }

// RespondentSetData is the mapped and recoded respondent collection that
// flows from the processing stages into every modeling plugin.
type RespondentSetData struct {
	SchemaName  string               `json:"schema_name,omitempty"`
	Respondents []*survey.Respondent `json:"respondents"`
}

// NewRespondentSetData wraps a respondent collection for context storage.
func NewRespondentSetData(schemaName string, respondents []*survey.Respondent) *RespondentSetData {
	if respondents == nil {
		respondents = make([]*survey.Respondent, 0)
	}
	return &RespondentSetData{SchemaName: schemaName, Respondents: respondents}
}

// Type returns "respondent_set"
func (r *RespondentSetData) Type() string { return "respondent_set" }

// Validate checks respondent identity invariants: positive IDs, no
// duplicate codes.
func (r *RespondentSetData) Validate() error {
	seen := make(map[string]int, len(r.Respondents))
	for _, resp := range r.Respondents {
		if resp == nil {
			return fmt.Errorf("nil respondent in set")
		}
		if resp.ID <= 0 {
			return fmt.Errorf("respondent %q has non-positive id %d", resp.Code, resp.ID)
		}
		if prev, dup := seen[resp.Code]; dup {
			return fmt.Errorf("duplicate respondent code %q (ids %d and %d)", resp.Code, prev, resp.ID)
		}
		seen[resp.Code] = resp.ID
	}
	return nil
}

// Serialize converts to JSON bytes
func (r *RespondentSetData) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// Deserialize populates from JSON bytes
func (r *RespondentSetData) Deserialize(data []byte) error {
	return json.Unmarshal(data, r)
}

// Size returns approximate memory size
func (r *RespondentSetData) Size() int {
	data, _ := json.Marshal(r)
	return len(data)
}

// Clone creates a deep copy
func (r *RespondentSetData) Clone() DataValue {
	respondents := make([]*survey.Respondent, len(r.Respondents))
	for i, resp := range r.Respondents {
		cp := *resp
		cp.Values = make(map[string]survey.Value, len(resp.Values))
		for k, v := range resp.Values {
			cp.Values[k] = v
		}
		respondents[i] = &cp
	}
	return &RespondentSetData{SchemaName: r.SchemaName, Respondents: respondents}
}

// Len returns the number of respondents in the set.
func (r *RespondentSetData) Len() int { return len(r.Respondents) }

// JSONData is structured result data: model summaries, construct
// definitions, aggregation tables.
type JSONData struct {
	Content map[string]any `json:"content"`
}

// NewJSONData creates a new JSONData instance
func NewJSONData(content map[string]any) *JSONData {
	if content == nil {
		content = make(map[string]any)
	}
	return &JSONData{Content: content}
}

// Type returns "json"
func (j *JSONData) Type() string { return "json" }

// Validate checks if the JSON content is valid
func (j *JSONData) Validate() error {
	if j.Content == nil {
		return fmt.Errorf("content cannot be nil")
	}
	return nil
}

// Serialize converts to JSON bytes
func (j *JSONData) Serialize() ([]byte, error) {
	return json.Marshal(j)
}

// Deserialize populates from JSON bytes
func (j *JSONData) Deserialize(data []byte) error {
	return json.Unmarshal(data, j)
}

// Size returns approximate memory size
func (j *JSONData) Size() int {
	data, _ := json.Marshal(j.Content)
	return len(data)
}

// Clone creates a deep copy
func (j *JSONData) Clone() DataValue {
	newContent := make(map[string]any)
	for k, v := range j.Content {
		newContent[k] = deepCopy(v)
	}
	return NewJSONData(newContent)
}

// deepCopy performs a deep copy of any values
func deepCopy(value any) any {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]any:
		newMap := make(map[string]any)
		for k, val := range v {
			newMap[k] = deepCopy(val)
		}
		return newMap
	case []any:
		newSlice := make([]any, len(v))
		for i, val := range v {
			newSlice[i] = deepCopy(val)
		}
		return newSlice
	default:
		return v
	}
}
