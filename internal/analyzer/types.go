package analyzer

// Finding is the atomic traceable unit: an extracted (type, value) pair
// with confidence and a back-reference to the chunk it came from. Every
// downstream aggregate keeps the source_chunk_id.
type Finding struct {
	Type        string  `json:"type"`
	Value       string  `json:"value"`
	Context     string  `json:"context,omitempty"`
	Confidence  float64 `json:"confidence"`
	SourceChunk int     `json:"source_chunk_id"`
	SourceType  string  `json:"source_type,omitempty"` // "tablo", "paragraf", "liste", "form", "baslik"
}

// Penalty is a penalty clause: type plus rate plus period.
type Penalty struct {
	Type        string  `json:"type"`
	Rate        string  `json:"rate"`
	Period      string  `json:"period,omitempty"`
	Context     string  `json:"context,omitempty"`
	Confidence  float64 `json:"confidence"`
	SourceChunk int     `json:"source_chunk_id"`
}

// MenuData groups catering menu findings.
type MenuData struct {
	Meals        []Finding `json:"meals,omitempty"`
	Gramaj       []Finding `json:"gramaj,omitempty"`
	ServiceTimes []Finding `json:"service_times,omitempty"`
}

// PersonnelData groups staffing requirements.
type PersonnelData struct {
	Staff          []Finding `json:"staff,omitempty"`
	Qualifications []Finding `json:"qualifications,omitempty"`
}

// ExtractedData is the structured result of one extraction pass. The
// Critical map holds the named critical fields (iletisim,
// teminat_oranlari, servis_saatleri, mali_kriterler, tahmini_bedel) as
// field -> subkey -> value.
type ExtractedData struct {
	Dates     []Finding                    `json:"dates,omitempty"`
	Amounts   []Finding                    `json:"amounts,omitempty"`
	Penalties []Penalty                    `json:"penalties,omitempty"`
	Menus     MenuData                     `json:"menus,omitempty"`
	Personnel PersonnelData                `json:"personnel,omitempty"`
	Critical  map[string]map[string]string `json:"critical_fields,omitempty"`
}

// AllFindings flattens every finding in the structure, penalties
// included (rate as value).
func (d ExtractedData) AllFindings() []Finding {
	var out []Finding
	out = append(out, d.Dates...)
	out = append(out, d.Amounts...)
	for _, p := range d.Penalties {
		out = append(out, Finding{
			Type:        p.Type,
			Value:       p.Rate,
			Context:     p.Context,
			Confidence:  p.Confidence,
			SourceChunk: p.SourceChunk,
		})
	}
	out = append(out, d.Menus.Meals...)
	out = append(out, d.Menus.Gramaj...)
	out = append(out, d.Menus.ServiceTimes...)
	out = append(out, d.Personnel.Staff...)
	out = append(out, d.Personnel.Qualifications...)
	return out
}

// Empty reports whether the pass produced nothing at all.
func (d ExtractedData) Empty() bool {
	return len(d.Dates) == 0 && len(d.Amounts) == 0 && len(d.Penalties) == 0 &&
		len(d.Menus.Meals) == 0 && len(d.Menus.Gramaj) == 0 && len(d.Menus.ServiceTimes) == 0 &&
		len(d.Personnel.Staff) == 0 && len(d.Personnel.Qualifications) == 0 &&
		len(d.Critical) == 0
}

// Usage counts tokens reported by the completion service.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ChunkAnalysis is the stage-1 record for one (chunk, extraction kind)
// pair. A failed request or unparseable response still produces one,
// with Error set and an empty data block; records are never dropped.
type ChunkAnalysis struct {
	ChunkIndex     int           `json:"chunk_index"`
	Kind           string        `json:"extraction_kind"`
	Data           ExtractedData `json:"extracted_data"`
	DurationMs     int64         `json:"duration_ms"`
	Usage          Usage         `json:"token_usage"`
	RawContentHash string        `json:"raw_content_hash"`
	JSONValid      bool          `json:"json_valid"`
	Error          string        `json:"error,omitempty"`
}

// ParseError is the sentinel recorded when a response survives no
// recovery step.
const ParseError = "parse_error"

// Synthesis is the stage-2 document-level result.
type Synthesis struct {
	Summary string `json:"ozet,omitempty"`
	ExtractedData
}

// Result is the analyzer's full output for one document.
type Result struct {
	Method    string // "two-stage" or "single-stage"
	Analyses  []ChunkAnalysis
	Synthesis Synthesis
	Truncated bool // stage-2 input hit the size cap
	Usage     Usage
}
