package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
)

// Value is one corroborating source for a conflicted field.
type Value struct {
	Value       string  `json:"value"`
	SourceChunk int     `json:"source_chunk_id"`
	Context     string  `json:"context,omitempty"`
	Confidence  float64 `json:"confidence"`
	SourceType  string  `json:"source_type,omitempty"`
}

// Conflict records a disagreement between chunks on the same field.
// Conflicts are never silently dropped: each one either survives to the
// final output or is marked resolved with both original values retained.
type Conflict struct {
	Field               string  `json:"field"` // e.g. "dates.baslangic"
	Values              []Value `json:"values"`
	Kind                string  `json:"conflict_kind"` // "different_values" or "partial_match"
	NeedsReview         bool    `json:"needs_review"`
	SuggestedResolution string  `json:"suggested_resolution,omitempty"`
}

// Detect groups findings by (category, subtype) across all chunk
// analyses and flags every field where two or more sources normalize to
// different values. All corroborating sources accumulate into one
// conflict, not just the first disagreeing pair.
func Detect(analyses []analyzer.ChunkAnalysis) []Conflict {
	groups := make(map[string][]Value)
	add := func(field string, f analyzer.Finding) {
		if strings.TrimSpace(f.Value) == "" {
			return
		}
		groups[field] = append(groups[field], Value{
			Value:       f.Value,
			SourceChunk: f.SourceChunk,
			Context:     f.Context,
			Confidence:  f.Confidence,
			SourceType:  f.SourceType,
		})
	}

	for _, ca := range analyses {
		for _, f := range ca.Data.Dates {
			add("dates."+f.Type, f)
		}
		for _, f := range ca.Data.Amounts {
			add("amounts."+f.Type, f)
		}
		for _, p := range ca.Data.Penalties {
			add("penalties."+p.Type, analyzer.Finding{
				Type: p.Type, Value: p.Rate, Context: p.Context,
				Confidence: p.Confidence, SourceChunk: p.SourceChunk,
			})
		}
		for _, f := range ca.Data.Menus.Gramaj {
			add("menus.gramaj."+f.Type, f)
		}
		for _, f := range ca.Data.Menus.ServiceTimes {
			add("menus.service_times."+f.Type, f)
		}
		for _, f := range ca.Data.Personnel.Staff {
			add("personnel.staff."+f.Type, f)
		}
		// Meals and qualifications are set-valued: different entries are
		// additions, not disagreements.
	}

	fields := make([]string, 0, len(groups))
	for field := range groups {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var conflicts []Conflict
	for _, field := range fields {
		if c, ok := checkField(field, groups[field]); ok {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// checkField compares all values for one field pairwise after
// normalization.
func checkField(field string, values []Value) (Conflict, bool) {
	distinct := make(map[string]bool)
	partial := false
	for i := 0; i < len(values); i++ {
		ni := Normalize(field, values[i].Value)
		if ni == "" {
			continue
		}
		distinct[ni] = true
		for j := i + 1; j < len(values); j++ {
			nj := Normalize(field, values[j].Value)
			if nj == "" || ni == nj {
				continue
			}
			if strings.Contains(ni, nj) || strings.Contains(nj, ni) {
				partial = true
			}
		}
	}
	if len(distinct) < 2 {
		return Conflict{}, false
	}

	kind := "different_values"
	if partial {
		kind = "partial_match"
	}
	return Conflict{
		Field:               field,
		Values:              values,
		Kind:                kind,
		NeedsReview:         true,
		SuggestedResolution: suggestResolution(values),
	}, true
}

// suggestResolution is advisory only, never auto-applied here.
func suggestResolution(values []Value) string {
	best, second := -1.0, -1.0
	bestVal := ""
	for _, v := range values {
		if v.Confidence > best {
			second = best
			best = v.Confidence
			bestVal = v.Value
		} else if v.Confidence > second {
			second = v.Confidence
		}
	}
	if best-second >= 0.2 {
		return fmt.Sprintf("en yuksek guvenilirlikli deger tercih edilebilir: %q (guven: %.2f)", bestVal, best)
	}
	return "guven degerleri yakin, manuel inceleme onerilir"
}

// Normalize prepares a value for comparison: date separators unified,
// currency and thousands separators stripped, percent signs removed.
func Normalize(field, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.Join(strings.Fields(v), " ")

	switch {
	case strings.HasPrefix(field, "dates."):
		v = strings.NewReplacer("/", ".", "-", ".", " ", "").Replace(v)
	case strings.HasPrefix(field, "amounts."):
		v = strings.NewReplacer("tl", "", "try", "", "₺", "", " ", "").Replace(v)
		v = strings.ReplaceAll(v, ".", "") // thousands separator
		v = strings.ReplaceAll(v, ",", ".")
	case strings.HasPrefix(field, "penalties."):
		v = strings.NewReplacer("%", "", " ", "").Replace(v)
		v = strings.ReplaceAll(v, ",", ".")
	default:
		v = strings.ReplaceAll(v, "%", "")
	}
	return v
}
