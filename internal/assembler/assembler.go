// Package assembler merges per-chunk extraction results into one
// document-level result. Every function here is a pure reduction over
// its inputs; nothing talks to the network or the filesystem.
package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/conflict"
)

// Critical fields the gap filler is allowed to chase later.
var CriticalFields = []string{
	"iletisim",
	"teminat_oranlari",
	"servis_saatleri",
	"mali_kriterler",
	"tahmini_bedel",
}

// KnownPlaceholders are values models emit for "not specified". They
// never count as filled.
var KnownPlaceholders = map[string]bool{
	"":              true,
	"-":             true,
	"belirtilmemis": true,
	"belirtilmemiş": true,
	"yok":           true,
	"bilinmiyor":    true,
	"n/a":           true,
}

// IsPlaceholder reports whether a value carries no real information.
func IsPlaceholder(v string) bool {
	return KnownPlaceholders[strings.ToLower(strings.TrimSpace(v))]
}

// Result is the assembled document-level extraction.
type Result struct {
	Summary        string                       `json:"ozet"`
	Data           analyzer.ExtractedData       `json:"data"`
	CriticalFields map[string]map[string]string `json:"critical_fields"`
	// Violations lists synthesis values that no chunk produced. They
	// are excluded from Data and surfaced here instead of silently
	// merged in.
	Violations []string `json:"violations,omitempty"`
}

// Assemble reduces the chunk analyses and the synthesis into one
// result. Stage-1 findings are the source of truth; the synthesis
// contributes the summary and is checked against the stage-1 union.
func Assemble(analyses []analyzer.ChunkAnalysis, syn *analyzer.Synthesis) *Result {
	res := &Result{
		Data:           mergeAnalyses(analyses),
		CriticalFields: reduceCriticalFields(analyses),
	}
	if syn != nil {
		res.Summary = syn.Summary
		res.Violations = checkNoNewInformation(res.Data, syn.ExtractedData)
	}
	return res
}

// AssembleSingle handles the single-pass path for tiny documents. There
// the model saw the raw text itself, so its output is the source of
// truth and no cross-check applies.
func AssembleSingle(syn *analyzer.Synthesis) *Result {
	wrapped := []analyzer.ChunkAnalysis{{Data: syn.ExtractedData}}
	return &Result{
		Summary:        syn.Summary,
		Data:           mergeAnalyses(wrapped),
		CriticalFields: reduceCriticalFields(wrapped),
	}
}

// mergeAnalyses unions all chunk findings, collapsing duplicates. The
// duplicate with the higher confidence survives.
func mergeAnalyses(analyses []analyzer.ChunkAnalysis) analyzer.ExtractedData {
	var out analyzer.ExtractedData
	for _, ca := range analyses {
		out.Dates = dedupeFindings("dates", out.Dates, ca.Data.Dates)
		out.Amounts = dedupeFindings("amounts", out.Amounts, ca.Data.Amounts)
		out.Penalties = dedupePenalties(out.Penalties, ca.Data.Penalties)
		out.Menus.Meals = dedupeFindings("menus.meals", out.Menus.Meals, ca.Data.Menus.Meals)
		out.Menus.Gramaj = dedupeFindings("menus.gramaj", out.Menus.Gramaj, ca.Data.Menus.Gramaj)
		out.Menus.ServiceTimes = dedupeFindings("menus.service_times", out.Menus.ServiceTimes, ca.Data.Menus.ServiceTimes)
		out.Personnel.Staff = dedupeFindings("personnel.staff", out.Personnel.Staff, ca.Data.Personnel.Staff)
		out.Personnel.Qualifications = dedupeFindings("personnel.qualifications", out.Personnel.Qualifications, ca.Data.Personnel.Qualifications)
	}
	return out
}

func findingKey(category string, f analyzer.Finding) string {
	return f.Type + "\x00" + conflict.Normalize(category+"."+f.Type, f.Value)
}

func dedupeFindings(category string, existing, incoming []analyzer.Finding) []analyzer.Finding {
	index := make(map[string]int, len(existing))
	for i, f := range existing {
		index[findingKey(category, f)] = i
	}
	for _, f := range incoming {
		if IsPlaceholder(f.Value) {
			continue
		}
		key := findingKey(category, f)
		if i, ok := index[key]; ok {
			if f.Confidence > existing[i].Confidence {
				existing[i] = f
			}
			continue
		}
		index[key] = len(existing)
		existing = append(existing, f)
	}
	return existing
}

func dedupePenalties(existing, incoming []analyzer.Penalty) []analyzer.Penalty {
	key := func(p analyzer.Penalty) string {
		return p.Type + "\x00" + conflict.Normalize("penalties."+p.Type, p.Rate) + "\x00" + strings.ToLower(p.Period)
	}
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[key(p)] = i
	}
	for _, p := range incoming {
		if IsPlaceholder(p.Rate) {
			continue
		}
		k := key(p)
		if i, ok := index[k]; ok {
			if p.Confidence > existing[i].Confidence {
				existing[i] = p
			}
			continue
		}
		index[k] = len(existing)
		existing = append(existing, p)
	}
	return existing
}

// reduceCriticalFields keeps, per field and sub-key, the first
// non-placeholder value in chunk order.
func reduceCriticalFields(analyses []analyzer.ChunkAnalysis) map[string]map[string]string {
	out := make(map[string]map[string]string)
	sorted := append([]analyzer.ChunkAnalysis(nil), analyses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChunkIndex < sorted[j].ChunkIndex
	})
	for _, ca := range sorted {
		for field, sub := range ca.Data.Critical {
			for k, v := range sub {
				if IsPlaceholder(v) {
					continue
				}
				if out[field] == nil {
					out[field] = make(map[string]string)
				}
				if _, taken := out[field][k]; !taken {
					out[field][k] = v
				}
			}
		}
	}
	return out
}

// checkNoNewInformation verifies every synthesis value traces back to
// some chunk finding. A value traces when it matches a stage-1 value or
// is contained in one in either direction, so "1.250.000" still traces
// to "1.250.000 TL". Violations are reported, not fatal.
func checkNoNewInformation(union, syn analyzer.ExtractedData) []string {
	var known []string
	for _, f := range union.AllFindings() {
		if v := strings.ToLower(strings.TrimSpace(f.Value)); v != "" {
			known = append(known, v)
		}
	}
	traces := func(v string) bool {
		for _, k := range known {
			if strings.Contains(k, v) || strings.Contains(v, k) {
				return true
			}
		}
		return false
	}

	var violations []string
	for _, f := range syn.AllFindings() {
		v := strings.ToLower(strings.TrimSpace(f.Value))
		if v == "" || IsPlaceholder(v) || traces(v) {
			continue
		}
		violations = append(violations,
			fmt.Sprintf("sentez degeri hicbir parcada yok: %s=%q", f.Type, f.Value))
	}
	return violations
}

// ApplyResolutions patches resolved conflicts onto the assembled data.
// Manual-review resolutions leave the data untouched; all conflicting
// values stay reachable through the resolution records either way.
func ApplyResolutions(res *Result, resolutions []conflict.Resolution) {
	for _, r := range resolutions {
		if r.ManualReview || r.ChosenValue == "" {
			continue
		}
		category, ftype, ok := splitField(r.Field)
		if !ok {
			continue
		}
		switch category {
		case "dates":
			res.Data.Dates = keepChosen(category, ftype, r, res.Data.Dates)
		case "amounts":
			res.Data.Amounts = keepChosen(category, ftype, r, res.Data.Amounts)
		case "menus.gramaj":
			res.Data.Menus.Gramaj = keepChosen(category, ftype, r, res.Data.Menus.Gramaj)
		case "menus.service_times":
			res.Data.Menus.ServiceTimes = keepChosen(category, ftype, r, res.Data.Menus.ServiceTimes)
		}
	}
}

func splitField(field string) (category, ftype string, ok bool) {
	i := strings.LastIndex(field, ".")
	if i <= 0 || i == len(field)-1 {
		return "", "", false
	}
	return field[:i], field[i+1:], true
}

// keepChosen drops findings of the resolved type whose value lost.
// Merge-strategy resolutions never reach here, so chosen is a single
// value.
func keepChosen(category, ftype string, r conflict.Resolution, findings []analyzer.Finding) []analyzer.Finding {
	if r.Strategy == conflict.StrategyMergeValues {
		return findings
	}
	chosen := conflict.Normalize(r.Field, r.ChosenValue)
	out := findings[:0]
	for _, f := range findings {
		if f.Type == ftype && conflict.Normalize(category+"."+f.Type, f.Value) != chosen {
			continue
		}
		out = append(out, f)
	}
	return out
}
