// Package validator scores an assembled result and runs the zero-loss
// integrity battery over the chunking and extraction artifacts.
package validator

import (
	"fmt"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/assembler"
	"github.com/cbayrak/tenderdoc/internal/conflict"
	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/cbayrak/tenderdoc/internal/structure"
)

// Default field weight tiers.
const (
	DefaultCriticalWeight  = 0.5
	DefaultImportantWeight = 0.35
	DefaultOptionalWeight  = 0.15
)

const (
	// DefaultCharTolerance is the allowed drift between original text
	// length and the sum of chunk lengths.
	DefaultCharTolerance = 10
	// DefaultMinHeadingContent is the minimum content a heading must
	// keep in its own chunk.
	DefaultMinHeadingContent = 200
	// FootnoteWindow is how far below a table a footnote still belongs
	// to it.
	FootnoteWindow = 500
	// DefaultMinQualityScore is the floor below which a result is not
	// valid.
	DefaultMinQualityScore = 0.5
)

// Limits carries the tuned weights and tolerances. Zero fields fall
// back to the defaults above, so a zero Limits keeps stock behavior.
// MinHeadingContent must match the window the chunker was given or the
// heading-unity check verifies the wrong thing.
type Limits struct {
	CharTolerance     int
	MinHeadingContent int
	CriticalWeight    float64
	ImportantWeight   float64
	OptionalWeight    float64
	MinQualityScore   float64
}

func (l Limits) withDefaults() Limits {
	if l.CharTolerance <= 0 {
		l.CharTolerance = DefaultCharTolerance
	}
	if l.MinHeadingContent <= 0 {
		l.MinHeadingContent = DefaultMinHeadingContent
	}
	if l.CriticalWeight <= 0 {
		l.CriticalWeight = DefaultCriticalWeight
	}
	if l.ImportantWeight <= 0 {
		l.ImportantWeight = DefaultImportantWeight
	}
	if l.OptionalWeight <= 0 {
		l.OptionalWeight = DefaultOptionalWeight
	}
	if l.MinQualityScore <= 0 {
		l.MinQualityScore = DefaultMinQualityScore
	}
	return l
}

var (
	criticalFields  = []string{"dates.ihale_tarihi", "dates.baslangic", "amounts.yaklasik_maliyet"}
	importantFields = []string{"dates.bitis", "amounts.birim_fiyat", "penalties", "menus.meals", "menus.gramaj", "personnel.staff"}
	optionalFields  = []string{"dates.son_basvuru", "amounts.gecici_teminat", "amounts.kesin_teminat", "menus.service_times", "personnel.qualifications", "contact"}
)

// Check is one integrity verdict. Warn-level checks surface problems
// without invalidating the result.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Warn   bool   `json:"warn,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full validation outcome for one document.
type Report struct {
	Valid             bool     `json:"valid"`
	CompletenessScore float64  `json:"completeness_score"`
	QualityScore      float64  `json:"quality_score"`
	MissingCritical   []string `json:"missing_critical,omitempty"`
	MissingImportant  []string `json:"missing_important,omitempty"`
	MissingOptional   []string `json:"missing_optional,omitempty"`
	Checks            []Check  `json:"checks"`
	SchemaErrors      []string `json:"schema_errors,omitempty"`
}

// Input bundles everything the validator inspects.
type Input struct {
	Text        string
	Chunks      []document.Chunk
	Structure   *structure.Info
	Analyses    []analyzer.ChunkAnalysis
	Assembled   *assembler.Result
	Conflicts   []conflict.Conflict
	Resolutions []conflict.Resolution
	Limits      Limits
}

// Validate runs scoring and the integrity battery. The result is valid
// only when all critical fields are present, every hard check passes
// and the quality score clears the floor.
func Validate(in Input) *Report {
	lim := in.Limits.withDefaults()
	r := &Report{}
	r.CompletenessScore = r.scoreCompleteness(in.Assembled, lim)
	r.QualityScore = scoreQuality(in.Assembled, in.Conflicts)
	r.Checks = runChecks(in, lim)

	r.Valid = len(r.MissingCritical) == 0 && r.QualityScore >= lim.MinQualityScore
	for _, c := range r.Checks {
		if !c.Passed && !c.Warn {
			r.Valid = false
		}
	}
	return r
}

func (r *Report) scoreCompleteness(res *assembler.Result, lim Limits) float64 {
	tier := func(fields []string) (float64, []string) {
		var missing []string
		present := 0
		for _, f := range fields {
			if fieldPresent(res, f) {
				present++
			} else {
				missing = append(missing, f)
			}
		}
		return float64(present) / float64(len(fields)), missing
	}
	var c, i, o float64
	c, r.MissingCritical = tier(criticalFields)
	i, r.MissingImportant = tier(importantFields)
	o, r.MissingOptional = tier(optionalFields)
	return lim.CriticalWeight*c + lim.ImportantWeight*i + lim.OptionalWeight*o
}

func fieldPresent(res *assembler.Result, field string) bool {
	if res == nil {
		return false
	}
	hasType := func(findings []analyzer.Finding, ftype string) bool {
		for _, f := range findings {
			if f.Type == ftype && !assembler.IsPlaceholder(f.Value) {
				return true
			}
		}
		return false
	}
	switch field {
	case "penalties":
		return len(res.Data.Penalties) > 0
	case "menus.meals":
		return len(res.Data.Menus.Meals) > 0
	case "menus.gramaj":
		return len(res.Data.Menus.Gramaj) > 0
	case "menus.service_times":
		return len(res.Data.Menus.ServiceTimes) > 0
	case "personnel.staff":
		return len(res.Data.Personnel.Staff) > 0
	case "personnel.qualifications":
		return len(res.Data.Personnel.Qualifications) > 0
	case "contact":
		for _, v := range res.CriticalFields["iletisim"] {
			if !assembler.IsPlaceholder(v) {
				return true
			}
		}
		return false
	}
	category, ftype, ok := strings.Cut(field, ".")
	if !ok {
		return false
	}
	switch category {
	case "dates":
		return hasType(res.Data.Dates, ftype)
	case "amounts":
		return hasType(res.Data.Amounts, ftype)
	}
	return false
}

// scoreQuality starts from a perfect score and deducts for weak
// findings and open conflicts.
func scoreQuality(res *assembler.Result, conflicts []conflict.Conflict) float64 {
	score := 1.0
	if res != nil {
		for _, f := range res.Data.AllFindings() {
			if f.Confidence < 0.5 {
				score -= 0.02
			}
			if strings.TrimSpace(f.Context) == "" {
				score -= 0.01
			}
		}
	}
	score -= 0.05 * float64(len(conflicts))
	if score < 0 {
		return 0
	}
	return score
}

func runChecks(in Input, lim Limits) []Check {
	checks := []Check{
		checkConservation(in.Text, in.Chunks, lim.CharTolerance),
		checkOrdering(in.Chunks),
	}
	if in.Structure != nil {
		checks = append(checks,
			checkTableAtomicity(in.Chunks, in.Structure),
			checkHeadingUnity(in.Text, in.Chunks, in.Structure, lim.MinHeadingContent),
			checkFootnoteConnection(in.Chunks, in.Structure),
		)
	}
	checks = append(checks,
		checkNumericBoundary(in.Text, in.Chunks),
		checkJSONValidity(in.Analyses),
		checkNoNewInformation(in.Assembled),
		checkConflictPreservation(in.Conflicts, in.Resolutions),
	)
	return checks
}

// checkConservation verifies the chunks tile the original text.
func checkConservation(text string, chunks []document.Chunk, tolerance int) Check {
	total := 0
	for _, ch := range chunks {
		total += len(ch.Content)
	}
	diff := total - len(text)
	if diff < 0 {
		diff = -diff
	}
	return Check{
		Name:   "character_conservation",
		Passed: diff <= tolerance,
		Detail: fmt.Sprintf("kaynak %d, parcalar %d karakter", len(text), total),
	}
}

func checkOrdering(chunks []document.Chunk) Check {
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset < chunks[i-1].EndOffset || chunks[i].Index != chunks[i-1].Index+1 {
			return Check{
				Name:   "chunk_ordering",
				Detail: fmt.Sprintf("parca %d siralama disi", i),
			}
		}
	}
	return Check{Name: "chunk_ordering", Passed: true}
}

func checkTableAtomicity(chunks []document.Chunk, info *structure.Info) Check {
	for _, ch := range chunks[1:] {
		if t := info.TableAt(ch.StartOffset); t != nil && t.Protected {
			return Check{
				Name:   "table_atomicity",
				Detail: fmt.Sprintf("parca siniri %d tabloyu boluyor (%d-%d)", ch.StartOffset, t.StartOffset, t.EndOffset),
			}
		}
	}
	return Check{Name: "table_atomicity", Passed: true}
}

// checkHeadingUnity fails when a boundary separates a heading from its
// first minContent characters.
func checkHeadingUnity(text string, chunks []document.Chunk, info *structure.Info, minContent int) Check {
	for _, h := range info.Headings {
		limit := h.Offset + minContent
		if limit > len(text) {
			continue
		}
		for _, ch := range chunks[1:] {
			if ch.StartOffset > h.Offset && ch.StartOffset < limit {
				return Check{
					Name:   "heading_content_unity",
					Detail: fmt.Sprintf("baslik %q icerikten ayrilmis", h.Text),
				}
			}
		}
	}
	return Check{Name: "heading_content_unity", Passed: true}
}

// checkFootnoteConnection requires footnotes close under a table to sit
// in the same chunk as that table's end.
func checkFootnoteConnection(chunks []document.Chunk, info *structure.Info) Check {
	chunkAt := func(offset int) int {
		for _, ch := range chunks {
			if offset >= ch.StartOffset && offset < ch.EndOffset {
				return ch.Index
			}
		}
		return -1
	}
	for _, fn := range info.Footnotes {
		for _, t := range info.Tables {
			if fn.Offset >= t.EndOffset && fn.Offset-t.EndOffset <= FootnoteWindow {
				if chunkAt(t.EndOffset-1) != chunkAt(fn.Offset) {
					return Check{
						Name:   "table_footnote_connection",
						Warn:   true,
						Detail: fmt.Sprintf("dipnot %d tablosundan ayri parcada", fn.Offset),
					}
				}
			}
		}
	}
	return Check{Name: "table_footnote_connection", Passed: true}
}

// checkNumericBoundary flags boundaries that split a digit run, which
// would break a number across two chunks.
func checkNumericBoundary(text string, chunks []document.Chunk) Check {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	for _, ch := range chunks[1:] {
		b := ch.StartOffset
		if b <= 0 || b >= len(text) {
			continue
		}
		if isDigit(text[b-1]) && isDigit(text[b]) {
			return Check{
				Name:   "numeric_boundary",
				Detail: fmt.Sprintf("parca siniri %d bir sayiyi boluyor", b),
			}
		}
	}
	return Check{Name: "numeric_boundary", Passed: true}
}

func checkJSONValidity(analyses []analyzer.ChunkAnalysis) Check {
	if len(analyses) == 0 {
		return Check{Name: "json_validity", Passed: true}
	}
	valid := 0
	for _, ca := range analyses {
		if ca.JSONValid {
			valid++
		}
	}
	rate := float64(valid) / float64(len(analyses))
	return Check{
		Name:   "json_validity",
		Passed: rate >= 0.5,
		Warn:   rate < 1.0 && rate >= 0.5,
		Detail: fmt.Sprintf("%d/%d parca gecerli JSON", valid, len(analyses)),
	}
}

func checkNoNewInformation(res *assembler.Result) Check {
	if res == nil || len(res.Violations) == 0 {
		return Check{Name: "no_new_information", Passed: true}
	}
	return Check{
		Name:   "no_new_information",
		Warn:   true,
		Detail: strings.Join(res.Violations, "; "),
	}
}

// checkConflictPreservation verifies no conflicting value disappeared:
// every conflict either went to review or has a resolution that retains
// the losing values.
func checkConflictPreservation(conflicts []conflict.Conflict, resolutions []conflict.Resolution) Check {
	byField := make(map[string]conflict.Resolution, len(resolutions))
	for _, r := range resolutions {
		byField[r.Field] = r
	}
	for _, c := range conflicts {
		r, ok := byField[c.Field]
		if !ok {
			if c.NeedsReview {
				continue
			}
			return Check{
				Name:   "conflict_preservation",
				Detail: fmt.Sprintf("celiski %q cozumsuz ve incelemesiz", c.Field),
			}
		}
		if r.ManualReview || r.Strategy == conflict.StrategyMergeValues {
			continue
		}
		if r.ChosenValue != "" && len(r.Discarded) == 0 {
			return Check{
				Name:   "conflict_preservation",
				Detail: fmt.Sprintf("celiski %q kaybedilen degerleri tasimiyor", c.Field),
			}
		}
	}
	return Check{Name: "conflict_preservation", Passed: true}
}
