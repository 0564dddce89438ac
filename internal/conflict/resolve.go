package conflict

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution strategies.
const (
	StrategyHighestConfidence = "highest_confidence"
	StrategyLatestChunk       = "latest_chunk"
	StrategySourcePriority    = "source_priority"
	StrategyMergeValues       = "merge_values"
)

// Resolution records the outcome for one conflict. The discarded values
// stay attached so no conflicting value is ever lost.
type Resolution struct {
	Field        string  `json:"field"`
	Strategy     string  `json:"strategy"`
	ChosenValue  string  `json:"chosen_value,omitempty"`
	Discarded    []Value `json:"discarded,omitempty"`
	Warning      string  `json:"warning,omitempty"`
	ManualReview bool    `json:"manual_review"`
}

const confidenceMargin = 0.15

// sourcePriority ranks extraction source types. Tables are the most
// structured and trusted, free prose the least.
var sourcePriority = map[string]int{
	"tablo":    5,
	"form":     4,
	"liste":    3,
	"baslik":   3,
	"paragraf": 2,
}

// Resolve picks a winner for each conflict using a per-field strategy.
// Unresolvable conflicts come back flagged for manual review with all
// values intact.
func Resolve(conflicts []Conflict) []Resolution {
	resolutions := make([]Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		resolutions = append(resolutions, resolveOne(c))
	}
	return resolutions
}

func resolveOne(c Conflict) Resolution {
	switch strategyFor(c.Field) {
	case StrategyHighestConfidence:
		if r, ok := byConfidence(c); ok {
			return r
		}
		// Confidences too close to call: prefer the later occurrence,
		// amendments supersede earlier text.
		return byLatestChunk(c)
	case StrategySourcePriority:
		return bySourcePriority(c)
	default:
		return byMerge(c)
	}
}

func strategyFor(field string) string {
	switch {
	case strings.HasPrefix(field, "dates."):
		return StrategyHighestConfidence
	case strings.HasPrefix(field, "amounts."), strings.HasPrefix(field, "menus.gramaj."):
		return StrategySourcePriority
	case strings.HasPrefix(field, "menus.service_times."):
		return StrategyHighestConfidence
	default:
		return StrategyMergeValues
	}
}

func byConfidence(c Conflict) (Resolution, bool) {
	sorted := append([]Value(nil), c.Values...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	best, second := sorted[0], sorted[1]

	if best.Confidence >= 0.8 && second.Confidence >= 0.8 {
		return Resolution{
			Field:        c.Field,
			Strategy:     StrategyHighestConfidence,
			Discarded:    nil,
			Warning:      "iki kaynak da yuksek guvenilirlikte, otomatik secim yapilmadi",
			ManualReview: true,
		}, true
	}
	if best.Confidence-second.Confidence < confidenceMargin {
		return Resolution{}, false
	}
	r := Resolution{
		Field:       c.Field,
		Strategy:    StrategyHighestConfidence,
		ChosenValue: best.Value,
		Discarded:   sorted[1:],
	}
	if best.Confidence < 0.6 {
		r.Warning = "secilen degerin guvenilirligi dusuk"
		r.ManualReview = true
	}
	return r, true
}

func byLatestChunk(c Conflict) Resolution {
	best := c.Values[0]
	for _, v := range c.Values[1:] {
		if v.SourceChunk >= best.SourceChunk {
			best = v
		}
	}
	var discarded []Value
	for _, v := range c.Values {
		if v != best {
			discarded = append(discarded, v)
		}
	}
	return Resolution{
		Field:       c.Field,
		Strategy:    StrategyLatestChunk,
		ChosenValue: best.Value,
		Discarded:   discarded,
		Warning:     "belgede daha sonra gecen deger tercih edildi",
	}
}

func bySourcePriority(c Conflict) Resolution {
	rank := func(v Value) int {
		if p, ok := sourcePriority[v.SourceType]; ok {
			return p
		}
		return 1
	}
	best := c.Values[0]
	for _, v := range c.Values[1:] {
		if rank(v) > rank(best) || (rank(v) == rank(best) && v.Confidence > best.Confidence) {
			best = v
		}
	}
	var discarded []Value
	for _, v := range c.Values {
		if v != best {
			discarded = append(discarded, v)
		}
	}
	r := Resolution{
		Field:       c.Field,
		Strategy:    StrategySourcePriority,
		ChosenValue: best.Value,
		Discarded:   discarded,
	}
	if rank(best) <= 2 {
		r.Warning = "yapisal kaynak bulunamadi, duz metin degeri secildi"
		r.ManualReview = true
	}
	return r
}

// byMerge keeps every distinct value. Used for list-like fields where
// multiple chunks legitimately contribute pieces.
func byMerge(c Conflict) Resolution {
	seen := make(map[string]bool)
	var parts []string
	for _, v := range c.Values {
		n := Normalize(c.Field, v.Value)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		parts = append(parts, v.Value)
	}
	return Resolution{
		Field:       c.Field,
		Strategy:    StrategyMergeValues,
		ChosenValue: strings.Join(parts, " | "),
	}
}

// Summary renders a short human-readable digest for logs.
func Summary(conflicts []Conflict, resolutions []Resolution) string {
	review := 0
	for _, r := range resolutions {
		if r.ManualReview {
			review++
		}
	}
	return fmt.Sprintf("%d celiski, %d manuel inceleme", len(conflicts), review)
}
