// Package recommendation holds the result types produced by the recommender and the layered analyzer.
package recommendation

import (
	"math"
	"unicode/utf8"
)

// Source identifies which pass produced a tag vote.
type Source string

// Vote sources, highest precedence first.
const (
	SourcePriorVerified   Source = "prior_verified"
	SourceContentAnalysis Source = "content_analysis"
	SourceHistorical      Source = "historical"
)

// Score returns the fusion weight of a source.
func (s Source) Score() float64 {
	switch s {
	case SourcePriorVerified:
		return 10
	case SourceContentAnalysis:
		return 8
	case SourceHistorical:
		return 5
	default:
		return 0
	}
}

// Provenance points a historical vote at the record it came from.
type Provenance struct {
	RecordID   int64   `json:"conversation_id"`
	Similarity float64 `json:"similarity"`
	BatchRef   string  `json:"file_name,omitempty"`
	Snippet    string  `json:"conversation_snippet,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// TagVote is one tag with the pass that proposed it.
type TagVote struct {
	Tag        string      `json:"tag"`
	Source     Source      `json:"source"`
	Weight     float64     `json:"score"`
	Rationale  string      `json:"reason"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Excerpt is an illustrative neighbor shown to the reviewer.
type Excerpt struct {
	RecordID   int64    `json:"conversation_id"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity"`
}

// TagCount is a tag with the number of neighbors voting for it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Match is a retained neighbor with its similarity score.
type Match struct {
	RecordID   int64
	Similarity float64
	Text       string
	Tags       []string
	BatchID    int64
}

// Result is the outcome of one recommendation request. Built per request, never persisted.
type Result struct {
	Tags         []string
	Details      map[string]TagVote
	AutoSelect   []string
	Confidence   float64
	Summary      string
	Excerpts     []Excerpt
	TagFrequency []TagCount
}

// Round rounds x to the given number of decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// Truncate cuts s to at most n runes, appending "..." when it had to cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
