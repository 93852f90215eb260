package models

import "encoding/json"

// Source is a citation returned alongside an answer.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult is the canonical answer shape every upstream reply is mapped into.
// Text is always set (possibly to a fallback message); Sources is never nil.
type SearchResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// NewSearchResult returns a result with a non-nil Sources slice.
func NewSearchResult(text string, sources []Source) SearchResult {
	if sources == nil {
		sources = []Source{}
	}
	return SearchResult{Text: text, Sources: sources}
}

// RawAnswer is an upstream reply body before normalization.
// JSON is set when the body parsed as JSON; otherwise Text holds the body verbatim.
type RawAnswer struct {
	JSON json.RawMessage
	Text string
}

// IsJSON reports whether the body was valid JSON.
func (r RawAnswer) IsJSON() bool {
	return r.JSON != nil
}
