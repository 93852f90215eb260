// Package normalize maps the loosely shaped replies of a prediction endpoint
// onto the canonical models.SearchResult.
package normalize

import (
	"bytes"
	"encoding/json"

	"github.com/hyperjump/kiku/internal/models"
)

// Shape is the recognized form of an upstream reply.
type Shape int

const (
	// ShapePlain is a non-JSON body or a bare JSON string.
	ShapePlain Shape = iota
	// ShapeText is an object carrying the answer under "text".
	ShapeText
	// ShapeAnswer is an object carrying the answer under "answer".
	ShapeAnswer
	// ShapeResponse is an object carrying the answer under "response".
	ShapeResponse
	// ShapeOpaque is anything else; the whole payload becomes the answer.
	ShapeOpaque
)

func (s Shape) String() string {
	switch s {
	case ShapePlain:
		return "plain"
	case ShapeText:
		return "text"
	case ShapeAnswer:
		return "answer"
	case ShapeResponse:
		return "response"
	default:
		return "opaque"
	}
}

// answerKeys are probed in priority order.
var answerKeys = []struct {
	key   string
	shape Shape
}{
	{"text", ShapeText},
	{"answer", ShapeAnswer},
	{"response", ShapeResponse},
}

// Payload is a decoded upstream reply.
type Payload struct {
	Shape   Shape
	Text    string
	Sources []models.Source
}

// Result converts the payload to the canonical result.
func (p Payload) Result() models.SearchResult {
	return models.NewSearchResult(p.Text, p.Sources)
}

// Decode classifies raw into one of the known shapes. It never fails: anything
// unrecognized becomes ShapeOpaque with the compact JSON as its text.
func Decode(raw models.RawAnswer) Payload {
	if !raw.IsJSON() {
		return Payload{Shape: ShapePlain, Text: raw.Text}
	}

	if isNull(raw.JSON) {
		return Payload{Shape: ShapeOpaque, Text: "null"}
	}

	var s string
	if err := json.Unmarshal(raw.JSON, &s); err == nil {
		return Payload{Shape: ShapePlain, Text: s}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw.JSON, &obj); err == nil && obj != nil {
		for _, k := range answerKeys {
			v, ok := obj[k.key]
			if !ok || isNull(v) {
				continue
			}
			return Payload{Shape: k.shape, Text: valueText(v), Sources: decodeSources(obj["sources"])}
		}
	}

	return Payload{Shape: ShapeOpaque, Text: compact(raw.JSON)}
}

// Normalize returns the canonical result for raw.
func Normalize(raw models.RawAnswer) models.SearchResult {
	return Decode(raw).Result()
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// valueText returns a JSON string value as-is and any other value as compact JSON.
func valueText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return compact(v)
}

// decodeSources keeps the object elements of a sources array in order and drops the rest.
// Non-string fields are kept as compact JSON.
func decodeSources(v json.RawMessage) []models.Source {
	sources := []models.Source{}
	if len(v) == 0 {
		return sources
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return sources
	}
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		sources = append(sources, models.Source{
			Title:   fieldText(fields, "title"),
			URL:     fieldText(fields, "url"),
			Snippet: fieldText(fields, "snippet"),
		})
	}
	return sources
}

func fieldText(fields map[string]json.RawMessage, key string) string {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return ""
	}
	return valueText(v)
}

func compact(v json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}
