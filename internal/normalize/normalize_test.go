package normalize

import (
	"encoding/json"
	"testing"

	"github.com/hyperjump/kiku/internal/models"
	"github.com/stretchr/testify/assert"
)

func jsonAnswer(s string) models.RawAnswer {
	return models.RawAnswer{JSON: json.RawMessage(s)}
}

func TestNormalize_TextWithSources(t *testing.T) {
	got := Normalize(jsonAnswer(`{"text": "A", "sources": [{"title":"S"}]}`))
	assert.Equal(t, "A", got.Text)
	assert.Equal(t, []models.Source{{Title: "S"}}, got.Sources)
}

func TestNormalize_PlainText(t *testing.T) {
	got := Normalize(models.RawAnswer{Text: "hello"})
	assert.Equal(t, "hello", got.Text)
	assert.NotNil(t, got.Sources)
	assert.Empty(t, got.Sources)
}

func TestNormalize_BareJSONString(t *testing.T) {
	p := Decode(jsonAnswer(`"hello"`))
	assert.Equal(t, ShapePlain, p.Shape)
	assert.Equal(t, "hello", p.Text)
	assert.Empty(t, p.Result().Sources)
}

func TestNormalize_UnrecognizedObject(t *testing.T) {
	p := Decode(jsonAnswer(`{"foo": "bar"}`))
	assert.Equal(t, ShapeOpaque, p.Shape)
	assert.Equal(t, `{"foo":"bar"}`, p.Text)
	assert.Empty(t, p.Result().Sources)
}

func TestDecode_KeyPriority(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape Shape
		wantText  string
	}{
		{"text wins over answer", `{"answer":"B","text":"A"}`, ShapeText, "A"},
		{"answer wins over response", `{"response":"C","answer":"B"}`, ShapeAnswer, "B"},
		{"response alone", `{"response":"C"}`, ShapeResponse, "C"},
		{"null text falls through", `{"text":null,"answer":"B"}`, ShapeAnswer, "B"},
		{"empty string still counts", `{"text":"","answer":"B"}`, ShapeText, ""},
		{"non-string value rendered as json", `{"text":{"a":1}}`, ShapeText, `{"a":1}`},
		{"number value", `{"answer":42}`, ShapeAnswer, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Decode(jsonAnswer(tt.body))
			assert.Equal(t, tt.wantShape, p.Shape)
			assert.Equal(t, tt.wantText, p.Text)
		})
	}
}

func TestDecode_Sources(t *testing.T) {
	t.Run("order and optional fields kept", func(t *testing.T) {
		p := Decode(jsonAnswer(`{"text":"x","sources":[{"title":"B","url":"https://b"},{"title":"A","snippet":"s"}]}`))
		assert.Equal(t, []models.Source{
			{Title: "B", URL: "https://b"},
			{Title: "A", Snippet: "s"},
		}, p.Sources)
	})
	t.Run("non-object elements dropped", func(t *testing.T) {
		p := Decode(jsonAnswer(`{"text":"x","sources":["nope",1,{"title":"ok"},null]}`))
		assert.Equal(t, []models.Source{{Title: "ok"}}, p.Sources)
	})
	t.Run("non-string fields keep the source", func(t *testing.T) {
		p := Decode(jsonAnswer(`{"text":"x","sources":[{"title":"S1","url":"https://a"},{"title":"S2","metadata":{"page":3},"snippet":7,"url":null}]}`))
		assert.Equal(t, []models.Source{
			{Title: "S1", URL: "https://a"},
			{Title: "S2", Snippet: "7"},
		}, p.Sources)
	})
	t.Run("non-array sources yields empty", func(t *testing.T) {
		p := Decode(jsonAnswer(`{"text":"x","sources":"nope"}`))
		assert.NotNil(t, p.Sources)
		assert.Empty(t, p.Sources)
	})
	t.Run("missing sources yields empty", func(t *testing.T) {
		p := Decode(jsonAnswer(`{"answer":"x"}`))
		assert.NotNil(t, p.Result().Sources)
		assert.Empty(t, p.Sources)
	})
}

func TestDecode_NeverFails(t *testing.T) {
	bodies := []string{`null`, `[]`, `[1,2]`, `true`, `3.5`, `{}`, `{"sources":[{"title":"S"}]}`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			got := Normalize(jsonAnswer(body))
			assert.NotEmpty(t, got.Text)
			assert.NotNil(t, got.Sources)
			assert.Empty(t, got.Sources)
		})
	}
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "plain", ShapePlain.String())
	assert.Equal(t, "opaque", ShapeOpaque.String())
}
