package generation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Sure: {"a":{"b":2}} hope this helps {"c":3}`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"a":"}{"} tail`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"say \"}\""}`, `{"a":"say \"}\""}`, true},
		{"nested with spacing", `{"a":{"b":1} }x`, `{"a":{"b":1} }`, true},
		{"no object", `nothing here`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractObjectUnbalancedFallsBackToLastBrace(t *testing.T) {
	got, ok := extractObject(`{"a":{"b":1} and more }`)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":1} and more }`, got)

	got, ok = extractObject(`{"a": {"b": 1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}`, got)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, `{"a": "b"}`, normalize("{“a”: ”b“,\n}"))
	assert.Equal(t, `{"a": [1, 2]}`, normalize(`{"a": [1, 2,  ]}`))
}

func TestDecodeObject(t *testing.T) {
	fields, err := decodeObject("```json\n{“title”: “Hi”,\n \"notes\": \"n\",\n}\n```")
	require.NoError(t, err)
	v, err := requireStrings(fields, "title", "notes")
	require.NoError(t, err)
	assert.Equal(t, "Hi", v["title"])

	_, err = requireStrings(fields, "subtitle")
	assert.ErrorIs(t, err, ErrMalformedOutput)

	_, err = decodeObject("[1, 2]")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &ValidationError{Message: "Please enter a topic name"}, http.StatusBadRequest},
		{"malformed", malformed("op", errors.New("bad json")), http.StatusUnprocessableEntity},
		{"upstream", &Error{Op: "op", Message: "the generation service is unavailable"}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := HTTPStatus(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}
