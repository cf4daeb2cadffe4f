package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return b
}

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*OpenAIClient, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Timeout: timeout}, nil)
	return c, &calls
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var got map[string]any
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatBody(`{"title":"Hello"}`))
	}, time.Second)

	out, err := c.Complete(context.Background(), Request{
		Model:       "gpt-4",
		Temperature: 0.7,
		Messages: []Message{
			{Role: RoleSystem, Content: "You write slides."},
			{Role: RoleUser, Content: "Make one."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hello"}`, out)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	assert.Equal(t, "gpt-4", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestCompleteServerErrorIsTypedAndNotRetried(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}, time.Second)

	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusInternalServerError, cerr.StatusCode)
	assert.Equal(t, "the generation service is unavailable", cerr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCompleteEmptyContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatBody("   "))
	}, time.Second)

	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "no content generated", cerr.Message)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestCompletePerCallDeadline(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var cerr *Error
	assert.True(t, errors.As(err, &cerr))
}
