package llm_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/llm"
)

func TestHTTPClientComplete(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			require.NoError(t,
				json.NewDecoder(r.Body).Decode(&received))
			_ = json.NewEncoder(w).Encode(llm.Response{
				Text: "hello",
				Usage: llm.Usage{
					PromptTokens:     5,
					CompletionTokens: 2,
				},
			})
		}))
	defer server.Close()

	client := llm.NewHTTPClient(&config.ModelConfig{
		Endpoint:  server.URL,
		Model:     "builder-large",
		APIKey:    "secret",
		MaxTokens: 512,
	})

	res, err := client.Complete(t.Context(), &llm.Request{
		System: "be terse",
		Prompt: "say hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, int64(5), res.Usage.PromptTokens)

	assert.Equal(t, "builder-large", received["model"])
	assert.Equal(t, "be terse", received["system"])
	assert.Equal(t, "say hello", received["prompt"])

	// The configured cap applies when the request leaves max_tokens unset
	assert.Equal(t, float64(512), received["max_tokens"])
}

func TestHTTPClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
	defer server.Close()

	client := llm.NewHTTPClient(&config.ModelConfig{Endpoint: server.URL})
	_, err := client.Complete(t.Context(), &llm.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, llm.ErrHTTPError)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestHTTPClientEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(llm.Response{})
		}))
	defer server.Close()

	client := llm.NewHTTPClient(&config.ModelConfig{Endpoint: server.URL})
	_, err := client.Complete(t.Context(), &llm.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}
