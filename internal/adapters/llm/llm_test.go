package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingCompleter struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (c *capturingCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	return c.resp, c.err
}

func TestComplete_BuildsRequest(t *testing.T) {
	fake := &capturingCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: `{"title":"x"}`},
		}},
	}}
	c, err := New("", WithCompleter(fake), WithModel("gpt-4o-mini"))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "sys", "user text", 500)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, out)

	assert.Equal(t, "gpt-4o-mini", fake.lastReq.Model)
	assert.Equal(t, 500, fake.lastReq.MaxTokens)
	require.Len(t, fake.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.lastReq.Messages[0].Role)
	assert.Equal(t, "sys", fake.lastReq.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, fake.lastReq.Messages[1].Role)
	assert.Equal(t, "user text", fake.lastReq.Messages[1].Content)
}

func TestComplete_NoChoices(t *testing.T) {
	c, err := New("", WithCompleter(&capturingCompleter{}))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "sys", "user", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComplete_Error(t *testing.T) {
	boom := errors.New("boom")
	c, err := New("", WithCompleter(&capturingCompleter{err: boom}))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "sys", "user", 10)
	assert.ErrorIs(t, err, boom)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, errMissingAPIKey)
}

func TestComplete_AgainstServer(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `{"title":"Beach Volleyball","type":"social"}`,
				},
			}},
		})
	}))
	defer srv.Close()

	c, err := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithTimeout(5*time.Second))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "sys", "Beach volleyball Saturday", 500)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Beach Volleyball","type":"social"}`, out)
	assert.Equal(t, DefaultModel, got.Model)
}

func TestComplete_ServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := New("sk-bad", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "sys", "user", 10)
	require.Error(t, err)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestComplete_RateLimitHonoursContext(t *testing.T) {
	c, err := New("", WithCompleter(&capturingCompleter{}), WithRateLimit(0.001))
	require.NoError(t, err)
	for i := 0; i < DefaultBurst; i++ {
		_, err := c.Complete(context.Background(), "s", "u", 1)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "s", "u", 1)
	assert.Error(t, err)
}
