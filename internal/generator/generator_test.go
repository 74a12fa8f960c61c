package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"guildkeeper/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcGenerator func(ctx context.Context, prompt string) (string, error)

func (f funcGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestGuardPassesPromptThrough(t *testing.T) {
	var got string
	guard := NewGuard(funcGenerator(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "  sunny  ", nil
	}), "test", time.Second, 0)

	text, err := guard.Generate(context.Background(), "what is the weather?")
	require.NoError(t, err)
	assert.Equal(t, "sunny", text)
	assert.Equal(t, "what is the weather?", got)
}

func TestGuardTimeout(t *testing.T) {
	guard := NewGuard(funcGenerator(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), "test", 20*time.Millisecond, 0)

	_, err := guard.Generate(context.Background(), "slow?")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGuardBackendAndEmpty(t *testing.T) {
	boom := errors.New("quota exceeded")
	guard := NewGuard(funcGenerator(func(context.Context, string) (string, error) {
		return "", boom
	}), "test", time.Second, 0)
	_, err := guard.Generate(context.Background(), "x?")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, KindBackend, KindOf(err))

	empty := NewGuard(funcGenerator(func(context.Context, string) (string, error) {
		return "   ", nil
	}), "test", time.Second, 0)
	_, err = empty.Generate(context.Background(), "x?")
	require.Error(t, err)
	assert.Equal(t, KindEmpty, KindOf(err))
}

func TestGuardConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	var inFlight, peak atomic.Int32
	guard := NewGuard(funcGenerator(func(ctx context.Context, _ string) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return "ok", nil
	}), "test", time.Second, 1)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := guard.Generate(context.Background(), "q?")
			done <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), peak.Load())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindBackend, KindOf(errors.New("x")))
	assert.Equal(t, "timeout", KindTimeout.String())
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "what is the weather?", body.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Sunny."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	guard, err := New(context.Background(), config.GeneratorConfig{
		Provider:       config.ProviderOpenAI,
		APIKey:         "sk-test",
		BaseURL:        server.URL + "/v1",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)

	text, err := guard.Generate(context.Background(), "what is the weather?")
	require.NoError(t, err)
	assert.Equal(t, "Sunny.", text)
}

func TestOpenAIBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
	}))
	defer server.Close()

	guard, err := New(context.Background(), config.GeneratorConfig{
		Provider: config.ProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  server.URL + "/v1",
	})
	require.NoError(t, err)

	_, err = guard.Generate(context.Background(), "q?")
	require.Error(t, err)
	assert.Equal(t, KindBackend, KindOf(err))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), config.GeneratorConfig{Provider: config.ProviderGemini})
	require.Error(t, err)
}

func TestFooter(t *testing.T) {
	assert.Equal(t, "Powered by Google's Gemini AI", Footer(config.ProviderGemini))
	assert.Equal(t, "Powered by OpenAI", Footer(config.ProviderOpenAI))
}
