package nlu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1730366400,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 12,
			"total_tokens":      22,
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "gpt-4o-mini",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		LogLevel:   "error",
	}
}

func TestClientChat(t *testing.T) {
	var (
		mu       sync.Mutex
		lastBody []byte
		lastPath string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		lastPath = r.URL.Path
		lastBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Hello from test")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "Hello from test", resp.Choices[0].Message.Content)
	require.Equal(t, 22, resp.Usage.TotalTokens)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "/chat/completions", lastPath)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(lastBody, &payload))
	require.Equal(t, "gpt-4o-mini", payload["model"])
}

func TestClientChatRetriesServerError(t *testing.T) {
	var calls int
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("second try")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL),
		WithHTTPClient(server.Client()),
		WithRetryHandler(NewRetryHandler(RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond})))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "second try", resp.Choices[0].Message.Content)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls)
}

func TestClientChatStructured(t *testing.T) {
	var lastBody []byte
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastBody, _ = io.ReadAll(r.Body)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"answer":"yes","score":3}`)))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	defer client.Close()

	var out struct {
		Answer string `json:"answer"`
		Score  int    `json:"score"`
	}
	err = client.ChatStructured(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "structured please"}},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, "yes", out.Answer)
	require.Equal(t, 3, out.Score)

	mu.Lock()
	defer mu.Unlock()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(lastBody, &payload))
	format, ok := payload["response_format"].(map[string]any)
	require.True(t, ok, "request must carry a response_format")
	require.Equal(t, "json_schema", format["type"])
}

func TestClientRequiresMessages(t *testing.T) {
	client, err := NewClient(testConfig("https://example.invalid"))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "https://example.com"})
	require.Error(t, err)

	_, err = NewClient(nil)
	require.Error(t, err)
}
