package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

const okCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gemini-test",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from Gemini"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
}`

// fakeGenAI answers chat completion calls and records request bodies.
type fakeGenAI struct {
	mu     sync.Mutex
	bodies []map[string]any
	auth   []string
	status int
	body   string
	delay  time.Duration
}

func (f *fakeGenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.bodies = append(f.bodies, payload)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	status, body, delay := f.status, f.body, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status == 0 {
		status = http.StatusOK
	}
	if body == "" {
		body = okCompletion
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeGenAI) lastBody(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.bodies)
	return f.bodies[len(f.bodies)-1]
}

func newTestAdapter(t *testing.T, fake *fakeGenAI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return New(Config{
		Model:   "gemini-test",
		BaseURL: srv.URL + "/v1beta/openai",
		Lookup: func(k string) (string, bool) {
			if k == backend.EnvGoogleAPIKey {
				return "test-key", true
			}
			return "", false
		},
	})
}

func TestAdapter_ForwardsLabelsAsMetadata(t *testing.T) {
	fake := &fakeGenAI{}
	a := newTestAdapter(t, fake)

	effective := labels.MustNew(map[string]string{"team": "prod", "region": "us-west-1"})
	resp, err := a.Invoke(context.Background(), effective, "Say hello")
	require.NoError(t, err)

	assert.Equal(t, "Hello from Gemini", resp.Text)
	require.NotNil(t, resp.Forwarded)
	assert.True(t, effective.Equal(resp.Forwarded))

	body := fake.lastBody(t)
	assert.Equal(t, map[string]any{"team": "prod", "region": "us-west-1"}, body["metadata"])
	assert.Equal(t, "gemini-test", body["model"])

	fake.mu.Lock()
	assert.Equal(t, "Bearer test-key", fake.auth[0])
	fake.mu.Unlock()
}

func TestAdapter_EmptyLabelsNotSent(t *testing.T) {
	fake := &fakeGenAI{}
	a := newTestAdapter(t, fake)

	resp, err := a.Invoke(context.Background(), labels.Empty(), "hi")
	require.NoError(t, err)
	require.NotNil(t, resp.Forwarded)
	assert.Equal(t, 0, resp.Forwarded.Len())
	_, present := fake.lastBody(t)["metadata"]
	assert.False(t, present)
}

func TestAdapter_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   backend.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, backend.KindAuth},
		{"forbidden", http.StatusForbidden, backend.KindAuth},
		{"rate limited", http.StatusTooManyRequests, backend.KindTransient},
		{"server error", http.StatusInternalServerError, backend.KindTransient},
		{"bad request", http.StatusBadRequest, backend.KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGenAI{status: tt.status, body: `{"error":{"message":"nope","type":"invalid_request_error"}}`}
			a := newTestAdapter(t, fake)

			_, err := a.Invoke(context.Background(), labels.Empty(), "hi")
			require.Error(t, err)
			assert.Equal(t, tt.want, backend.KindOf(err))
		})
	}
}

func TestAdapter_MalformedBodyIsProtocolError(t *testing.T) {
	fake := &fakeGenAI{body: `not json`}
	a := newTestAdapter(t, fake)

	_, err := a.Invoke(context.Background(), labels.Empty(), "hi")
	require.Error(t, err)
	assert.Equal(t, backend.KindProtocol, backend.KindOf(err))
}

func TestAdapter_DeadlineIsTransient(t *testing.T) {
	fake := &fakeGenAI{delay: 2 * time.Second}
	a := newTestAdapter(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Invoke(ctx, labels.Empty(), "hi")
	require.Error(t, err)
	assert.Equal(t, backend.KindTransient, backend.KindOf(err))
}

func TestAdapter_Configured(t *testing.T) {
	a := New(Config{Lookup: func(string) (string, bool) { return "", false }})
	assert.False(t, a.Configured())
	assert.Equal(t, backend.GenAI, a.Identity())
	assert.Equal(t, DefaultBaseURL, a.cfg.BaseURL)
	assert.Equal(t, DefaultModel, a.cfg.Model)
}

func TestAttachLabels(t *testing.T) {
	body := []byte(`{"model":"m","messages":[]}`)

	out, sent := attachLabels(body, labels.MustNew(map[string]string{"a.b": "v-1"}))
	var payload map[string]any
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.Equal(t, map[string]any{"a.b": "v-1"}, payload["metadata"])
	assert.Equal(t, map[string]string{"a.b": "v-1"}, sent.Map())

	out, sent = attachLabels([]byte("garbage"), labels.MustNew(map[string]string{"a": "1"}))
	assert.Equal(t, "garbage", string(out))
	assert.Nil(t, sent)
}

func TestAttachLabels_KeepsOtherFieldsVerbatim(t *testing.T) {
	body := []byte(`{"seed":9007199254740993,"temperature":0.10,"messages":[{"role":"user","content":"hi"}]}`)

	out, sent := attachLabels(body, labels.MustNew(map[string]string{"team": "prod"}))
	require.NotNil(t, sent)
	assert.Contains(t, string(out), `"seed":9007199254740993`)
	assert.Contains(t, string(out), `"temperature":0.10`)
	assert.Contains(t, string(out), `"metadata":{"team":"prod"}`)
	assert.Contains(t, string(out), `"messages":[{"role":"user","content":"hi"}]`)
}

func TestAttachLabels_NullBody(t *testing.T) {
	out, sent := attachLabels([]byte("null"), labels.MustNew(map[string]string{"a": "1"}))
	assert.Equal(t, "null", string(out))
	assert.Nil(t, sent)
}

func TestLabelTransport_PassThroughWithoutCall(t *testing.T) {
	fake := &fakeGenAI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := &http.Client{Transport: &labelTransport{base: http.DefaultTransport}}
	resp, err := client.Post(srv.URL+"/chat/completions", "application/json", strings.NewReader(`{"model":"m"}`))
	require.NoError(t, err)
	resp.Body.Close()

	_, present := fake.lastBody(t)["metadata"]
	assert.False(t, present)
}
