package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/camwood/camwood-site/backend/internal/config"
	"github.com/camwood/camwood-site/backend/internal/model/chat"
)

const okBody = `{"candidates":[{"content":{"parts":[{"text":"Decision engines, explained."}]}}]}`

type fakeClock struct {
	mu     sync.Mutex
	slept  []time.Duration
	failOn int
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	if c.failOn > 0 && len(c.slept) == c.failOn {
		return context.Canceled
	}
	return nil
}

func (c *fakeClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

func newTestResponder(t *testing.T, baseURL, apiKey string, clock Sleeper) *Responder {
	t.Helper()
	return NewResponder(config.AssistantConfig{
		APIKey:         apiKey,
		Model:          "test-model",
		BaseURL:        baseURL,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		RequestTimeout: 5 * time.Second,
	}, WithSleeper(clock), WithLogger(zaptest.NewLogger(t)))
}

func TestGenerateWithoutCredentialMakesNoCalls(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	responder := newTestResponder(t, server.URL, "", &fakeClock{})
	text, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.False(t, responder.Enabled())
}

func TestGenerateRetriesRateLimitWithBackoff(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, server.URL, "key", clock)
	text, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	require.True(t, ok)
	assert.Equal(t, "Decision engines, explained.", text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
	assert.GreaterOrEqual(t, clock.total(), 3*time.Second)
}

func TestGenerateServerErrorExhaustsAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, server.URL, "key", clock)
	text, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.Empty(t, text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
}

func TestGenerateTransportFailureIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, baseURL, "key", clock)
	_, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.Len(t, clock.slept, 2)
}

func TestGenerateMalformedSuccessIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, server.URL, "key", clock)
	_, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Empty(t, clock.slept)
}

func TestGenerateNonJSONSuccessIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte("<html>bad gateway</html>"))
			return
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, server.URL, "key", clock)
	text, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	require.True(t, ok)
	assert.Equal(t, "Decision engines, explained.", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second}, clock.slept)
}

func TestGenerateWrongShapeSuccessIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"candidates":"nope"}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	responder := newTestResponder(t, server.URL, "key", clock)
	_, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Empty(t, clock.slept)
}

func TestGenerateStopsWhenBackoffCancelled(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	clock := &fakeClock{failOn: 1}
	responder := newTestResponder(t, server.URL, "key", clock)
	_, ok := responder.Generate(context.Background(), "hello", DefaultSystemInstruction, nil)

	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateSendsHistoryAndInstruction(t *testing.T) {
	var got Request
	var path, key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	history := []chat.Message{
		{Text: "Tell me something new", Kind: chat.KindUser},
		{Text: MarkGenerated("Earlier insight"), IsFromAssistant: true, Kind: chat.KindGenerated},
		{Text: "Here are your options", IsFromAssistant: true, Kind: chat.KindFollowUp},
	}

	responder := newTestResponder(t, server.URL, "secret", &fakeClock{})
	_, ok := responder.Generate(context.Background(), "And then?", "be brief", history)
	require.True(t, ok)

	assert.Equal(t, "/models/test-model:generateContent", path)
	assert.Equal(t, "secret", key)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be brief", got.SystemInstruction.Parts[0].Text)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, Content{Role: "user", Parts: []Part{{Text: "Tell me something new"}}}, got.Contents[0])
	assert.Equal(t, Content{Role: "model", Parts: []Part{{Text: "Here are your options"}}}, got.Contents[1])
	assert.Equal(t, Content{Role: "user", Parts: []Part{{Text: "And then?"}}}, got.Contents[2])
	for _, c := range got.Contents {
		assert.NotContains(t, c.Parts[0].Text, "Earlier insight")
	}
}

func TestBuildRequestSkipsGeneratedAnswers(t *testing.T) {
	history := []chat.Message{
		{Text: "q1", Kind: chat.KindUser},
		{Text: MarkGenerated("prior remote answer"), IsFromAssistant: true, Kind: chat.KindGenerated},
		{Text: MarkGenerated("unlabelled remote answer"), IsFromAssistant: true},
	}

	req := BuildRequest("q2", "sys", history)

	require.Len(t, req.Contents, 2)
	assert.Equal(t, Content{Role: "user", Parts: []Part{{Text: "q1"}}}, req.Contents[0])
	assert.Equal(t, Content{Role: "user", Parts: []Part{{Text: "q2"}}}, req.Contents[1])
}

func TestIsGenerated(t *testing.T) {
	assert.True(t, IsGenerated(MarkGenerated("x")))
	assert.False(t, IsGenerated("Plain answer"))
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
		want ParseResult
	}{
		{"success", okBody, ParseResult{Kind: Success, Text: "Decision engines, explained."}},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, ParseResult{Kind: Empty}},
		{"no candidates", `{}`, ParseResult{Kind: Malformed}},
		{"no content", `{"candidates":[{}]}`, ParseResult{Kind: Malformed}},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`, ParseResult{Kind: Malformed}},
		{"part without text", `{"candidates":[{"content":{"parts":[{}]}}]}`, ParseResult{Kind: Malformed}},
		{"not json", `<html>`, ParseResult{Kind: Malformed}},
		{"wrong shape", `{"candidates":"nope"}`, ParseResult{Kind: Malformed}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseResponse([]byte(tc.body)))
		})
	}
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "malformed", Malformed.String())
}
