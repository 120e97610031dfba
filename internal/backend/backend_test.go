package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0} // jpeg magic, good enough

func testRequest() Request {
	return Request{Model: "test-model", Prompt: "describe this", Timeout: 5 * time.Second}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestOllamaAnalyze(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"message":{"content":"  a sunny beach  "}}`)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	got, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "a sunny beach" {
		t.Errorf("description = %q, want trimmed content", got)
	}

	if gotBody["model"] != "test-model" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if gotBody["stream"] != false {
		t.Errorf("request stream = %v, want false", gotBody["stream"])
	}
	msgs := gotBody["messages"].([]any)
	msg := msgs[0].(map[string]any)
	images := msg["images"].([]any)
	if images[0] != base64.StdEncoding.EncodeToString(testImage) {
		t.Error("request image is not the base64 of the input bytes")
	}
}

func TestOllamaLooseParseFallback(t *testing.T) {
	// Duplicate keys: the strict decode chokes on the first occurrence, the
	// tree walk sees the last one.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"interim","message":{"content":"still here"}}`)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	got, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "still here" {
		t.Errorf("description = %q", got)
	}
}

func TestOllamaParseErrorWhenFallbackEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json at all`)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	_, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("err = %v, want ParseError", err)
	}
}

func TestOllamaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"   "}}`)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	_, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOllamaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	_, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if he.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", he.Status)
	}
	if !strings.Contains(he.Body, "model not found") {
		t.Errorf("body = %q, want server message", he.Body)
	}
}

func TestOllamaTransportError(t *testing.T) {
	c := &OllamaClient{hc: &http.Client{}, logger: quietLogger()}
	// Closed port: connection refused.
	_, err := c.Analyze(context.Background(), "http://127.0.0.1:1", testImage, testRequest())
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if he.Status != 0 {
		t.Errorf("status = %d, want 0 for transport failure", he.Status)
	}
}

func TestOllamaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := &OllamaClient{hc: srv.Client(), logger: quietLogger()}
	req := testRequest()
	req.Timeout = -900 * time.Millisecond // padded ceiling of 100ms
	_, err := c.Analyze(context.Background(), srv.URL, testImage, req)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestOpenAICompatAnalyze(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"a city at night"}}]}`)
	}))
	defer srv.Close()

	c := &OpenAICompatClient{hc: srv.Client(), apiKey: "sk-test", logger: quietLogger()}
	got, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "a city at night" {
		t.Errorf("description = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want bearer credential", gotAuth)
	}

	msgs := gotBody["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	if parts[0].(map[string]any)["type"] != "text" {
		t.Error("first content part should be the prompt text")
	}
	url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("image_url = %q, want data URL", url)
	}
}

func TestOpenAICompatNoAuthHeaderWithoutKey(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := &OpenAICompatClient{hc: srv.Client(), logger: quietLogger()}
	if _, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sawAuth {
		t.Error("unauthenticated call should not carry an Authorization header")
	}
}

func TestOpenAICompatLooseParseFallback(t *testing.T) {
	// A malformed trailing choice breaks the strict decode of the slice;
	// the walk only needs the first element.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"rescued"}},{"message":"truncated"}]}`)
	}))
	defer srv.Close()

	c := &OpenAICompatClient{hc: srv.Client(), logger: quietLogger()}
	got, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "rescued" {
		t.Errorf("description = %q", got)
	}
}

func TestOpenAICompatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := &OpenAICompatClient{hc: srv.Client(), logger: quietLogger()}
	_, err := c.Analyze(context.Background(), srv.URL, testImage, testRequest())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestNewSelectsVariant(t *testing.T) {
	a, err := New(KindOllama, "", nil, quietLogger())
	if err != nil {
		t.Fatalf("New(ollama): %v", err)
	}
	if _, ok := a.(*OllamaClient); !ok {
		t.Errorf("New(ollama) = %T", a)
	}

	a, err = New(KindOpenAICompat, "key", nil, quietLogger())
	if err != nil {
		t.Fatalf("New(llamacpp): %v", err)
	}
	if _, ok := a.(*OpenAICompatClient); !ok {
		t.Errorf("New(llamacpp) = %T", a)
	}

	if _, err := New(Kind("vllm"), "", nil, quietLogger()); err == nil {
		t.Error("New with unknown kind should fail")
	}
}

func TestLooseField(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":" text "}}]}`)
	if got := looseField(raw, "choices", 0, "message", "content"); got != "text" {
		t.Errorf("looseField = %q", got)
	}
	if got := looseField(raw, "choices", 1, "message", "content"); got != "" {
		t.Errorf("out-of-range index should yield empty, got %q", got)
	}
	if got := looseField([]byte(`null`), "message"); got != "" {
		t.Errorf("null tree should yield empty, got %q", got)
	}
}
