// Package backend talks to remote inference endpoints that turn an image
// into a textual description.
//
// Two wire shapes are supported: the Ollama chat API and the
// OpenAI-compatible chat completions API served by llama.cpp and friends.
// Call sites depend only on the Analyzer interface; the variant is chosen
// once at construction from configuration.
package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Kind selects the wire shape of a backend endpoint.
type Kind string

const (
	// KindOllama is the native Ollama chat API (POST /api/chat).
	KindOllama Kind = "ollama"
	// KindOpenAICompat is the OpenAI-style chat completions API
	// (POST /v1/chat/completions), as served by llama.cpp.
	KindOpenAICompat Kind = "llamacpp"
)

// Request carries the per-call parameters shared by both variants.
type Request struct {
	Model   string
	Prompt  string
	Timeout time.Duration
}

// Analyzer sends one image to one host and returns its description.
//
// Implementations classify failures via the errors in errors.go so the
// pipeline can retry across hosts and the report can count outcomes.
type Analyzer interface {
	Analyze(ctx context.Context, host string, image []byte, req Request) (string, error)
}

// New constructs the Analyzer for the configured kind. The API key is only
// used by the OpenAI-compatible variant; an empty key means unauthenticated
// calls are attempted as-is.
func New(kind Kind, apiKey string, hc *http.Client, logger *log.Logger) (Analyzer, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}
	switch kind {
	case KindOllama:
		return &OllamaClient{hc: hc, logger: logger}, nil
	case KindOpenAICompat:
		return &OpenAICompatClient{hc: hc, apiKey: apiKey, logger: logger}, nil
	default:
		return nil, errors.New("unknown backend kind: " + string(kind))
	}
}

func encodeImage(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}

// callTimeout pads the request timeout by one second so the backend's own
// deadline fires first when scheduling jitter would otherwise race it.
func callTimeout(req Request) time.Duration {
	return req.Timeout + time.Second
}
