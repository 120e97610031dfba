package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// OllamaClient speaks the native Ollama chat API. Images ride along as a
// base64 array on the user message.
type OllamaClient struct {
	hc     *http.Client
	logger *log.Logger
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Analyze implements Analyzer against host's /api/chat endpoint.
func (c *OllamaClient) Analyze(ctx context.Context, host string, image []byte, req Request) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model: req.Model,
		Messages: []ollamaMessage{
			{Role: "user", Content: req.Prompt, Images: []string{encodeImage(image)}},
		},
		Stream: false,
	})
	if err != nil {
		return "", &ParseError{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout(req))
	defer cancel()

	url := trimHost(host) + "/api/chat"
	c.logger.Debug("ollama request", "url", url, "model", req.Model)
	raw, err := postJSON(callCtx, c.hc, url, body, nil)
	if err != nil {
		return "", err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		// Schema drift happens; walk the tree before giving up.
		if text := looseField(raw, "message", "content"); text != "" {
			c.logger.Debug("ollama strict parse failed, loose parse succeeded", "error", err)
			return text, nil
		}
		return "", &ParseError{Err: err}
	}

	description := strings.TrimSpace(resp.Message.Content)
	if description == "" {
		return "", ErrEmptyResponse
	}
	return description, nil
}
