package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// OpenAICompatClient speaks the OpenAI chat completions shape that llama.cpp
// serves. The image is embedded as a data URL content part. When an API key
// is configured it is attached as a bearer credential; without one the call
// goes out unauthenticated.
type OpenAICompatClient struct {
	hc     *http.Client
	apiKey string
	logger *log.Logger
}

type oaContentPart struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *oaImageURL `json:"image_url,omitempty"`
}

type oaImageURL struct {
	URL string `json:"url"`
}

type oaMessage struct {
	Role    string          `json:"role"`
	Content []oaContentPart `json:"content"`
}

type oaRequest struct {
	Model    string      `json:"model"`
	Messages []oaMessage `json:"messages"`
	Stream   bool        `json:"stream"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze implements Analyzer against host's /v1/chat/completions endpoint.
func (c *OpenAICompatClient) Analyze(ctx context.Context, host string, image []byte, req Request) (string, error) {
	body, err := json.Marshal(oaRequest{
		Model: req.Model,
		Messages: []oaMessage{{
			Role: "user",
			Content: []oaContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &oaImageURL{URL: "data:image/jpeg;base64," + encodeImage(image)}},
			},
		}},
		Stream: false,
	})
	if err != nil {
		return "", &ParseError{Err: err}
	}

	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout(req))
	defer cancel()

	url := trimHost(host) + "/v1/chat/completions"
	c.logger.Debug("chat completions request", "url", url, "model", req.Model, "auth", c.apiKey != "")
	raw, err := postJSON(callCtx, c.hc, url, body, header)
	if err != nil {
		return "", err
	}

	var resp oaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		if text := looseField(raw, "choices", 0, "message", "content"); text != "" {
			c.logger.Debug("strict parse failed, loose parse succeeded", "error", err)
			return text, nil
		}
		return "", &ParseError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	if description == "" {
		return "", ErrEmptyResponse
	}
	return description, nil
}
