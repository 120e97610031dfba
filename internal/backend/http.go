package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failing response we keep for display.
const maxErrorBody = 4 << 10

// postJSON sends one JSON POST and returns the raw response body.
// Failures come back pre-classified: deadline expiry is ErrRequestTimeout,
// transport trouble is HTTPError with Status 0, a non-2xx status is
// HTTPError with the status and a bounded slice of the body.
func postJSON(ctx context.Context, hc *http.Client, url string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &HTTPError{Status: 0, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrRequestTimeout
		}
		return nil, &HTTPError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrRequestTimeout
		}
		return nil, &HTTPError{Status: 0, Body: err.Error()}
	}
	return raw, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// looseField walks a decoded JSON tree by field name and index, returning
// the trimmed string at the end of the path. Backends evolve their response
// schemas; when the strict decode fails this walk gives them the benefit of
// the doubt before we report a parse failure.
func looseField(raw []byte, path ...any) string {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return ""
	}
	node := tree
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := node.(map[string]any)
			if !ok {
				return ""
			}
			node = obj[key]
		case int:
			arr, ok := node.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return ""
			}
			node = arr[key]
		default:
			return ""
		}
	}
	text, _ := node.(string)
	return strings.TrimSpace(text)
}

func trimHost(host string) string {
	return strings.TrimRight(host, "/")
}
