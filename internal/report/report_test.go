package report

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pixelframe/imgwatch/internal/asset"
	"github.com/pixelframe/imgwatch/internal/backend"
	"github.com/pixelframe/imgwatch/internal/pipeline"
	"github.com/pixelframe/imgwatch/internal/watcher"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"success", nil, ClassSucceeded},
		{"already_processed", fmt.Errorf("%w: x.jpg", pipeline.ErrAlreadyProcessed), ClassSkipped},
		{"invalid_uuid", fmt.Errorf("%w: x.jpg", asset.ErrInvalidUUID), ClassSkipped},
		{"empty_file", fmt.Errorf("%w: x.jpg", pipeline.ErrEmptyFile), ClassFailed},
		{"http_error", &backend.HTTPError{Status: 500, Body: "boom"}, ClassFailed},
		{"timeout", backend.ErrRequestTimeout, ClassFailed},
		{"store_error", &pipeline.StoreError{Err: errors.New("down")}, ClassFailed},
		{"write_timeout", &watcher.WriteTimeoutError{Filename: "x.jpg", Timeout: time.Second}, ClassFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(pipeline.Outcome{Filename: "x.jpg", Err: tt.err}); got != tt.want {
				t.Errorf("Classify = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderCountsAndSorting(t *testing.T) {
	outcomes := []pipeline.Outcome{
		{Filename: "c.jpg", Description: "a cat"},
		{Filename: "a.jpg", Err: fmt.Errorf("%w: a.jpg", pipeline.ErrAlreadyProcessed)},
		{Filename: "b.jpg", Err: &backend.HTTPError{Status: 502, Body: "bad gateway"}},
	}

	var buf strings.Builder
	s := Render(&buf, outcomes, true)

	if s.Succeeded != 1 || s.Skipped != 1 || s.Failed != 1 || s.Total() != 3 {
		t.Errorf("summary = %+v", s)
	}

	out := buf.String()
	ia, ib, ic := strings.Index(out, "[a.jpg]"), strings.Index(out, "[b.jpg]"), strings.Index(out, "[c.jpg]")
	if ia < 0 || ib < 0 || ic < 0 || !(ia < ib && ib < ic) {
		t.Errorf("sorted output order wrong:\n%s", out)
	}
	if !strings.Contains(out, "a cat") {
		t.Error("success line should carry the description")
	}
	if !strings.Contains(out, "skipped:    1") {
		t.Error("statistics should include the skipped count")
	}
	if !strings.Contains(out, "Recommendations") {
		t.Error("failures should trigger recommendations")
	}
}

func TestRenderNoSkippedLineWhenNone(t *testing.T) {
	var buf strings.Builder
	Render(&buf, []pipeline.Outcome{{Filename: "a.jpg", Description: "d"}}, false)
	if strings.Contains(buf.String(), "skipped:") {
		t.Error("skipped count should be omitted when zero")
	}
	if strings.Contains(buf.String(), "Recommendations") {
		t.Error("no recommendations without failures")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&backend.HTTPError{Status: 0, Body: "connection refused"}, "unreachable"},
		{&backend.HTTPError{Status: 500, Body: "ise"}, "HTTP 500"},
		{&pipeline.StoreError{Err: errors.New("no route")}, "database error"},
		{&watcher.WriteTimeoutError{Filename: "f", Timeout: 30 * time.Second}, "still being written"},
		{errors.New("anything else"), "anything else"},
	}
	for _, tt := range tests {
		if got := Describe(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("Describe(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}
