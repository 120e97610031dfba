// Package report renders per-file outcomes and aggregate statistics.
//
// Classification here is display-only: duplicates and unrecognizable
// filenames are errors at the type level but counted as skips, because the
// user asked "what happened to my library", not "what returned non-nil".
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/pixelframe/imgwatch/internal/asset"
	"github.com/pixelframe/imgwatch/internal/backend"
	"github.com/pixelframe/imgwatch/internal/hostpool"
	"github.com/pixelframe/imgwatch/internal/pipeline"
	"github.com/pixelframe/imgwatch/internal/watcher"
)

// Class buckets an outcome for counting.
type Class int

const (
	ClassSucceeded Class = iota
	ClassSkipped
	ClassFailed
)

// Classify maps an outcome to its display bucket.
func Classify(o pipeline.Outcome) Class {
	if o.Err == nil {
		return ClassSucceeded
	}
	if errors.Is(o.Err, pipeline.ErrAlreadyProcessed) || errors.Is(o.Err, asset.ErrInvalidUUID) {
		return ClassSkipped
	}
	return ClassFailed
}

// Summary holds the aggregate counts of one run.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Total is the number of files that produced an outcome.
func (s Summary) Total() int { return s.Succeeded + s.Skipped + s.Failed }

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	skippedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	fileStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

const divider = "--------------------------------------------------------------------------------"

// Render writes per-file result lines and the aggregate statistics. With
// sorted set, lines are ordered by filename so concurrent runs stay
// reproducible. It returns the aggregate summary.
func Render(w io.Writer, outcomes []pipeline.Outcome, sorted bool) Summary {
	fmt.Fprintln(w, headerStyle.Render("Analysis results"))
	fmt.Fprintln(w, strings.Repeat("-", 31))

	if sorted {
		outcomes = append([]pipeline.Outcome(nil), outcomes...)
		sort.Slice(outcomes, func(i, j int) bool {
			return outcomes[i].Filename < outcomes[j].Filename
		})
	}

	var summary Summary
	for _, o := range outcomes {
		switch Classify(o) {
		case ClassSucceeded:
			summary.Succeeded++
		case ClassSkipped:
			summary.Skipped++
		case ClassFailed:
			summary.Failed++
		}
		fmt.Fprintf(w, "%s\n%s\n", Format(o), divider)
	}

	renderStatistics(w, summary)
	return summary
}

// Format renders the styled one-line result for a single outcome. Monitor
// mode prints these as runs finish; Render uses the same lines for batches.
func Format(o pipeline.Outcome) string {
	file := fileStyle.Render("[" + o.Filename + "]")
	switch Classify(o) {
	case ClassSucceeded:
		return fmt.Sprintf("%s %s %s", successStyle.Render("✓"), file, o.Description)
	case ClassSkipped:
		return fmt.Sprintf("%s %s %s", skippedStyle.Render("•"), file, Describe(o.Err))
	default:
		return fmt.Sprintf("%s %s %s", failedStyle.Render("✗"), file, Describe(o.Err))
	}
}

// Describe turns a pipeline error into the one-line message shown next to
// the filename.
func Describe(err error) string {
	var (
		he  *backend.HTTPError
		pe  *backend.ParseError
		se  *pipeline.StoreError
		wte *watcher.WriteTimeoutError
	)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyProcessed):
		return "already has a description, skipping"
	case errors.Is(err, asset.ErrInvalidUUID):
		return "filename carries no asset id, skipping"
	case errors.Is(err, pipeline.ErrEmptyFile):
		return "file is empty"
	case errors.Is(err, backend.ErrEmptyResponse):
		return "backend returned an empty description"
	case errors.Is(err, backend.ErrRequestTimeout):
		return "backend request timed out"
	case errors.Is(err, hostpool.ErrAllHostsUnavailable):
		return "all backend hosts are unavailable"
	case errors.As(err, &he):
		if he.Status == 0 {
			return fmt.Sprintf("backend unreachable: %s", he.Body)
		}
		return fmt.Sprintf("backend returned HTTP %d: %s", he.Status, he.Body)
	case errors.As(err, &pe):
		return fmt.Sprintf("could not parse backend response: %v", pe.Err)
	case errors.As(err, &se):
		return fmt.Sprintf("database error: %v", se.Err)
	case errors.As(err, &wte):
		return fmt.Sprintf("file was still being written after %s", wte.Timeout)
	default:
		return err.Error()
	}
}

func renderStatistics(w io.Writer, s Summary) {
	fmt.Fprintln(w, headerStyle.Render("Statistics"))
	fmt.Fprintf(w, "  successful: %d\n", s.Succeeded)
	fmt.Fprintf(w, "  failed:     %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  skipped:    %d\n", s.Skipped)
	}
	fmt.Fprintf(w, "  total:      %d\n", s.Total())

	if s.Failed > 0 {
		fmt.Fprintln(w, headerStyle.Render("Recommendations"))
		for _, r := range []string{
			"check that the backend hosts are running and reachable",
			"check the failing files are valid, non-empty images",
			"reduce --max-concurrent if the backend is overloaded",
			"use --monitor mode to retry new files as they appear",
			"check the database connection string",
		} {
			fmt.Fprintf(w, "  • %s\n", r)
		}
	}
}
