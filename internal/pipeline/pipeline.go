// Package pipeline drives one file from discovery to a persisted
// description.
//
// The five steps are strictly sequential per file: resolve the asset ID,
// check for an existing description, read and validate the bytes, call the
// backend with host-pool retry, persist. Any number of pipeline runs may be
// active at once; the host pool is the only state they share.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pixelframe/imgwatch/internal/asset"
	"github.com/pixelframe/imgwatch/internal/backend"
	"github.com/pixelframe/imgwatch/internal/hostpool"
	"github.com/pixelframe/imgwatch/internal/store"
)

var (
	// ErrAlreadyProcessed means the store already holds a description for
	// this asset. Reported as a skip, not a failure.
	ErrAlreadyProcessed = errors.New("asset already has a description")
	// ErrEmptyFile means the file existed but had no bytes to analyze.
	ErrEmptyFile = errors.New("file is empty")
)

// StoreError wraps a persistence failure. The analysis itself may have
// succeeded; the description is not retried or cached.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %v", e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// Outcome is the result of one pipeline run. Exactly one is produced per
// file and it is never mutated afterwards. Err is nil iff Description holds
// the persisted text.
type Outcome struct {
	Filename    string
	AssetID     uuid.UUID
	Description string
	Err         error
}

// Pipeline processes files. Safe for concurrent use.
type Pipeline struct {
	analyzer backend.Analyzer
	pool     *hostpool.Pool
	store    store.Store
	req      backend.Request

	// ignoreExisting skips the duplicate check so assets get re-described.
	ignoreExisting bool

	logger *log.Logger
}

// Options configures a Pipeline.
type Options struct {
	Analyzer       backend.Analyzer
	Pool           *hostpool.Pool
	Store          store.Store
	Model          string
	Prompt         string
	Timeout        time.Duration
	IgnoreExisting bool
	Logger         *log.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		analyzer: opts.Analyzer,
		pool:     opts.Pool,
		store:    opts.Store,
		req: backend.Request{
			Model:   opts.Model,
			Prompt:  opts.Prompt,
			Timeout: opts.Timeout,
		},
		ignoreExisting: opts.IgnoreExisting,
		logger:         logger,
	}
}

// Process runs the full pipeline for one file and returns its Outcome.
// Failures never propagate beyond the file: the caller just collects the
// outcome and moves on.
func (p *Pipeline) Process(ctx context.Context, path string) Outcome {
	filename := filepath.Base(path)
	fail := func(err error) Outcome {
		return Outcome{Filename: filename, Err: err}
	}

	assetID, err := asset.FromFilename(filename)
	if err != nil {
		return fail(err)
	}

	if !p.ignoreExisting {
		exists, err := p.store.HasDescription(ctx, assetID)
		if err != nil {
			return fail(&StoreError{Err: err})
		}
		if exists {
			return fail(fmt.Errorf("%w: %s", ErrAlreadyProcessed, filename))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("read %s: %w", filename, err))
	}
	if len(data) == 0 {
		return fail(fmt.Errorf("%w: %s", ErrEmptyFile, filename))
	}

	description, err := p.analyze(ctx, filename, data)
	if err != nil {
		return fail(err)
	}

	if err := p.store.UpsertDescription(ctx, assetID, description); err != nil {
		return fail(&StoreError{Err: err})
	}

	p.logger.Info("description persisted", "file", filename, "asset", assetID)
	return Outcome{Filename: filename, AssetID: assetID, Description: description}
}

// analyze tries the backend once per host in the pool. Each attempt
// re-selects, so a host that just failed is excluded from the very next
// try. Only exhausting the pool fails the file.
func (p *Pipeline) analyze(ctx context.Context, filename string, data []byte) (string, error) {
	var lastErr error
	for range p.pool.Hosts() {
		host, err := p.pool.Select()
		if err != nil {
			return "", err
		}
		description, err := p.analyzer.Analyze(ctx, host, data, p.req)
		if err == nil {
			return description, nil
		}
		p.logger.Warn("backend attempt failed", "file", filename, "host", host, "error", err)
		lastErr = err
		p.pool.MarkUnavailable(host)
	}
	if lastErr == nil {
		lastErr = hostpool.ErrAllHostsUnavailable
	}
	return "", lastErr
}
