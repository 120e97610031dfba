// Package hostpool tracks the availability of backend endpoints and picks
// the next one to try.
//
// A host that fails a call is exiled for a fixed window. The exile map is
// the only state shared between concurrent pipeline runs; every read and
// write happens under a single short-held lock.
//
// Used by: pipeline (per-attempt host selection inside the retry loop)
package hostpool

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrAllHostsUnavailable is returned only when the pool has no endpoints at
// all. A fully exiled but non-empty pool still yields a host.
var ErrAllHostsUnavailable = errors.New("all backend hosts unavailable")

// Pool selects hosts in configured order, skipping ones currently marked
// unavailable. The host list is immutable after construction; only the
// unavailability map changes.
type Pool struct {
	hosts    []string
	duration time.Duration

	mu          sync.Mutex
	unavailable map[string]time.Time

	logger *log.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// New creates a pool over the given hosts. A host marked unavailable becomes
// selectable again after unavailableDuration without an explicit clear.
func New(hosts []string, unavailableDuration time.Duration, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		hosts:       hosts,
		duration:    unavailableDuration,
		unavailable: make(map[string]time.Time),
		logger:      logger,
		now:         time.Now,
	}
}

// Hosts returns the configured host list. Callers must not mutate it.
func (p *Pool) Hosts() []string {
	return p.hosts
}

// Select returns the next host to try.
//
// Expired exile marks are dropped first, then hosts are considered in pool
// order. When every host is marked unavailable the one that was marked
// longest ago is returned anyway: the mark is a heuristic, not a circuit
// breaker, and the pool keeps getting traffic even when fully degraded.
// Select fails only for an empty pool.
func (p *Pool) Select() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for host, since := range p.unavailable {
		if now.Sub(since) >= p.duration {
			delete(p.unavailable, host)
		}
	}

	for _, host := range p.hosts {
		if _, down := p.unavailable[host]; !down {
			return host, nil
		}
	}

	var oldest string
	var oldestSince time.Time
	for host, since := range p.unavailable {
		if oldest == "" || since.Before(oldestSince) {
			oldest = host
			oldestSince = since
		}
	}
	if oldest != "" {
		p.logger.Warn("all hosts marked unavailable, trying the oldest mark",
			"host", oldest, "down_for", now.Sub(oldestSince))
		return oldest, nil
	}

	return "", ErrAllHostsUnavailable
}

// MarkUnavailable exiles a host starting now. Marking an already exiled host
// restarts its window; repeated failures extend the exile, nothing more.
func (p *Pool) MarkUnavailable(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable[host] = p.now()
	p.logger.Info("host marked unavailable", "host", host, "for", p.duration)
}
