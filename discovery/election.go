package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/whitneyland/mcpplay-core/logger"
)

// ErrPrimaryRunning means a live primary already holds the record, so
// the caller should yield instead of serving.
var ErrPrimaryRunning = errors.New("a live primary is already running")

// ErrDiscoveryTimeout means no live primary appeared within the
// discovery window after we launched one.
var ErrDiscoveryTimeout = errors.New("timed out waiting for a primary")

// Swappable for tests.
var launchPrimary = spawnPrimary

// Candidate runs the election protocol from either side: a starting
// primary uses ClaimPrimary to decide whether to yield, and a proxy
// uses EnsurePrimary to find or launch the primary it will forward to.
type Candidate struct {
	store    *Store
	host     string
	port     int
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// NewCandidate returns a Candidate polling every interval for at most
// timeout. Host and port are what a launched primary will be told to
// serve on.
func NewCandidate(store *Store, host string, port int, interval, timeout time.Duration) *Candidate {
	return &Candidate{
		store:    store,
		host:     host,
		port:     port,
		interval: interval,
		timeout:  timeout,
		log:      logger.WithComponent("discovery"),
	}
}

// ClaimPrimary checks whether this process may take the primary role.
// It returns ErrPrimaryRunning (wrapped with the incumbent's address)
// when a live primary already holds the record. The caller claims the
// role afterward by binding its listener and calling Store.Write.
func (c *Candidate) ClaimPrimary() error {
	rec, err := c.store.ReadLive()
	if err != nil {
		return err
	}
	if rec != nil {
		return fmt.Errorf("%w at %s (pid %d)", ErrPrimaryRunning, rec.Endpoint(), rec.PID)
	}
	return nil
}

// EnsurePrimary returns a live primary record, launching a primary
// process first if none exists. It fails with ErrDiscoveryTimeout when
// the launched primary never publishes a record.
func (c *Candidate) EnsurePrimary() (*PrimaryRecord, error) {
	rec, err := c.store.ReadLive()
	if err != nil {
		return nil, err
	}
	if rec != nil {
		c.log.Debug("found live primary", "endpoint", rec.Endpoint(), "pid", rec.PID)
		return rec, nil
	}

	c.log.Info("no live primary, launching one", "host", c.host, "port", c.port)
	if err := launchPrimary(c.host, c.port); err != nil {
		return nil, fmt.Errorf("launch primary: %w", err)
	}
	return c.AwaitPrimary()
}

// AwaitPrimary polls the record store until a live primary appears or
// the discovery window closes. The wait cannot be interrupted; a caller
// whose stdin closes mid-discovery still waits out the window, which
// the timeout keeps bounded.
func (c *Candidate) AwaitPrimary() (*PrimaryRecord, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		rec, err := c.store.ReadLive()
		if err != nil {
			return nil, err
		}
		if rec != nil {
			c.log.Info("primary is up", "endpoint", rec.Endpoint(), "pid", rec.PID)
			return rec, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrDiscoveryTimeout
		}
		time.Sleep(c.interval)
	}
}
