// Package discovery coordinates which local process serves as the MCP
// Play primary.
//
// A single JSON record on disk names the current primary: its address,
// pid, and an instance token minted when the record was written. Any
// process can read the record to find the primary; a would-be primary
// writes it after binding its listener and verifies its own token read
// back, so two racing writers cannot both believe they won.
//
// Records are advisory. A record naming a dead pid is stale and is
// removed on read, so a crashed primary never blocks the next one.
package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whitneyland/mcpplay-core/logger"
	"github.com/whitneyland/mcpplay-core/paths"
	"github.com/whitneyland/mcpplay-core/process"
)

// StatusRunning is the only status a usable record carries. Records
// with any other status are ignored.
const StatusRunning = "running"

// ErrRecordConflict means another process overwrote the primary record
// between our write and the verifying read-back. The caller lost the
// election and should not serve.
var ErrRecordConflict = errors.New("another process claimed the primary record")

// Swappable for tests.
var isAlive = process.IsAlive

// afterPublish runs between publishing a record and the verifying
// read-back. Swappable so tests can interleave a competing writer at
// exactly that instant.
var afterPublish = func() {}

// PrimaryRecord describes the process currently serving as primary.
type PrimaryRecord struct {
	Port      int    `json:"port"`
	Host      string `json:"host"`
	Status    string `json:"status"`
	PID       int    `json:"pid"`
	Instance  string `json:"instance"`
	Timestamp int64  `json:"timestamp"`
}

// Endpoint returns the base URL of the primary's HTTP listener.
func (r *PrimaryRecord) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", r.Host, r.Port)
}

// valid reports whether the record carries every field a reader needs
// to reach and health-check the primary, with a port in listenable
// range.
func (r *PrimaryRecord) valid() bool {
	return r.Port > 0 && r.Port <= 65535 && r.Host != "" && r.Status != "" && r.PID > 0 && r.Instance != ""
}

// Store reads and writes the primary record file.
//
// The mutex serializes access within one process; cross-process races
// are handled by the verify step in Write and by liveness checks on
// read, not by file locking.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewStore returns a Store over the default record location.
func NewStore() (*Store, error) {
	path, err := paths.ServerRecordPath()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(path), nil
}

// NewStoreAt returns a Store over an explicit record path.
func NewStoreAt(path string) *Store {
	return &Store{path: path, log: logger.WithComponent("discovery")}
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// Write claims the primary role for the calling process: it writes a
// fresh record naming this pid and a new instance token, then reads
// the file back. If the token read back is not ours, a concurrent
// writer won and Write returns ErrRecordConflict.
func (s *Store) Write(host string, port int) (*PrimaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &PrimaryRecord{
		Port:      port,
		Host:      host,
		Status:    StatusRunning,
		PID:       os.Getpid(),
		Instance:  uuid.NewString(),
		Timestamp: time.Now().Unix(),
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	// Write to a temp file and rename so readers never see a half-written
	// record.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".server-*.json")
	if err != nil {
		return nil, fmt.Errorf("write primary record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write primary record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write primary record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write primary record: %w", err)
	}

	afterPublish()

	verify, err := s.readRaw()
	if err != nil || verify == nil || verify.Instance != rec.Instance {
		s.log.Warn("primary record verification failed", "path", s.path, "error", err)
		return nil, ErrRecordConflict
	}

	s.log.Info("claimed primary record", "host", host, "port", port, "pid", rec.PID)
	return rec, nil
}

// Read returns the current record, or nil when no usable record
// exists. A missing file is not an error. A file that cannot be
// parsed, or that fails validation, is deleted so it cannot wedge
// future elections. A record with a status other than "running" is
// ignored but left in place.
func (s *Store) Read() (*PrimaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() (*PrimaryRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read primary record: %w", err)
	}

	var rec PrimaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("removing malformed primary record", "path", s.path, "error", err)
		s.remove()
		return nil, nil
	}
	if !rec.valid() {
		s.log.Warn("removing invalid primary record", "path", s.path)
		s.remove()
		return nil, nil
	}
	if rec.Status != StatusRunning {
		return nil, nil
	}
	return &rec, nil
}

// readRaw parses the record without the tolerant cleanup behavior.
// Write uses it for verification, where deleting on parse failure
// could erase a competitor's winning record.
func (s *Store) readRaw() (*PrimaryRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var rec PrimaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReadLive returns the current record only if the process it names is
// still alive. A record naming a dead pid is removed and reported as
// absent.
func (s *Store) ReadLive() (*PrimaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil || rec == nil {
		return nil, err
	}
	if !isAlive(rec.PID) {
		s.log.Info("removing stale primary record", "pid", rec.PID, "port", rec.Port)
		s.remove()
		return nil, nil
	}
	return rec, nil
}

// Remove deletes the record file. Best effort: a missing file is
// success, and other failures are logged rather than returned since
// callers remove on shutdown paths where nothing can be done anyway.
func (s *Store) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove()
}

func (s *Store) remove() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove primary record", "path", s.path, "error", err)
	}
}

// RemoveIfOwned deletes the record only when it still carries the
// given instance token, so a shutting-down primary never erases a
// successor's claim.
func (s *Store) RemoveIfOwned(instance string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRaw()
	if err != nil || rec == nil {
		return
	}
	if rec.Instance == instance {
		s.remove()
	}
}
