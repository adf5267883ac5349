// Package state persists per-(dataset, cycle) resource metadata between
// runs. The whole state is loaded at process start, mutated in memory by
// the integration engine, and written back exactly once at run end, so a
// crash mid-run leaves the on-disk state untouched.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/fecworks/fecsync/internal/fileutil"
)

const (
	stateFilePermissions = 0600
	lockTimeout          = 30 * time.Second
)

// CycleState holds the cache validators recorded for one (dataset, cycle)
// pair after its last successful integration. Zero values mean "absent":
// the upstream response may omit any of the headers.
type CycleState struct {
	ETag          string `json:"etag,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`
	LastUpdated   string `json:"last_updated,omitempty"`
}

type updateState struct {
	LastCheck string                            `json:"last_check,omitempty"`
	Cycles    map[string]map[string]*CycleState `json:"cycles"`
}

// Store is a file-backed update state store. Cycles are ints everywhere
// in memory; the JSON file keys them as strings.
type Store struct {
	path string

	mu    sync.RWMutex
	state updateState
}

// New creates a store backed by the given file. The file is not read
// until Load is called.
func New(path string) *Store {
	return &Store{
		path:  path,
		state: updateState{Cycles: map[string]map[string]*CycleState{}},
	}
}

// Load reads the state file. A missing file yields an empty state.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = updateState{Cycles: map[string]map[string]*CycleState{}}

	data, err := os.ReadFile(s.path) //nolint:gosec // path comes from app settings
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	if s.state.Cycles == nil {
		s.state.Cycles = map[string]map[string]*CycleState{}
	}
	return nil
}

// Save writes the whole state atomically. A file lock serializes saves
// against overlapping scheduled runs touching the same state file.
func (s *Store) Save() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock state file %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("state file %s is locked by another run", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := fileutil.WriteFileAtomic(s.path, data, stateFilePermissions); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// CycleState returns the recorded state for a (dataset, cycle) pair.
func (s *Store) CycleState(dataset string, cycle int) (CycleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cycles, ok := s.state.Cycles[dataset]
	if !ok {
		return CycleState{}, false
	}
	cs, ok := cycles[strconv.Itoa(cycle)]
	if !ok || cs == nil {
		return CycleState{}, false
	}
	return *cs, true
}

// SetCycleState overwrites the recorded state for a (dataset, cycle) pair.
func (s *Store) SetCycleState(dataset string, cycle int, cs CycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Cycles[dataset] == nil {
		s.state.Cycles[dataset] = map[string]*CycleState{}
	}
	s.state.Cycles[dataset][strconv.Itoa(cycle)] = &cs
}

// SetLastCheck records the wall-clock time of the current run.
func (s *Store) SetLastCheck(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastCheck = t.Format(time.RFC3339)
}

// LastCheck returns the recorded last-check timestamp, empty when never set.
func (s *Store) LastCheck() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastCheck
}

// Datasets returns dataset names with recorded state, in stable order.
func (s *Store) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.state.Cycles))
	for name := range s.state.Cycles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Cycles returns the cycles recorded for a dataset, ascending. Non-numeric
// keys (hand-edited files) are skipped.
func (s *Store) Cycles(dataset string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cycles []int
	for key := range s.state.Cycles[dataset] {
		if cycle, err := strconv.Atoi(key); err == nil {
			cycles = append(cycles, cycle)
		}
	}
	slices.Sort(cycles)
	return cycles
}
