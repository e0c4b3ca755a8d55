package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
)

// StateVersion is the lease file format written by this package.
const StateVersion = 1

// ErrForeignLease is returned when a stored lease lies outside the root's
// tree.
var ErrForeignLease = errors.New("lease outside root's tree")

// LeaseState is the JSON document a LeaseFileStore keeps.
type LeaseState struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Root    address.Logical `json:"root"`
	Leases  []dhcp.Lease    `json:"leases,omitempty"`
}

// LeaseFileStore keeps one root's lease table in a JSON file. Saves replace
// the file atomically.
type LeaseFileStore struct {
	mu   sync.Mutex
	path string
	root address.Logical
	now  func() time.Time
}

var _ dhcp.Store = (*LeaseFileStore)(nil)

func NewLeaseFileStore(path string, root address.Logical) *LeaseFileStore {
	return &LeaseFileStore{path: path, root: root, now: time.Now}
}

func (s *LeaseFileStore) Path() string { return s.path }

// Save implements dhcp.Store.
func (s *LeaseFileStore) Save(leases []dhcp.Lease) error {
	data, err := json.MarshalIndent(LeaseState{
		Version: StateVersion,
		SavedAt: s.now().UTC(),
		Root:    s.root,
		Leases:  leases,
	}, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic replaces path with data so that readers and crashes see
// either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

// Load implements dhcp.Store. A missing file is an empty table.
func (s *LeaseFileStore) Load() ([]dhcp.Lease, error) {
	state, err := s.LoadState()
	if err != nil || state == nil {
		return nil, err
	}
	return state.Leases, nil
}

// LoadState reads and checks the file. It returns nil, nil when there is
// none.
func (s *LeaseFileStore) LoadState() (*LeaseState, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state LeaseState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	switch {
	case state.Version > StateVersion:
		return nil, fmt.Errorf("%s: format version %d is newer than %d", s.path, state.Version, StateVersion)
	case state.Root != s.root:
		return nil, fmt.Errorf("%s: leases belong to root %v, not %v", s.path, state.Root, s.root)
	}
	for _, l := range state.Leases {
		if !address.IsDescendant(s.root, l.Address) {
			return nil, fmt.Errorf("%s: %w: %v", s.path, ErrForeignLease, l.Address)
		}
	}
	return &state, nil
}

// Clear removes the file.
func (s *LeaseFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
