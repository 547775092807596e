// Package template persists enrolled face descriptors as a single blob.
// The blob is read-only during recognition and replaced atomically by the
// trainer, so a concurrent reader never observes a partial write.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/attend/internal/feature"
)

// ErrSchemaMismatch means the blob was produced by an incompatible
// extractor schema version and must be rebuilt by retraining.
var ErrSchemaMismatch = errors.New("template: store schema version mismatch")

// Store maps identity ids to their enrolled feature vectors. IDs records
// first-insertion order so the flattened index is deterministic across
// save/load cycles.
type Store struct {
	SchemaVersion int                          `json:"schema_version"`
	IDs           []string                     `json:"ids"`
	Templates     map[string][]feature.Vector  `json:"templates"`
}

// Entry is one (identity, vector) pair of the flattened store.
type Entry struct {
	ID     string
	Vector feature.Vector
}

// New returns an empty store tagged with the current extractor schema.
func New() *Store {
	return &Store{
		SchemaVersion: feature.SchemaVersion,
		Templates:     make(map[string][]feature.Vector),
	}
}

// Load reads the store blob from path. A missing file yields an empty
// store (first run). A corrupt blob is an error; a blob written by a
// different extractor schema yields ErrSchemaMismatch.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read template store: %w", err)
	}

	s := &Store{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse template store %s: %w", path, err)
	}
	if s.Templates == nil {
		s.Templates = make(map[string][]feature.Vector)
	}
	if s.SchemaVersion != feature.SchemaVersion {
		return nil, fmt.Errorf("%w: store has v%d, extractor has v%d",
			ErrSchemaMismatch, s.SchemaVersion, feature.SchemaVersion)
	}

	// Older blobs may lack the explicit id list.
	if len(s.IDs) != len(s.Templates) {
		s.IDs = s.IDs[:0]
		for id := range s.Templates {
			s.IDs = append(s.IDs, id)
		}
	}
	return s, nil
}

// Save writes the store to path atomically: the blob is written to a
// temporary file in the same directory and renamed over the target.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal template store: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write template store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace template store: %w", err)
	}
	return nil
}

// Append adds a sample vector for an identity. Training is additive;
// existing samples are never overwritten here.
func (s *Store) Append(id string, vec feature.Vector) {
	if _, ok := s.Templates[id]; !ok {
		s.IDs = append(s.IDs, id)
	}
	s.Templates[id] = append(s.Templates[id], vec)
}

// ResetIdentity drops all samples for an identity, for deliberate
// re-enrollment.
func (s *Store) ResetIdentity(id string) {
	if _, ok := s.Templates[id]; !ok {
		return
	}
	delete(s.Templates, id)
	for i, existing := range s.IDs {
		if existing == id {
			s.IDs = append(s.IDs[:i], s.IDs[i+1:]...)
			break
		}
	}
}

// Identities returns the enrolled ids in first-insertion order.
func (s *Store) Identities() []string {
	out := make([]string, len(s.IDs))
	copy(out, s.IDs)
	return out
}

// Samples returns the vectors enrolled for one identity.
func (s *Store) Samples(id string) []feature.Vector {
	return s.Templates[id]
}

// Size returns the total number of stored vectors.
func (s *Store) Size() int {
	n := 0
	for _, vecs := range s.Templates {
		n += len(vecs)
	}
	return n
}

// Empty reports whether the store holds no vectors.
func (s *Store) Empty() bool {
	return s.Size() == 0
}

// Flatten returns all (id, vector) pairs, identities in insertion order
// and samples in enrollment order.
func (s *Store) Flatten() []Entry {
	entries := make([]Entry, 0, s.Size())
	for _, id := range s.IDs {
		for _, vec := range s.Templates[id] {
			entries = append(entries, Entry{ID: id, Vector: vec})
		}
	}
	return entries
}
