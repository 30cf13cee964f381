package configx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/99souls/atrwac/engine/models"
)

// StoreOption allows future extension of store construction.
type StoreOption func(*VersionedStore)

// VersionedStore maintains an append-only, hash-chained log of every config
// ever applied via update_config. It is in-memory only; the core spec
// requires no persistence beyond the engine's own lifetime.
type VersionedStore struct {
	mu       sync.RWMutex
	versions []*VersionedConfig
	audit    []*AuditRecord
}

// NewVersionedStore constructs an empty store.
func NewVersionedStore(opts ...StoreOption) *VersionedStore {
	vs := &VersionedStore{}
	for _, o := range opts {
		o(vs)
	}
	return vs
}

// NextVersion returns the version number that would be assigned next.
func (s *VersionedStore) NextVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.versions) + 1)
}

// ListAudit returns a snapshot copy of the audit log, oldest first.
func (s *VersionedStore) ListAudit() []*AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AuditRecord, len(s.audit))
	for i, rec := range s.audit {
		if rec == nil {
			continue
		}
		c := *rec
		out[i] = &c
	}
	return out
}

// Get returns the VersionedConfig for a 1-based version number.
func (s *VersionedStore) Get(version int64) (*VersionedConfig, bool) {
	if version <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(version) > len(s.versions) {
		return nil, false
	}
	return cloneVersioned(s.versions[version-1]), true
}

// Head returns the most recently applied config, the "effective config".
func (s *VersionedStore) Head() (*VersionedConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.versions) == 0 {
		return nil, false
	}
	return cloneVersioned(s.versions[len(s.versions)-1]), true
}

// ErrHashMismatch indicates a stored version's recomputed hash diverged from
// the one recorded at append time — tamper evidence for the audit chain.
var ErrHashMismatch = errors.New("hash mismatch")

// Append stores spec as the next version, chaining it to the current head.
// Validation (ConfigInvalid) must happen before calling Append — a failing
// update_config must leave the store untouched (P7).
func (s *VersionedStore) Append(spec *models.EngineConfig, actor, diff string) (*VersionedConfig, error) {
	if spec == nil {
		return nil, errors.New("nil spec")
	}
	raw, err := canonicalJSON(spec)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(raw)
	hash := hex.EncodeToString(h[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	version := int64(len(s.versions) + 1)
	var parent int64
	if len(s.versions) > 0 {
		parent = s.versions[len(s.versions)-1].Version
	}
	vc := &VersionedConfig{
		Version:     version,
		Spec:        cloneSpec(spec),
		Hash:        hash,
		AppliedAt:   time.Now().UTC(),
		Actor:       actor,
		Parent:      parent,
		DiffSummary: diff,
	}
	s.versions = append(s.versions, vc)
	s.audit = append(s.audit, &AuditRecord{Version: version, Hash: hash, Actor: actor, AppliedAt: vc.AppliedAt, Parent: parent, DiffSummary: diff})
	return cloneVersioned(vc), nil
}

// Verify recomputes the hash for a stored version and reports any mismatch.
func (s *VersionedStore) Verify(version int64) error {
	vc, ok := s.Get(version)
	if !ok {
		return errors.New("version not found")
	}
	raw, err := canonicalJSON(vc.Spec)
	if err != nil {
		return err
	}
	h := sha256.Sum256(raw)
	if hex.EncodeToString(h[:]) != vc.Hash {
		return ErrHashMismatch
	}
	return nil
}

func canonicalJSON(spec *models.EngineConfig) ([]byte, error) {
	return json.Marshal(spec)
}

func cloneSpec(spec *models.EngineConfig) *models.EngineConfig {
	if spec == nil {
		return nil
	}
	c := *spec
	return &c
}

func cloneVersioned(vc *VersionedConfig) *VersionedConfig {
	if vc == nil {
		return nil
	}
	c := *vc
	c.Spec = cloneSpec(vc.Spec)
	return &c
}
