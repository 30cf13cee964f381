// Package configx is the versioned, hash-chained store backing the engine's
// update_config operation: every applied EngineConfig is hashed, linked to
// its parent, and appended to an audit log that is never rewritten.
package configx

import (
	"time"

	"github.com/99souls/atrwac/engine/models"
)

// VersionedConfig records one committed configuration along with metadata
// tying it to its predecessor in the chain.
type VersionedConfig struct {
	Version     int64               `json:"version"`
	Spec        *models.EngineConfig `json:"spec"`
	Hash        string              `json:"hash"`
	AppliedAt   time.Time           `json:"applied_at"`
	Actor       string              `json:"actor"`
	Parent      int64               `json:"parent"`
	DiffSummary string              `json:"diff_summary,omitempty"`
}

// AuditRecord is the audit-log projection of a VersionedConfig, retained
// even if callers only want metadata without the full spec payload.
type AuditRecord struct {
	Version     int64     `json:"version"`
	Hash        string    `json:"hash"`
	Actor       string    `json:"actor"`
	AppliedAt   time.Time `json:"applied_at"`
	Parent      int64     `json:"parent"`
	DiffSummary string    `json:"diff_summary,omitempty"`
}

// ApplyOptions control how update_config processes a new spec.
type ApplyOptions struct {
	Actor  string `json:"actor"`
	DryRun bool   `json:"dry_run"`
	Force  bool   `json:"force"`
}
