// Package manifest tracks per-namespace document version history and the
// ACTIVE/DEPRECATED lifecycle used for governance and duplicate detection.
package manifest

import (
	"time"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Status is the lifecycle state of a document version.
type Status string

const (
	// StatusActive marks the version currently served to retrieval.
	StatusActive Status = "ACTIVE"
	// StatusDeprecated marks a superseded version. Deprecated versions are
	// kept for audit and rollback, never silently deleted.
	StatusDeprecated Status = "DEPRECATED"
)

// Decision is the outcome of recording an ingestion in the manifest.
type Decision string

const (
	// DecisionDuplicate means the incoming content hash equals the currently
	// active version's hash: the caller must skip index mutation entirely.
	DecisionDuplicate Decision = "duplicate"
	// DecisionActivated means a new version was inserted as ACTIVE. Any prior
	// active version has been flipped to DEPRECATED.
	DecisionActivated Decision = "activated"
)

// VersionRecord is the durable record of one ingested document version.
type VersionRecord struct {
	DocHash      string `json:"doc_hash"`
	Source       string `json:"source"`
	Chunks       int    `json:"chunks"`
	Status       Status `json:"status"`
	IngestedAt   int64  `json:"ingested_at"`
	DeprecatedAt int64  `json:"deprecated_at,omitempty"`
}

// DocumentEntry holds the full version history for one document ID.
type DocumentEntry struct {
	Versions      map[string]*VersionRecord `json:"versions"`
	ActiveVersion string                    `json:"active_version,omitempty"`
	ActiveHash    string                    `json:"active_doc_hash,omitempty"`
	Source        string                    `json:"source"`
}

// Manifest is the per-namespace governance record, keyed by document ID.
type Manifest struct {
	Docs      map[string]*DocumentEntry `json:"docs"`
	UpdatedAt int64                     `json:"updated_at,omitempty"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Docs: make(map[string]*DocumentEntry)}
}

// ActiveVersion returns the active version record for a document, or nil.
func (m *Manifest) ActiveVersion(docID string) *VersionRecord {
	entry, ok := m.Docs[docID]
	if !ok || entry.ActiveVersion == "" {
		return nil
	}
	return entry.Versions[entry.ActiveVersion]
}

// RecordIngestion applies the version-supersession policy for one ingestion.
//
// If the document's currently active content hash equals the incoming hash
// the manifest is left untouched and DecisionDuplicate is returned. Otherwise
// any prior active version is flipped to DEPRECATED (with a deprecation
// timestamp) and the incoming version is inserted as the single ACTIVE
// version for the document.
//
// The mutation is in-memory only; callers persist it with Store.Save.
func (m *Manifest) RecordIngestion(docID, version, docHash, source string, chunks int) Decision {
	if m.Docs == nil {
		m.Docs = make(map[string]*DocumentEntry)
	}

	entry, ok := m.Docs[docID]
	if !ok {
		entry = &DocumentEntry{Versions: make(map[string]*VersionRecord), Source: source}
		m.Docs[docID] = entry
	}

	if entry.ActiveVersion != "" && entry.ActiveHash == docHash {
		return DecisionDuplicate
	}

	now := timeNow().Unix()

	if prev := entry.ActiveVersion; prev != "" {
		rec, ok := entry.Versions[prev]
		if !ok {
			rec = &VersionRecord{}
			entry.Versions[prev] = rec
		}
		rec.Status = StatusDeprecated
		rec.DeprecatedAt = now
	}

	entry.Versions[version] = &VersionRecord{
		DocHash:    docHash,
		Source:     source,
		Chunks:     chunks,
		Status:     StatusActive,
		IngestedAt: now,
	}
	entry.ActiveVersion = version
	entry.ActiveHash = docHash
	entry.Source = source

	return DecisionActivated
}
