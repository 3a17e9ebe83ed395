// Package snapshot persists run state as a versioned, gzip-compressed JSON
// document so interrupted runs can resume. Loading is all-or-nothing: a
// snapshot that fails decompression, parsing, or schema validation is
// discarded wholesale, never partially adopted.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/platform/config"
	"noctua/internal/platform/errors"
	"noctua/internal/platform/logx"
)

// SchemaVersion identifies the snapshot document layout. Documents with a
// different version are treated as no-snapshot.
const SchemaVersion = 1

// Snapshot is the persisted form of a run: scope, configuration, and every
// accumulator plus timings.
type Snapshot struct {
	Version    int                      `json:"version"`
	RunID      string                   `json:"run_id"`
	SavedAt    time.Time                `json:"saved_at"`
	Scope      domain.Scope             `json:"scope"`
	Config     config.Config            `json:"config"`
	Subdomains []string                 `json:"subdomains"`
	BasePorts  map[int]string           `json:"base_ports"`
	WebPorts   map[string][]int         `json:"web_ports"`
	WebURLs    []string                 `json:"web_urls"`
	VulnRaw    string                   `json:"vuln_raw"`
	Findings   []string                 `json:"findings"`
	Extra      map[string]any           `json:"extra,omitempty"`
	Timings    map[string]time.Duration `json:"timings"`
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path   string
	logger logx.Logger
}

// New creates a Store for the given path.
func New(path string, logger logx.Logger) *Store {
	if path == "" {
		path = ".noctua-state.json.gz"
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "snapshot"),
	}
}

// Path returns the configured snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the run context and writes it atomically (temp file +
// rename) so a crash mid-write never leaves a truncated snapshot behind.
func (s *Store) Save(rc *domain.RunContext, cfg config.Config) (string, error) {
	snap := Snapshot{
		Version:    SchemaVersion,
		RunID:      rc.ID,
		SavedAt:    time.Now().UTC(),
		Scope:      rc.Scope,
		Config:     cfg,
		Subdomains: rc.Subdomains(),
		BasePorts:  rc.BasePorts(),
		WebPorts:   rc.WebPorts(),
		WebURLs:    rc.WebURLs(),
		VulnRaw:    rc.VulnRaw(),
		Findings:   rc.Findings(),
		Extra:      sanitizeExtra(rc.Extras()),
		Timings:    rc.Timings(),
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize snapshot")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return "", errors.Wrap(err, "failed to compress snapshot")
	}
	if err := gz.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize snapshot compression")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create snapshot directory %s", dir)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".noctua-state-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp snapshot file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errors.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(err, "failed to close snapshot file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrapf(err, "failed to move snapshot into place at %s", s.path)
	}

	s.logger.Info("snapshot saved", "path", s.path, "bytes", buf.Len())
	return s.path, nil
}

// Load reads, decompresses (falling back to raw bytes when the payload is
// not gzip), parses, and validates the snapshot. Every failure mode maps
// to ErrNoSnapshot: resuming never adopts a partially valid snapshot.
func (s *Store) Load() (*Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.ErrNoSnapshot
	}

	payload := raw
	if gz, err := gzip.NewReader(bytes.NewReader(raw)); err == nil {
		if decompressed, err := io.ReadAll(gz); err == nil {
			payload = decompressed
		}
		gz.Close()
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.Warn("snapshot unreadable, ignoring", "path", s.path, "error", err.Error())
		return nil, errors.ErrNoSnapshot
	}

	if err := snap.validate(); err != nil {
		s.logger.Warn("snapshot rejected", "path", s.path, "error", err.Error())
		return nil, errors.ErrNoSnapshot
	}

	s.logger.Info("snapshot loaded", "path", s.path, "run_id", snap.RunID)
	return &snap, nil
}

// validate enforces the schema contract.
func (snap *Snapshot) validate() error {
	if snap.Version != SchemaVersion {
		return errors.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Scope.Host == "" && snap.Scope.IP == "" {
		return errors.New("snapshot scope is empty")
	}
	if !snap.Scope.Mode.IsValid() {
		return errors.Errorf("snapshot has invalid mode %q", snap.Scope.Mode)
	}
	return nil
}

// Restore reconstructs a run context from the snapshot's accumulators.
func (snap *Snapshot) Restore() *domain.RunContext {
	rc := domain.NewRunContext(snap.Scope)
	rc.AddSubdomains(snap.Subdomains...)
	rc.MergeBasePorts(snap.BasePorts)
	rc.MergeWebPorts(snap.WebPorts)
	rc.AddWebURLs(snap.WebURLs...)
	rc.AppendVulnRaw(snap.VulnRaw)
	rc.AddFindings(snap.Findings...)
	for unit, d := range snap.Timings {
		rc.RecordTiming(unit, d)
	}
	for key, value := range snap.Extra {
		rc.SetExtra(key, value)
	}
	return rc
}

// sanitizeExtra drops extension values that cannot round-trip through JSON.
func sanitizeExtra(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		if _, err := json.Marshal(v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}
