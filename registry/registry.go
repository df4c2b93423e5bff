// Package registry maintains the persisted catalog of API version
// records: which versions exist, their lifecycle status, and their
// compatibility metadata.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/GoCodeAlone/versiond/semver"
	"github.com/GoCodeAlone/versiond/store"
)

// Sentinel errors for registry operations.
var (
	ErrNotFound      = errors.New("version not found")
	ErrDuplicate     = errors.New("version already exists")
	ErrInvalidRecord = errors.New("invalid version record")
)

// Status is the lifecycle stage of an API version.
type Status string

const (
	StatusDevelopment Status = "development"
	StatusBeta        Status = "beta"
	StatusStable      Status = "stable"
	StatusDeprecated  Status = "deprecated"
	StatusRetired     Status = "retired"
)

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDevelopment, StatusBeta, StatusStable, StatusDeprecated, StatusRetired:
		return true
	}
	return false
}

// Record describes one published API version.
type Record struct {
	Version            semver.Version `json:"version"`
	Status             Status         `json:"status"`
	Title              string         `json:"title"`
	Maintainer         string         `json:"maintainer,omitempty"`
	ReleaseDate        time.Time      `json:"release_date"`
	DeprecationDate    *time.Time     `json:"deprecation_date,omitempty"`
	RetirementDate     *time.Time     `json:"retirement_date,omitempty"`
	CompatibleVersions []string       `json:"compatible_versions,omitempty"`
	BreakingChanges    []string       `json:"breaking_changes,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// validate checks the record's date invariants.
func (r *Record) validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.DeprecationDate != nil && !r.DeprecationDate.After(r.ReleaseDate) {
		return fmt.Errorf("deprecation date must be after release date")
	}
	if r.RetirementDate != nil {
		if !r.RetirementDate.After(r.ReleaseDate) {
			return fmt.Errorf("retirement date must be after release date")
		}
		if r.DeprecationDate != nil && !r.RetirementDate.After(*r.DeprecationDate) {
			return fmt.Errorf("retirement date must be after deprecation date")
		}
	}
	return nil
}

const keyPrefix = "version:"

// Filter specifies criteria for listing version records.
type Filter struct {
	Status Status
	Offset int
	Limit  int
}

// Service manages version records on top of a document store.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service backed by the given store.
func NewService(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

func recordKey(v semver.Version) string { return keyPrefix + v.String() }

// Create persists a new version record. The version must not already
// exist; date invariants are enforced.
func (s *Service) Create(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	key := recordKey(r.Version)
	if _, err := s.store.Get(ctx, key); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.Version)
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("check existing: %w", err)
	}

	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.put(ctx, key, r); err != nil {
		return err
	}
	s.logger.Info("version created", "version", r.Version.String(), "status", r.Status)
	return nil
}

// Get loads the record for the given version.
func (s *Service) Get(ctx context.Context, v semver.Version) (*Record, error) {
	data, err := s.store.Get(ctx, recordKey(v))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, v)
		}
		return nil, fmt.Errorf("load version %s: %w", v, err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode version %s: %w", v, err)
	}
	return &r, nil
}

// List returns records matching the filter, sorted newest version
// first. A zero Limit means no cap.
func (s *Service) List(ctx context.Context, f Filter) ([]*Record, error) {
	kvs, err := s.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	var records []*Record
	for _, kv := range kvs {
		var r Record
		if err := json.Unmarshal(kv.Value, &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kv.Key, err)
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		records = append(records, &r)
	}

	sort.Slice(records, func(i, j int) bool {
		return semver.Compare(records[i].Version, records[j].Version) > 0
	})

	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return nil, nil
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && len(records) > f.Limit {
		records = records[:f.Limit]
	}
	return records, nil
}

// Update replaces an existing record. The version field identifies the
// record and cannot change.
func (s *Service) Update(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	existing, err := s.Get(ctx, r.Version)
	if err != nil {
		return err
	}

	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()

	if err := s.put(ctx, recordKey(r.Version), r); err != nil {
		return err
	}
	s.logger.Info("version updated", "version", r.Version.String(), "status", r.Status)
	return nil
}

// Delete soft-deletes a version by marking it retired. The record
// remains readable so clients can learn why the version is gone.
func (s *Service) Delete(ctx context.Context, v semver.Version) error {
	r, err := s.Get(ctx, v)
	if err != nil {
		return err
	}

	now := s.now()
	r.Status = StatusRetired
	if r.RetirementDate == nil {
		r.RetirementDate = &now
	}
	r.UpdatedAt = now

	if err := s.put(ctx, recordKey(v), r); err != nil {
		return err
	}
	s.logger.Info("version retired", "version", v.String())
	return nil
}

// StatusFor resolves the lifecycle status of a version. A registry
// record wins; without one a heuristic applies: major 0 is
// development, a prerelease tag is beta, anything else stable.
func (s *Service) StatusFor(ctx context.Context, v semver.Version) Status {
	if r, err := s.Get(ctx, v); err == nil {
		return r.Status
	}
	return HeuristicStatus(v)
}

// HeuristicStatus classifies a version with no registry record.
func HeuristicStatus(v semver.Version) Status {
	switch {
	case v.Major == 0:
		return StatusDevelopment
	case v.Prerelease != "":
		return StatusBeta
	}
	return StatusStable
}

func (s *Service) put(ctx context.Context, key string, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}
