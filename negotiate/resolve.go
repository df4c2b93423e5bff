package negotiate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
)

// ErrUnsupportedVersion is returned in strict mode for versions outside
// the supported set.
var ErrUnsupportedVersion = errors.New("unsupported version")

// StatusProvider resolves the lifecycle status of a version.
// *registry.Service satisfies it.
type StatusProvider interface {
	StatusFor(ctx context.Context, v semver.Version) registry.Status
}

// ResolverConfig configures version resolution.
type ResolverConfig struct {
	// DefaultVersion is the fallback when the supported set is empty.
	DefaultVersion string
	// SupportedVersions is the set of versions this deployment serves.
	SupportedVersions []string
	// StrictMode rejects unsupported versions instead of falling back
	// to the closest supported one.
	StrictMode bool
}

// Resolution is the outcome of validating a detected version.
type Resolution struct {
	// Version is the version that will serve the request.
	Version semver.Version
	// Status is its lifecycle status.
	Status registry.Status
	// Exact is false when Version was chosen by closest-match fallback
	// rather than appearing in the supported set.
	Exact bool
}

// Resolver validates detected version strings against the supported
// set, with closest-match fallback outside strict mode. The supported
// set may be swapped at runtime by config reload, so access to it is
// guarded.
type Resolver struct {
	cfg      ResolverConfig
	statuses StatusProvider

	mu        sync.RWMutex
	supported []semver.Version
}

// NewResolver creates a Resolver. statuses may be nil, in which case
// the prerelease/major-zero heuristic classifies versions.
// Unparseable entries in SupportedVersions are rejected.
func NewResolver(cfg ResolverConfig, statuses StatusProvider) (*Resolver, error) {
	supported := make([]semver.Version, 0, len(cfg.SupportedVersions))
	for _, s := range cfg.SupportedVersions {
		v, err := semver.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("supported version %q: %w", s, err)
		}
		supported = append(supported, v)
	}
	return &Resolver{cfg: cfg, supported: supported, statuses: statuses}, nil
}

// SetSupported replaces the supported set; used by config hot reload.
func (r *Resolver) SetSupported(versions []semver.Version) {
	cp := make([]semver.Version, len(versions))
	copy(cp, versions)

	r.mu.Lock()
	r.supported = cp
	r.mu.Unlock()
}

// Supported returns the canonical strings of the supported set.
func (r *Resolver) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.supported))
	for i, v := range r.supported {
		out[i] = v.String()
	}
	return out
}

// Validate parses the detected version string and resolves it against
// the supported set. Parse failures return semver.ErrInvalidFormat;
// in strict mode unsupported versions return ErrUnsupportedVersion,
// otherwise the closest supported version is chosen.
func (r *Resolver) Validate(ctx context.Context, detected string) (Resolution, error) {
	v, err := semver.Parse(detected)
	if err != nil {
		return Resolution{}, err
	}

	r.mu.RLock()
	supported := r.supported
	r.mu.RUnlock()

	for _, s := range supported {
		if s.String() == v.String() {
			return Resolution{Version: s, Status: r.statusFor(ctx, s), Exact: true}, nil
		}
	}

	if r.cfg.StrictMode {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnsupportedVersion, detected)
	}

	closest := r.findClosest(v, supported)
	return Resolution{Version: closest, Status: r.statusFor(ctx, closest)}, nil
}

// findClosest picks the supported version minimizing the weighted
// distance |Δmajor|*10000 + |Δminor|*100 + |Δpatch|. Ties go to the
// numerically larger candidate, making the choice deterministic. An
// empty supported set falls back to the default version.
func (r *Resolver) findClosest(v semver.Version, supported []semver.Version) semver.Version {
	if len(supported) == 0 {
		def, err := semver.Parse(r.cfg.DefaultVersion)
		if err != nil {
			return semver.Version{Major: 1}
		}
		return def
	}

	best := supported[0]
	bestDist := distance(v, best)
	for _, s := range supported[1:] {
		d := distance(v, s)
		if d < bestDist || (d == bestDist && best.Less(s)) {
			best = s
			bestDist = d
		}
	}
	return best
}

func distance(a, b semver.Version) int {
	return abs(a.Major-b.Major)*10000 + abs(a.Minor-b.Minor)*100 + abs(a.Patch-b.Patch)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (r *Resolver) statusFor(ctx context.Context, v semver.Version) registry.Status {
	if r.statuses != nil {
		return r.statuses.StatusFor(ctx, v)
	}
	return registry.HeuristicStatus(v)
}
