package negotiate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
	"github.com/GoCodeAlone/versiond/store"
)

func newTestResolver(t *testing.T, strict bool, supported ...string) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{
		DefaultVersion:    "1.0.0",
		SupportedVersions: supported,
		StrictMode:        strict,
	}, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestValidateExactMatch(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false, "1.0.0", "2.0.0")

	res, err := r.Validate(ctx, "2.0.0")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Version.String() != "2.0.0" || !res.Exact {
		t.Errorf("Validate = %+v, want exact 2.0.0", res)
	}
	if res.Status != registry.StatusStable {
		t.Errorf("Status = %s, want stable heuristic", res.Status)
	}
}

func TestValidateIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false, "1.0.0", "2.0.0")

	first, err := r.Validate(ctx, "1.7.3")
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, err := r.Validate(ctx, "1.7.3")
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if first != second {
		t.Errorf("Validate not idempotent: %+v vs %+v", first, second)
	}
}

func TestValidateInvalidFormat(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false, "1.0.0")

	_, err := r.Validate(ctx, "not-a-version")
	if !errors.Is(err, semver.ErrInvalidFormat) {
		t.Errorf("Validate: %v, want ErrInvalidFormat", err)
	}
}

func TestValidateStrictMode(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, true, "1.0.0", "2.0.0")

	if _, err := r.Validate(ctx, "1.0.0"); err != nil {
		t.Fatalf("Validate supported in strict mode: %v", err)
	}
	_, err := r.Validate(ctx, "3.0.0")
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Validate unsupported in strict mode: %v, want ErrUnsupportedVersion", err)
	}
}

func TestValidateClosestMatch(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false, "1.0.0", "1.2.0", "2.0.0")

	tests := []struct {
		detected string
		want     string
	}{
		{"1.2.5", "1.2.0"}, // nearest within the minor line
		{"1.9.0", "1.2.0"}, // a minor delta always beats a major delta
		{"3.0.0", "2.0.0"}, // above the range
		{"0.0.0", "1.0.0"}, // below the range
		{"0.5.0", "1.2.0"}, // the minor tier pulls toward 1.2.0 despite the major gap
	}

	for _, tt := range tests {
		res, err := r.Validate(ctx, tt.detected)
		if err != nil {
			t.Fatalf("Validate(%s): %v", tt.detected, err)
		}
		if res.Version.String() != tt.want {
			t.Errorf("Validate(%s) = %s, want %s", tt.detected, res.Version, tt.want)
		}
		if res.Exact {
			t.Errorf("Validate(%s).Exact = true, want closest-match fallback", tt.detected)
		}
	}
}

func TestValidateClosestTieBreaksLarger(t *testing.T) {
	ctx := context.Background()
	// 1.4.0 and 1.6.0 are equidistant from 1.5.0: the larger wins.
	r := newTestResolver(t, false, "1.4.0", "1.6.0")

	res, err := r.Validate(ctx, "1.5.0")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Version.String() != "1.6.0" {
		t.Errorf("tie-break picked %s, want 1.6.0", res.Version)
	}
}

func TestValidateEmptySupportedSetUsesDefault(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, false)

	res, err := r.Validate(ctx, "4.2.0")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Version.String() != "1.0.0" {
		t.Errorf("Validate = %s, want default 1.0.0", res.Version)
	}
}

func TestValidateRegistryStatusWins(t *testing.T) {
	ctx := context.Background()

	reg := registry.NewService(store.NewMemoryStore(), nil)
	rec := &registry.Record{
		Version:     semver.MustParse("1.0.0"),
		Status:      registry.StatusDeprecated,
		Title:       "API 1.0.0",
		ReleaseDate: mustDate(t),
	}
	dep := rec.ReleaseDate.AddDate(1, 0, 0)
	rec.DeprecationDate = &dep
	if err := reg.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r, err := NewResolver(ResolverConfig{
		DefaultVersion:    "1.0.0",
		SupportedVersions: []string{"1.0.0"},
	}, reg)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	res, err := r.Validate(ctx, "1.0.0")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != registry.StatusDeprecated {
		t.Errorf("Status = %s, want deprecated from registry", res.Status)
	}
}

func mustDate(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestNewResolverRejectsBadSupportedVersion(t *testing.T) {
	_, err := NewResolver(ResolverConfig{SupportedVersions: []string{"1.0"}}, nil)
	if err == nil {
		t.Error("expected error for malformed supported version")
	}
}
