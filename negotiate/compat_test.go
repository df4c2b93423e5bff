package negotiate

import (
	"context"
	"testing"
	"time"

	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
	"github.com/GoCodeAlone/versiond/store"
)

func TestDetermineLevel(t *testing.T) {
	tests := []struct {
		source, target string
		want           Level
	}{
		{"1.0.0", "1.0.0", LevelFull},
		{"1.0.0", "2.0.0", LevelBreaking},
		{"2.0.0", "1.0.0", LevelNone},
		{"1.0.0", "1.1.0", LevelBackward},
		{"1.1.0", "1.0.0", LevelForward},
		{"1.1.0", "1.1.1", LevelBackward},
		{"1.1.1", "1.1.0", LevelForward},
	}

	for _, tt := range tests {
		got := DetermineLevel(semver.MustParse(tt.source), semver.MustParse(tt.target))
		if got != tt.want {
			t.Errorf("DetermineLevel(%s, %s) = %s, want %s", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestCheckCompatibilityFlag(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(nil)

	breaking := a.Check(ctx, semver.MustParse("1.0.0"), semver.MustParse("2.0.0"))
	if breaking.IsCompatible {
		t.Error("major upgrade must not be compatible")
	}
	if len(breaking.BreakingChanges) == 0 {
		t.Error("major upgrade must list a breaking change")
	}
	if len(breaking.Recommendations) == 0 {
		t.Error("major upgrade must carry a recommendation")
	}

	// Every non-breaking level is compatible, including "none".
	for _, pair := range [][2]string{
		{"1.0.0", "1.0.0"},
		{"1.0.0", "1.1.0"},
		{"1.1.0", "1.0.0"},
		{"2.0.0", "1.0.0"},
	} {
		res := a.Check(ctx, semver.MustParse(pair[0]), semver.MustParse(pair[1]))
		if !res.IsCompatible {
			t.Errorf("Check(%s, %s).IsCompatible = false, want true", pair[0], pair[1])
		}
	}
}

func TestCheckStructuralFieldsStayEmptyOnFull(t *testing.T) {
	a := NewAnalyzer(nil)
	res := a.Check(context.Background(), semver.MustParse("1.0.0"), semver.MustParse("1.0.0"))
	if len(res.BreakingChanges)+len(res.Warnings)+len(res.Recommendations) != 0 {
		t.Errorf("full compatibility must produce no advice: %+v", res)
	}
	// Fields are present (empty slices), not nil, so JSON encodes [].
	if res.BreakingChanges == nil || res.Warnings == nil || res.Recommendations == nil {
		t.Error("advice slices must be non-nil")
	}
}

func TestCheckPullsRegistryMetadata(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewService(store.NewMemoryStore(), nil)

	rec := &registry.Record{
		Version:         semver.MustParse("2.0.0"),
		Status:          registry.StatusDeprecated,
		Title:           "API 2.0.0",
		ReleaseDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		BreakingChanges: []string{"user ids became strings"},
	}
	dep := rec.ReleaseDate.AddDate(1, 0, 0)
	rec.DeprecationDate = &dep
	if err := reg.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a := NewAnalyzer(reg)
	res := a.Check(ctx, semver.MustParse("1.0.0"), semver.MustParse("2.0.0"))

	found := false
	for _, bc := range res.BreakingChanges {
		if bc == "user ids became strings" {
			found = true
		}
	}
	if !found {
		t.Errorf("recorded breaking change missing: %v", res.BreakingChanges)
	}

	deprecatedWarned := false
	for _, w := range res.Warnings {
		if w == "target 2.0.0 is deprecated" {
			deprecatedWarned = true
		}
	}
	if !deprecatedWarned {
		t.Errorf("deprecation warning missing: %v", res.Warnings)
	}
}
