package negotiate

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
)

// Level classifies the relationship between two versions.
type Level string

const (
	// LevelFull means the versions are identical.
	LevelFull Level = "full"
	// LevelBackward means the target adds functionality the source
	// lacks but existing clients keep working.
	LevelBackward Level = "backward"
	// LevelForward means the target is older within the same major
	// line; newer-client features may be missing.
	LevelForward Level = "forward"
	// LevelBreaking means the target crosses a major boundary upward.
	LevelBreaking Level = "breaking"
	// LevelNone means the target is a lower major line.
	LevelNone Level = "none"
)

// CheckResult is the outcome of a compatibility check between two
// versions. BreakingChanges, Warnings and Recommendations are derived
// from which version tier changed; a structural schema diff is an
// extension point for a schema-introspection collaborator and those
// fields stay empty until one is wired.
type CheckResult struct {
	Source          string   `json:"source"`
	Target          string   `json:"target"`
	Level           Level    `json:"level"`
	IsCompatible    bool     `json:"is_compatible"`
	BreakingChanges []string `json:"breaking_changes"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// DetermineLevel classifies source→target by the highest differing
// tier: a higher target major is breaking, a lower one is none; within
// a major line a higher minor (or patch) is backward, a lower one
// forward; equal versions are full.
func DetermineLevel(source, target semver.Version) Level {
	if source.Equal(target) {
		return LevelFull
	}
	switch {
	case target.Major > source.Major:
		return LevelBreaking
	case target.Major < source.Major:
		return LevelNone
	}
	switch {
	case target.Minor > source.Minor:
		return LevelBackward
	case target.Minor < source.Minor:
		return LevelForward
	}
	if target.Patch > source.Patch {
		return LevelBackward
	}
	return LevelForward
}

// Analyzer performs compatibility checks, enriching the tier-based
// classification with registry metadata when records exist.
type Analyzer struct {
	registry *registry.Service
}

// NewAnalyzer creates an Analyzer. reg may be nil; checks then run on
// version numbers alone.
func NewAnalyzer(reg *registry.Service) *Analyzer {
	return &Analyzer{registry: reg}
}

// Check classifies source→target and synthesizes advice from the tier
// delta plus any recorded breaking changes on the target version.
func (a *Analyzer) Check(ctx context.Context, source, target semver.Version) *CheckResult {
	level := DetermineLevel(source, target)

	result := &CheckResult{
		Source:          source.String(),
		Target:          target.String(),
		Level:           level,
		IsCompatible:    level != LevelBreaking,
		BreakingChanges: []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	switch level {
	case LevelFull:
		// Nothing to advise.
	case LevelBreaking:
		result.BreakingChanges = append(result.BreakingChanges,
			fmt.Sprintf("major version change from %d to %d", source.Major, target.Major))
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("create a migration plan before moving clients from %s to %s", source, target))
	case LevelNone:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target %s is an older major line than %s", target, source))
		result.Recommendations = append(result.Recommendations,
			"downgrades across major versions are unsupported; pin clients to the source line")
	case LevelBackward:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target %s adds functionality not present in %s", target, source))
	case LevelForward:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target %s predates %s; features introduced since may be unavailable", target, source))
	}

	if a.registry != nil {
		if rec, err := a.registry.Get(ctx, target); err == nil {
			result.BreakingChanges = append(result.BreakingChanges, rec.BreakingChanges...)
			if rec.Status == registry.StatusDeprecated {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("target %s is deprecated", target))
			}
			if rec.Status == registry.StatusRetired {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("target %s is retired", target))
			}
		}
	}

	return result
}
