package negotiate

import (
	"fmt"
	"sort"

	"github.com/GoCodeAlone/versiond/semver"
)

// Request carries a client's version preferences.
type Request struct {
	// PreferredVersion is the single version the client wants most.
	PreferredVersion string `json:"preferred_version,omitempty"`
	// ClientVersion is the version the client currently speaks.
	ClientVersion string `json:"client_version,omitempty"`
	// SupportedVersions lists every version the client can handle,
	// in the client's preference order.
	SupportedVersions []string `json:"supported_versions,omitempty"`
	// FallbackVersion is the client's last-resort choice.
	FallbackVersion string `json:"fallback_version,omitempty"`
}

// Result is the outcome of a negotiation.
type Result struct {
	// Version is the selected version.
	Version string `json:"version"`
	// MigrationRequired is set when the client declared a current
	// version and the selection differs from it.
	MigrationRequired bool `json:"migration_required"`
	// MigrationURL points at migration documentation when
	// MigrationRequired is set.
	MigrationURL string `json:"migration_url,omitempty"`
	// Warnings describes any fallback decisions taken.
	Warnings []string `json:"warnings,omitempty"`
}

// Negotiate picks one version to serve the client from its preferences
// and the available set. Priority: the preferred version, the client's
// current version, the first client-supported version present, the
// client's fallback, the newest stable available version, the first
// available version, and finally the literal "1.0.0".
func Negotiate(req Request, available []string) Result {
	avail := make(map[string]bool, len(available))
	for _, v := range available {
		avail[v] = true
	}

	var result Result

	switch {
	case req.PreferredVersion != "" && avail[req.PreferredVersion]:
		result.Version = req.PreferredVersion
	case req.ClientVersion != "" && avail[req.ClientVersion]:
		result.Version = req.ClientVersion
	default:
		result.Version, result.Warnings = fallbackVersion(req, available, avail)
	}

	if req.ClientVersion != "" && result.Version != req.ClientVersion {
		result.MigrationRequired = true
		result.MigrationURL = fmt.Sprintf("/docs/migration/%s-to-%s", req.ClientVersion, result.Version)
	}
	return result
}

func fallbackVersion(req Request, available []string, avail map[string]bool) (string, []string) {
	for _, v := range req.SupportedVersions {
		if avail[v] {
			return v, nil
		}
	}

	if req.FallbackVersion != "" && avail[req.FallbackVersion] {
		return req.FallbackVersion, []string{
			fmt.Sprintf("no preferred version available; using client fallback %s", req.FallbackVersion),
		}
	}

	if v, ok := newestStable(available); ok {
		return v, []string{
			fmt.Sprintf("no client-acceptable version available; using newest stable %s", v),
		}
	}

	if len(available) > 0 {
		return available[0], []string{
			fmt.Sprintf("no stable version available; using %s", available[0]),
		}
	}
	return "1.0.0", []string{"no versions available; using default 1.0.0"}
}

// newestStable returns the newest available version that has no
// prerelease tag and a major version above zero.
func newestStable(available []string) (string, bool) {
	var stable []semver.Version
	for _, s := range available {
		v, err := semver.Parse(s)
		if err != nil {
			continue
		}
		if v.Prerelease == "" && v.Major > 0 {
			stable = append(stable, v)
		}
	}
	if len(stable) == 0 {
		return "", false
	}
	sort.Slice(stable, func(i, j int) bool { return stable[j].Less(stable[i]) })
	return stable[0].String(), true
}
