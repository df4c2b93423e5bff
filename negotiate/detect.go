// Package negotiate decides which API version serves a request: it
// extracts a candidate version from the request, validates it against
// the supported set, classifies compatibility between versions, and
// picks a version from client preferences.
package negotiate

import (
	"mime"
	"net/http"
	"regexp"
	"strings"
)

// Method identifies which detection strategy produced a version.
type Method string

const (
	MethodURLPath     Method = "url_path"
	MethodHeader      Method = "header"
	MethodAccept      Method = "accept_header"
	MethodQueryParam  Method = "query_param"
	MethodContentType Method = "content_type"
)

// Detection is the outcome of running the detection strategies.
type Detection struct {
	// Version is the normalized candidate version string.
	Version string
	// Method records which strategy matched.
	Method Method
	// Excluded is set when the request path bypasses detection
	// entirely; Version and Method are empty in that case.
	Excluded bool
}

// DetectorConfig configures the detection strategies.
type DetectorConfig struct {
	// DefaultVersion is used when no strategy matches.
	DefaultVersion string
	// VersionHeader is the request header consulted by the header
	// strategy. Defaults to "Accept-Version".
	VersionHeader string
	// VersionParam is the query parameter consulted by the query
	// strategy. Defaults to "version".
	VersionParam string
	// ExcludedPaths lists path prefixes that bypass detection
	// (health checks, docs, static assets).
	ExcludedPaths []string
}

func (c *DetectorConfig) withDefaults() DetectorConfig {
	out := *c
	if out.VersionHeader == "" {
		out.VersionHeader = "Accept-Version"
	}
	if out.VersionParam == "" {
		out.VersionParam = "version"
	}
	return out
}

var (
	pathVersionRE    = regexp.MustCompile(`(?:^|/)api/v(\d+(?:\.\d+){0,2})(?:/|$)`)
	vendorVersionRE  = regexp.MustCompile(`vnd\.[0-9A-Za-z.-]*v(\d+(?:\.\d+){0,2})\+json`)
	literalVersionRE = regexp.MustCompile(`^v?(\d+(?:\.\d+){0,2})$`)
)

// Detector extracts a candidate version string from a request by
// trying a fixed sequence of strategies; the first match wins.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector with the given config. Zero-valued
// header and parameter names fall back to their defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Detect runs the strategies against r. Strategies are tried in fixed
// priority: URL path, version header, Accept media-type parameter,
// query parameter, vendor content type. When nothing matches, the
// default version is returned and the method is reported as url_path,
// matching the behavior clients already depend on.
func (d *Detector) Detect(r *http.Request) Detection {
	if d.pathExcluded(r.URL.Path) {
		return Detection{Excluded: true}
	}

	if v := versionFromPath(r.URL.Path); v != "" {
		return Detection{Version: v, Method: MethodURLPath}
	}
	if v := versionFromHeader(r.Header.Get(d.cfg.VersionHeader)); v != "" {
		return Detection{Version: v, Method: MethodHeader}
	}
	if v := versionFromAccept(r.Header.Get("Accept")); v != "" {
		return Detection{Version: v, Method: MethodAccept}
	}
	if v := versionFromHeader(r.URL.Query().Get(d.cfg.VersionParam)); v != "" {
		return Detection{Version: v, Method: MethodQueryParam}
	}
	if v := versionFromContentType(r.Header.Get("Content-Type")); v != "" {
		return Detection{Version: v, Method: MethodContentType}
	}

	return Detection{Version: d.cfg.DefaultVersion, Method: MethodURLPath}
}

func (d *Detector) pathExcluded(path string) bool {
	for _, p := range d.cfg.ExcludedPaths {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// versionFromPath matches a /api/v<N[.M[.P]]>/ segment.
func versionFromPath(path string) string {
	m := pathVersionRE.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return normalize(m[1])
}

// versionFromHeader accepts either a full version string or a short
// vN / vN.M form.
func versionFromHeader(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := literalVersionRE.FindStringSubmatch(raw); m != nil {
		return normalize(m[1])
	}
	return raw
}

// versionFromAccept extracts a version=X media-type parameter from the
// Accept header, e.g. "application/json;version=2.0".
func versionFromAccept(accept string) string {
	if accept == "" {
		return ""
	}
	for _, part := range strings.Split(accept, ",") {
		_, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if v, ok := params["version"]; ok && v != "" {
			return versionFromHeader(v)
		}
	}
	return ""
}

// versionFromContentType matches vendor media types of the form
// application/vnd.<name>.vN+json.
func versionFromContentType(ct string) string {
	m := vendorVersionRE.FindStringSubmatch(ct)
	if m == nil {
		return ""
	}
	return normalize(m[1])
}

// normalize zero-fills missing version components: "1" becomes
// "1.0.0", "1.2" becomes "1.2.0".
func normalize(v string) string {
	switch strings.Count(v, ".") {
	case 0:
		return v + ".0.0"
	case 1:
		return v + ".0"
	}
	return v
}
