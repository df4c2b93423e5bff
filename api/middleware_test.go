package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/versiond/negotiate"
	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
)

func TestMiddlewareSetsVersionHeaders(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/api/versions", nil)
	req.Header.Set("Accept-Version", "2.0.0")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("API-Version"); got != "2.0.0" {
		t.Errorf("API-Version = %q", got)
	}
	if got := w.Header().Get("API-Version-Status"); got != "stable" {
		t.Errorf("API-Version-Status = %q", got)
	}
	if got := w.Header().Get("API-Supported-Versions"); !strings.Contains(got, "1.0.0") || !strings.Contains(got, "2.0.0") {
		t.Errorf("API-Supported-Versions = %q", got)
	}
}

func TestMiddlewareDefaultsWhenNoVersion(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/api/versions", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if got := w.Header().Get("API-Version"); got != "1.0.0" {
		t.Errorf("API-Version = %q, want default 1.0.0", got)
	}
}

func TestMiddlewareClosestMatchFallback(t *testing.T) {
	ts := newTestServer(t, false)

	// 1.2.0 is unsupported; the closest supported version serves it.
	req := httptest.NewRequest("GET", "/api/versions", nil)
	req.Header.Set("Accept-Version", "1.2.0")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("API-Version"); got != "1.0.0" {
		t.Errorf("API-Version = %q, want closest match 1.0.0", got)
	}
}

func TestMiddlewareStrictModeRejects(t *testing.T) {
	ts := newTestServer(t, true)

	req := httptest.NewRequest("GET", "/api/versions", nil)
	req.Header.Set("Accept-Version", "1.2.0")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
	env := decodeError(t, w)
	if env.ErrorCode != CodeUnsupportedVersion {
		t.Errorf("error_code = %s", env.ErrorCode)
	}
	if env.DefaultVersion != "1.0.0" || len(env.SupportedVersions) != 2 {
		t.Errorf("error body = %+v", env)
	}
}

func TestMiddlewareMalformedVersionRejected(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/api/versions", nil)
	req.Header.Set("Accept-Version", "one.two.three")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
	if env := decodeError(t, w); env.ErrorCode != CodeInvalidVersionFormat {
		t.Errorf("error_code = %s", env.ErrorCode)
	}
}

func TestMiddlewareDeprecatedVersionWarning(t *testing.T) {
	ts := newTestServer(t, false)

	release := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deprecation := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := ts.registry.Create(t.Context(), &registry.Record{
		Version:         semver.MustParse("1.0.0"),
		Status:          registry.StatusDeprecated,
		Title:           "legacy",
		ReleaseDate:     release,
		DeprecationDate: &deprecation,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/versions", nil)
	req.Header.Set("Accept-Version", "1.0.0")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if got := w.Header().Get("API-Version-Status"); got != "deprecated" {
		t.Errorf("API-Version-Status = %q", got)
	}
	if got := w.Header().Get("Warning"); !strings.Contains(got, "deprecated") {
		t.Errorf("Warning = %q", got)
	}
}

func TestMiddlewareStoresResolvedVersionInContext(t *testing.T) {
	var got ResolvedVersion
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = ResolvedVersionFromContext(r.Context())
	})

	detector := negotiate.NewDetector(negotiate.DetectorConfig{DefaultVersion: "1.0.0"})
	resolver, err := negotiate.NewResolver(negotiate.ResolverConfig{
		DefaultVersion:    "1.0.0",
		SupportedVersions: []string{"1.0.0", "2.0.0"},
	}, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	mw := NewMiddleware(detector, resolver, "1.0.0", nil, nil)

	req := httptest.NewRequest("GET", "/api/v2/things", nil)
	w := httptest.NewRecorder()
	mw.DetectVersion(next).ServeHTTP(w, req)

	if !ok {
		t.Fatal("resolved version missing from context")
	}
	if got.Resolution.Version.String() != "2.0.0" {
		t.Errorf("context version = %s, want 2.0.0", got.Resolution.Version)
	}
	if got.Method != "url_path" {
		t.Errorf("context method = %s, want url_path", got.Method)
	}
}

func TestMiddlewareExcludedPathBypassesDetection(t *testing.T) {
	ts := newTestServer(t, true)

	// Strict mode would reject this malformed header, but /healthz is
	// excluded from detection entirely.
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Accept-Version", "garbage")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	if w.Header().Get("API-Version") != "" {
		t.Error("excluded path must not carry version headers")
	}
}
