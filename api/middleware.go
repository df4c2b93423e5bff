package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GoCodeAlone/versiond/metrics"
	"github.com/GoCodeAlone/versiond/negotiate"
	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
)

// Middleware holds the dependencies of the version-detection
// middleware.
type Middleware struct {
	detector       *negotiate.Detector
	resolver       *negotiate.Resolver
	defaultVersion string
	logger         *slog.Logger
	metrics        *metrics.Collector
}

// NewMiddleware creates a Middleware. collector may be nil to disable
// instrumentation.
func NewMiddleware(d *negotiate.Detector, r *negotiate.Resolver, defaultVersion string, logger *slog.Logger, collector *metrics.Collector) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		detector:       d,
		resolver:       r,
		defaultVersion: defaultVersion,
		logger:         logger,
		metrics:        collector,
	}
}

// DetectVersion resolves the API version for each request, stores it
// in the request context and mirrors it into response headers.
// Requests on excluded paths pass through untouched. Malformed or
// (in strict mode) unsupported versions get a 400 with a structured
// body naming the supported set.
func (m *Middleware) DetectVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		det := m.detector.Detect(r)
		if det.Excluded {
			next.ServeHTTP(w, r)
			return
		}

		res, err := m.resolver.Validate(r.Context(), det.Version)
		if err != nil {
			m.rejectVersion(w, det, err)
			return
		}

		outcome := "exact"
		if !res.Exact {
			outcome = "closest_match"
			m.logger.Debug("version resolved by closest match",
				"detected", det.Version,
				"resolved", res.Version.String(),
				"method", string(det.Method))
		}
		m.count(det.Method, outcome)

		w.Header().Set("API-Version", res.Version.String())
		w.Header().Set("API-Version-Status", string(res.Status))
		w.Header().Set("API-Supported-Versions", strings.Join(m.resolver.Supported(), ", "))
		if res.Status == registry.StatusDeprecated {
			w.Header().Set("Warning", fmt.Sprintf("299 - %q", "API version "+res.Version.String()+" is deprecated"))
		}

		ctx := SetResolvedVersion(r.Context(), ResolvedVersion{Resolution: res, Method: det.Method})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) rejectVersion(w http.ResponseWriter, det negotiate.Detection, err error) {
	supported := m.resolver.Supported()

	switch {
	case errors.Is(err, semver.ErrInvalidFormat):
		m.count(det.Method, "invalid_format")
		WriteVersionError(w, http.StatusBadRequest, CodeInvalidVersionFormat,
			err.Error(), supported, m.defaultVersion)
	case errors.Is(err, negotiate.ErrUnsupportedVersion):
		m.count(det.Method, "unsupported")
		WriteVersionError(w, http.StatusBadRequest, CodeUnsupportedVersion,
			err.Error(), supported, m.defaultVersion)
	default:
		m.logger.Error("version resolution failed", "detected", det.Version, "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternal, "version resolution failed")
	}
}

func (m *Middleware) count(method negotiate.Method, outcome string) {
	if m.metrics != nil {
		m.metrics.VersionResolutions.WithLabelValues(string(method), outcome).Inc()
	}
}
