package api

import (
	"context"

	"github.com/GoCodeAlone/versiond/negotiate"
)

type contextKey string

const resolvedVersionKey contextKey = "resolved-version"

// ResolvedVersion carries the outcome of version detection for one
// request.
type ResolvedVersion struct {
	Resolution negotiate.Resolution
	Method     negotiate.Method
}

// SetResolvedVersion stores the detection outcome in the context.
func SetResolvedVersion(ctx context.Context, rv ResolvedVersion) context.Context {
	return context.WithValue(ctx, resolvedVersionKey, rv)
}

// ResolvedVersionFromContext returns the detection outcome, or ok=false
// when the request bypassed detection.
func ResolvedVersionFromContext(ctx context.Context) (ResolvedVersion, bool) {
	rv, ok := ctx.Value(resolvedVersionKey).(ResolvedVersion)
	return rv, ok
}
