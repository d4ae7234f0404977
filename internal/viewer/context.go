// Package viewer carries the authenticated caller identity through request
// contexts. Authentication itself happens upstream; the transport injects an
// already-resolved Viewer.
package viewer

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Viewer is the resolved identity every scoped query runs as.
type Viewer struct {
	UserID    snowflake.ID
	Superuser bool
}

type viewerContextKey struct{}

// WithViewer stores the viewer in the context.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// FromContext returns the viewer from context, if set.
func FromContext(ctx context.Context) (Viewer, bool) {
	if ctx == nil {
		return Viewer{}, false
	}
	v, ok := ctx.Value(viewerContextKey{}).(Viewer)
	if !ok || v.UserID == 0 {
		return Viewer{}, false
	}
	return v, true
}
