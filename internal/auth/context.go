package auth

import "context"

type contextKey struct{}

// Viewer is the verified client making the request, as read from its
// verification cookies.
type Viewer struct {
	PhoneNumber string
	Verified    bool
	Admin       bool
}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(contextKey{}).(Viewer)
	return v, ok
}

func PhoneNumber(ctx context.Context) string {
	v, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return v.PhoneNumber
}

func IsAdmin(ctx context.Context) bool {
	v, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return v.Admin
}
