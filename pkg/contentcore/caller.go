package contentcore

import "context"

// Caller carries the request-scoped facts the library consumes but never
// decides itself: the caller's default locale, the tenant frontend base
// path under which asset URLs are published, and whether the caller has
// administrative access (used only by the URL rewrite CDN rule).
type Caller struct {
	DefaultLocale    string
	FrontendBasePath string
	Admin            bool
}

type callerContextKey struct{}

// WithCaller attaches caller information to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller attached to ctx, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}

// DefaultLocale returns the caller's default locale, or FallbackLocale when
// no caller information is attached.
func DefaultLocale(ctx context.Context) string {
	if caller, ok := CallerFromContext(ctx); ok && caller.DefaultLocale != "" {
		return caller.DefaultLocale
	}
	return FallbackLocale
}

// FrontendBasePath returns the tenant frontend base path of the caller, or
// "" when none applies.
func FrontendBasePath(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.FrontendBasePath
}

// IsAdmin reports whether the caller has administrative access.
func IsAdmin(ctx context.Context) bool {
	caller, _ := CallerFromContext(ctx)
	return caller.Admin
}
