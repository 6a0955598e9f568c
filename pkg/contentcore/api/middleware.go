package api

import (
	"net/http"

	"github.com/go-chi/jwtauth"
	"golang.org/x/text/language"

	"github.com/modularcms/content-core/pkg/contentcore"
)

// callerMiddleware derives the caller context for every request: the
// default locale from Accept-Language, the tenant frontend base path from
// the X-Frontend-Base-Path header, and the admin capability from a
// verified bearer token's admin claim.
func callerMiddleware(cfg Config) func(http.Handler) http.Handler {
	var tokenAuth *jwtauth.JWTAuth
	if cfg.JWTSecret != "" {
		tokenAuth = jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	}

	return func(next http.Handler) http.Handler {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := contentcore.Caller{
				DefaultLocale:    localeFromRequest(r, cfg.DefaultLocale),
				FrontendBasePath: r.Header.Get("X-Frontend-Base-Path"),
			}
			if tokenAuth != nil {
				if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
					if admin, ok := claims["admin"].(bool); ok {
						caller.Admin = admin
					}
				}
			}
			ctx := contentcore.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})

		if tokenAuth != nil {
			return jwtauth.Verifier(tokenAuth)(handler)
		}
		return handler
	}
}

// localeFromRequest picks the caller's default locale from the first
// Accept-Language entry, reduced to its base language.
func localeFromRequest(r *http.Request, fallback string) string {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	base, _ := tags[0].Base()
	return base.String()
}
