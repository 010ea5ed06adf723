package chi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/snipara/contextd/internal/domain/mode"
)

// exemptPaths are routes that bypass authentication and rate limiting.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type ctxKey int

const (
	callerIDKey ctxKey = iota
	capabilitiesKey
)

// tierCapabilities maps a pricing tier to its retrieval capability set.
// Resolved once per request during authentication; the orchestrator
// never consults the tier again.
var tierCapabilities = map[string]mode.Set{
	"free": mode.NewSet(mode.Keyword),
	"pro":  mode.NewSet(mode.Keyword, mode.Semantic, mode.Hybrid),
	"team": mode.NewSet(mode.Keyword, mode.Semantic, mode.Hybrid, mode.Decompose),
	"enterprise": mode.NewSet(
		mode.Keyword, mode.Semantic, mode.Hybrid, mode.Decompose, mode.MultiQuery,
	),
}

// CapabilitiesForTier resolves a tier name to its capability set.
// Unknown and empty tiers get the free set.
func CapabilitiesForTier(tier string) mode.Set {
	if caps, ok := tierCapabilities[tier]; ok {
		return caps
	}
	return tierCapabilities["free"]
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens
// and stores the caller identity plus its tier capability set in the
// request context. keys maps API key to tier name. With no keys
// configured authentication is disabled: every caller is identified by
// client IP and granted the full capability set.
func BearerAuthMiddleware(keys map[string]string) func(http.Handler) http.Handler {
	validKeys := make(map[string]string, len(keys))
	for k, tier := range keys {
		if k != "" {
			validKeys[k] = tier
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if len(validKeys) == 0 {
				ctx := withCaller(r.Context(), clientIP(r), tierCapabilities["enterprise"])
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			tier, ok := validKeys[token]
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}

			ctx := withCaller(r.Context(), token, CapabilitiesForTier(tier))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withCaller(ctx context.Context, callerID string, caps mode.Set) context.Context {
	ctx = context.WithValue(ctx, callerIDKey, callerID)
	return context.WithValue(ctx, capabilitiesKey, caps)
}

// CallerID returns the authenticated caller identity (API key, or client
// IP when auth is disabled).
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerIDKey).(string)
	return id
}

// Capabilities returns the caller's tier capability set.
func Capabilities(ctx context.Context) mode.Set {
	caps, _ := ctx.Value(capabilitiesKey).(mode.Set)
	return caps
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
