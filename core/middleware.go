package core

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "principal"

// AuthRequired verifies the bearer token, then re-resolves the principal from
// the identity stores rather than trusting the token's embedded snapshot.
// A syntactically valid token is still rejected when its subject no longer
// resolves, when the resolved role differs from the role claim, or when a
// member has expired within the token's validity window.
func AuthRequired(tokens *TokenService, resolver *IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			c.Abort()
			return
		}

		id, err := claims.PrincipalID()
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			c.Abort()
			return
		}

		principal, err := resolver.ResolveByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists")
			} else {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to resolve account")
			}
			c.Abort()
			return
		}

		// The role must hold at verification time, not merely at issuance.
		if principal.Role != claims.Role {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			c.Abort()
			return
		}

		if principal.Role == RoleMember && principal.ExpiryDate != nil &&
			!MembershipActive(*principal.ExpiryDate, time.Now()) {
			respondError(c, http.StatusUnauthorized, "MEMBERSHIP_EXPIRED", "membership has expired")
			c.Abort()
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal attached by AuthRequired.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// OwnerOnly ensures the authenticated principal has the OWNER role.
func OwnerOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok || p.Role != RoleOwner {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "owner role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// CORSMiddleware validates Origin/Referer against the allowed list and sets
// CORS headers. Requests without an Origin header (same-origin navigation)
// pass through.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if referer := c.GetHeader("Referer"); referer != "" {
				if u, err := url.Parse(referer); err == nil {
					origin = u.Scheme + "://" + u.Host
				}
			}
		}

		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}
