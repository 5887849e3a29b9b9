package tenant

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PrincipalResolver is the external auth collaborator's contract: given a
// bearer token, return the verified principal. The core never verifies
// sessions itself — it only consumes this result.
type PrincipalResolver interface {
	Resolve(ctx *gin.Context, sessionToken string) (Principal, error)
}

// Middleware injects a Principal into the request context for every route
// except the public allowlist (/health, /metrics and /admin/ paths), by asking a
// PrincipalResolver to verify the bearer token.
type Middleware struct {
	resolver PrincipalResolver
}

func NewMiddleware(resolver PrincipalResolver) *Middleware {
	if resolver == nil {
		panic("tenant: principal resolver is required")
	}
	return &Middleware{resolver: resolver}
}

// isPublicEndpoint exempts operational routes from principal resolution.
// Registry reload is process-wide configuration, not tenant data, and is
// assumed to sit behind a network boundary operators already control.
func isPublicEndpoint(path string) bool {
	public := []string{"/health", "/metrics", "/admin/"}
	for _, p := range public {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Gin returns the gin.HandlerFunc form of the middleware.
func (m *Middleware) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		principal, err := m.resolver.Resolve(c, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		ctx := WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// StaticResolver is a PrincipalResolver backed by a fixed lookup table,
// useful for tests and single-tenant deployments where the collaborator
// boundary is trivial.
type StaticResolver struct {
	Tokens map[string]Principal
}

func (s *StaticResolver) Resolve(_ *gin.Context, token string) (Principal, error) {
	p, ok := s.Tokens[token]
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}

var _ PrincipalResolver = (*StaticResolver)(nil)
