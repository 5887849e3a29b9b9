package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DBResolver verifies a bearer session token against the sessions table and
// resolves it to a Principal, caching hits briefly so a busy tenant's event
// stream connections don't each re-query on every reconnect.
type DBResolver struct {
	db     *sql.DB
	logger *zap.Logger

	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	principal Principal
	expiresAt time.Time
}

// NewDBResolver builds a resolver with the given cache TTL (0 disables
// caching, resolving every request against the database).
func NewDBResolver(db *sql.DB, logger *zap.Logger, ttl time.Duration) *DBResolver {
	return &DBResolver{
		db:      db,
		logger:  logger,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (r *DBResolver) Resolve(ctx *gin.Context, sessionToken string) (Principal, error) {
	if r.ttl > 0 {
		if p, ok := r.cached(sessionToken); ok {
			return p, nil
		}
	}

	var p Principal
	var roles sql.NullString
	var fingerprint sql.NullString
	err := r.db.QueryRowContext(ctx.Request.Context(), `
		SELECT tenant_id, user_id, roles, device_fingerprint
		FROM sessions
		WHERE session_token = $1 AND expires_at > now()
		LIMIT 1`, sessionToken).Scan(&p.TenantID, &p.UserID, &roles, &fingerprint)
	if err == sql.ErrNoRows {
		return Principal{}, ErrNoPrincipal
	}
	if err != nil {
		return Principal{}, fmt.Errorf("tenant: resolve session: %w", err)
	}
	if roles.Valid && roles.String != "" {
		p.Roles = splitCSV(roles.String)
	}
	if fingerprint.Valid {
		p.DeviceFingerprint = fingerprint.String
	}

	if r.ttl > 0 {
		r.store(sessionToken, p)
	}
	return p, nil
}

func (r *DBResolver) cached(token string) (Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[token]
	if !ok || time.Now().After(e.expiresAt) {
		return Principal{}, false
	}
	return e.principal, true
}

func (r *DBResolver) store(token string, p Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[token] = cacheEntry{principal: p, expiresAt: time.Now().Add(r.ttl)}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

var _ PrincipalResolver = (*DBResolver)(nil)
