package cache

import (
	"net/http"
)

// CacheManager holds separate caches for project reads and audit reads.
// A nil *CacheManager is valid and caches nothing.
type CacheManager struct {
	projects *LRUCache
	audit    *LRUCache
	vary     []string
}

// NewCacheManager creates a CacheManager from cfg. Requests are keyed on the
// given vary headers in addition to their URI. Returns nil when cfg is nil or
// disabled.
func NewCacheManager(cfg *CacheConfig, vary ...string) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{
		projects: NewLRUCache(cfg.MaxSize, cfg.ProjectsTTL),
		audit:    NewLRUCache(cfg.MaxSize, cfg.AuditTTL),
		vary:     vary,
	}
}

// InvalidateAll clears both caches. It is registered as the commit hook of
// the investigation service, so any committed mutation drops every entry.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.projects.InvalidateAll()
	cm.audit.InvalidateAll()
}

// ProjectsMiddleware caches project list and detail responses.
func (cm *CacheManager) ProjectsMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return CacheMiddleware(cm.projects, cm.vary...)
}

// AuditMiddleware caches audit trail responses.
func (cm *CacheManager) AuditMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return CacheMiddleware(cm.audit, cm.vary...)
}

func passthrough(next http.Handler) http.Handler { return next }
