package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCacheManager(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"NewCacheManagerDisabled", testNewCacheManagerDisabled},
		{"NewCacheManagerNilConfig", testNewCacheManagerNilConfig},
		{"InvalidateAllClearsBothCaches", testInvalidateAllClearsBothCaches},
		{"NilCacheManagerSafe", testNilCacheManagerSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func testNewCacheManagerDisabled(t *testing.T) {
	if cm := NewCacheManager(&CacheConfig{Enabled: false}); cm != nil {
		t.Fatal("expected nil CacheManager when disabled")
	}
}

func testNewCacheManagerNilConfig(t *testing.T) {
	if cm := NewCacheManager(nil); cm != nil {
		t.Fatal("expected nil CacheManager for nil config")
	}
}

func testInvalidateAllClearsBothCaches(t *testing.T) {
	cm := NewCacheManager(DefaultCacheConfig())
	cm.projects.Set("/api/projects", []byte("{}"))
	cm.audit.Set("/api/audit/ACD000001", []byte("{}"))

	cm.InvalidateAll()

	if cm.projects.Size() != 0 || cm.audit.Size() != 0 {
		t.Fatalf("expected both caches empty, got %d and %d", cm.projects.Size(), cm.audit.Size())
	}
}

func testNilCacheManagerSafe(t *testing.T) {
	var cm *CacheManager
	cm.InvalidateAll()

	calls := 0
	h := cm.ProjectsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	if calls != 2 {
		t.Fatalf("expected passthrough, got %d calls", calls)
	}
}
