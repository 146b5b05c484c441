package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRoleMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRole   Role
	}{
		{name: "missing header defaults to RM", header: "", wantStatus: http.StatusOK, wantRole: RoleRM},
		{name: "known role", header: "Quality", wantStatus: http.StatusOK, wantRole: RoleQuality},
		{name: "whitespace trimmed", header: " Admin ", wantStatus: http.StatusOK, wantRole: RoleAdmin},
		{name: "unknown role rejected", header: "Intern", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen Role
			handler := RoleMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = RoleFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set(RoleHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				var body map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["error"] != "Invalid role" {
					t.Errorf("error = %q", body["error"])
				}
				return
			}
			if seen != tt.wantRole {
				t.Errorf("role = %s, want %s", seen, tt.wantRole)
			}
		})
	}
}
