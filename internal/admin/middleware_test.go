package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/users"
)

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		claims     *auth.AccessClaims
		perm       users.Permission
		wantStatus int
	}{
		{
			name:       "admin can manage users",
			claims:     &auth.AccessClaims{UserID: "u1", Role: "admin"},
			perm:       users.PermManageUsers,
			wantStatus: http.StatusOK,
		},
		{
			name:       "manager can manage rubrics",
			claims:     &auth.AccessClaims{UserID: "u2", Role: "manager"},
			perm:       users.PermManageRubrics,
			wantStatus: http.StatusOK,
		},
		{
			name:       "manager cannot manage users",
			claims:     &auth.AccessClaims{UserID: "u2", Role: "manager"},
			perm:       users.PermManageUsers,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "agent cannot manage rubrics",
			claims:     &auth.AccessClaims{UserID: "u3", Role: "agent"},
			perm:       users.PermManageRubrics,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unknown role gets nothing",
			claims:     &auth.AccessClaims{UserID: "u4", Role: "superuser"},
			perm:       users.PermViewOwnUsage,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing claims",
			claims:     nil,
			perm:       users.PermViewOwnUsage,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			handler := RequirePermission(tt.perm)(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				ctx := context.WithValue(req.Context(), auth.UserClaimsKey, tt.claims)
				req = req.WithContext(ctx)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
