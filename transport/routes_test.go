package transport_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-console-session/transport"
	"github.com/stretchr/testify/require"
)

func TestRoutes_Classify(t *testing.T) {
	routes := transport.DefaultRoutes().WithExternal("https://members.example.org/api", "  ")
	require.Len(t, routes.External, 1)

	tests := []struct {
		url  string
		want transport.Class
	}{
		{"https://events.example.com/api/auth/login", transport.ClassAuth},
		{"https://events.example.com/api/auth/register", transport.ClassAuth},
		{"https://events.example.com/api/auth/refresh", transport.ClassAuth},
		{"https://events.example.com/api/auth/forgot-password", transport.ClassAuth},
		{"https://events.example.com/api/auth/reset-password", transport.ClassAuth},
		{"https://events.example.com/api/auth/verify-email", transport.ClassAuth},
		{"https://events.example.com/api/auth/logout", transport.ClassLogout},
		{"https://members.example.org/api/search?q=doe", transport.ClassExternal},
		{"https://events.example.com/api/events", transport.ClassProtected},
		{"https://events.example.com/api/rbac/my-permissions", transport.ClassProtected},
		{"https://events.example.com/api/auth/me", transport.ClassProtected},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			require.Equal(t, tt.want, routes.Classify(u), routes.Classify(u).String())
		})
	}
}

func TestRoutes_IsUpload(t *testing.T) {
	routes := transport.DefaultRoutes()

	req, _ := http.NewRequest(http.MethodPost, "https://events.example.com/api/uploads/avatar", nil)
	require.True(t, routes.IsUpload(req))

	req, _ = http.NewRequest(http.MethodPost, "https://events.example.com/api/events/import", strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=abc")
	require.True(t, routes.IsUpload(req))

	req, _ = http.NewRequest(http.MethodPost, "https://events.example.com/api/events", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	require.False(t, routes.IsUpload(req))
}
