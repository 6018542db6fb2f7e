package api

import (
	"github.com/jrsteele09/go-console-session/users"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string            `json:"accessToken"`
	CSRFToken   string            `json:"csrfToken,omitempty"`
	User        users.BackendUser `json:"user"`
}

// RefreshResponse is returned by POST /api/auth/refresh. The long lived
// credential travels in a cookie, never in the body.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	CSRFToken   string `json:"csrfToken,omitempty"`
}

// PermissionsResponse is returned by GET /api/rbac/my-permissions
type PermissionsResponse struct {
	Data struct {
		Permissions []string `json:"permissions"`
		Role        string   `json:"role"`
	} `json:"data"`
}

// CheckPermissionRequest is the body of POST /api/rbac/check-permission
type CheckPermissionRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// CheckPermissionResponse is returned by POST /api/rbac/check-permission
type CheckPermissionResponse struct {
	Data struct {
		HasPermission bool `json:"has_permission"`
	} `json:"data"`
}

// RolePermissionRequest grants or revokes one "resource:action" permission on a role
type RolePermissionRequest struct {
	Permission string `json:"permission"`
}

// errorResponse covers the two error body shapes the backend produces
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
