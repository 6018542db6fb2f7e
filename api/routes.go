package api

// Backend route paths. Every path the session core calls is defined here.
const (
	// Auth routes. These never carry a bearer token.
	RouteAuthLogin          = "/api/auth/login"
	RouteAuthRegister       = "/api/auth/register"
	RouteAuthRefresh        = "/api/auth/refresh"
	RouteAuthForgotPassword = "/api/auth/forgot-password"
	RouteAuthResetPassword  = "/api/auth/reset-password"
	RouteAuthVerifyEmail    = "/api/auth/verify-email"
	RouteAuthLogout         = "/api/auth/logout"

	// RBAC routes
	RouteMyPermissions   = "/api/rbac/my-permissions"
	RouteCheckPermission = "/api/rbac/check-permission"
	RouteRolePermissions = "/api/rbac/roles/%s/permissions"
)

// Header names
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "x-request-id"
	HeaderCSRFToken     = "X-CSRF-Token"
)

// AuthRoutes are the authentication endpoints that must pass through without a
// bearer token or refresh-on-401 handling.
var AuthRoutes = []string{
	RouteAuthLogin,
	RouteAuthRegister,
	RouteAuthRefresh,
	RouteAuthForgotPassword,
	RouteAuthResetPassword,
	RouteAuthVerifyEmail,
}
