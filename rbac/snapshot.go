package rbac

import (
	"sort"
	"strings"

	"github.com/jrsteele09/go-console-session/users"
)

// DefaultSuperAdminRole satisfies every permission query
const DefaultSuperAdminRole = string(users.RoleSuperAdmin)

// Permission formats a "resource:action" permission string
func Permission(resource, action string) string {
	return resource + ":" + action
}

// ParsePermission splits a "resource:action" string
func ParsePermission(permission string) (Requirement, bool) {
	resource, action, ok := strings.Cut(permission, ":")
	if !ok || resource == "" || action == "" {
		return Requirement{}, false
	}
	return Requirement{Resource: resource, Action: action}, true
}

// Snapshot is the caller's role and permissions at one point in time. It is
// immutable; the cache replaces it wholesale.
type Snapshot struct {
	Role        string
	RoleID      string
	Permissions []string // sorted, no duplicates
	SuperAdmin  bool
}

func newSnapshot(role, roleID string, permissions []string, superAdminRole string) Snapshot {
	perms := make([]string, 0, len(permissions))
	seen := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	sort.Strings(perms)

	return Snapshot{
		Role:        role,
		RoleID:      roleID,
		Permissions: perms,
		SuperAdmin:  role != "" && role == superAdminRole,
	}
}

// Has reports whether the snapshot holds the exact permission string.
// The super admin flag is not consulted.
func (s Snapshot) Has(permission string) bool {
	i := sort.SearchStrings(s.Permissions, permission)
	return i < len(s.Permissions) && s.Permissions[i] == permission
}

func (s Snapshot) HasPermission(resource, action string) bool {
	return s.SuperAdmin || s.Has(Permission(resource, action))
}

// with returns a copy of s with permission granted or revoked
func (s Snapshot) with(permission string, granted bool) Snapshot {
	perms := make([]string, 0, len(s.Permissions)+1)
	for _, p := range s.Permissions {
		if p != permission {
			perms = append(perms, p)
		}
	}
	if granted {
		perms = append(perms, permission)
		sort.Strings(perms)
	}
	s.Permissions = perms
	return s
}
