package users

import (
	"strings"
)

// RoleType is a role name as issued by the backend in the role_name claim
type RoleType string

const (
	RoleSuperAdmin RoleType = "super_admin" // Satisfies every permission check
	RoleAdmin      RoleType = "admin"
	RoleManager    RoleType = "manager"
	RoleVolunteer  RoleType = "volunteer"
)

// BackendUser is the user object returned by the login endpoint.
// Only id, email and name are guaranteed; the remaining fields are used when present.
type BackendUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
}

// UserSummary is the signed in user as persisted under the currentUser key.
// It is derived once at login and not modified until the next login.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

// SummaryFrom derives a UserSummary from the backend's user object.
// A missing first/last name is split out of Name and a missing username
// falls back to the local part of the email address.
func SummaryFrom(u BackendUser) *UserSummary {
	first, last := u.FirstName, u.LastName
	if first == "" && last == "" {
		first, last = splitName(u.Name)
	}

	username := u.Username
	if username == "" {
		username, _, _ = strings.Cut(u.Email, "@")
	}

	return &UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: first,
		LastName:  last,
		Username:  username,
	}
}

// DisplayName returns "First Last", falling back to the username
func (u *UserSummary) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
