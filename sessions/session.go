package sessions

import (
	"github.com/jrsteele09/go-console-session/users"
)

// Durable storage keys. These are shared with the browser console, so they
// must not change.
const (
	KeyAuthToken   = "auth-token"
	KeyCSRFToken   = "csrf-token"
	KeyCurrentUser = "currentUser"
)

// Session is the signed in state. It is owned by Store and only ever
// handed out as a copy.
type Session struct {
	AccessToken string             // Bearer token, three dot separated segments
	CSRFToken   string             // Anti forgery value issued with the access token
	User        *users.UserSummary // Set at login, unchanged by refresh
}

// Storage is the durable key/value mirror of the session (localStorage in the browser).
type Storage interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set stores value under key
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
