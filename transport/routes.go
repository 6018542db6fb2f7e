package transport

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-console-session/api"
)

// Class is how the transport treats a request
type Class int

const (
	// ClassProtected requests carry the bearer token and are refreshed and retried on 401
	ClassProtected Class = iota
	// ClassAuth requests pass through without a bearer token or 401 handling
	ClassAuth
	// ClassLogout is passed through like ClassAuth
	ClassLogout
	// ClassExternal targets a third party with its own auth; nothing is added
	ClassExternal
)

func (c Class) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassLogout:
		return "logout"
	case ClassExternal:
		return "external"
	default:
		return "protected"
	}
}

// Routes classifies outbound request URLs
type Routes struct {
	Auth     []string // path suffixes of unauthenticated auth endpoints
	Refresh  string   // path suffix of the refresh endpoint
	Logout   []string
	External []string // absolute URL prefixes of external APIs
	Uploads  []string // path prefixes that get the upload timeout
}

// DefaultRoutes are the backend's auth, logout and upload routes. No external
// API is configured.
func DefaultRoutes() Routes {
	return Routes{
		Auth:    append([]string(nil), api.AuthRoutes...),
		Refresh: api.RouteAuthRefresh,
		Logout:  []string{api.RouteAuthLogout},
		Uploads: []string{"/api/uploads", "/api/files"},
	}
}

// WithExternal returns a copy of r that also treats urls as external APIs.
// Empty values are ignored.
func (r Routes) WithExternal(urls ...string) Routes {
	external := append([]string(nil), r.External...)
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			external = append(external, u)
		}
	}
	r.External = external
	return r
}

// Classify returns the class of u. External prefixes win over paths.
func (r Routes) Classify(u *url.URL) Class {
	full := u.String()
	for _, prefix := range r.External {
		if strings.HasPrefix(full, prefix) {
			return ClassExternal
		}
	}
	for _, suffix := range r.Logout {
		if strings.HasSuffix(u.Path, suffix) {
			return ClassLogout
		}
	}
	if r.IsRefresh(u) {
		return ClassAuth
	}
	for _, suffix := range r.Auth {
		if strings.HasSuffix(u.Path, suffix) {
			return ClassAuth
		}
	}
	return ClassProtected
}

func (r Routes) IsRefresh(u *url.URL) bool {
	return r.Refresh != "" && strings.HasSuffix(u.Path, r.Refresh)
}

// IsUpload reports whether req goes to an upload endpoint or carries a multipart body
func (r Routes) IsUpload(req *http.Request) bool {
	for _, prefix := range r.Uploads {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return true
		}
	}
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
