package rbac

// Requirement is one resource/action pair a caller must hold
type Requirement struct {
	Resource string
	Action   string
}

func (r Requirement) String() string {
	return Permission(r.Resource, r.Action)
}

// Mode says how a list of requirements combines
type Mode int

const (
	ModeAny Mode = iota // at least one must hold (default)
	ModeAll             // every one must hold
)

// Evaluate checks reqs against s. An empty list requires nothing.
func Evaluate(s Snapshot, reqs []Requirement, mode Mode) bool {
	if len(reqs) == 0 {
		return true
	}
	for _, r := range reqs {
		ok := s.HasPermission(r.Resource, r.Action)
		if ok && mode == ModeAny {
			return true
		}
		if !ok && mode == ModeAll {
			return false
		}
	}
	return mode == ModeAll
}

// EvaluateRoles checks roles against the single current role. With ModeAll
// only a list naming nothing but the current role can hold.
func EvaluateRoles(s Snapshot, roles []string, mode Mode) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		ok := s.Role != "" && role == s.Role
		if ok && mode == ModeAny {
			return true
		}
		if !ok && mode == ModeAll {
			return false
		}
	}
	return mode == ModeAll
}
