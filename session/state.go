package session

import (
	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/users"
)

// State is what consumers see of the current session. Values handed out by
// the Manager are copies; mutating them has no effect on the cache.
type State struct {
	Authenticated bool                `json:"isAuthenticated"`
	Attributes    identity.Attributes `json:"userAttributes"`
	Username      string              `json:"username"`
	Role          users.Role          `json:"userRole"`
	Loading       bool                `json:"loading"`
}

// unauthenticated is the single terminal state every failure converges on.
func unauthenticated(loading bool) State {
	return State{
		Authenticated: false,
		Attributes:    identity.Attributes{},
		Role:          users.RoleStudent,
		Loading:       loading,
	}
}

func authenticated(attrs identity.Attributes, username string, role users.Role, loading bool) State {
	return State{
		Authenticated: true,
		Attributes:    attrs.Clone(),
		Username:      username,
		Role:          role,
		Loading:       loading,
	}
}

func (s State) clone() State {
	s.Attributes = s.Attributes.Clone()
	return s
}
