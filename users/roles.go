package users

import "strings"

// Role is the portal role of a signed-in user
type Role string

const (
	RoleStudent    Role = "student"    // Takes assessments and reads course material
	RoleInstructor Role = "instructor" // Manages catalogs, sessions, quizzes and surveys
	RoleAdmin      Role = "admin"      // Portal administration
)

// DefaultRoleAttribute is the identity attribute the role is read from.
const DefaultRoleAttribute = "profile"

var roleRank = map[Role]int{
	RoleStudent:    0,
	RoleInstructor: 1,
	RoleAdmin:      2,
}

// ParseRole maps a raw attribute value onto a Role. Unknown or empty values are students.
func ParseRole(value string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleStudent
}

// RoleFromAttributes reads the role from the given attribute key, defaulting to student.
func RoleFromAttributes(attrs map[string]string, key string) Role {
	if key == "" {
		key = DefaultRoleAttribute
	}
	return ParseRole(attrs[key])
}

// AtLeast reports whether r grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[ParseRole(string(r))] >= roleRank[ParseRole(string(other))]
}

func (r Role) String() string {
	return string(r)
}

// usernameAttributes are consulted in order when the identity platform gives no username.
var usernameAttributes = []string{"preferred_username", "username", "email", "sub"}

// UsernameFromAttributes derives a display username from profile attributes.
func UsernameFromAttributes(attrs map[string]string) string {
	for _, k := range usernameAttributes {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}
