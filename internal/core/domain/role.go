package domain

import (
	"fmt"
	"strings"
)

// Role is a rank in the moderation hierarchy. The zero value is RoleDefault.
type Role int

const (
	RoleDefault Role = iota
	RoleBlueID
	RoleSpeaker
	RoleManager
	RoleModerator
	RoleSummit
	RoleOperator
)

var roleNames = map[Role]string{
	RoleDefault:   "default",
	RoleBlueID:    "blue_id",
	RoleSpeaker:   "speaker",
	RoleManager:   "manager",
	RoleModerator: "moderator",
	RoleSummit:    "summit",
	RoleOperator:  "operator",
}

// MutableRoles lists the roles that can be granted and revoked in-band, lowest first.
// Operator membership is configuration-only; default and blue_id are implicit.
var MutableRoles = []Role{RoleSpeaker, RoleManager, RoleModerator, RoleSummit}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Rank returns the position of r in the total order. Unknown roles rank 0.
func (r Role) Rank() int {
	if _, ok := roleNames[r]; !ok {
		return 0
	}
	return int(r)
}

// IsMutable reports whether r has a bucket in the role store.
func (r Role) IsMutable() bool {
	for _, m := range MutableRoles {
		if m == r {
			return true
		}
	}
	return false
}

// Below returns the next mutable role under r, or RoleBlueID when r is the
// lowest mutable role.
func (r Role) Below() Role {
	prev := RoleBlueID
	for _, m := range MutableRoles {
		if m == r {
			return prev
		}
		prev = m
	}
	return RoleBlueID
}

// ParseRole resolves a role name such as "moderator". Matching is case-insensitive.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r, n := range roleNames {
		if n == name {
			return r, true
		}
	}
	return RoleDefault, false
}

// HasPermission reports whether actual ranks at least as high as required.
func HasPermission(actual, required Role) bool {
	return actual.Rank() >= required.Rank()
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, string(b))
	}
	*r = parsed
	return nil
}
