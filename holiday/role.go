package holiday

import (
	"fmt"
	"strconv"
	"strings"
)

// Discord caps role names at 100 characters; the " MM-DD" suffix takes six.
const maxNameLen = 94

// RoleName builds the canonical role name for a holiday, "Name MM-DD". The
// date suffix keeps names unique across holidays that share a display name
// and lets stale roles from removed holidays be recognized later.
func RoleName(h Holiday) string {
	name := h.Name
	if h.DisplayName != "" {
		name = h.DisplayName
	}
	return fmt.Sprintf("%s %s", name, h.Date)
}

// IsHolidayRole reports whether a role name carries the MM-DD suffix this
// package generates.
func IsHolidayRole(roleName string) bool {
	idx := strings.LastIndex(roleName, " ")
	if idx < 0 {
		return false
	}
	return ValidateDate(roleName[idx+1:]) == nil
}

// ParseColor converts a #RRGGBB string to the integer Discord expects for
// role colors.
func ParseColor(color string) (int, error) {
	if err := ValidateColor(color); err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(color[1:], 16, 32)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// RoleAction is what the role manager should do for a holiday entering its
// active phase.
type RoleAction string

const (
	// RoleActionCreate means no role for this holiday exists yet.
	RoleActionCreate RoleAction = "create"
	// RoleActionUpdate means an existing role should be refreshed in place,
	// preserving member assignments.
	RoleActionUpdate RoleAction = "update"
)

// DecideRoleAction matches a holiday against the guild's existing role names
// and picks update when a holiday role starting with this holiday's name (or
// display name) already exists, case-insensitive, create otherwise. Matching
// on the name rather than the date suffix keeps two holidays sharing a date
// from adopting each other's roles, and lets a role follow its holiday when
// the configured date changes. The matched role name is returned for updates.
func DecideRoleAction(h Holiday, existing []string) (RoleAction, string) {
	prefixes := []string{strings.ToLower(h.Name) + " "}
	if h.DisplayName != "" {
		prefixes = append(prefixes, strings.ToLower(h.DisplayName)+" ")
	}
	for _, roleName := range existing {
		if !IsHolidayRole(roleName) {
			continue
		}
		lowered := strings.ToLower(roleName)
		for _, prefix := range prefixes {
			if strings.HasPrefix(lowered, prefix) {
				return RoleActionUpdate, roleName
			}
		}
	}
	return RoleActionCreate, ""
}
