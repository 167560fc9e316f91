package auth

import (
	"net/http"
	"strings"
)

// Roles are ordered: a custodian may do everything a viewer may, and an
// admin everything a custodian may.
const (
	RoleViewer    = "viewer"
	RoleCustodian = "custodian"
	RoleAdmin     = "admin"
)

var roleLevels = map[string]int{
	RoleViewer:    1,
	RoleCustodian: 2,
	RoleAdmin:     3,
}

func HasAtLeast(roles []string, required string) bool {
	requiredLevel := roleLevels[strings.ToLower(required)]
	if requiredLevel == 0 {
		return false
	}
	maxLevel := 0
	for _, role := range roles {
		level := roleLevels[strings.ToLower(strings.TrimSpace(role))]
		if level > maxLevel {
			maxLevel = level
		}
	}
	return maxLevel >= requiredLevel
}

// RequiredRoleForRequest maps reads to viewer, custody appends to custodian
// and anything else to admin.
func RequiredRoleForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	case http.MethodPost:
		if strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), "/custody-events") {
			return RoleCustodian
		}
		return RoleAdmin
	default:
		return RoleAdmin
	}
}

func MethodRoleAuthorizer() AuthorizeFunc {
	return func(r *http.Request, identity Identity) error {
		if HasAtLeast(identity.Roles, RequiredRoleForRequest(r)) {
			return nil
		}
		return ErrForbidden
	}
}
