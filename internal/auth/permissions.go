package auth

import (
	"errors"
	"slices"

	"flulance/internal/models"
)

// Roles as they appear in token claims.
const (
	RoleBrand   = string(models.UserRoleBrand)
	RoleCreator = string(models.UserRoleCreator)
	RoleAdmin   = string(models.UserRoleAdmin)
)

// Permissions granted per role.
const (
	PermJobsWrite          = "jobs:write"
	PermApplicationsWrite  = "applications:write"
	PermApplicationsDecide = "applications:decide"
	PermChat               = "chat:use"
	PermReviewsWrite       = "reviews:write"
	PermSystemAdmin        = "system:admin"
)

var Permissions = map[string][]string{
	RoleAdmin: {
		PermJobsWrite,
		PermApplicationsDecide,
		PermChat,
		PermSystemAdmin,
	},
	RoleBrand: {
		PermJobsWrite,
		PermApplicationsDecide,
		PermChat,
		PermReviewsWrite,
	},
	RoleCreator: {
		PermApplicationsWrite,
		PermChat,
		PermReviewsWrite,
	},
}

// HasPermission reports whether the role grants permission.
func HasPermission(role, permission string) bool {
	return slices.Contains(Permissions[role], permission)
}

func ValidateRole(role string) error {
	if !models.UserRole(role).IsValid() {
		return errors.New("invalid role")
	}
	return nil
}
