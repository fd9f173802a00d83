package users

import "fmt"

// Role is the single access-control axis. Agents score their own calls,
// managers additionally run the team dashboard and rubric library, admins
// additionally operate the usage ledger and user accounts.
type Role string

const (
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

type Permission string

const (
	PermUploadTranscripts Permission = "transcripts:write"
	PermRunAnalysis       Permission = "analysis:run"
	PermUseRoleplay       Permission = "roleplay:use"
	PermViewOwnUsage      Permission = "usage:read:own"
	PermManageRubrics     Permission = "rubrics:write"
	PermViewTeamReports   Permission = "reports:read:team"
	PermManageUsers       Permission = "users:manage"
	PermManageUsage       Permission = "usage:manage"
	PermViewAuditLog      Permission = "audit:read"
)

// rolePermissions is the whole permission model: a flat capability set per
// role, no inheritance.
var rolePermissions = map[Role][]Permission{
	RoleAgent: {
		PermUploadTranscripts,
		PermRunAnalysis,
		PermUseRoleplay,
		PermViewOwnUsage,
	},
	RoleManager: {
		PermUploadTranscripts,
		PermRunAnalysis,
		PermUseRoleplay,
		PermViewOwnUsage,
		PermManageRubrics,
		PermViewTeamReports,
	},
	RoleAdmin: {
		PermUploadTranscripts,
		PermRunAnalysis,
		PermUseRoleplay,
		PermViewOwnUsage,
		PermManageRubrics,
		PermViewTeamReports,
		PermManageUsers,
		PermManageUsage,
		PermViewAuditLog,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// ParseRole validates a role string from a request or token claim.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAgent, RoleManager, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
