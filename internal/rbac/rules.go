package rbac

// Default policy for the paper-copy service. "attempt:delete" is the
// grading-delete capability that gates usage deletion.
var RolePermissions = map[string][]string{
	"teacher": {
		"batch:create",
		"batch:view",
		"batch:delete",
		"usage:associate",
		"usage:disassociate",
		"attempt:delete",
		"grade:import",
		"artifact:read",
		"artifact:write",
	},
	"admin": {
		"*", // everything
	},
}
