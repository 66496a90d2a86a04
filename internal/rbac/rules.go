package rbac

const (
	PermMaterialCreate    = "material:create"
	PermMaterialEditOwn   = "material:edit_own"
	PermMaterialDeleteOwn = "material:delete_own"
	PermMaterialViewOwn   = "material:view_own"
	PermQuizView          = "quiz:view"
	PermFileView          = "file:view"
	PermChangePassword    = "user:change_password"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"student": {
		PermQuizView,
		PermFileView,
		PermChangePassword,
	},
	"lecturer": {
		"material:*",
		PermQuizView,
		PermFileView,
		PermChangePassword,
	},
	"admin": {
		"*",
	},
}
