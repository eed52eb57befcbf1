package rbac

import "github.com/backoffice/backoffice/internal/permissions"

// Allows reports whether perms grant action on subject. A permission matches
// when its subject is the required one or "all" and its action is the
// required one or "manage". No permission ever denies.
func Allows(perms []permissions.Config, action permissions.Action, subject permissions.Subject) bool {
	for _, p := range perms {
		if p.Subject != subject && p.Subject != permissions.SubjectAll {
			continue
		}
		if p.Action == action || p.Action == permissions.ActionManage {
			return true
		}
	}
	return false
}
