// Package auth answers role-membership questions for privileged
// operations. There is no hierarchy and no inheritance: an actor is
// authorized when their role set intersects the required set.
package auth

// Actor is whoever invoked a command, reduced to the capability set the
// platform handed us.
type Actor struct {
	ID    string
	Roles []string
}

// Authorized reports whether the actor holds at least one required role.
// An empty required set means the operation is open to everyone.
func Authorized(actor Actor, required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(actor.Roles))
	for _, r := range actor.Roles {
		held[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}
