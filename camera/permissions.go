package camera

// Permissions is the runtime camera permission gate.
//
// Request is asynchronous: the host reports the outcome later through
// screen.Screen.OnPermissionResult.
type Permissions interface {
	Granted() bool
	Request()
}

// StaticPermissions is a fixed answer, for hosts without a permission model.
type StaticPermissions bool

func (s StaticPermissions) Granted() bool { return bool(s) }
func (s StaticPermissions) Request()      {}
