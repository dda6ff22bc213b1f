package screen

import "fmt"

// State is the screen lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateNativeInitialized
	StateAwaitingPermission
	StateCameraOpen
	StateVideoRunning
	StateStopped
	StateFinalized
	// StateClosed is terminal: an initialisation step failed.
	StateClosed
)

var stateNames = map[State]string{
	StateUninitialized:      "uninitialized",
	StateNativeInitialized:  "native_initialized",
	StateAwaitingPermission: "awaiting_permission",
	StateCameraOpen:         "camera_open",
	StateVideoRunning:       "video_running",
	StateStopped:            "stopped",
	StateFinalized:          "finalized",
	StateClosed:             "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}
