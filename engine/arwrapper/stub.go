//go:build !arwrapper

package arwrapper

import "github.com/e7canasta/arlink/engine"

// New reports ErrNotLinked: this binary was built without the native library.
func New() (engine.Engine, error) {
	return nil, ErrNotLinked
}
