// Package arwrapper binds engine.Engine to the native ARWrapper library.
//
// The binding is compiled only with the "arwrapper" build tag and needs
// libARWrapper on the linker path:
//
//	CGO_LDFLAGS="-L/opt/artoolkit/lib" go build -tags arwrapper ./cmd/arlinkd
//
// Without the tag New returns ErrNotLinked, which hosts report the same way
// as a failed native initialisation.
package arwrapper

import "errors"

// ErrNotLinked is returned by New when the native library was not linked in.
var ErrNotLinked = errors.New("arwrapper: native library not loaded")
