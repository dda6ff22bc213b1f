// Package render drives the tracking overlay: a render-when-dirty loop that
// draws a pluggable Scene onto a Surface.
//
// The driver owns no tracking state. Scenes read marker poses from the
// session on every draw, so values may be one frame stale relative to the
// processing goroutine.
package render
