// Package cvcamera captures BGR frames through OpenCV (gocv).
//
// The OpenCV backend is compiled only with the "gocv" build tag; without it
// Open fails with ErrNotBuilt.
package cvcamera

import (
	"errors"

	"github.com/e7canasta/arlink/camera"
)

// ErrNotBuilt is returned by Open when the binary was built without OpenCV.
var ErrNotBuilt = errors.New("camera: opencv support not built (use -tags gocv)")

// Config configures an OpenCV capture.
type Config struct {
	DeviceID    int
	Width       int
	Height      int
	FPS         int
	FrontFacing bool
	PoolBuffers int
	Delivery    camera.Delivery
}

func (c *Config) setDefaults() {
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 640, 480
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
}
