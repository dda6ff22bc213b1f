// Package camera defines frame sources and the buffer policy between them and
// the tracking session.
//
// A Source delivers frames to a Listener on its own goroutine:
//
//	Open → PreviewStarted(params) → PreviewFrame(frame)* → Close → PreviewStopped
//
// Flow control is lossy. Sources that recycle buffers (DeliveryPooled) drop a
// frame when every pooled buffer is still held by the consumer; sources that
// allocate per frame (DeliveryCallback) rely on the consumer's mailbox to
// supersede stale frames.
package camera

import (
	"context"
	"errors"
)

var (
	// ErrNoCamera is returned by Open when no capture device is available.
	ErrNoCamera = errors.New("camera: no camera available")

	// ErrCameraBusy is returned by Open when the device cannot be acquired.
	ErrCameraBusy = errors.New("camera: device busy")

	// ErrAlreadyOpen is returned by Open on an already open source.
	ErrAlreadyOpen = errors.New("camera: source already open")
)

// Listener receives preview lifecycle events and frames.
//
// PreviewFrame is called on the source's capture goroutine. The listener owns
// the frame and must Release it.
type Listener interface {
	PreviewStarted(p Params)
	PreviewFrame(f *Frame)
	PreviewStopped()
}

// Source is a camera capture device.
type Source interface {
	// Open acquires the device and starts capture. PreviewStarted is called
	// once the frame geometry is known.
	Open(ctx context.Context, l Listener) error

	// Close stops capture, releases the device and then calls PreviewStopped
	// exactly once. Calling Close on a source that is not open is a no-op.
	Close() error

	// Capabilities reports what the source supports. It is fixed for the
	// lifetime of the source.
	Capabilities() Capabilities
}

// Capabilities describes optional source features, probed once at construction.
type Capabilities struct {
	// BufferPool is true when the source can recycle frame buffers.
	BufferPool bool
}

// Delivery selects how frame buffers are handed to the listener.
type Delivery int

const (
	// DeliveryCallback allocates a fresh buffer per frame.
	DeliveryCallback Delivery = iota
	// DeliveryPooled recycles buffers from a fixed BufferPool.
	DeliveryPooled
)

func (d Delivery) String() string {
	switch d {
	case DeliveryPooled:
		return "pooled"
	default:
		return "callback"
	}
}

// Negotiate picks the delivery mode once, at startup: pooled delivery when
// requested and supported, plain callbacks otherwise.
func Negotiate(caps Capabilities, want Delivery) Delivery {
	if want == DeliveryPooled && caps.BufferPool {
		return DeliveryPooled
	}
	return DeliveryCallback
}
