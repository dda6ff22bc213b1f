package camera

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Pixel format names handed to the tracking engine at push-init.
const (
	PixelFormatNV21 = "NV21"
	PixelFormatYUYV = "yuvs"
	PixelFormatBGR  = "BGR"
	PixelFormatRGBA = "RGBA"
	PixelFormatI420 = "I420"
)

// FrameSize returns the byte size of one frame in the given pixel format,
// or 0 if the format is unknown.
//
// NV21 and I420 carry a full-resolution luma plane plus two quarter-size
// chroma planes: w*h + 2*(w/2)*(h/2).
func FrameSize(pixelFormat string, width, height int) int {
	switch pixelFormat {
	case PixelFormatNV21, PixelFormatI420:
		return width*height + 2*(width/2)*(height/2)
	case PixelFormatYUYV:
		return width * height * 2
	case PixelFormatBGR:
		return width * height * 3
	case PixelFormatRGBA:
		return width * height * 4
	default:
		return 0
	}
}

// Plane is one image plane of a frame.
type Plane struct {
	Data        []byte
	PixelStride int
	RowStride   int
}

// Frame is one captured camera image.
//
// Ownership: the frame belongs to whoever holds it last. Consumers MUST call
// Release once they are done so pooled buffers return to their source.
// Release is idempotent.
type Frame struct {
	Planes      []Plane
	Width       int
	Height      int
	PixelFormat string
	CameraIndex int
	FrontFacing bool

	// Seq is assigned by the source, monotonically increasing per Open.
	Seq       uint64
	Timestamp time.Time
	TraceID   string

	release  func()
	released atomic.Bool
}

// SetRelease installs the callback run by the first Release call.
func (f *Frame) SetRelease(fn func()) {
	f.release = fn
}

// Release hands the frame's buffers back to their owner. Only the first call
// has an effect.
func (f *Frame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.release != nil {
		f.release()
	}
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// Bytes returns the data of the first plane, the whole frame for packed formats.
func (f *Frame) Bytes() []byte {
	if len(f.Planes) == 0 {
		return nil
	}
	return f.Planes[0].Data
}

// Params describes a started preview.
type Params struct {
	Width       int
	Height      int
	Rate        int
	PixelFormat string
	CameraIndex int
	FrontFacing bool
}

// String formats the preview as "WxH@Rfps".
func (p Params) String() string {
	return fmt.Sprintf("%dx%d@%dfps", p.Width, p.Height, p.Rate)
}
