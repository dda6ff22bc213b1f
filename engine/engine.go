// Package engine declares the call surface of the native tracking engine.
//
// The engine itself (ARToolKit's ARWrapper library) is external: marker
// detection, pose estimation and binarization happen on the other side of
// this interface. The contract mirrors the native exports one to one:
//
//   - argument order is preserved
//   - boolean calls report failure as false
//   - integer calls report failure as a negative value (AddMarker: -1)
//
// Callers never distinguish failure subtypes. Any failure is handled the same
// way: log it and abort the current operation.
//
// Implementations:
//   - engine/arwrapper: cgo binding to libARWrapper (build tag "arwrapper")
//   - engine/enginetest: recording fake used by tests
package engine

// Engine is the fixed native call surface.
//
// Thread-safety: implementations are not required to be safe for concurrent
// use. session.Session serializes every call.
type Engine interface {
	// --- Engine lifecycle ---

	// Version returns the native library version string.
	Version() string

	// Initialise initialises the native library with default template sizing.
	Initialise() bool

	// InitialiseWithOptions initialises the native library.
	// pattSize is the template edge length in pixels, pattCountMax the
	// maximum number of templates loaded at once.
	InitialiseWithOptions(pattSize, pattCountMax int) bool

	// ChangeToResourcesDir changes the native working directory.
	ChangeToResourcesDir(resourcesDirectoryPath string) bool

	// Shutdown releases all native state, markers included.
	Shutdown() bool

	// --- Run control ---

	// StartRunning starts tracking with the given video configuration string,
	// camera parameter file and clip planes.
	StartRunning(vconf, cparaName string, nearPlane, farPlane float32) bool

	// StopRunning stops tracking.
	StopRunning() bool

	// IsRunning reports whether tracking is running.
	IsRunning() bool

	// ProjectionMatrix returns the column-major OpenGL projection matrix.
	ProjectionMatrix() ([16]float32, bool)

	// --- Video push ---

	// VideoPushInit opens a push session. Returns 0 on success, negative on error.
	VideoPushInit(videoSourceIndex, width, height int, pixelFormat string, cameraIndex, cameraFace int) int

	// VideoPush1 pushes a single contiguous frame buffer.
	// Returns 0 on success, negative on error.
	VideoPush1(videoSourceIndex int, buf []byte) int

	// VideoPush2 pushes a frame made of up to four planes.
	// Unused planes are the zero Plane. Returns 0 on success, negative on error.
	VideoPush2(videoSourceIndex int, planes [MaxPlanes]Plane) int

	// VideoPushFinal closes the push session. Returns 0 on success, negative on error.
	VideoPushFinal(videoSourceIndex int) int

	// --- Per-frame pipeline ---

	// Capture reports whether a new frame is ready.
	Capture() bool

	// UpdateAR runs detection on the last captured frame.
	UpdateAR() bool

	// UpdateDebugTexture32 copies the debug image (4 bytes per pixel) into buf.
	UpdateDebugTexture32(buf []byte) bool

	// --- Marker management ---

	// AddMarker registers a marker from a configuration string such as
	// "single;Data/hiro.patt;80". Returns the marker UID or -1.
	AddMarker(cfg string) int

	// RemoveMarker removes a marker by UID.
	RemoveMarker(markerUID int) bool

	// RemoveAllMarkers removes every marker and returns how many were removed.
	RemoveAllMarkers() int

	// QueryMarkerVisibility reports whether the marker was seen in the last update.
	QueryMarkerVisibility(markerUID int) bool

	// QueryMarkerTransformation returns the column-major 4x4 marker pose.
	// ok is false when the marker is not visible.
	QueryMarkerTransformation(markerUID int) (matrix [16]float32, ok bool)

	SetMarkerOptionBool(markerUID int, option MarkerOption, value bool)
	SetMarkerOptionInt(markerUID int, option MarkerOption, value int)
	SetMarkerOptionFloat(markerUID int, option MarkerOption, value float32)
	MarkerOptionBool(markerUID int, option MarkerOption) bool
	MarkerOptionInt(markerUID int, option MarkerOption) int
	MarkerOptionFloat(markerUID int, option MarkerOption) float32

	// --- Global parameters ---

	SetVideoDebugMode(debug bool)
	VideoDebugMode() bool
	SetVideoThreshold(threshold int)
	VideoThreshold() int
	SetVideoThresholdMode(mode ThresholdMode)
	VideoThresholdMode() ThresholdMode
	SetLabelingMode(mode LabelingMode)
	LabelingMode() LabelingMode
	SetPatternDetectionMode(mode PatternDetectionMode)
	PatternDetectionMode() PatternDetectionMode
	SetMatrixCodeType(codeType MatrixCodeType)
	MatrixCodeType() MatrixCodeType
	SetBorderSize(size float32)
	BorderSize() float32
	SetImageProcMode(mode ImageProcMode)
	ImageProcMode() ImageProcMode
}

// MaxPlanes is the maximum number of planes VideoPush2 accepts.
const MaxPlanes = 4

// Plane is one image plane handed to VideoPush2.
type Plane struct {
	Data        []byte
	PixelStride int
	RowStride   int
}

// CameraFace encodes camera facing for VideoPushInit.
func CameraFace(frontFacing bool) int {
	if frontFacing {
		return 1
	}
	return 0
}
