//go:build arwrapper

package arwrapper

/*
#cgo LDFLAGS: -lARWrapper
#include <stdbool.h>
#include <stdlib.h>

bool arwInitialiseAR(void);
bool arwInitialiseARWithOptions(const int pattSize, const int pattCountMax);
bool arwGetARToolKitVersion(char *buffer, int length);
bool arwChangeToResourcesDir(const char *resourcesDirectoryPath);
bool arwStartRunning(const char *vconf, const char *cparaName, const float nearPlane, const float farPlane);
bool arwIsRunning(void);
bool arwStopRunning(void);
bool arwShutdownAR(void);
bool arwGetProjectionMatrix(float p[16]);
bool arwCapture(void);
bool arwUpdateAR(void);
bool arwUpdateDebugTexture32(unsigned int *buffer);
void arwSetVideoDebugMode(bool debug);
bool arwGetVideoDebugMode(void);
void arwSetVideoThreshold(int threshold);
int arwGetVideoThreshold(void);
void arwSetVideoThresholdMode(int mode);
int arwGetVideoThresholdMode(void);
void arwSetLabelingMode(int mode);
int arwGetLabelingMode(void);
void arwSetPatternDetectionMode(int mode);
int arwGetPatternDetectionMode(void);
void arwSetBorderSize(float size);
float arwGetBorderSize(void);
void arwSetMatrixCodeType(int type);
int arwGetMatrixCodeType(void);
void arwSetImageProcMode(int mode);
int arwGetImageProcMode(void);
int arwAddMarker(const char *cfg);
bool arwRemoveMarker(int markerUID);
int arwRemoveAllMarkers(void);
bool arwQueryMarkerVisibility(int markerUID);
bool arwQueryMarkerTransformation(int markerUID, float matrix[16]);
bool arwGetMarkerOptionBool(int markerUID, int option);
void arwSetMarkerOptionBool(int markerUID, int option, bool value);
int arwGetMarkerOptionInt(int markerUID, int option);
void arwSetMarkerOptionInt(int markerUID, int option, int value);
float arwGetMarkerOptionFloat(int markerUID, int option);
void arwSetMarkerOptionFloat(int markerUID, int option, float value);

int arwVideoPushInit(int videoSourceIndex, int width, int height, const char *pixelFormat, int cameraIndex, int cameraFace);
int arwVideoPush1(int videoSourceIndex, unsigned char *buf, int bufSize);
int arwVideoPush2(int videoSourceIndex,
	unsigned char *buf0p, int buf0Size, int buf0PixelStride, int buf0RowStride,
	unsigned char *buf1p, int buf1Size, int buf1PixelStride, int buf1RowStride,
	unsigned char *buf2p, int buf2Size, int buf2PixelStride, int buf2RowStride,
	unsigned char *buf3p, int buf3Size, int buf3PixelStride, int buf3RowStride);
int arwVideoPushFinal(int videoSourceIndex);
*/
import "C"

import (
	"unsafe"

	"github.com/e7canasta/arlink/engine"
)

const versionBufferLen = 1024

// Native is the cgo-backed engine. The native library keeps global state, so
// at most one Native should be in use per process.
type Native struct{}

// New returns the native engine.
func New() (engine.Engine, error) {
	return &Native{}, nil
}

func (n *Native) Version() string {
	buf := (*C.char)(C.malloc(versionBufferLen))
	defer C.free(unsafe.Pointer(buf))
	if !C.arwGetARToolKitVersion(buf, versionBufferLen) {
		return ""
	}
	return C.GoString(buf)
}

func (n *Native) Initialise() bool { return bool(C.arwInitialiseAR()) }

func (n *Native) InitialiseWithOptions(pattSize, pattCountMax int) bool {
	return bool(C.arwInitialiseARWithOptions(C.int(pattSize), C.int(pattCountMax)))
}

func (n *Native) ChangeToResourcesDir(resourcesDirectoryPath string) bool {
	cs := C.CString(resourcesDirectoryPath)
	defer C.free(unsafe.Pointer(cs))
	return bool(C.arwChangeToResourcesDir(cs))
}

func (n *Native) Shutdown() bool { return bool(C.arwShutdownAR()) }

func (n *Native) StartRunning(vconf, cparaName string, nearPlane, farPlane float32) bool {
	cv := C.CString(vconf)
	defer C.free(unsafe.Pointer(cv))
	cp := C.CString(cparaName)
	defer C.free(unsafe.Pointer(cp))
	return bool(C.arwStartRunning(cv, cp, C.float(nearPlane), C.float(farPlane)))
}

func (n *Native) StopRunning() bool { return bool(C.arwStopRunning()) }
func (n *Native) IsRunning() bool   { return bool(C.arwIsRunning()) }

func (n *Native) ProjectionMatrix() ([16]float32, bool) {
	var m [16]C.float
	ok := bool(C.arwGetProjectionMatrix(&m[0]))
	return toMatrix(m), ok
}

func (n *Native) VideoPushInit(videoSourceIndex, width, height int, pixelFormat string, cameraIndex, cameraFace int) int {
	cs := C.CString(pixelFormat)
	defer C.free(unsafe.Pointer(cs))
	return int(C.arwVideoPushInit(C.int(videoSourceIndex), C.int(width), C.int(height), cs, C.int(cameraIndex), C.int(cameraFace)))
}

func (n *Native) VideoPush1(videoSourceIndex int, buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	// The native side copies the frame before returning, so passing Go
	// memory for the duration of the call is allowed.
	return int(C.arwVideoPush1(C.int(videoSourceIndex), (*C.uchar)(unsafe.Pointer(&buf[0])), C.int(len(buf))))
}

func (n *Native) VideoPush2(videoSourceIndex int, planes [engine.MaxPlanes]engine.Plane) int {
	var p [engine.MaxPlanes]*C.uchar
	for i, pl := range planes {
		if len(pl.Data) > 0 {
			p[i] = (*C.uchar)(unsafe.Pointer(&pl.Data[0]))
		}
	}
	return int(C.arwVideoPush2(C.int(videoSourceIndex),
		p[0], C.int(len(planes[0].Data)), C.int(planes[0].PixelStride), C.int(planes[0].RowStride),
		p[1], C.int(len(planes[1].Data)), C.int(planes[1].PixelStride), C.int(planes[1].RowStride),
		p[2], C.int(len(planes[2].Data)), C.int(planes[2].PixelStride), C.int(planes[2].RowStride),
		p[3], C.int(len(planes[3].Data)), C.int(planes[3].PixelStride), C.int(planes[3].RowStride)))
}

func (n *Native) VideoPushFinal(videoSourceIndex int) int {
	return int(C.arwVideoPushFinal(C.int(videoSourceIndex)))
}

func (n *Native) Capture() bool  { return bool(C.arwCapture()) }
func (n *Native) UpdateAR() bool { return bool(C.arwUpdateAR()) }

func (n *Native) UpdateDebugTexture32(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	return bool(C.arwUpdateDebugTexture32((*C.uint)(unsafe.Pointer(&buf[0]))))
}

func (n *Native) AddMarker(cfg string) int {
	cs := C.CString(cfg)
	defer C.free(unsafe.Pointer(cs))
	return int(C.arwAddMarker(cs))
}

func (n *Native) RemoveMarker(markerUID int) bool { return bool(C.arwRemoveMarker(C.int(markerUID))) }
func (n *Native) RemoveAllMarkers() int           { return int(C.arwRemoveAllMarkers()) }

func (n *Native) QueryMarkerVisibility(markerUID int) bool {
	return bool(C.arwQueryMarkerVisibility(C.int(markerUID)))
}

func (n *Native) QueryMarkerTransformation(markerUID int) ([16]float32, bool) {
	var m [16]C.float
	ok := bool(C.arwQueryMarkerTransformation(C.int(markerUID), &m[0]))
	return toMatrix(m), ok
}

func (n *Native) SetMarkerOptionBool(uid int, option engine.MarkerOption, value bool) {
	C.arwSetMarkerOptionBool(C.int(uid), C.int(option), C.bool(value))
}

func (n *Native) SetMarkerOptionInt(uid int, option engine.MarkerOption, value int) {
	C.arwSetMarkerOptionInt(C.int(uid), C.int(option), C.int(value))
}

func (n *Native) SetMarkerOptionFloat(uid int, option engine.MarkerOption, value float32) {
	C.arwSetMarkerOptionFloat(C.int(uid), C.int(option), C.float(value))
}

func (n *Native) MarkerOptionBool(uid int, option engine.MarkerOption) bool {
	return bool(C.arwGetMarkerOptionBool(C.int(uid), C.int(option)))
}

func (n *Native) MarkerOptionInt(uid int, option engine.MarkerOption) int {
	return int(C.arwGetMarkerOptionInt(C.int(uid), C.int(option)))
}

func (n *Native) MarkerOptionFloat(uid int, option engine.MarkerOption) float32 {
	return float32(C.arwGetMarkerOptionFloat(C.int(uid), C.int(option)))
}

func (n *Native) SetVideoDebugMode(debug bool) { C.arwSetVideoDebugMode(C.bool(debug)) }
func (n *Native) VideoDebugMode() bool         { return bool(C.arwGetVideoDebugMode()) }
func (n *Native) SetVideoThreshold(t int)      { C.arwSetVideoThreshold(C.int(t)) }
func (n *Native) VideoThreshold() int          { return int(C.arwGetVideoThreshold()) }

func (n *Native) SetVideoThresholdMode(mode engine.ThresholdMode) {
	C.arwSetVideoThresholdMode(C.int(mode))
}

func (n *Native) VideoThresholdMode() engine.ThresholdMode {
	return engine.ThresholdMode(C.arwGetVideoThresholdMode())
}

func (n *Native) SetLabelingMode(mode engine.LabelingMode) { C.arwSetLabelingMode(C.int(mode)) }

func (n *Native) LabelingMode() engine.LabelingMode {
	return engine.LabelingMode(C.arwGetLabelingMode())
}

func (n *Native) SetPatternDetectionMode(mode engine.PatternDetectionMode) {
	C.arwSetPatternDetectionMode(C.int(mode))
}

func (n *Native) PatternDetectionMode() engine.PatternDetectionMode {
	return engine.PatternDetectionMode(C.arwGetPatternDetectionMode())
}

func (n *Native) SetMatrixCodeType(t engine.MatrixCodeType) { C.arwSetMatrixCodeType(C.int(t)) }

func (n *Native) MatrixCodeType() engine.MatrixCodeType {
	return engine.MatrixCodeType(C.arwGetMatrixCodeType())
}

func (n *Native) SetBorderSize(size float32) { C.arwSetBorderSize(C.float(size)) }
func (n *Native) BorderSize() float32        { return float32(C.arwGetBorderSize()) }

func (n *Native) SetImageProcMode(mode engine.ImageProcMode) { C.arwSetImageProcMode(C.int(mode)) }

func (n *Native) ImageProcMode() engine.ImageProcMode {
	return engine.ImageProcMode(C.arwGetImageProcMode())
}

func toMatrix(m [16]C.float) [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}
