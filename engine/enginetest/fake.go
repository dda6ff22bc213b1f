// Package enginetest provides a recording engine.Engine for tests.
//
// Fake keeps a little state of its own (markers, parameters, a fake run
// flag) so higher layers can be exercised end to end, and records every call
// in order so lifecycle sequencing can be asserted.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/e7canasta/arlink/engine"
)

// Call is one recorded engine call.
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

type marker struct {
	cfg       string
	visible   bool
	transform [16]float32
	bools     map[engine.MarkerOption]bool
	ints      map[engine.MarkerOption]int
	floats    map[engine.MarkerOption]float32
}

// Fake is a concurrency-safe recording engine.
//
// By default every call succeeds. Use FailOn to make a named call return its
// failure sentinel.
type Fake struct {
	mu sync.Mutex

	calls []Call
	fail  map[string]bool

	version    string
	running    bool
	projection [16]float32
	debugFill  func(i int) byte
	nextUID    int
	markers    map[int]*marker

	debug      bool
	threshold  int
	thresh     engine.ThresholdMode
	labeling   engine.LabelingMode
	detection  engine.PatternDetectionMode
	codeType   engine.MatrixCodeType
	borderSize float32
	imageProc  engine.ImageProcMode
}

// New returns a Fake with library defaults (threshold 100, border 0.25).
func New() *Fake {
	return &Fake{
		fail:       make(map[string]bool),
		version:    "5.3.2-fake",
		markers:    make(map[int]*marker),
		threshold:  100,
		codeType:   engine.MatrixCode3x3,
		borderSize: 0.25,
		projection: [16]float32{
			1.9, 0, 0, 0,
			0, 2.5, 0, 0,
			0, 0, -1.002, -1,
			0, 0, -20.002, 0,
		},
	}
}

// FailOn makes the named calls (e.g. "VideoPush1") return their failure value.
func (f *Fake) FailOn(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.fail[n] = true
	}
}

// Heal clears failure injection for the named calls, or all calls when none given.
func (f *Fake) Heal(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(names) == 0 {
		f.fail = make(map[string]bool)
		return
	}
	for _, n := range names {
		delete(f.fail, n)
	}
}

// SetMarkerPose scripts the visibility and transform of a registered marker.
func (f *Fake) SetMarkerPose(uid int, visible bool, transform [16]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.markers[uid]; ok {
		m.visible = visible
		m.transform = transform
	}
}

// SetDebugPattern scripts the bytes returned by UpdateDebugTexture32.
func (f *Fake) SetDebugPattern(fn func(i int) byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debugFill = fn
}

// Calls returns a copy of the recorded call log.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Names returns the recorded call names in order, optionally filtered.
func (f *Fake) Names(only ...string) []string {
	keep := make(map[string]bool, len(only))
	for _, n := range only {
		keep[n] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		if len(keep) == 0 || keep[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

// Count returns how many times the named call was made.
func (f *Fake) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Markers returns the configuration strings of registered markers by UID.
func (f *Fake) Markers() map[int]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]string, len(f.markers))
	for uid, m := range f.markers {
		out[uid] = m.cfg
	}
	return out
}

// record must be called with mu held. It reports whether the call should fail.
func (f *Fake) record(name string, args ...any) bool {
	f.calls = append(f.calls, Call{Name: name, Args: args})
	return f.fail[name]
}

func (f *Fake) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("Version") {
		return ""
	}
	return f.version
}

func (f *Fake) Initialise() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.record("Initialise")
}

func (f *Fake) InitialiseWithOptions(pattSize, pattCountMax int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.record("InitialiseWithOptions", pattSize, pattCountMax)
}

func (f *Fake) ChangeToResourcesDir(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.record("ChangeToResourcesDir", path)
}

func (f *Fake) Shutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("Shutdown") {
		return false
	}
	f.markers = make(map[int]*marker)
	f.running = false
	return true
}

func (f *Fake) StartRunning(vconf, cparaName string, nearPlane, farPlane float32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("StartRunning", vconf, cparaName, nearPlane, farPlane) {
		return false
	}
	f.running = true
	return true
}

func (f *Fake) StopRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("StopRunning") {
		return false
	}
	f.running = false
	return true
}

func (f *Fake) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsRunning")
	return f.running
}

func (f *Fake) ProjectionMatrix() ([16]float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("ProjectionMatrix") {
		return [16]float32{}, false
	}
	return f.projection, true
}

func (f *Fake) VideoPushInit(videoSourceIndex, width, height int, pixelFormat string, cameraIndex, cameraFace int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("VideoPushInit", videoSourceIndex, width, height, pixelFormat, cameraIndex, cameraFace) {
		return -1
	}
	return 0
}

func (f *Fake) VideoPush1(videoSourceIndex int, buf []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("VideoPush1", videoSourceIndex, len(buf)) {
		return -1
	}
	return 0
}

func (f *Fake) VideoPush2(videoSourceIndex int, planes [engine.MaxPlanes]engine.Plane) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	used := 0
	for _, p := range planes {
		if len(p.Data) > 0 {
			used++
		}
	}
	if f.record("VideoPush2", videoSourceIndex, used) {
		return -1
	}
	return 0
}

func (f *Fake) VideoPushFinal(videoSourceIndex int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("VideoPushFinal", videoSourceIndex) {
		return -1
	}
	return 0
}

func (f *Fake) Capture() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.record("Capture")
}

func (f *Fake) UpdateAR() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.record("UpdateAR")
}

func (f *Fake) UpdateDebugTexture32(buf []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("UpdateDebugTexture32", len(buf)) {
		return false
	}
	if f.debugFill != nil {
		for i := range buf {
			buf[i] = f.debugFill(i)
		}
	}
	return true
}

func (f *Fake) AddMarker(cfg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("AddMarker", cfg) {
		return -1
	}
	uid := f.nextUID
	f.nextUID++
	f.markers[uid] = &marker{
		cfg:    cfg,
		bools:  make(map[engine.MarkerOption]bool),
		ints:   make(map[engine.MarkerOption]int),
		floats: make(map[engine.MarkerOption]float32),
	}
	return uid
}

func (f *Fake) RemoveMarker(uid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("RemoveMarker", uid) {
		return false
	}
	if _, ok := f.markers[uid]; !ok {
		return false
	}
	delete(f.markers, uid)
	return true
}

func (f *Fake) RemoveAllMarkers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("RemoveAllMarkers") {
		return -1
	}
	n := len(f.markers)
	f.markers = make(map[int]*marker)
	return n
}

func (f *Fake) QueryMarkerVisibility(uid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("QueryMarkerVisibility", uid) {
		return false
	}
	m, ok := f.markers[uid]
	return ok && m.visible
}

func (f *Fake) QueryMarkerTransformation(uid int) ([16]float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record("QueryMarkerTransformation", uid) {
		return [16]float32{}, false
	}
	m, ok := f.markers[uid]
	if !ok || !m.visible {
		return [16]float32{}, false
	}
	return m.transform, true
}

func (f *Fake) SetMarkerOptionBool(uid int, option engine.MarkerOption, value bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMarkerOptionBool", uid, option, value)
	if m, ok := f.markers[uid]; ok {
		m.bools[option] = value
	}
}

func (f *Fake) SetMarkerOptionInt(uid int, option engine.MarkerOption, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMarkerOptionInt", uid, option, value)
	if m, ok := f.markers[uid]; ok {
		m.ints[option] = value
	}
}

func (f *Fake) SetMarkerOptionFloat(uid int, option engine.MarkerOption, value float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMarkerOptionFloat", uid, option, value)
	if m, ok := f.markers[uid]; ok {
		m.floats[option] = value
	}
}

func (f *Fake) MarkerOptionBool(uid int, option engine.MarkerOption) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkerOptionBool", uid, option)
	if m, ok := f.markers[uid]; ok {
		return m.bools[option]
	}
	return false
}

func (f *Fake) MarkerOptionInt(uid int, option engine.MarkerOption) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkerOptionInt", uid, option)
	if m, ok := f.markers[uid]; ok {
		return m.ints[option]
	}
	return -1
}

func (f *Fake) MarkerOptionFloat(uid int, option engine.MarkerOption) float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkerOptionFloat", uid, option)
	if m, ok := f.markers[uid]; ok {
		return m.floats[option]
	}
	return -1
}

func (f *Fake) SetVideoDebugMode(debug bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetVideoDebugMode", debug)
	f.debug = debug
}

func (f *Fake) VideoDebugMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VideoDebugMode")
	return f.debug
}

func (f *Fake) SetVideoThreshold(threshold int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetVideoThreshold", threshold)
	f.threshold = threshold
}

func (f *Fake) VideoThreshold() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VideoThreshold")
	return f.threshold
}

func (f *Fake) SetVideoThresholdMode(mode engine.ThresholdMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetVideoThresholdMode", mode)
	f.thresh = mode
}

func (f *Fake) VideoThresholdMode() engine.ThresholdMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VideoThresholdMode")
	return f.thresh
}

func (f *Fake) SetLabelingMode(mode engine.LabelingMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetLabelingMode", mode)
	f.labeling = mode
}

func (f *Fake) LabelingMode() engine.LabelingMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LabelingMode")
	return f.labeling
}

func (f *Fake) SetPatternDetectionMode(mode engine.PatternDetectionMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetPatternDetectionMode", mode)
	f.detection = mode
}

func (f *Fake) PatternDetectionMode() engine.PatternDetectionMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PatternDetectionMode")
	return f.detection
}

func (f *Fake) SetMatrixCodeType(codeType engine.MatrixCodeType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMatrixCodeType", codeType)
	f.codeType = codeType
}

func (f *Fake) MatrixCodeType() engine.MatrixCodeType {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MatrixCodeType")
	return f.codeType
}

func (f *Fake) SetBorderSize(size float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetBorderSize", size)
	f.borderSize = size
}

func (f *Fake) BorderSize() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BorderSize")
	return f.borderSize
}

func (f *Fake) SetImageProcMode(mode engine.ImageProcMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetImageProcMode", mode)
	f.imageProc = mode
}

func (f *Fake) ImageProcMode() engine.ImageProcMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ImageProcMode")
	return f.imageProc
}

var _ engine.Engine = (*Fake)(nil)
