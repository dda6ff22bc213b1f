package enginetest

import (
	"reflect"
	"testing"

	"github.com/e7canasta/arlink/engine"
)

// TestFakeRecordsCallOrder verifies the call log preserves order and arguments.
func TestFakeRecordsCallOrder(t *testing.T) {
	f := New()

	f.InitialiseWithOptions(16, 25)
	f.StartRunning("", "Data/camera_para.dat", 10, 10000)
	f.VideoPushInit(0, 640, 480, "NV21", 0, 0)
	f.VideoPushFinal(0)
	f.StopRunning()
	f.Shutdown()

	want := []string{"InitialiseWithOptions", "StartRunning", "VideoPushInit", "VideoPushFinal", "StopRunning", "Shutdown"}
	if got := f.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	calls := f.Calls()
	if !reflect.DeepEqual(calls[0].Args, []any{16, 25}) {
		t.Errorf("InitialiseWithOptions args = %v", calls[0].Args)
	}
}

// TestFakeFailureInjection verifies sentinels for injected failures.
func TestFakeFailureInjection(t *testing.T) {
	f := New()
	f.FailOn("AddMarker", "VideoPush1", "Capture")

	if uid := f.AddMarker("single;Data/hiro.patt;80"); uid != -1 {
		t.Errorf("AddMarker() = %d, want -1", uid)
	}
	if rc := f.VideoPush1(0, []byte{1}); rc >= 0 {
		t.Errorf("VideoPush1() = %d, want negative", rc)
	}
	if f.Capture() {
		t.Error("Capture() = true, want false")
	}

	f.Heal("AddMarker")
	if uid := f.AddMarker("single;Data/hiro.patt;80"); uid != 0 {
		t.Errorf("AddMarker() after Heal = %d, want 0", uid)
	}
	if f.Capture() {
		t.Error("Capture() = true before Heal()")
	}
	f.Heal()
	if !f.Capture() {
		t.Error("Capture() = false after Heal()")
	}
}

// TestFakeMarkerPose verifies scripted visibility and transforms.
func TestFakeMarkerPose(t *testing.T) {
	f := New()
	uid := f.AddMarker("single;Data/kanji.patt;80")

	if f.QueryMarkerVisibility(uid) {
		t.Fatal("new marker should not be visible")
	}
	if _, ok := f.QueryMarkerTransformation(uid); ok {
		t.Fatal("transform of invisible marker should fail")
	}

	pose := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1}
	f.SetMarkerPose(uid, true, pose)

	got, ok := f.QueryMarkerTransformation(uid)
	if !ok || got != pose {
		t.Errorf("QueryMarkerTransformation() = %v, %v", got, ok)
	}

	f.SetMarkerOptionFloat(uid, engine.MarkerOptionSquareConfidenceCutoff, 0.5)
	if v := f.MarkerOptionFloat(uid, engine.MarkerOptionSquareConfidenceCutoff); v != 0.5 {
		t.Errorf("MarkerOptionFloat() = %v, want 0.5", v)
	}

	if n := f.RemoveAllMarkers(); n != 1 {
		t.Errorf("RemoveAllMarkers() = %d, want 1", n)
	}
	if f.QueryMarkerVisibility(uid) {
		t.Error("removed marker still visible")
	}
}
