package gstcamera

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies pipeline errors for logs and counters.
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the capture device is missing, busy or was unplugged.
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryFormat indicates caps negotiation or format conversion failures.
	ErrCategoryFormat
	// ErrCategoryPermission indicates the process may not open the device.
	ErrCategoryPermission
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	case ErrCategoryPermission:
		return "permission"
	default:
		return "unknown"
	}
}

var (
	permissionKeywords = []string{"permission denied", "not permitted", "eacces", "eperm"}
	formatKeywords     = []string{"not negotiated", "negotiation", "caps", "format", "missing plugin", "no such element"}
	deviceKeywords     = []string{"busy", "no such file", "no such device", "cannot identify device", "could not open", "failed to open", "device", "v4l2"}
)

// ClassifyGStreamerError categorizes a pipeline error by message heuristics.
// go-gst's GError does not expose the error domain, so matching is textual.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classify(gerr.Error(), gerr.DebugString())
}

func classify(errMsg, debugStr string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debugStr)
	switch {
	case containsAny(combined, permissionKeywords):
		return ErrCategoryPermission
	case containsAny(combined, formatKeywords):
		return ErrCategoryFormat
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
