package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// MarkerOption selects a per-marker option.
type MarkerOption int

const (
	MarkerOptionFiltered                    MarkerOption = 1
	MarkerOptionFilterSampleRate            MarkerOption = 2
	MarkerOptionFilterCutoffFreq            MarkerOption = 3
	MarkerOptionSquareUseContPoseEstimation MarkerOption = 4
	MarkerOptionSquareConfidence            MarkerOption = 5
	MarkerOptionSquareConfidenceCutoff      MarkerOption = 6
)

// ThresholdMode selects how the binarization threshold is chosen.
type ThresholdMode int

const (
	ThresholdModeManual         ThresholdMode = 0
	ThresholdModeAutoMedian     ThresholdMode = 1
	ThresholdModeAutoOtsu       ThresholdMode = 2
	ThresholdModeAutoAdaptive   ThresholdMode = 3
	ThresholdModeAutoBracketing ThresholdMode = 4
)

// LabelingMode selects whether dark or light regions are labeled.
type LabelingMode int

const (
	LabelingModeWhiteRegion LabelingMode = 0
	LabelingModeBlackRegion LabelingMode = 1
)

// PatternDetectionMode selects template and/or matrix code matching.
type PatternDetectionMode int

const (
	PatternDetectionTemplateColor       PatternDetectionMode = 0
	PatternDetectionTemplateMono        PatternDetectionMode = 1
	PatternDetectionMatrix              PatternDetectionMode = 2
	PatternDetectionTemplateColorMatrix PatternDetectionMode = 3
	PatternDetectionTemplateMonoMatrix  PatternDetectionMode = 4
)

// MatrixCodeType selects the barcode family used in matrix detection.
type MatrixCodeType int

const (
	MatrixCode3x3          MatrixCodeType = 0x03
	MatrixCode3x3Parity65  MatrixCodeType = 0x103
	MatrixCode3x3Hamming63 MatrixCodeType = 0x203
	MatrixCode4x4          MatrixCodeType = 0x04
	MatrixCode4x4BCH1393   MatrixCodeType = 0x304
	MatrixCode4x4BCH1355   MatrixCodeType = 0x404
	MatrixCode5x5BCH22125  MatrixCodeType = 0x405
	MatrixCode5x5BCH2277   MatrixCodeType = 0x505
	MatrixCode5x5          MatrixCodeType = 0x05
	MatrixCode6x6          MatrixCodeType = 0x06
	MatrixCodeGlobalID     MatrixCodeType = 0xb0e
)

// ImageProcMode selects frame or field image processing.
type ImageProcMode int

const (
	ImageProcFrame ImageProcMode = 0
	ImageProcField ImageProcMode = 1
)

var thresholdModeNames = map[ThresholdMode]string{
	ThresholdModeManual:         "manual",
	ThresholdModeAutoMedian:     "median",
	ThresholdModeAutoOtsu:       "otsu",
	ThresholdModeAutoAdaptive:   "adaptive",
	ThresholdModeAutoBracketing: "bracketing",
}

var labelingModeNames = map[LabelingMode]string{
	LabelingModeWhiteRegion: "white",
	LabelingModeBlackRegion: "black",
}

var patternDetectionModeNames = map[PatternDetectionMode]string{
	PatternDetectionTemplateColor:       "color",
	PatternDetectionTemplateMono:        "mono",
	PatternDetectionMatrix:              "matrix",
	PatternDetectionTemplateColorMatrix: "color+matrix",
	PatternDetectionTemplateMonoMatrix:  "mono+matrix",
}

var matrixCodeTypeNames = map[MatrixCodeType]string{
	MatrixCode3x3:          "3x3",
	MatrixCode3x3Parity65:  "3x3-parity65",
	MatrixCode3x3Hamming63: "3x3-hamming63",
	MatrixCode4x4:          "4x4",
	MatrixCode4x4BCH1393:   "4x4-bch-13-9-3",
	MatrixCode4x4BCH1355:   "4x4-bch-13-5-5",
	MatrixCode5x5BCH22125:  "5x5-bch-22-12-5",
	MatrixCode5x5BCH2277:   "5x5-bch-22-7-7",
	MatrixCode5x5:          "5x5",
	MatrixCode6x6:          "6x6",
	MatrixCodeGlobalID:     "global-id",
}

var imageProcModeNames = map[ImageProcMode]string{
	ImageProcFrame: "frame",
	ImageProcField: "field",
}

var markerOptionNames = map[MarkerOption]string{
	MarkerOptionFiltered:                    "filtered",
	MarkerOptionFilterSampleRate:            "filter_sample_rate",
	MarkerOptionFilterCutoffFreq:            "filter_cutoff_freq",
	MarkerOptionSquareUseContPoseEstimation: "square_use_cont_pose_estimation",
	MarkerOptionSquareConfidence:            "square_confidence",
	MarkerOptionSquareConfidenceCutoff:      "square_confidence_cutoff",
}

func (m ThresholdMode) String() string        { return nameOf(thresholdModeNames, m) }
func (m LabelingMode) String() string         { return nameOf(labelingModeNames, m) }
func (m PatternDetectionMode) String() string { return nameOf(patternDetectionModeNames, m) }
func (m ImageProcMode) String() string        { return nameOf(imageProcModeNames, m) }
func (o MarkerOption) String() string         { return nameOf(markerOptionNames, o) }

func (c MatrixCodeType) String() string {
	if s, ok := matrixCodeTypeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("MatrixCodeType(%#x)", int(c))
}

// ParseThresholdMode accepts a name ("otsu") or a numeric value ("2").
func ParseThresholdMode(s string) (ThresholdMode, error) {
	return parseMode("threshold mode", thresholdModeNames, s)
}

// ParseLabelingMode accepts "white", "black" or a numeric value.
func ParseLabelingMode(s string) (LabelingMode, error) {
	return parseMode("labeling mode", labelingModeNames, s)
}

// ParsePatternDetectionMode accepts a name ("color+matrix") or a numeric value.
func ParsePatternDetectionMode(s string) (PatternDetectionMode, error) {
	return parseMode("pattern detection mode", patternDetectionModeNames, s)
}

// ParseMatrixCodeType accepts a name ("4x4-bch-13-9-3") or a numeric value
// in decimal or hex ("0x304").
func ParseMatrixCodeType(s string) (MatrixCodeType, error) {
	return parseMode("matrix code type", matrixCodeTypeNames, s)
}

// ParseImageProcMode accepts "frame", "field" or a numeric value.
func ParseImageProcMode(s string) (ImageProcMode, error) {
	return parseMode("image proc mode", imageProcModeNames, s)
}

// ParseMarkerOption accepts an option name ("filtered") or its numeric value.
func ParseMarkerOption(s string) (MarkerOption, error) {
	return parseMode("marker option", markerOptionNames, s)
}

func nameOf[T ~int](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return strconv.Itoa(int(v))
}

func parseMode[T ~int](kind string, names map[T]string, s string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == key {
			return v, nil
		}
	}
	n, err := strconv.ParseInt(key, 0, 32)
	if err == nil {
		if _, ok := names[T(n)]; ok {
			return T(n), nil
		}
	}
	return 0, fmt.Errorf("engine: unknown %s %q", kind, s)
}
