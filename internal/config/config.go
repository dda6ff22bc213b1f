package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/arlink/session"
)

// Config represents the complete arlink configuration
type Config struct {
	InstanceID       string        `yaml:"instance_id"`
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Screen           ScreenConfig  `yaml:"screen"`
	Engine           EngineConfig  `yaml:"engine"`
	Camera           CameraConfig  `yaml:"camera"`
	Markers          MarkersConfig `yaml:"markers"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
	Health           HealthConfig  `yaml:"health"`

	params session.Params
}

// ScreenConfig contains lifecycle coordinator settings
type ScreenConfig struct {
	CacheDir     string `yaml:"cache_dir"`      // native library working directory (marker data)
	PattSize     int    `yaml:"patt_size"`      // template edge length in pixels (default: 16)
	PattCountMax int    `yaml:"patt_count_max"` // max loaded templates (default: 25)
	Delivery     string `yaml:"delivery"`       // inline, mailbox
}

// EngineConfig contains tracking engine settings
type EngineConfig struct {
	CameraPara string       `yaml:"camera_para"` // camera calibration file, relative to cache_dir
	NearPlane  float32      `yaml:"near_plane"`
	FarPlane   float32      `yaml:"far_plane"`
	Params     EngineParams `yaml:"params"`
}

// EngineParams are optional global tracking parameters. Modes accept a name
// ("otsu", "matrix", "4x4-bch-13-9-3") or a number.
type EngineParams struct {
	DebugMode            *bool    `yaml:"debug_mode,omitempty"`
	Threshold            *int     `yaml:"threshold,omitempty"`
	ThresholdMode        string   `yaml:"threshold_mode,omitempty"`
	LabelingMode         string   `yaml:"labeling_mode,omitempty"`
	PatternDetectionMode string   `yaml:"pattern_detection_mode,omitempty"`
	MatrixCodeType       string   `yaml:"matrix_code_type,omitempty"`
	BorderSize           *float32 `yaml:"border_size,omitempty"`
	ImageProcMode        string   `yaml:"image_proc_mode,omitempty"`
}

// CameraConfig contains capture settings
type CameraConfig struct {
	Driver      string `yaml:"driver"`       // gstreamer, v4l2, gocv, test
	Device      string `yaml:"device"`       // /dev/video0, "test" for a gstreamer test pattern
	Index       int    `yaml:"index"`        // camera index reported to the engine
	FrontFacing bool   `yaml:"front_facing"` // mirrors the pose for user-facing cameras
	Resolution  string `yaml:"resolution"`   // WxH, e.g. 640x480
	FPS         int    `yaml:"fps"`
	PixelFormat string `yaml:"pixel_format"` // gstreamer only: NV21, yuvs, RGBA, BGR, I420
	PoolBuffers int    `yaml:"pool_buffers"` // recycled frame buffers (default: 10)

	width, height int
}

// MarkersConfig defines the markers registered by the marker distance scene
type MarkersConfig struct {
	Reference  string        `yaml:"reference"` // e.g. single;Data/hiro.patt;80
	Target     string        `yaml:"target"`
	BorderSize *float32      `yaml:"border_size,omitempty"`
	Options    MarkerOptions `yaml:"options"`
}

// MarkerOptions are applied to every registered marker
type MarkerOptions struct {
	Filtered               *bool    `yaml:"filtered,omitempty"`
	FilterSampleRate       *float32 `yaml:"filter_sample_rate,omitempty"`
	FilterCutoffFreq       *float32 `yaml:"filter_cutoff_freq,omitempty"`
	ContPoseEstimation     *bool    `yaml:"cont_pose_estimation,omitempty"`
	SquareConfidenceCutoff *float32 `yaml:"square_confidence_cutoff,omitempty"`
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string          `yaml:"broker"`
	ClientID string          `yaml:"client_id"`
	Encoding string          `yaml:"encoding"` // json, msgpack
	Topics   MQTTTopics      `yaml:"topics"`
	QoS      map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic prefixes
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Status  string `yaml:"status"`
}

// HealthConfig contains the HTTP health server settings
type HealthConfig struct {
	Port string `yaml:"port"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SessionOptions returns the tracking session options
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		CameraParaPath: c.Engine.CameraPara,
		NearPlane:      c.Engine.NearPlane,
		FarPlane:       c.Engine.FarPlane,
		PattSize:       c.Screen.PattSize,
		PattCountMax:   c.Screen.PattCountMax,
	}
}

// SessionParams returns the global tracking parameters parsed by Validate
func (c *Config) SessionParams() session.Params {
	return c.params
}

// Size returns the parsed camera resolution
func (c CameraConfig) Size() (width, height int) {
	return c.width, c.height
}
