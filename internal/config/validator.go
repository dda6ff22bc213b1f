package config

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/engine"
	"github.com/e7canasta/arlink/session"
)

var (
	instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)
	resolutionPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateScreen(&cfg.Screen); err != nil {
		return err
	}
	params, err := validateEngine(&cfg.Engine)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	cfg.params = params

	if err := validateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	if cfg.Markers.Reference == "" || cfg.Markers.Target == "" {
		return fmt.Errorf("markers.reference and markers.target are required")
	}
	if b := cfg.Markers.BorderSize; b != nil {
		if *b <= 0 || *b >= 0.5 {
			return fmt.Errorf("markers.border_size must be in (0,0.5), got %v", *b)
		}
		if e := cfg.Engine.Params.BorderSize; e != nil && *e != *b {
			return fmt.Errorf("markers.border_size (%v) conflicts with engine.params.border_size (%v)", *b, *e)
		}
	}

	validateMQTT(&cfg.MQTT, cfg.InstanceID)

	if cfg.Health.Port == "" {
		cfg.Health.Port = "8080"
	}

	return nil
}

func validateScreen(s *ScreenConfig) error {
	if s.CacheDir == "" {
		return fmt.Errorf("screen.cache_dir is required")
	}
	if s.PattSize <= 0 {
		s.PattSize = session.DefaultPattSize
	}
	if s.PattCountMax <= 0 {
		s.PattCountMax = session.DefaultPattCountMax
	}
	switch s.Delivery {
	case "":
		s.Delivery = "inline"
	case "inline", "mailbox":
	default:
		return fmt.Errorf("screen.delivery must be 'inline' or 'mailbox', got '%s'", s.Delivery)
	}
	return nil
}

func validateEngine(e *EngineConfig) (session.Params, error) {
	if e.CameraPara == "" {
		e.CameraPara = session.DefaultCameraParaPath
	}
	if e.NearPlane <= 0 {
		e.NearPlane = session.DefaultNearPlane
	}
	if e.FarPlane <= 0 {
		e.FarPlane = session.DefaultFarPlane
	}
	if e.FarPlane <= e.NearPlane {
		return session.Params{}, fmt.Errorf("far_plane (%v) must be greater than near_plane (%v)", e.FarPlane, e.NearPlane)
	}

	p := session.Params{
		DebugMode:  e.Params.DebugMode,
		Threshold:  e.Params.Threshold,
		BorderSize: e.Params.BorderSize,
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 255) {
		return session.Params{}, fmt.Errorf("params.threshold must be in [0,255], got %d", *p.Threshold)
	}
	if p.BorderSize != nil && (*p.BorderSize <= 0 || *p.BorderSize >= 0.5) {
		return session.Params{}, fmt.Errorf("params.border_size must be in (0,0.5), got %v", *p.BorderSize)
	}

	if e.Params.ThresholdMode != "" {
		m, err := engine.ParseThresholdMode(e.Params.ThresholdMode)
		if err != nil {
			return session.Params{}, err
		}
		p.ThresholdMode = &m
	}
	if e.Params.LabelingMode != "" {
		m, err := engine.ParseLabelingMode(e.Params.LabelingMode)
		if err != nil {
			return session.Params{}, err
		}
		p.LabelingMode = &m
	}
	if e.Params.PatternDetectionMode != "" {
		m, err := engine.ParsePatternDetectionMode(e.Params.PatternDetectionMode)
		if err != nil {
			return session.Params{}, err
		}
		p.PatternDetectionMode = &m
	}
	if e.Params.MatrixCodeType != "" {
		m, err := engine.ParseMatrixCodeType(e.Params.MatrixCodeType)
		if err != nil {
			return session.Params{}, err
		}
		p.MatrixCodeType = &m
	}
	if e.Params.ImageProcMode != "" {
		m, err := engine.ParseImageProcMode(e.Params.ImageProcMode)
		if err != nil {
			return session.Params{}, err
		}
		p.ImageProcMode = &m
	}
	return p, nil
}

func validateCamera(c *CameraConfig) error {
	switch c.Driver {
	case "":
		c.Driver = "gstreamer"
	case "gstreamer", "v4l2", "gocv", "test":
	default:
		return fmt.Errorf("driver must be one of gstreamer, v4l2, gocv, test; got '%s'", c.Driver)
	}

	if c.Resolution == "" {
		c.Resolution = "640x480"
	}
	m := resolutionPattern.FindStringSubmatch(c.Resolution)
	if m == nil {
		return fmt.Errorf("resolution must be WxH, got '%s'", c.Resolution)
	}
	c.width, _ = strconv.Atoi(m[1])
	c.height, _ = strconv.Atoi(m[2])
	if c.width <= 0 || c.height <= 0 {
		return fmt.Errorf("resolution must be positive, got '%s'", c.Resolution)
	}

	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.PoolBuffers <= 0 {
		c.PoolBuffers = camera.DefaultPoolBuffers
	}
	if c.PixelFormat == "" {
		c.PixelFormat = camera.PixelFormatNV21
	}
	if camera.FrameSize(c.PixelFormat, c.width, c.height) == 0 {
		return fmt.Errorf("unknown pixel_format '%s'", c.PixelFormat)
	}
	return nil
}

func validateMQTT(m *MQTTConfig, instanceID string) {
	if m.ClientID == "" {
		m.ClientID = instanceID
	}
	if m.Encoding == "" {
		m.Encoding = "json"
	}

	// Set default topics if not provided
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("arlink/control/%s", instanceID)
	}
	if m.Topics.Events == "" {
		m.Topics.Events = fmt.Sprintf("arlink/events/%s", instanceID)
	}
	if m.Topics.Status == "" {
		m.Topics.Status = fmt.Sprintf("arlink/status/%s", instanceID)
	}

	// Set default QoS if not provided
	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control":  1,
			"marker":   0,
			"distance": 0,
			"status":   0,
		}
	}
}
