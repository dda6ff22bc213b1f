package gstcamera

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/arlink/camera"
)

// pipelineElements holds references needed after construction.
type pipelineElements struct {
	pipeline *gst.Pipeline
	appSink  *app.Sink
	source   *gst.Element
}

// createPipeline builds the capture pipeline:
//
//	v4l2src|videotestsrc → videoconvert → videoscale → videorate → capsfilter → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
func createPipeline(cfg Config) (*pipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var src *gst.Element
	if cfg.Device == "" || cfg.Device == TestPatternDevice {
		src, err = gst.NewElement("videotestsrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
		}
		src.SetProperty("is-live", true)
	} else {
		src, err = gst.NewElement("v4l2src")
		if err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		src.SetProperty("device", cfg.Device)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr, err := buildCaps(cfg)
	if err != nil {
		return nil, err
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(src, converter, scaler, videorate, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("camera: gstreamer pipeline created",
		"device", cfg.Device,
		"caps", capsStr,
	)

	return &pipelineElements{
		pipeline: pipeline,
		appSink:  appsink,
		source:   src,
	}, nil
}

// destroyPipeline sets the pipeline to NULL, which blocks until the
// streaming thread has left the appsink callback.
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.pipeline == nil {
		return nil
	}
	if err := elements.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// gstFormat maps engine pixel format names onto GStreamer raw video formats.
func gstFormat(pixelFormat string) (string, error) {
	switch pixelFormat {
	case camera.PixelFormatNV21:
		return "NV21", nil
	case camera.PixelFormatI420:
		return "I420", nil
	case camera.PixelFormatYUYV:
		return "YUY2", nil
	case camera.PixelFormatBGR:
		return "BGR", nil
	case camera.PixelFormatRGBA:
		return "RGBA", nil
	default:
		return "", fmt.Errorf("unsupported pixel format %q", pixelFormat)
	}
}

// buildCaps builds "video/x-raw,format=F,width=W,height=H,framerate=N/1".
func buildCaps(cfg Config) (string, error) {
	format, err := gstFormat(cfg.PixelFormat)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1",
		format, cfg.Width, cfg.Height, cfg.FPS), nil
}
