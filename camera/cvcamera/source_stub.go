//go:build !gocv

package cvcamera

import (
	"context"

	"github.com/e7canasta/arlink/camera"
)

// Source is a placeholder that cannot open: OpenCV was not linked.
type Source struct {
	cfg Config
}

// New returns a source whose Open fails with ErrNotBuilt.
func New(cfg Config) *Source {
	cfg.setDefaults()
	return &Source{cfg: cfg}
}

func (s *Source) Capabilities() camera.Capabilities { return camera.Capabilities{} }

func (s *Source) Open(ctx context.Context, l camera.Listener) error { return ErrNotBuilt }

func (s *Source) Close() error { return nil }

var _ camera.Source = (*Source)(nil)
