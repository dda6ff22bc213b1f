package session

import (
	"errors"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/bmp"
)

// ErrNoDebugImage is returned by WriteDebugBMP when no debug image is available.
var ErrNoDebugImage = errors.New("session: no debug image available")

// UpdateDebugImage fetches the engine's debug image (the binarized frame when
// debug mode is on) into an RGBA image with alpha forced opaque.
// ok is false unless the session is running.
func (s *Session) UpdateDebugImage() (*image.RGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.debugBuf == nil {
		return nil, false
	}
	if !s.eng.UpdateDebugTexture32(s.debugBuf) {
		return nil, false
	}

	w, h := s.video.Width, s.video.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		o := i * 4
		img.Pix[o] = s.debugBuf[o]
		img.Pix[o+1] = s.debugBuf[o+1]
		img.Pix[o+2] = s.debugBuf[o+2]
		img.Pix[o+3] = 0xff
	}
	s.debugImage = img
	return img, true
}

// DebugImage returns the image from the last successful UpdateDebugImage,
// or nil.
func (s *Session) DebugImage() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugImage
}

// WriteDebugBMP refreshes the debug image and writes it to w as a BMP.
func (s *Session) WriteDebugBMP(w io.Writer) error {
	img, ok := s.UpdateDebugImage()
	if !ok {
		return ErrNoDebugImage
	}
	if err := bmp.Encode(w, img); err != nil {
		return fmt.Errorf("session: encode debug image: %w", err)
	}
	return nil
}
