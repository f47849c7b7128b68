// Package capture takes a single receipt picture from a camera-like device.
//
// A Stream signals through Ready when its first frame can be sampled; Capture
// waits on that signal instead of sleeping for a fixed delay.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
)

// Quality is the JPEG quality of stored receipts.
const Quality = 60

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrNoFrame           = errors.New("no frame available")
)

// Device opens a frame stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open device. Ready is closed once Frame can return a picture.
type Stream interface {
	Ready() <-chan struct{}
	Frame() (image.Image, error)
	Close() error
}

// Capture opens dev, waits for the first frame, encodes it as JPEG and closes
// the stream. The stream is released on every path.
func Capture(ctx context.Context, dev Device) ([]byte, error) {
	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.WarnContext(ctx, "Failed to release capture stream", "error", cerr)
		}
	}()

	select {
	case <-stream.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	frame, err := stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoFrame
	}
	return Encode(frame)
}

// Encode writes img as a JPEG at Quality.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// ImageDevice serves an already taken picture, such as a browser upload. Its
// stream is ready as soon as it is opened.
type ImageDevice struct {
	data []byte
}

// NewImageDevice wraps encoded JPEG or PNG bytes.
func NewImageDevice(data []byte) *ImageDevice {
	return &ImageDevice{data: data}
}

func (d *ImageDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.data) == 0 {
		return nil, ErrNoFrame
	}
	img, _, err := image.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	ready := make(chan struct{})
	close(ready)
	return &imageStream{img: img, ready: ready}, nil
}

type imageStream struct {
	img   image.Image
	ready chan struct{}
}

func (s *imageStream) Ready() <-chan struct{}      { return s.ready }
func (s *imageStream) Frame() (image.Image, error) { return s.img, nil }
func (s *imageStream) Close() error                { return nil }
