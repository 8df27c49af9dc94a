package meet

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Stream is an open camera feed. Close releases the device.
type Stream interface {
	Capture() (photoDataURL string, err error)
	Close() error
}

// Camera opens streams. Implementations wrap whatever capture hardware or
// fixture the platform offers.
type Camera interface {
	Open() (Stream, error)
}

// CaptureController serializes access to the camera: at most one stream is
// live, and opening a new one closes the previous first.
type CaptureController struct {
	camera Camera

	mu     sync.Mutex
	stream Stream
}

func NewCaptureController(camera Camera) *CaptureController {
	return &CaptureController{camera: camera}
}

// Start opens the stream, stopping any stream left over from a previous
// attempt.
func (c *CaptureController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	stream, err := c.camera.Open()
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	c.stream = stream
	return nil
}

// Stop releases the stream if one is live.
func (c *CaptureController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
}

// Capture takes a photo and releases the camera.
func (c *CaptureController) Capture() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return "", fmt.Errorf("camera is not started")
	}
	photo, err := c.stream.Capture()
	c.stream.Close()
	c.stream = nil
	if err != nil {
		return "", fmt.Errorf("failed to capture photo: %w", err)
	}
	return photo, nil
}

// FileCamera reads a still image from disk and serves it as the capture
// result, encoded as a data URL.
type FileCamera struct {
	Path string
}

func (f FileCamera) Open() (Stream, error) {
	if _, err := os.Stat(f.Path); err != nil {
		return nil, fmt.Errorf("failed to open photo file: %w", err)
	}
	return &fileStream{path: f.Path}, nil
}

type fileStream struct {
	path   string
	closed bool
}

func (s *fileStream) Capture() (string, error) {
	if s.closed {
		return "", fmt.Errorf("stream is closed")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo file: %w", err)
	}
	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".png":
		mime = "image/png"
	case ".webp":
		mime = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func (s *fileStream) Close() error {
	s.closed = true
	return nil
}
