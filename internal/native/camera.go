package native

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"edge-detection-pipeline/internal/frame"
)

// Camera reads frames from a video capture device
type Camera struct {
	device  int
	logger  logrus.FieldLogger
	mu      sync.Mutex
	capture *gocv.VideoCapture
	img     gocv.Mat
}

// OpenCamera opens the capture device with the given index
func OpenCamera(device int, logger logrus.FieldLogger) (*Camera, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device %d is not available", device)
	}

	logger.WithField("device", device).Info("Camera opened")
	return &Camera{
		device:  device,
		logger:  logger,
		capture: capture,
		img:     gocv.NewMat(),
	}, nil
}

// Read grabs the next frame as a pixel buffer
func (c *Camera) Read() (*frame.PixelBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, fmt.Errorf("camera %d is closed", c.device)
	}
	if ok := c.capture.Read(&c.img); !ok || c.img.Empty() {
		return nil, fmt.Errorf("failed to read frame from device %d", c.device)
	}

	buf, err := FromMat(c.img)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"device": c.device,
		"width":  buf.Width,
		"height": buf.Height,
	}).Debug("Camera frame captured")
	return buf, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	c.img.Close()
	err := c.capture.Close()
	c.capture = nil
	c.logger.WithField("device", c.device).Info("Camera closed")
	return err
}
