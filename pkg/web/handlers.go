package web

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

// mjpegIdle ends a stream when no frame arrives for this long.
const mjpegIdle = 10 * time.Second

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Stats         tracking.Stats `json:"stats"`
	CameraClients int            `json:"camera_clients"`
	TargetClients int            `json:"target_clients"`
	FrameSeq      uint64         `json:"frame_seq"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	_, seq := s.frames.get()
	return c.JSON(StatusResponse{
		Stats:         stats,
		CameraClients: s.cameraHub.ClientCount(),
		TargetClients: s.targetHub.ClientCount(),
		FrameSeq:      seq,
	})
}

func (s *Server) handleTarget(c *fiber.Ctx) error {
	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()

	if target.Target == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(target)
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	if s.config == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(s.config)
}

// handleFrame returns the newest annotated frame as a single JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data, _ := s.frames.get()
	if data == nil {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleMJPEG streams frames as multipart/x-mixed-replace until the client
// goes away, the feed stalls, or the server shuts down.
func (s *Server) handleMJPEG(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")
	c.Set(fiber.HeaderCacheControl, "no-store")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		var seq uint64
		for {
			data, next, ok := s.frames.next(seq, mjpegIdle, s.done)
			if !ok {
				return
			}
			seq = next

			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
			w.Write(data)
			w.WriteString("\r\n")
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
