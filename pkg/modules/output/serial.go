package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"go.bug.st/serial"
)

// DefaultBaud is used when output.serial.baud is absent.
const DefaultBaud = 115200

// ErrSerialBusy is returned while an earlier write has not finished.
var ErrSerialBusy = errors.New("serial: previous write still pending")

// SerialPorter is the part of a serial port the output needs.
type SerialPorter interface {
	io.Writer
	io.Closer
}

// OpenSerial opens a real port.
func OpenSerial(path string, baud int) (SerialPorter, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	return port, nil
}

// Serial writes one checksummed ASCII line per target.
// A write runs on its own goroutine so a hung adapter cannot hold the caller
// past its context; at most one write is in flight.
type Serial struct {
	mu      sync.Mutex
	port    SerialPorter
	writing bool
	path    string
	logger  *slog.Logger
}

// NewSerial reads output.serial.{port,baud} and opens the port.
func NewSerial(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Serial, error) {
	path, err := vc.Doc.String("output.serial.port")
	if err != nil {
		return nil, err
	}
	baud, err := vc.Doc.IntOr("output.serial.baud", DefaultBaud)
	if err != nil {
		return nil, err
	}
	port, err := OpenSerial(path, baud)
	if err != nil {
		return nil, err
	}
	logger.Info("serial output open", "port", path, "baud", baud)
	return NewSerialWithPort(port, path, logger), nil
}

// NewSerialWithPort wraps an already open port.
func NewSerialWithPort(port SerialPorter, path string, logger *slog.Logger) *Serial {
	return &Serial{port: port, path: path, logger: logger}
}

func (s *Serial) Name() string { return "serial" }

func (s *Serial) Deliver(ctx context.Context, data tracking.OutputData) error {
	line := FormatLine(data)
	s.mu.Lock()
	port := s.port
	switch {
	case port == nil:
		s.mu.Unlock()
		return ErrClosed
	case s.writing:
		s.mu.Unlock()
		return ErrSerialBusy
	}
	s.writing = true
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		_, err := io.WriteString(port, line)
		s.mu.Lock()
		s.writing = false
		s.mu.Unlock()
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serial: write %s: %w", s.path, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("serial: write %s: %w", s.path, ctx.Err())
	}
}

// Close releases the port without waiting for a pending write; closing the
// descriptor is what unblocks it.
func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

// FormatLine renders TGT,<angle>,<nx>,<ny>,<rawx>,<rawy>*<checksum>\r\n.
// The checksum is the XOR of every byte before '*', as two upper-case hex
// digits.
func FormatLine(data tracking.OutputData) string {
	body := "TGT," +
		strconv.FormatFloat(data.Angle, 'f', 4, 64) + "," +
		strconv.FormatFloat(data.NormalCoord[0], 'f', 4, 64) + "," +
		strconv.FormatFloat(data.NormalCoord[1], 'f', 4, 64) + "," +
		strconv.FormatFloat(data.RawCenter[0], 'f', 1, 64) + "," +
		strconv.FormatFloat(data.RawCenter[1], 'f', 1, 64)
	return fmt.Sprintf("%s*%02X\r\n", body, Checksum(body))
}

// Checksum XORs the bytes of s.
func Checksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}
