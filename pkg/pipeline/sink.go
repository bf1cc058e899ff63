package pipeline

import (
	"bufio"
	"io"
)

// StreamSink writes each encoded frame as one unframed block and flushes
// it immediately. Not safe for concurrent use.
type StreamSink struct {
	w *bufio.Writer
}

// NewStreamSink wraps w, typically os.Stdout.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: bufio.NewWriterSize(w, 64*1024)}
}

func (s *StreamSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, s.w.Flush()
}
