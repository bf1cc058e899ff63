package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"
	"time"
)

// Decoder turns an Annex B H264 sequence into the JPEG of its last picture.
type Decoder interface {
	Decode(ctx context.Context, annexB []byte) ([]byte, error)
}

// FFmpegDecoder shells out to ffmpeg with pipe I/O, no temp files.
type FFmpegDecoder struct {
	Binary  string        // default "ffmpeg"
	Timeout time.Duration // per decode, default 150ms
	Quality int           // ffmpeg -q:v, 2-31, lower is better
}

// Decode runs one ffmpeg pass and returns the last decoded picture.
func (d FFmpegDecoder) Decode(ctx context.Context, annexB []byte) ([]byte, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 150 * time.Millisecond
	}
	q := d.Quality
	if q < 2 || q > 31 {
		q = 3
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", fmt.Sprint(q),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(annexB)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil && stdout.Len() == 0 {
		return nil, fmt.Errorf("video: ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	frame := lastJPEG(stdout.Bytes())
	if !plausibleFrame(frame) {
		return nil, fmt.Errorf("video: decoder produced no usable frame")
	}
	return frame, nil
}

// lastJPEG returns the final image in a concatenated MJPEG stream.
func lastJPEG(stream []byte) []byte {
	i := bytes.LastIndex(stream, []byte{0xff, 0xd8, 0xff})
	if i < 0 {
		return nil
	}
	return stream[i:]
}

// plausibleFrame rejects the flat mid-grey pictures ffmpeg emits when
// reference frames are missing. Dark frames pass.
func plausibleFrame(data []byte) bool {
	if len(data) < 512 {
		return false
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}

	b := img.Bounds()
	if b.Dx() < 64 || b.Dy() < 64 {
		return false
	}

	var rSum, gSum, bSum, n int
	for y := b.Min.Y; y < b.Max.Y; y += b.Dy() / 10 {
		for x := b.Min.X; x < b.Max.X; x += b.Dx() / 10 {
			r, g, bl, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(bl >> 8)
			n++
		}
	}
	avgR, avgG, avgB := rSum/n, gSum/n, bSum/n

	spread := abs(avgR-avgG) + abs(avgG-avgB) + abs(avgR-avgB)
	if spread < 6 && avgR > 120 && avgR < 136 {
		return false
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
