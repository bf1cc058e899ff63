package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-vision/internal/log"
)

func TestParseSignalAndFindProducer(t *testing.T) {
	msg, err := parseSignal([]byte(`{"type":"list","producers":[
		{"id":"aaa","meta":{"name":"other"}},
		{"id":"bbb","meta":{"name":"vision-camera"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "list", msg.Type)

	id, err := findProducer(msg.Producers, "vision-camera")
	require.NoError(t, err)
	assert.Equal(t, "bbb", id)

	_, err = findProducer(msg.Producers, "ghost")
	assert.Error(t, err)

	_, err = parseSignal([]byte("{"))
	assert.Error(t, err)
}

func TestPeerMessages(t *testing.T) {
	msg, err := parseSignal([]byte(`{"type":"peer","sessionId":"s1",
		"sdp":{"type":"offer","sdp":"v=0"},
		"ice":{"candidate":"candidate:1","sdpMid":"0","sdpMLineIndex":0}}`))
	require.NoError(t, err)

	offer, ok := msg.SDP.offer()
	require.True(t, ok)
	assert.Equal(t, "v=0", offer.SDP)

	init := msg.ICE.init()
	assert.Equal(t, "candidate:1", init.Candidate)
	require.NotNil(t, init.SDPMid)
	assert.Equal(t, "0", *init.SDPMid)

	var nilSDP *sdpPayload
	_, ok = nilSDP.offer()
	assert.False(t, ok)
}

func packet(nal []byte, marker bool) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{Marker: marker}, Payload: nal}
}

func TestAssembler(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1f}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	idr := []byte{0x65, 0x88, 0x84, 0x00}
	pSlice := []byte{0x41, 0x9a, 0x02}

	a := newAssembler(1 << 20)

	assert.False(t, a.push(packet(pSlice, true)), "no keyframe yet")
	assert.False(t, a.push(packet(sps, false)))
	assert.False(t, a.push(packet(pps, false)))
	assert.True(t, a.push(packet(idr, true)))

	got := a.bytes()
	assert.True(t, bytes.HasPrefix(got, append([]byte{0, 0, 0, 1}, sps...)))
	assert.Equal(t, 3, len(splitNALs(got)))

	assert.True(t, a.push(packet(pSlice, true)))
	assert.Equal(t, 4, len(splitNALs(a.bytes())))

	// a new SPS starts a fresh group
	a.push(packet(sps, false))
	assert.Equal(t, 1, len(splitNALs(a.bytes())))
}

func TestAssemblerOverflow(t *testing.T) {
	a := newAssembler(16)
	a.push(packet([]byte{0x65, 1, 2, 3}, false))
	assert.True(t, a.keyed)
	a.push(packet(append([]byte{0x41}, make([]byte, 32)...), true))
	assert.False(t, a.keyed, "oversized group is discarded")
}

func encodeJPEG(t *testing.T, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestPlausibleFrame(t *testing.T) {
	grey := encodeJPEG(t, func(int, int) color.Color { return color.RGBA{128, 128, 128, 255} })
	scene := encodeJPEG(t, func(x, y int) color.Color { return color.RGBA{uint8(x), uint8(y * 2), 40, 255} })
	dark := encodeJPEG(t, func(x, y int) color.Color {
		if x > 60 && x < 80 {
			return color.RGBA{0, 255, 0, 255}
		}
		return color.RGBA{0, 0, 0, 255}
	})

	assert.False(t, plausibleFrame(grey), "flat grey")
	assert.True(t, plausibleFrame(scene))
	assert.True(t, plausibleFrame(dark), "dark frames with a lit target pass")
	assert.False(t, plausibleFrame([]byte("garbage")))
}

func TestLastJPEG(t *testing.T) {
	a := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 0xff, 0xd9}
	b := []byte{0xff, 0xd8, 0xff, 0xe0, 3, 4, 0xff, 0xd9}
	assert.Equal(t, b, lastJPEG(append(append([]byte(nil), a...), b...)))
	assert.Nil(t, lastJPEG([]byte{1, 2, 3}))
}

func TestNext(t *testing.T) {
	c := NewClient(DefaultConfig("127.0.0.1"), nil, log.Discard())

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.publish([]byte("f1"))
	}()
	frame, seq, err := c.Next(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("f1"), frame)
	assert.Equal(t, uint64(1), seq)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = c.Next(ctx, seq)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, c.Close())
	_, _, err = c.Next(context.Background(), seq)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConnectUnreachable(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1")
	cfg.SignallingURL = "ws://127.0.0.1:1"
	cfg.ConnectTimeout = 200 * time.Millisecond
	c := NewClient(cfg, nil, log.Discard())
	defer c.Close()

	assert.Error(t, c.Connect(context.Background()))
}
