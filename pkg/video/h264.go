package video

import (
	"bytes"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// NAL unit types the assembler cares about.
const (
	nalIDR = 5
	nalSPS = 7
)

var startCode = []byte{0, 0, 0, 1}

// assembler rebuilds an Annex B group of pictures from RTP packets. The
// buffer restarts at every SPS so a decode always begins at a keyframe.
type assembler struct {
	depacketizer codecs.H264Packet
	gop          bytes.Buffer
	keyed        bool
	maxSize      int
}

func newAssembler(maxSize int) *assembler {
	return &assembler{maxSize: maxSize}
}

// push adds one packet. It reports true when the packet closes an access
// unit and the buffer holds a decodable sequence.
func (a *assembler) push(pkt *rtp.Packet) bool {
	nals, err := a.depacketizer.Unmarshal(pkt.Payload)
	if err != nil || len(nals) == 0 {
		return false
	}

	switch firstNALType(nals) {
	case nalSPS:
		a.gop.Reset()
		a.keyed = true
	case nalIDR:
		// streams that never repeat SPS in-band
		if !a.keyed {
			a.gop.Reset()
			a.keyed = true
		}
	}
	if !a.keyed {
		return false
	}

	a.gop.Write(nals)
	if a.gop.Len() > a.maxSize {
		a.gop.Reset()
		a.keyed = false
		return false
	}
	return pkt.Marker
}

// bytes returns a copy of the current group of pictures.
func (a *assembler) bytes() []byte {
	return append([]byte(nil), a.gop.Bytes()...)
}

// firstNALType returns the type of the first NAL unit in an Annex B chunk,
// or -1 when there is none.
func firstNALType(annexB []byte) int {
	nals := splitNALs(annexB)
	if len(nals) == 0 {
		return -1
	}
	return int(nals[0][0] & 0x1f)
}

func splitNALs(annexB []byte) [][]byte {
	var out [][]byte
	for _, part := range bytes.Split(annexB, startCode) {
		part = bytes.TrimPrefix(part, []byte{0, 0, 1})
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}
