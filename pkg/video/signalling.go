package video

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// GStreamer webrtcsink signalling protocol messages.

type signalMessage struct {
	Type      string          `json:"type"`
	PeerID    string          `json:"peerId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Producers []producerEntry `json:"producers,omitempty"`
	SDP       *sdpPayload     `json:"sdp,omitempty"`
	ICE       *icePayload     `json:"ice,omitempty"`
}

type producerEntry struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type icePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

func parseSignal(data []byte) (signalMessage, error) {
	var msg signalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("video: bad signalling message: %w", err)
	}
	return msg, nil
}

// findProducer returns the id of the producer whose meta name matches.
func findProducer(producers []producerEntry, name string) (string, error) {
	for _, p := range producers {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("video: producer %q not found among %d producers", name, len(producers))
}

func (p *sdpPayload) offer() (webrtc.SessionDescription, bool) {
	if p == nil || p.Type != "offer" {
		return webrtc.SessionDescription{}, false
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}, true
}

func (p *icePayload) init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	}
}

func answerMessage(sessionID string, sdp webrtc.SessionDescription) signalMessage {
	return signalMessage{
		Type:      "peer",
		SessionID: sessionID,
		SDP:       &sdpPayload{Type: sdp.Type.String(), SDP: sdp.SDP},
	}
}

func candidateMessage(sessionID string, c webrtc.ICECandidateInit) signalMessage {
	return signalMessage{
		Type:      "peer",
		SessionID: sessionID,
		ICE: &icePayload{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		},
	}
}
