// Package video receives a robot camera's H264 stream over WebRTC, using
// GStreamer webrtcsink signalling, and decodes it to JPEG frames.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("video: client closed")

// Config holds connection parameters.
type Config struct {
	SignallingURL  string        // ws://host:8443
	Producer       string        // producer meta name
	ConnectTimeout time.Duration // signalling + first track
	DecodeInterval time.Duration // minimum time between decodes
	MaxGOPBytes    int
}

// DefaultConfig returns defaults for a producer on host.
func DefaultConfig(host string) Config {
	return Config{
		SignallingURL:  fmt.Sprintf("ws://%s:8443", host),
		Producer:       "vision-camera",
		ConnectTimeout: 15 * time.Second,
		DecodeInterval: 33 * time.Millisecond,
		MaxGOPBytes:    4 << 20,
	}
}

// Client is a receive-only WebRTC video peer.
type Client struct {
	cfg     Config
	decoder Decoder
	logger  *slog.Logger

	ws      *websocket.Conn
	wsMu    sync.Mutex
	pc      *webrtc.PeerConnection
	session atomic.Value // string

	frameMu sync.Mutex
	frame   []byte
	seq     uint64
	changed chan struct{}

	trackUp   chan struct{}
	trackOnce sync.Once
	done      chan struct{}
	closed    atomic.Bool
}

// NewClient creates a client. A nil decoder uses FFmpegDecoder.
func NewClient(cfg Config, decoder Decoder, logger *slog.Logger) *Client {
	if decoder == nil {
		decoder = FFmpegDecoder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		decoder: decoder,
		logger:  logger.With("component", "webrtc"),
		changed: make(chan struct{}),
		trackUp: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.session.Store("")
	return c
}

// Connect performs signalling and waits for the video track.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	ws, _, err := dialer.DialContext(ctx, c.cfg.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("video: signalling connect: %w", err)
	}
	c.ws = ws

	welcome, err := c.expect(ctx, "welcome")
	if err != nil {
		return err
	}
	c.logger.Debug("signalling welcome", "peer", welcome.PeerID)

	if err := c.send(signalMessage{Type: "list"}); err != nil {
		return err
	}
	list, err := c.expect(ctx, "list")
	if err != nil {
		return err
	}
	producer, err := findProducer(list.Producers, c.cfg.Producer)
	if err != nil {
		return err
	}

	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("video: peer connection: %w", err)
	}
	if err := c.send(signalMessage{Type: "startSession", PeerID: producer}); err != nil {
		return err
	}

	go c.handleSignalling()

	select {
	case <-c.trackUp:
		c.logger.Info("video track connected", "producer", c.cfg.Producer)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("video: waiting for track: %w", ctx.Err())
	}
}

func (c *Client) expect(ctx context.Context, typ string) (signalMessage, error) {
	deadline, _ := ctx.Deadline()
	c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return signalMessage{}, fmt.Errorf("video: waiting for %s: %w", typ, err)
	}
	msg, err := parseSignal(data)
	if err != nil {
		return msg, err
	}
	if msg.Type != typ {
		return msg, fmt.Errorf("video: expected %s, got %s", typ, msg.Type)
	}
	return msg, nil
}

func (c *Client) send(msg signalMessage) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Client) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	c.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Debug("track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.readTrack(track)
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		session, _ := c.session.Load().(string)
		if cand == nil || session == "" {
			return
		}
		if err := c.send(candidateMessage(session, cand.ToJSON())); err != nil {
			c.logger.Warn("send ice candidate", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("peer connection state", "state", state.String())
	})
	return nil
}

func (c *Client) handleSignalling() {
	for !c.closed.Load() {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("signalling closed", "error", err)
			}
			return
		}
		msg, err := parseSignal(data)
		if err != nil {
			c.logger.Debug("ignoring signalling message", "error", err)
			continue
		}

		switch msg.Type {
		case "sessionStarted":
			c.session.Store(msg.SessionID)
		case "peer":
			c.handlePeer(msg)
		case "endSession":
			c.logger.Warn("producer ended session")
			return
		}
	}
}

func (c *Client) handlePeer(msg signalMessage) {
	if offer, ok := msg.SDP.offer(); ok {
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			c.logger.Warn("set remote description", "error", err)
			return
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			c.logger.Warn("create answer", "error", err)
			return
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			c.logger.Warn("set local description", "error", err)
			return
		}
		session, _ := c.session.Load().(string)
		if err := c.send(answerMessage(session, answer)); err != nil {
			c.logger.Warn("send answer", "error", err)
		}
	}
	if msg.ICE != nil {
		if err := c.pc.AddICECandidate(msg.ICE.init()); err != nil {
			c.logger.Debug("add ice candidate", "error", err)
		}
	}
}

func (c *Client) readTrack(track *webrtc.TrackRemote) {
	c.trackOnce.Do(func() { close(c.trackUp) })

	asm := newAssembler(c.cfg.MaxGOPBytes)
	var last time.Time

	for !c.closed.Load() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			c.logger.Warn("video track ended", "error", err)
			return
		}
		if !asm.push(pkt) || time.Since(last) < c.cfg.DecodeInterval {
			continue
		}
		last = time.Now()

		frame, err := c.decoder.Decode(context.Background(), asm.bytes())
		if err != nil {
			c.logger.Debug("decode", "error", err)
			continue
		}
		c.publish(frame)
	}
}

func (c *Client) publish(frame []byte) {
	c.frameMu.Lock()
	c.frame = frame
	c.seq++
	close(c.changed)
	c.changed = make(chan struct{})
	c.frameMu.Unlock()
}

// Next blocks until a frame newer than after is decoded and returns it with
// its sequence number.
func (c *Client) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	c.frameMu.Lock()
	if c.seq > after {
		frame, seq := c.frame, c.seq
		c.frameMu.Unlock()
		return frame, seq, nil
	}
	changed := c.changed
	c.frameMu.Unlock()

	select {
	case <-changed:
		c.frameMu.Lock()
		defer c.frameMu.Unlock()
		return c.frame, c.seq, nil
	case <-c.done:
		return nil, after, ErrClosed
	case <-ctx.Done():
		return nil, after, ctx.Err()
	}
}

// Close tears down the peer connection and signalling socket.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	var errs []error
	if c.pc != nil {
		errs = append(errs, c.pc.Close())
	}
	if c.ws != nil {
		errs = append(errs, c.ws.Close())
	}
	return errors.Join(errs...)
}
