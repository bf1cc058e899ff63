package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"github.com/vmihailenco/msgpack/v5"
)

// NetworkTables 4 wire constants.
const (
	NTDefaultPort = 5810
	NTSubprotocol = "v4.1.networktables.first.wpi.edu"
	NTLegacyProto = "networktables.first.wpi.edu"

	ntTypeDouble      = 1
	ntTypeInt         = 2
	ntTypeDoubleArray = 17

	ntTimeTopic = -1
)

// NetworkTableConfig selects the server and topic prefix.
type NetworkTableConfig struct {
	Server         string
	Port           int
	Table          string
	Client         string
	ConnectTimeout time.Duration
	SyncTimeout    time.Duration
}

// URL returns the websocket endpoint for this client. The client name gets
// a short random suffix so restarts never collide with a stale session.
func (c NetworkTableConfig) URL() string {
	id := uuid.NewString()[:8]
	host := net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
	return fmt.Sprintf("ws://%s/nt/%s-%s", host, c.Client, id)
}

type ntTopic struct {
	name   string
	pubuid int
	typ    string
	typIdx int
}

// NetworkTable publishes each target on three NT4 topics under one table.
type NetworkTable struct {
	cfg    NetworkTableConfig
	conn   *websocket.Conn
	logger *slog.Logger

	rawCenter   ntTopic
	normalCoord ntTopic
	angle       ntTopic

	wmu    sync.Mutex
	offset atomic.Int64 // server minus local clock, µs
	synced chan struct{}
	once   sync.Once
	done   chan struct{}
	closed atomic.Bool
}

// NewNetworkTable reads output.networktable.* and connects. An NT_SERVER
// override is applied to the document before this is called.
func NewNetworkTable(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*NetworkTable, error) {
	doc := vc.Doc
	server, err := doc.String("output.networktable.server")
	if err != nil {
		return nil, err
	}
	port, err := doc.IntOr("output.networktable.port", NTDefaultPort)
	if err != nil {
		return nil, err
	}
	table, err := doc.StringOr("output.networktable.table", "vision")
	if err != nil {
		return nil, err
	}
	client, err := doc.StringOr("output.networktable.client", "vision")
	if err != nil {
		return nil, err
	}
	return DialNetworkTable(ctx, NetworkTableConfig{
		Server: server,
		Port:   port,
		Table:  table,
		Client: client,
	}, logger)
}

// DialNetworkTable connects, announces the three topics and synchronises
// the clock. Any failure here is returned; the caller treats it as fatal.
func DialNetworkTable(ctx context.Context, cfg NetworkTableConfig, logger *slog.Logger) (*NetworkTable, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.SyncTimeout == 0 {
		cfg.SyncTimeout = 500 * time.Millisecond
	}
	url := cfg.URL()
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.ConnectTimeout,
		Subprotocols:     []string{NTSubprotocol, NTLegacyProto},
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("networktable: connect %s: %w", url, err)
	}

	prefix := "/" + cfg.Table + "/"
	nt := &NetworkTable{
		cfg:         cfg,
		conn:        conn,
		logger:      logger.With("output", "networktable", "url", url),
		rawCenter:   ntTopic{name: prefix + "raw_center", pubuid: 1, typ: "double[]", typIdx: ntTypeDoubleArray},
		normalCoord: ntTopic{name: prefix + "normal_coord", pubuid: 2, typ: "double[]", typIdx: ntTypeDoubleArray},
		angle:       ntTopic{name: prefix + "angle", pubuid: 3, typ: "double", typIdx: ntTypeDouble},
		synced:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	go nt.readLoop()

	if err := nt.publish(); err != nil {
		nt.Close()
		return nil, err
	}
	if err := nt.syncTime(ctx); err != nil {
		nt.Close()
		return nil, err
	}
	nt.logger.Info("networktables connected", "protocol", conn.Subprotocol(), "offset_us", nt.offset.Load())
	return nt, nil
}

func (nt *NetworkTable) Name() string { return "networktable" }

func (nt *NetworkTable) topics() []ntTopic {
	return []ntTopic{nt.rawCenter, nt.normalCoord, nt.angle}
}

type ntPublish struct {
	Method string          `json:"method"`
	Params ntPublishParams `json:"params"`
}

type ntPublishParams struct {
	Name       string         `json:"name"`
	PubUID     int            `json:"pubuid"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

func (nt *NetworkTable) publish() error {
	msgs := make([]ntPublish, 0, 3)
	for _, t := range nt.topics() {
		msgs = append(msgs, ntPublish{
			Method: "publish",
			Params: ntPublishParams{Name: t.name, PubUID: t.pubuid, Type: t.typ, Properties: map[string]any{}},
		})
	}
	nt.wmu.Lock()
	defer nt.wmu.Unlock()
	if err := nt.conn.WriteJSON(msgs); err != nil {
		return fmt.Errorf("networktable: publish: %w", err)
	}
	return nil
}

// syncTime sends one timestamp request and waits for the reply.
func (nt *NetworkTable) syncTime(ctx context.Context) error {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode([]any{ntTimeTopic, 0, ntTypeInt, nowMicros()}); err != nil {
		return err
	}
	if err := nt.write(ctx, websocket.BinaryMessage, buf.Bytes()); err != nil {
		return fmt.Errorf("networktable: time sync: %w", err)
	}
	timer := time.NewTimer(nt.cfg.SyncTimeout)
	defer timer.Stop()
	select {
	case <-nt.synced:
		return nil
	case <-nt.done:
		return fmt.Errorf("networktable: connection closed during time sync")
	case <-timer.C:
		nt.logger.Warn("no time sync reply, using local clock")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver writes one binary frame holding all three values.
func (nt *NetworkTable) Deliver(ctx context.Context, data tracking.OutputData) error {
	if nt.closed.Load() {
		return ErrClosed
	}
	ts := nowMicros() + nt.offset.Load()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	values := []struct {
		t ntTopic
		v any
	}{
		{nt.rawCenter, data.RawCenter[:]},
		{nt.normalCoord, data.NormalCoord[:]},
		{nt.angle, data.Angle},
	}
	for _, tv := range values {
		if err := enc.Encode([]any{tv.t.pubuid, ts, tv.t.typIdx, tv.v}); err != nil {
			return fmt.Errorf("networktable: encode %s: %w", tv.t.name, err)
		}
	}
	return nt.write(ctx, websocket.BinaryMessage, buf.Bytes())
}

func (nt *NetworkTable) write(ctx context.Context, kind int, payload []byte) error {
	nt.wmu.Lock()
	defer nt.wmu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(nt.cfg.ConnectTimeout)
	}
	_ = nt.conn.SetWriteDeadline(deadline)
	return nt.conn.WriteMessage(kind, payload)
}

// readLoop consumes server traffic. Only the time sync reply is acted on;
// announcements and values for other topics are ignored.
func (nt *NetworkTable) readLoop() {
	defer close(nt.done)
	for {
		kind, payload, err := nt.conn.ReadMessage()
		if err != nil {
			if !nt.closed.Load() {
				nt.logger.Warn("networktables read failed", "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			nt.logger.Debug("networktables text", "bytes", len(payload))
			continue
		}
		nt.handleBinary(payload)
	}
}

func (nt *NetworkTable) handleBinary(payload []byte) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	for {
		msg, err := dec.DecodeSlice()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				nt.logger.Debug("networktables decode", "error", err)
			}
			return
		}
		if len(msg) != 4 {
			continue
		}
		id, ok := toInt64(msg[0])
		if !ok || id != ntTimeTopic {
			continue
		}
		server, ok1 := toInt64(msg[1])
		sent, ok2 := toInt64(msg[3])
		if !ok1 || !ok2 {
			continue
		}
		now := nowMicros()
		rtt := now - sent
		nt.offset.Store(server + rtt/2 - now)
		nt.once.Do(func() { close(nt.synced) })
	}
}

// Close shuts the websocket and waits for the reader.
func (nt *NetworkTable) Close() error {
	if nt.closed.Swap(true) {
		return nil
	}
	nt.wmu.Lock()
	_ = nt.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(100*time.Millisecond))
	nt.wmu.Unlock()
	err := nt.conn.Close()
	<-nt.done
	return err
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
