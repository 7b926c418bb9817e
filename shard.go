package cryogonal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/z64gopher/cryogonal/internal/socket"
)

// shardState is the Shard's connection lifecycle (spec.md §4.3: "Fresh →
// Connected → Closing → Closed").
type shardState int32

const (
	shardFresh shardState = iota
	shardConnected
	shardClosing
	shardClosed
)

// CloseCodeNormal is the WebSocket close code a Shard sends when
// disconnecting cleanly (spec.md §4.3, §4.3 Disconnect default).
const CloseCodeNormal = 1000

// eventQueueSize bounds the Shard's single-producer/single-consumer event
// channel (spec.md §5 "Shared resources"). A generous but finite buffer
// lets the read loop keep demultiplexing frames slightly ahead of a slow
// Receive() consumer without growing unboundedly.
const eventQueueSize = 256

var gatewayQueryDecoder = schema.NewDecoder()

func init() {
	gatewayQueryDecoder.IgnoreUnknownKeys(true)
}

// gatewayQuery models the Gateway URI's query string (spec.md §6), decoded
// with gorilla/schema the way the teacher's requests.go uses gorilla/schema
// to encode query strings — cryogonal uses the same library the other
// direction, to decode one.
type gatewayQuery struct {
	Version  string `schema:"v"`
	Compress string `schema:"compress"`
	Encoding string `schema:"encoding"`
}

// Shard is one Discord Gateway WebSocket session: it demuxes inbound
// frames into Events and multiplexes outbound commands (spec.md §2, §4.3).
// A Shard is created, connects once, and runs to termination; it is not
// reusable after its event stream ends (spec.md §3 "Lifecycles").
type Shard struct {
	// Name is a caller-chosen display name used in log lines.
	Name string

	logger zerolog.Logger

	state int32 // shardState, accessed atomically

	mu   sync.Mutex // guards conn/compressor/decoder/cancel during connect/disconnect
	conn *websocket.Conn
	ctx  context.Context //nolint:containedctx
	cancel context.CancelFunc

	compressor Compressor
	decoder    Decoder

	events chan Event
}

// NewShard constructs a Shard. Construction takes no network arguments
// (spec.md §4.3 "Construction takes no arguments beyond an optional logger
// and a display name").
func NewShard(name string, logger *zerolog.Logger) *Shard {
	l := Logger
	if logger != nil {
		l = *logger
	}

	return &Shard{
		Name:   name,
		logger: l,
		state:  int32(shardFresh),
	}
}

func (s *Shard) loadState() shardState {
	return shardState(atomic.LoadInt32(&s.state))
}

// Connect parses uri's query for v/compress/encoding, opens a WebSocket to
// uri, emits a Connected event, then runs the read loop on the calling
// goroutine until the connection terminates (spec.md §4.3 "connect").
//
// Before returning, Connect guarantees a close frame with code 1000 is
// sent if the socket is still open and a terminal Disconnected event is
// emitted. I/O errors during the read loop are logged, not returned.
func (s *Shard) Connect(ctx context.Context, uri string) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(shardFresh), int32(shardConnected)) {
		return fmt.Errorf("cryogonal: shard %q already connected", s.Name)
	}

	query, err := parseGatewayQuery(uri)
	if err != nil {
		atomic.StoreInt32(&s.state, int32(shardFresh))

		return err
	}

	if query.Version != "" && query.Version != "6" {
		logSession(s.logger.Warn(), s.Name).
			Msgf("gateway URI requested version %q; this core targets version 6", query.Version)
	}

	compressor, err := NewCompressor(query.Compress)
	if err != nil {
		atomic.StoreInt32(&s.state, int32(shardFresh))

		return err
	}

	decoder, err := NewDecoder(query.Encoding)
	if err != nil {
		atomic.StoreInt32(&s.state, int32(shardFresh))

		return err
	}

	conn, _, err := websocket.Dial(ctx, uri, nil)
	if err != nil {
		atomic.StoreInt32(&s.state, int32(shardFresh))

		return fmt.Errorf("cryogonal: shard %q failed to dial gateway: %w", s.Name, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.conn = conn
	s.ctx = runCtx
	s.cancel = cancel
	s.compressor = compressor
	s.decoder = decoder
	s.events = make(chan Event, eventQueueSize)
	s.mu.Unlock()

	logSession(s.logger.Info(), s.Name).Msg("connected")
	s.emit(newConnectedEvent())

	s.run(runCtx)

	return nil
}

// parseGatewayQuery decodes the v/compress/encoding query parameters from a
// Gateway URI using gorilla/schema (spec.md §6, SPEC_FULL.md §4.8).
func parseGatewayQuery(uri string) (gatewayQuery, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return gatewayQuery{}, fmt.Errorf("cryogonal: invalid gateway uri: %w", err)
	}

	var q gatewayQuery
	if err := gatewayQueryDecoder.Decode(&q, u.Query()); err != nil {
		return gatewayQuery{}, fmt.Errorf("cryogonal: invalid gateway query string: %w", err)
	}

	return q, nil
}

// run executes the demultiplexing read loop on the calling goroutine until
// the connection terminates, then performs the guaranteed cleanup: sending
// a close frame if the socket is still open and emitting Disconnected.
func (s *Shard) run(ctx context.Context) {
	atomic.StoreInt32(&s.state, int32(shardConnected))

	for {
		messageType, raw, err := socket.Read(ctx, s.conn)
		if err != nil {
			s.handleReadError(err)

			break
		}

		s.demux(messageType, raw)
	}

	s.finish()
}

// handleReadError classifies a read-loop termination: a graceful close
// frame from the peer emits a Close event before the loop ends; any other
// error is logged and terminal for the session (spec.md §4.3, §7).
func (s *Shard) handleReadError(err error) {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		c := Close{Code: uint16(closeErr.Code)} //nolint:gosec
		if closeErr.Reason != "" {
			reason := closeErr.Reason
			c.Reason = &reason
		}

		logSession(s.logger.Info(), s.Name).
			Msgf("received close frame %d: %s", c.Code, derefString(c.Reason))
		s.emit(newCloseEvent(c))

		return
	}

	logSession(s.logger.Error(), s.Name).
		Err(ErrorEvent{Event: "Payload", Err: err, Action: ErrorEventActionRead}).
		Msg("terminal read error")
}

// demux routes one inbound frame to the Decoder (Text) or Compressor then
// Decoder (Binary) per spec.md §4.3's frame demultiplexing table.
func (s *Shard) demux(messageType websocket.MessageType, raw []byte) {
	switch messageType {
	case websocket.MessageText:
		p, err := s.decoder.Decode(raw)
		if err != nil {
			logSession(s.logger.Warn(), s.Name).Err(err).Msg("dropping unparseable text frame")

			return
		}

		logPayload(logSession(s.logger.Debug(), s.Name), p.Opcode, p.Data).Send()
		s.emit(newPacketEvent(p))

	case websocket.MessageBinary:
		inflated, err := s.compressor.Read(raw)
		if err != nil {
			logSession(s.logger.Warn(), s.Name).Err(err).Msg("dropping undecompressable binary frame")

			return
		}

		if inflated == nil {
			// a partial message; more bytes are needed.
			return
		}

		p, err := s.decoder.Decode(inflated)
		if err != nil {
			logSession(s.logger.Warn(), s.Name).Err(err).Msg("dropping unparseable binary frame")

			return
		}

		logPayload(logSession(s.logger.Debug(), s.Name), p.Opcode, p.Data).Send()
		s.emit(newPacketEvent(p))
	}
}

// finish performs the guaranteed cleanup path: send a normal close frame
// if the socket is still open and, concurrently, emit the terminal
// Disconnected event (spec.md §4.3 "Before returning, it guarantees...").
func (s *Shard) finish() {
	atomic.StoreInt32(&s.state, int32(shardClosing))

	var g errgroup.Group

	g.Go(func() error {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if conn == nil {
			return nil
		}

		// Close is a no-op if the connection is already closed/closing.
		return conn.Close(websocket.StatusCode(CloseCodeNormal), "")
	})

	g.Go(func() error {
		s.emit(newDisconnectedEvent())

		return nil
	})

	if err := g.Wait(); err != nil {
		logSession(s.logger.Debug(), s.Name).Err(err).Msg("close frame not sent (connection already closed)")
	}

	atomic.StoreInt32(&s.state, int32(shardClosed))

	s.mu.Lock()
	if s.events != nil {
		close(s.events)
	}
	s.mu.Unlock()
}

// emit enqueues an Event for Receive(). Single producer (the read loop, or
// the cleanup path after it), single consumer (Receive) — spec.md §5
// "Shared resources".
func (s *Shard) emit(e Event) {
	s.mu.Lock()
	ch := s.events
	s.mu.Unlock()

	if ch == nil {
		return
	}

	ch <- e
}

// Receive blocks until the next Event is available, returning ok=false
// once the stream is permanently closed (spec.md §4.3 "receive").
func (s *Shard) Receive() (Event, bool) {
	s.mu.Lock()
	ch := s.events
	s.mu.Unlock()

	if ch == nil {
		return Event{}, false
	}

	e, ok := <-ch

	return e, ok
}

// Disconnect sends a WebSocket close frame with the given code (default
// 1000), which unwinds Connect via its guaranteed-cleanup path. Fails if
// the Shard was never connected (spec.md §4.3 "disconnect").
func (s *Shard) Disconnect(code int) error {
	if code == 0 {
		code = CloseCodeNormal
	}

	if s.loadState() == shardFresh {
		return ErrNotConnected
	}

	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	err := conn.Close(websocket.StatusCode(code), "")
	if cancel != nil {
		cancel()
	}

	if err != nil {
		return ErrorDisconnect{Name: s.Name, Err: err}
	}

	return nil
}

// Send dispatches payload to its fixed opcode (spec.md §4.3 "send") and
// writes it to the socket as the Packet's "d" field. Only Bot-kind tokens
// may Identify; Bearer (and any other non-Bot kind) is rejected with
// ErrBadTokenType before any bytes are sent (spec.md §4.3 "Identify
// specifics").
func (s *Shard) Send(payload any) error {
	var op Opcode

	switch v := payload.(type) {
	case Identify:
		if v.tokenKind() != TokenBot {
			return ErrBadTokenType{Kind: v.tokenKind()}
		}

		v.Properties = IdentifyConnectionProperties{OS: "Linux", Browser: "cryogonal", Device: "cryogonal"}
		payload = v
		op = OpcodeIdentify
	case Resume:
		op = OpcodeResume
	case Heartbeat:
		op = OpcodeHeartbeat
	case RequestGuildMembers:
		op = OpcodeRequestGuildMembers
	case UpdateVoiceState:
		op = OpcodeVoiceStateUpdate
	case UpdateStatus:
		op = OpcodeStatusUpdate
	case Packet:
		return s.SendRaw(v)
	default:
		return fmt.Errorf("cryogonal: unsupported send payload type %T", payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ErrorEvent{Event: fmt.Sprintf("%T", payload), Err: err, Action: ErrorEventActionMarshal}
	}

	return s.SendRaw(Packet{Opcode: op, Data: data})
}

// SendRaw writes a Packet directly to the socket, bypassing opcode
// inference. This is the escape hatch so callers can emit future opcodes
// without waiting on a library update (spec.md §9 "Opcode extensibility").
func (s *Shard) SendRaw(p Packet) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.ctx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(p)
	if err != nil {
		return ErrorEvent{Event: "Packet", Err: err, Action: ErrorEventActionMarshal}
	}

	logCommand(logSession(s.logger.Debug(), s.Name), p.Opcode, fmt.Sprintf("%d", p.Opcode)).Send()

	if err := socket.Write(ctx, conn, websocket.MessageText, data); err != nil {
		return ErrorEvent{Event: "Packet", Err: err, Action: ErrorEventActionWrite}
	}

	return nil
}
