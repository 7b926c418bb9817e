package cryogonal

import (
	"encoding/binary"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// Opcode is a Discord Gateway opcode, the integer tag on a Packet that
// determines the meaning of its Data payload (spec.md §3, GLOSSARY).
type Opcode int

// Opcode values (spec.md §3). RequestGuildMembers is fixed to 8 per the
// Open Question resolution in SPEC_FULL.md §9 — the source's apparent reuse
// of the Heartbeat opcode for RequestGuildMembers is treated as a bug.
const (
	OpcodeDispatch             Opcode = 0
	OpcodeHeartbeat            Opcode = 1
	OpcodeIdentify             Opcode = 2
	OpcodeStatusUpdate         Opcode = 3
	OpcodeVoiceStateUpdate     Opcode = 4
	OpcodeVoiceServerPing      Opcode = 5
	OpcodeResume               Opcode = 6
	OpcodeReconnect            Opcode = 7
	OpcodeRequestGuildMembers  Opcode = 8
	OpcodeInvalidSession       Opcode = 9
	OpcodeHello                Opcode = 10
	OpcodeHeartbeatAck         Opcode = 11
)

// Packet is the wire-level gateway message envelope (spec.md §3). Data is
// captured as a raw, re-parseable JSON blob: the core neither knows nor
// cares about the data schema for every opcode/event, so downstream typed
// parsers can consume it lazily (spec.md §3, §9 "Raw d payload").
type Packet struct {
	Opcode    Opcode          `json:"op"`
	Sequence  *int64          `json:"s"`
	Data      json.RawMessage `json:"d"`
	EventType *string         `json:"t"`
}

// MarshalJSON renders the Packet using Discord's exact field order and
// names, so parse-then-serialize round-trips are byte-identical for op, s
// and t (spec.md §8 invariant 4, §8 S3).
func (p Packet) MarshalJSON() ([]byte, error) {
	type wire struct {
		Op   Opcode          `json:"op"`
		Seq  *int64          `json:"s"`
		Data json.RawMessage `json:"d"`
		Type *string         `json:"t"`
	}

	return json.Marshal(wire{Op: p.Opcode, Seq: p.Sequence, Data: p.Data, Type: p.EventType})
}

// GatewayCloseEventCode documents a Discord Gateway WebSocket close code:
// whether the caller should attempt a reconnect, and a human description
// (SPEC_FULL.md §3.1, supplementing spec.md's generic Close{code, reason}).
type GatewayCloseEventCode struct {
	Code        int
	Description string
	Explanation string
	Reconnect   bool
}

// GatewayCloseEventCodes maps documented Discord Gateway close codes to
// their description and reconnect-ability. The core itself never acts on
// this table (it does not reconnect automatically, per spec.md's
// Non-goals); it is exposed for callers who drive their own reconnect
// policy (spec.md §9 "Opcode extensibility" / §1 Non-goals).
var GatewayCloseEventCodes = map[int]GatewayCloseEventCode{
	4000: {Code: 4000, Description: "Unknown error", Explanation: "We're not sure what went wrong. Try reconnecting?", Reconnect: true},
	4001: {Code: 4001, Description: "Unknown opcode", Explanation: "You sent an invalid Gateway opcode or payload for an opcode.", Reconnect: true},
	4002: {Code: 4002, Description: "Decode error", Explanation: "You sent an invalid payload.", Reconnect: true},
	4003: {Code: 4003, Description: "Not authenticated", Explanation: "You sent a payload prior to identifying.", Reconnect: true},
	4004: {Code: 4004, Description: "Authentication failed", Explanation: "The account token sent with your identify payload is incorrect.", Reconnect: false},
	4005: {Code: 4005, Description: "Already authenticated", Explanation: "You sent more than one identify payload.", Reconnect: true},
	4007: {Code: 4007, Description: "Invalid seq", Explanation: "The sequence sent when resuming the session was invalid.", Reconnect: true},
	4008: {Code: 4008, Description: "Rate limited", Explanation: "You are being rate limited.", Reconnect: true},
	4009: {Code: 4009, Description: "Session timed out", Explanation: "Your session timed out. Reconnect and start a new one.", Reconnect: true},
	4010: {Code: 4010, Description: "Invalid shard", Explanation: "You sent an invalid shard when identifying.", Reconnect: false},
	4011: {Code: 4011, Description: "Sharding required", Explanation: "The session would have handled too many guilds; shard into more connections.", Reconnect: false},
	4012: {Code: 4012, Description: "Invalid API version", Explanation: "You sent an invalid version for the gateway.", Reconnect: false},
	4013: {Code: 4013, Description: "Invalid intent(s)", Explanation: "You sent an invalid intent bitmask.", Reconnect: false},
	4014: {Code: 4014, Description: "Disallowed intent(s)", Explanation: "You sent a disallowed intent you have not enabled or are not approved for.", Reconnect: false},
}

// Close carries a WebSocket close frame's code and optional UTF-8 reason
// (spec.md §3 Event, §6 close frame wire form).
type Close struct {
	Code   uint16
	Reason *string
}

// DecodeClose parses a raw WebSocket close frame payload into a Close: a
// big-endian u16 code followed by an optional UTF-8 reason (spec.md §3,
// §6, §8 invariant 5). Payloads shorter than 2 bytes yield a zero Close.
func DecodeClose(payload []byte) Close {
	if len(payload) < 2 {
		return Close{}
	}

	code := binary.BigEndian.Uint16(payload[:2])

	if len(payload) == 2 {
		return Close{Code: code}
	}

	reason := string(payload[2:])
	if !utf8.ValidString(reason) {
		reason = ""
	}

	return Close{Code: code, Reason: &reason}
}

// Encode renders a Close back to its wire form: a big-endian u16 code
// followed by the optional UTF-8 reason (spec.md §6).
func (c Close) Encode() []byte {
	buf := make([]byte, 2, 2+len(derefString(c.Reason)))
	binary.BigEndian.PutUint16(buf, c.Code)

	if c.Reason != nil {
		buf = append(buf, *c.Reason...)
	}

	return buf
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// EventKind distinguishes the sum-type variants of Event (spec.md §3:
// "Connected | Packet | Close | Disconnected").
type EventKind int

// EventKind values.
const (
	EventConnected EventKind = iota
	EventPacket
	EventClose
	EventDisconnected
)

// Event is the sum type observable by a Shard's consumer via Receive()
// (spec.md §3, §5 ordering guarantees).
type Event struct {
	Kind   EventKind
	Packet *Packet
	Close  *Close
}

// newConnectedEvent constructs the Connected event that brackets the start
// of a Shard's session.
func newConnectedEvent() Event { return Event{Kind: EventConnected} }

// newDisconnectedEvent constructs the terminal Disconnected event that
// brackets the end of a Shard's session.
func newDisconnectedEvent() Event { return Event{Kind: EventDisconnected} }

// newPacketEvent wraps a decoded Packet as an Event.
func newPacketEvent(p Packet) Event { return Event{Kind: EventPacket, Packet: &p} }

// newCloseEvent wraps a decoded Close as an Event.
func newCloseEvent(c Close) Event { return Event{Kind: EventClose, Close: &c} }

// IdentifyConnectionProperties is fixed by the Shard on every Identify
// (spec.md §4.3 "Identify specifics").
type IdentifyConnectionProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the Opcode 2 payload used to start a new gateway session
// (spec.md §4.3, SPEC_FULL.md §3.2). Its Token determines whether Shard.Send
// will allow the Identify through: only Bot-kind tokens may identify
// (spec.md §4.3 "Identify specifics").
type Identify struct {
	Token          Token
	Properties     IdentifyConnectionProperties
	Compress       bool
	LargeThreshold int
	Shard          *[2]int
	Presence       json.RawMessage
	Intents        int
}

// tokenKind reports the Kind of Identify's Token, used by Shard.Send to
// enforce the Bot-only restriction.
func (id Identify) tokenKind() TokenKind {
	return id.Token.Kind()
}

// MarshalJSON renders Identify's wire form, substituting the Token's full
// Authorization() string for the "token" field — the one place a Token's
// raw value is permitted to escape (spec.md §9 "Token safety").
func (id Identify) MarshalJSON() ([]byte, error) {
	type wire struct {
		Token          string                        `json:"token"`
		Properties     IdentifyConnectionProperties `json:"properties"`
		Compress       bool                          `json:"compress,omitempty"`
		LargeThreshold int                           `json:"large_threshold,omitempty"`
		Shard          *[2]int                       `json:"shard,omitempty"`
		Presence       json.RawMessage               `json:"presence,omitempty"`
		Intents        int                           `json:"intents"`
	}

	return json.Marshal(wire{
		Token:          id.Token.Authorization(),
		Properties:     id.Properties,
		Compress:       id.Compress,
		LargeThreshold: id.LargeThreshold,
		Shard:          id.Shard,
		Presence:       id.Presence,
		Intents:        id.Intents,
	})
}

// Resume is the Opcode 6 payload used to resume a prior gateway session.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Heartbeat is the Opcode 1 payload, carrying the last sequence number
// observed by the client (or null if none has been received yet).
type Heartbeat struct {
	Data *int64 `json:"d"`
}

// RequestGuildMembers is the Opcode 8 payload.
type RequestGuildMembers struct {
	GuildID   string   `json:"guild_id"`
	Query     *string  `json:"query,omitempty"`
	Limit     int      `json:"limit"`
	Presences bool     `json:"presences,omitempty"`
	UserIDs   []string `json:"user_ids,omitempty"`
	Nonce     *string  `json:"nonce,omitempty"`
}

// UpdateVoiceState is the Opcode 4 payload.
type UpdateVoiceState struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// UpdateStatus is the Opcode 3 payload.
type UpdateStatus struct {
	Since      *int64          `json:"since"`
	Activities json.RawMessage `json:"activities,omitempty"`
	Status     string          `json:"status"`
	AFK        bool            `json:"afk"`
}

// Hello is the Opcode 10 payload sent by Discord immediately after
// connecting, carrying the heartbeat interval (GLOSSARY).
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}
