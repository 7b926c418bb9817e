package cryogonal

import "fmt"

// Configuration errors are fail-fast: they indicate a caller mistake that
// is detectable before any network I/O occurs.

// ErrUnknownCompressor is returned by NewCompressor when given a name that
// does not match a known Compressor implementation ("zlib", "zlib-stream").
type ErrUnknownCompressor struct {
	Name string
}

func (e ErrUnknownCompressor) Error() string {
	return fmt.Sprintf("cryogonal: unknown compressor %q", e.Name)
}

// ErrUnknownDecoder is returned by NewDecoder when given a name that does
// not match a known Decoder implementation ("json").
type ErrUnknownDecoder struct {
	Name string
}

func (e ErrUnknownDecoder) Error() string {
	return fmt.Sprintf("cryogonal: unknown decoder %q", e.Name)
}

// ErrBadTokenType is returned by Shard.Send when an Identify payload is sent
// using a Token whose Kind is not Bot. Only Bot tokens may identify to the
// Discord Gateway.
type ErrBadTokenType struct {
	Kind TokenKind
}

func (e ErrBadTokenType) Error() string {
	return fmt.Sprintf("cryogonal: cannot identify using a %s token; only Bot tokens may identify", e.Kind)
}

// ErrNotConnected is returned by Shard operations (Disconnect, Send) that
// require an established connection when none exists.
var ErrNotConnected = fmt.Errorf("cryogonal: shard is not connected")

// ErrHeadersInsufficient is a protocol error returned by LimitTable.Update
// when the response headers do not carry enough information to construct
// or update a Bucket (spec.md §4.5, update step 3).
var ErrHeadersInsufficient = fmt.Errorf("cryogonal: rate limit headers are insufficient to build a bucket")

// ErrClockSkew is raised by Bucket.Cooldown when reset_time has already
// passed at call time, which indicates either clock skew or a caller bug
// (spec.md §4.4).
var ErrClockSkew = fmt.Errorf("cryogonal: bucket cooldown called after its reset time has already elapsed")

// ErrMaxAttemptsExceeded is returned by Client.Send once the configured
// maximum number of attempts (Config.MaxAttempts, counting the first one)
// have all received 429/502 responses.
var ErrMaxAttemptsExceeded = fmt.Errorf("cryogonal: max attempts exceeded")

// ErrorEventAction names the phase of a Shard I/O operation during which an
// ErrorEvent occurred.
type ErrorEventAction string

// ErrorEventAction values.
const (
	ErrorEventActionRead      ErrorEventAction = "read"
	ErrorEventActionWrite     ErrorEventAction = "write"
	ErrorEventActionMarshal   ErrorEventAction = "marshal"
	ErrorEventActionUnmarshal ErrorEventAction = "unmarshal"
)

// ErrorEvent represents a transport or protocol error encountered while a
// Shard processes a single gateway event. In the read loop it is logged,
// not propagated: the loop is terminal on I/O errors and surfaces a
// Disconnected event rather than returning the error to a caller (spec.md
// §7 propagation policy). Shard.Send and Shard.SendRaw return it to their
// caller for marshal and write failures.
type ErrorEvent struct {
	Event  string
	Err    error
	Action ErrorEventAction
}

func (e ErrorEvent) Error() string {
	return fmt.Sprintf("cryogonal: %s error while handling event %q: %v", e.Action, e.Event, e.Err)
}

func (e ErrorEvent) Unwrap() error { return e.Err }

// ErrorDisconnect represents a failure encountered while disconnecting a
// Shard, optionally alongside the action that triggered the disconnection.
type ErrorDisconnect struct {
	Name   string
	Err    error
	Action error
}

func (e ErrorDisconnect) Error() string {
	if e.Action != nil {
		return fmt.Sprintf("cryogonal: shard %q failed to disconnect: %v (triggered by: %v)", e.Name, e.Err, e.Action)
	}

	return fmt.Sprintf("cryogonal: shard %q failed to disconnect: %v", e.Name, e.Err)
}

func (e ErrorDisconnect) Unwrap() error { return e.Err }

// APIException represents a non-2xx, non-retried Discord API response
// (spec.md §7: "Other 4xx surface an APIException carrying the parsed
// APIError tree"; other 5xx are treated the same way per the Open Question
// resolution in SPEC_FULL.md §9).
type APIException struct {
	StatusCode int
	Body       []byte
	API        *APIError
}

func (e *APIException) Error() string {
	if e.API != nil {
		return fmt.Sprintf("cryogonal: status %d: %s", e.StatusCode, e.API.Message)
	}

	return fmt.Sprintf("cryogonal: status %d: %s", e.StatusCode, string(e.Body))
}
