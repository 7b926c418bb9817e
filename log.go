package cryogonal

import (
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// init configures the package-level zerolog defaults, mirroring the
// teacher's disabled-by-default, nanosecond-precision logging setup.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// Logger is the package-level logger used by every component unless a
// caller supplies its own via NewShard; the REST Client always uses it.
// Disabled by default: init sets zerolog's global level to Disabled, so
// callers opt in by raising it with zerolog.SetGlobalLevel (a Logger
// installed with SetLogger is subject to the same global level).
var Logger = zerolog.New(os.Stdout)

// SetLogger replaces the package-level Logger.
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// Log context keys, mirroring the teacher's LogCtx* constants.
const (
	logCtxSession      = "session"
	logCtxBucket       = "bucket"
	logCtxReset        = "reset"
	logCtxRoute        = "route"
	logCtxResource     = "resource"
	logCtxCorrelation  = "xid"
	logCtxRequest      = "request"
	logCtxEndpoint     = "endpoint"
	logCtxResponse     = "response"
	logCtxResponseCode = "code"
	logCtxPayload      = "payload"
	logCtxPayloadOp    = "opcode"
	logCtxPayloadData  = "data"
	logCtxCommand      = "command"
	logCtxEvent        = "event"
)

// logSession returns a log event scoped to a Shard's session/display name.
func logSession(log *zerolog.Event, name string) *zerolog.Event {
	return log.Timestamp().Str(logCtxSession, name)
}

// logPayload logs an inbound gateway Packet (typically chained from
// logSession).
func logPayload(log *zerolog.Event, op Opcode, data json.RawMessage) *zerolog.Event {
	return log.Dict(logCtxPayload, zerolog.Dict().
		Int(logCtxPayloadOp, int(op)).
		Bytes(logCtxPayloadData, data),
	)
}

// logCommand logs an outbound gateway command (typically chained from
// logSession).
func logCommand(log *zerolog.Event, op Opcode, name string) *zerolog.Event {
	return log.Str(logCtxCommand, name).Int(logCtxPayloadOp, int(op))
}

// logRequest logs a REST request's identity (typically chained with
// logResponse once the round-trip completes).
func logRequest(log *zerolog.Event, xid, routeTag, resourceID, endpoint string) *zerolog.Event {
	return log.Timestamp().
		Dict(logCtxRequest, zerolog.Dict().
			Str(logCtxCorrelation, xid).
			Str(logCtxRoute, routeTag).
			Str(logCtxResource, resourceID).
			Str(logCtxEndpoint, endpoint),
		)
}

// logBucket logs a Bucket's observed state (typically chained from
// logRequest).
func logBucket(log *zerolog.Event, bucketID string, remaining, limit int, reset time.Time) *zerolog.Event {
	return log.Dict(logCtxBucket, zerolog.Dict().
		Str("id", bucketID).
		Int("remaining", remaining).
		Int("limit", limit).
		Time(logCtxReset, reset),
	)
}

// logResponse logs a REST response's status code (typically chained from
// logRequest).
func logResponse(log *zerolog.Event, status int) *zerolog.Event {
	return log.Dict(logCtxResponse, zerolog.Dict().Int(logCtxResponseCode, status))
}
