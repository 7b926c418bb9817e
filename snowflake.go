package cryogonal

import (
	"strconv"
	"time"
)

// Epoch is the Discord Snowflake epoch, 2015-01-01T00:00:00Z, expressed as
// Unix milliseconds (spec.md §3, GLOSSARY).
const Epoch int64 = 1420070400000

// Snowflake is a 64-bit Discord ID with an embedded millisecond timestamp
// in its upper 42 bits. Snowflakes are totally ordered by numeric value and
// always round-trip exactly through their decimal string wire form
// (spec.md §3, invariant 1).
type Snowflake uint64

// NewSnowflake constructs a Snowflake directly from its raw 64-bit value.
func NewSnowflake(u uint64) Snowflake {
	return Snowflake(u)
}

// SnowflakeFromTime constructs a Snowflake whose embedded timestamp is t,
// with the remaining (worker/process/increment) bits zeroed. Round-tripping
// through CreationTime recovers t at millisecond resolution (spec.md §3,
// invariant 1; §8 S1).
func SnowflakeFromTime(t time.Time) Snowflake {
	ms := t.UnixMilli() - Epoch
	if ms < 0 {
		ms = 0
	}

	return Snowflake(uint64(ms) << 22) //nolint:gosec
}

// ParseSnowflake parses a Snowflake from its decimal string wire form. The
// wire form is always a string (never a JSON number) because 64-bit
// integers lose precision in JavaScript/JSON number parsers (spec.md §3).
func ParseSnowflake(s string) (Snowflake, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}

	return Snowflake(u), nil
}

// String renders the Snowflake as its decimal wire form.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Uint64 returns the raw 64-bit value of the Snowflake.
func (s Snowflake) Uint64() uint64 {
	return uint64(s)
}

// CreationTime returns the embedded millisecond timestamp as a time.Time.
func (s Snowflake) CreationTime() time.Time {
	ms := int64(s>>22) + Epoch //nolint:gosec

	return time.UnixMilli(ms).UTC()
}

// Before reports whether s was created before other (spec.md §3: totally
// ordered by numeric value; invariant 2 agrees with unsigned comparison).
func (s Snowflake) Before(other Snowflake) bool {
	return s < other
}

// After reports whether s was created after other.
func (s Snowflake) After(other Snowflake) bool {
	return s > other
}

// MarshalJSON encodes the Snowflake as a JSON string, never a JSON number,
// matching Discord's wire form.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a Snowflake from either a JSON string (the normal
// Discord wire form) or a bare JSON number (tolerated for robustness, since
// some internal tooling emits Snowflakes unquoted).
func (s *Snowflake) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}

	u, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return err
	}

	*s = Snowflake(u)

	return nil
}
