package cryogonal

import (
	"encoding/base64"
	"strings"
)

// TokenKind classifies a Token by the prefix of its raw credential string
// (spec.md §3).
type TokenKind int

// TokenKind values, in prefix-match priority order.
const (
	TokenEmpty TokenKind = iota
	TokenBot
	TokenBasic
	TokenBearer
	TokenUnknown
)

// String renders the TokenKind's name, used both for display and as part
// of ErrBadTokenType's message.
func (k TokenKind) String() string {
	switch k {
	case TokenEmpty:
		return "Empty"
	case TokenBot:
		return "Bot"
	case TokenBasic:
		return "Basic"
	case TokenBearer:
		return "Bearer"
	default:
		return "Unknown"
	}
}

// Token is a tagged Discord credential string. Its Kind is inferred once at
// construction by prefix match; the raw value is sensitive and never
// appears in any debug/inspect rendering (spec.md §3, invariant 3).
type Token struct {
	kind TokenKind
	raw  string
}

// NewToken infers a Token's Kind from raw's prefix:
// empty -> Empty; "Bot " -> Bot; "Basic " -> Basic; "Bearer " -> Bearer;
// otherwise -> Unknown (spec.md §3, §8 S2).
func NewToken(raw string) Token {
	var kind TokenKind

	switch {
	case raw == "":
		kind = TokenEmpty
	case strings.HasPrefix(raw, "Bot "):
		kind = TokenBot
	case strings.HasPrefix(raw, "Basic "):
		kind = TokenBasic
	case strings.HasPrefix(raw, "Bearer "):
		kind = TokenBearer
	default:
		kind = TokenUnknown
	}

	return Token{kind: kind, raw: raw}
}

// Kind returns the Token's inferred kind.
func (t Token) Kind() TokenKind {
	return t.kind
}

// Authorization renders the full credential, suitable only for use as the
// value of an HTTP Authorization header. This is the one place the raw
// value may escape the Token (spec.md §9 "Token safety").
func (t Token) Authorization() string {
	return t.raw
}

// ClientID parses the Bot user/application ID embedded in a Bot token. Bot
// tokens are structured as "Bot " + base64(client_id) + "." + rest; the
// portion before the first '.' of the payload after the "Bot " prefix is the
// base64-encoded client ID (spec.md §3, §8 S2). Returns "" for non-Bot
// tokens or tokens that fail to parse.
func (t Token) ClientID() string {
	if t.kind != TokenBot {
		return ""
	}

	payload := strings.TrimPrefix(t.raw, "Bot ")

	idx := strings.IndexByte(payload, '.')
	if idx < 0 {
		return ""
	}

	decoded, err := base64.RawStdEncoding.DecodeString(payload[:idx])
	if err != nil {
		// some tokens are padded; tolerate standard encoding too.
		decoded, err = base64.StdEncoding.DecodeString(payload[:idx])
		if err != nil {
			return ""
		}
	}

	return string(decoded)
}

// String implements fmt.Stringer with the same safe rendering as Inspect,
// so accidental fmt.Println(token) / %v logging never leaks the secret.
func (t Token) String() string {
	return t.Inspect()
}

// Inspect renders a debug view of the Token containing only its Kind and,
// for Bot tokens, the derived client ID. The raw string and its secret
// tail never appear here (spec.md §3 invariant; §8 S2, §8 invariant 3).
func (t Token) Inspect() string {
	if t.kind == TokenBot {
		if id := t.ClientID(); id != "" {
			return "Token{kind=Bot, client_id=" + id + "}"
		}
	}

	return "Token{kind=" + t.kind.String() + "}"
}
