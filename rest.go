package cryogonal

import (
	"hash/crc32"
	"net/http"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/xid"
	"github.com/valyala/fasthttp"
)

// Version is the cryogonal library version reported in the User-Agent
// string (SPEC_FULL.md §6.1).
const Version = "0.1.0"

// sourceURL anchors the User-Agent's repo reference (SPEC_FULL.md §6.1,
// mirroring the teacher's defaultUserAgent pattern in wrapper/client.go).
const sourceURL = "github.com/z64gopher/cryogonal"

// maxAttempts is the default retry ceiling for 429/502 responses (spec.md
// §4.6 step 6).
const maxAttempts = 5

// Config holds REST Client tuning parameters (SPEC_FULL.md §4.7).
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
	HTTPClient  *fasthttp.Client
}

// DefaultConfig returns sane defaults, mirroring the teacher's
// DefaultConfig() shape: a lazily-constructed *fasthttp.Client, a bounded
// timeout and the standard retry ceiling (SPEC_FULL.md §4.7).
func DefaultConfig() *Config {
	return &Config{
		Timeout:     10 * time.Second,
		MaxAttempts: maxAttempts,
		UserAgent:   defaultUserAgent(),
		HTTPClient:  &fasthttp.Client{},
	}
}

// defaultUserAgent renders spec.md §6's format: "DiscordBot (<source-url>,
// <library-version>) <host-lang-version>" (SPEC_FULL.md §6.1).
func defaultUserAgent() string {
	return "DiscordBot (https://" + sourceURL + ", v" + Version + ") " + runtime.Version()
}

// Client is the REST coordinator: a Token, a shared LimitTable and a
// Config (SPEC_FULL.md §4.7, teacher: wrapper/client.go's Client).
type Client struct {
	token  Token
	table  *LimitTable
	config *Config
}

// NewClient constructs a Client. A nil cfg falls back to DefaultConfig().
func NewClient(token Token, table *LimitTable, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &fasthttp.Client{}
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = maxAttempts
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent()
	}

	return &Client{token: token, table: table, config: cfg}
}

// Request is the input to Client.Send: method, full URI and an optional
// body, rewound and resent across retries (spec.md §4.6 "intra-retry loops
// reuse it").
type Request struct {
	Method      string
	URI         string
	ContentType string
	Body        []byte
}

// traceID derives the spec's "8-hex-digit trace id" (spec.md §4.6 step 1)
// from a freshly generated xid.ID, so every request still carries xid's
// globally-sortable identity while logging stays to the width the spec
// calls for.
func traceID() string {
	id := xid.New()

	return hexChecksum(id.Bytes())
}

func hexChecksum(b []byte) string {
	sum := crc32.ChecksumIEEE(b)

	const hexDigits = "0123456789abcdef"

	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = hexDigits[sum&0xf]
		sum >>= 4
	}

	return string(out)
}

// Send executes req against key's rate-limit bucket, waiting out any active
// cooldown, retrying 429/502 responses up to the configured maximum, and
// returning a hard APIException for any other non-2xx status (spec.md
// §4.6, SPEC_FULL.md §9 Open Question resolution for "other 5xx"). On
// success the caller owns the returned *fasthttp.Response and must release
// it with fasthttp.ReleaseResponse once done.
func (c *Client) Send(req Request, key LimitKey) (*fasthttp.Response, error) {
	trace := traceID()

	log := Logger.Debug()
	logRequest(log, trace, key.RouteTag, key.MajorParameterID, req.URI).Msg("rest: send")

	for attempt := 0; ; attempt++ {
		if bucket := c.table.LookupKey(key); bucket != nil {
			if _, waited := bucket.Wait(); !waited && bucket.NextWillLimit(time.Now()) {
				if err := bucket.Cooldown(time.Now()); err != nil {
					return nil, err
				}
			}
		}

		response, err := c.do(req)
		if err != nil {
			return nil, err
		}

		if updateErr := c.table.Update(key, toHTTPHeader(&response.Header)); updateErr != nil {
			Logger.Debug().Str(logCtxCorrelation, trace).Err(updateErr).Msg("rest: rate limit headers insufficient")
		}

		status := response.StatusCode()

		logResponse(Logger.Debug(), status).Str(logCtxCorrelation, trace).Msg("rest: response")

		switch {
		case status >= 200 && status < 300:
			return response, nil

		case status == fasthttp.StatusTooManyRequests || status == fasthttp.StatusBadGateway:
			fasthttp.ReleaseResponse(response)

			if attempt+1 >= c.config.MaxAttempts {
				return nil, ErrMaxAttemptsExceeded
			}

			continue

		default:
			body := append([]byte(nil), response.Body()...)
			api := parseAPIError(body)
			fasthttp.ReleaseResponse(response)

			return nil, &APIException{StatusCode: status, Body: body, API: api}
		}
	}
}

// do executes a single HTTP round trip for req, injecting the headers
// required by spec.md §4.6 step 3.
func (c *Client) do(req Request) (*fasthttp.Response, error) {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)

	request.Header.SetMethod(req.Method)
	request.SetRequestURI(req.URI)
	request.Header.Set("User-Agent", c.config.UserAgent)
	request.Header.Set("Connection", "Keep-Alive")

	if req.ContentType != "" {
		request.Header.SetContentType(req.ContentType)
	}

	if c.token.Kind() != TokenEmpty {
		request.Header.Set("Authorization", c.token.Authorization())
	}

	if req.Body != nil {
		request.SetBodyRaw(req.Body)
	}

	response := fasthttp.AcquireResponse()

	if err := c.config.HTTPClient.DoTimeout(request, response, c.config.Timeout); err != nil {
		fasthttp.ReleaseResponse(response)

		return nil, err
	}

	return response, nil
}

// parseAPIError best-effort decodes a Discord error body; a malformed or
// empty body yields a nil APIError, leaving APIException.Body as the
// fallback message source.
func parseAPIError(body []byte) *APIError {
	if len(body) == 0 {
		return nil
	}

	var api APIError
	if err := json.Unmarshal(body, &api); err != nil {
		return nil
	}

	return &api
}

// toHTTPHeader copies the rate-limit-relevant fasthttp response headers
// into a net/http.Header so LimitTable.Update can stay transport-agnostic
// (spec.md §4.5 takes "response.headers" generically).
func toHTTPHeader(h *fasthttp.ResponseHeader) http.Header {
	out := make(http.Header, 8)

	for _, key := range []string{
		"Date", "X-RateLimit-Limit", "X-RateLimit-Remaining",
		"X-RateLimit-Reset", "X-RateLimit-Bucket", "Retry-After",
	} {
		if v := h.Peek(key); len(v) > 0 {
			out.Set(key, string(v))
		}
	}

	return out
}
