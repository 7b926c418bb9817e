package cryogonal

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

// TestAPIErrorPrettyS4 is scenario S4: a nested error tree with leaves at
// content, embed.description and embed.title renders interior nodes as
// `In "embed":` and leaves as `"<field>" <message> (<code>)`.
func TestAPIErrorPrettyS4(t *testing.T) {
	const body = `{
		"code": 50035,
		"message": "Invalid Form Body",
		"errors": {
			"content": {
				"_errors": [{"code": "BASE_TYPE_REQUIRED", "message": "This field is required"}]
			},
			"embed": {
				"description": {
					"_errors": [{"code": "STRING_TYPE", "message": "String value expected"}]
				},
				"title": {
					"_errors": [{"code": "STRING_TYPE", "message": "String value expected"}]
				}
			}
		}
	}`

	var api APIError
	if err := json.Unmarshal([]byte(body), &api); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if api.Code != 50035 || api.Message != "Invalid Form Body" {
		t.Fatalf("unexpected top-level fields: %+v", api)
	}

	got := api.Pretty()

	want := strings.Join([]string{
		`"content" This field is required (BASE_TYPE_REQUIRED)`,
		`In "embed":`,
		`  "description" String value expected (STRING_TYPE)`,
		`  "title" String value expected (STRING_TYPE)`,
	}, "\n")

	if got != want {
		t.Fatalf("Pretty() =\n%s\nwant\n%s", got, want)
	}
}

func TestAPIErrorPrettyEmpty(t *testing.T) {
	api := APIError{Code: 0, Message: "ok"}

	if got := api.Pretty(); got != "" {
		t.Fatalf("Pretty() = %q, want empty string", got)
	}
}

func TestRateLimitResponseUnmarshal(t *testing.T) {
	const body = `{"message":"You are being rate limited.","retry_after":0.5,"global":false}`

	var rl RateLimitResponse
	if err := json.Unmarshal([]byte(body), &rl); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if rl.Global {
		t.Fatal("Global = true, want false")
	}
}
