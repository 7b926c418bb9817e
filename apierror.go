package cryogonal

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// APIErrorDetail is a single leaf error code/message pair (spec.md §6
// "ErrorNode ... a leaf has the shape {_errors: [{code, message}, ...]}").
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorNode is a recursive JSON error tree: a leaf carries Errors, an
// interior node carries Fields mapping a field name to a further ErrorNode
// (spec.md §6).
type ErrorNode struct {
	Errors []APIErrorDetail
	Fields map[string]ErrorNode
}

// UnmarshalJSON distinguishes a leaf ({"_errors": [...]}) from an interior
// node (a map of field name -> ErrorNode) since Discord's error tree shape
// is polymorphic at every level (spec.md §6).
func (n *ErrorNode) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if leaf, ok := raw["_errors"]; ok {
		var details []APIErrorDetail
		if err := json.Unmarshal(leaf, &details); err != nil {
			return err
		}

		n.Errors = details

		return nil
	}

	fields := make(map[string]ErrorNode, len(raw))

	for key, value := range raw {
		var child ErrorNode
		if err := json.Unmarshal(value, &child); err != nil {
			return err
		}

		fields[key] = child
	}

	n.Fields = fields

	return nil
}

// render writes this node's contribution to a human-readable tree,
// labelled by field. Interior nodes render as `In "field":` followed by
// their children one indent level deeper; leaves render one line per
// detail as `"field" message (code)` (spec.md §8 S4).
func (n ErrorNode) render(sb *strings.Builder, field string, indent int) {
	pad := strings.Repeat("  ", indent)

	for _, d := range n.Errors {
		sb.WriteString(pad)
		sb.WriteString(`"` + field + `" ` + d.Message + " (" + d.Code + ")\n")
	}

	if len(n.Fields) == 0 {
		return
	}

	sb.WriteString(pad + `In "` + field + `":` + "\n")

	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		n.Fields[k].render(sb, k, indent+1)
	}
}

// APIError is the parsed body of a Discord API error response (spec.md §6
// "Error body").
type APIError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Errors  *ErrorNode `json:"errors,omitempty"`
}

// Pretty renders APIError.Errors as a human-readable multi-line tree
// (spec.md §8 S4). Returns "" when there is no nested error detail.
func (e APIError) Pretty() string {
	if e.Errors == nil || len(e.Errors.Fields) == 0 {
		return ""
	}

	var sb strings.Builder

	keys := make([]string, 0, len(e.Errors.Fields))
	for k := range e.Errors.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		e.Errors.Fields[k].render(&sb, k, 0)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RateLimitResponse is the parsed body of a 429 response (spec.md §6 "429
// body").
type RateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
