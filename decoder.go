package cryogonal

import (
	json "github.com/goccy/go-json"
)

// Decoder decodes a gateway payload into a Packet (spec.md §4.2). A single
// implementation ("json") is provided; the interface exists so the core
// stays wire-format-extensible without a breaking change.
type Decoder interface {
	Decode(raw []byte) (Packet, error)
}

// NewDecoder constructs a Decoder by name: "json". An unknown name returns
// ErrUnknownDecoder (spec.md §4.2).
func NewDecoder(name string) (Decoder, error) {
	switch name {
	case "", "json":
		return jsonDecoder{}, nil
	default:
		return nil, ErrUnknownDecoder{Name: name}
	}
}

// jsonDecoder reads the JSON envelope {"op", "s", "d", "t"} and constructs
// a Packet, capturing "d" as a raw re-parseable blob (spec.md §4.2, §3, §8
// S3).
type jsonDecoder struct{}

func (jsonDecoder) Decode(raw []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return Packet{}, err
	}

	return p, nil
}
