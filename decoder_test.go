package cryogonal

import "testing"

func TestNewDecoderUnknownName(t *testing.T) {
	if _, err := NewDecoder("msgpack"); err == nil {
		t.Fatal("expected an error for an unknown decoder name")
	}
}

func TestJSONDecoderDecode(t *testing.T) {
	d, err := NewDecoder("json")
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	p, err := d.Decode([]byte(`{"op":11,"s":null,"d":null,"t":null}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if p.Opcode != OpcodeHeartbeatAck {
		t.Fatalf("Opcode = %v, want HeartbeatAck", p.Opcode)
	}
}

func TestJSONDecoderDefaultName(t *testing.T) {
	if _, err := NewDecoder(""); err != nil {
		t.Fatalf("NewDecoder(\"\"): %v", err)
	}
}

func TestJSONDecoderMalformed(t *testing.T) {
	d, err := NewDecoder("json")
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	if _, err := d.Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}
