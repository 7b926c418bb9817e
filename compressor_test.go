package cryogonal

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func TestNewCompressorUnknownName(t *testing.T) {
	if _, err := NewCompressor("lz4"); err == nil {
		t.Fatal("expected an error for an unknown compressor name")
	}
}

func TestPerMessageZlibCompressor(t *testing.T) {
	want := []byte(`{"op":0,"s":1,"d":{},"t":"READY"}`)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(want)
	_ = w.Close()

	c, err := NewCompressor("zlib")
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	got, err := c.Read(buf.Bytes())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestPerMessageZlibCompressorPartialChunk(t *testing.T) {
	want := []byte(`{"op":0,"s":2,"d":{"k":"v"},"t":"READY"}`)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(want)
	_ = w.Close()

	c, err := NewCompressor("zlib")
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	raw := buf.Bytes()
	split := len(raw) / 2

	if got, err := c.Read(raw[:split]); err != nil || got != nil {
		t.Fatalf("Read on a partial stream: got=%v err=%v, want nil, nil", got, err)
	}

	got, err := c.Read(raw[split:])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

// zlibStreamFixture builds a continuous zlib stream containing two
// sync-flushed messages, the way Discord's zlib-stream encoding does.
func zlibStreamFixture(t *testing.T, messages ...[]byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zlib.NewWriter(&buf)

	for _, m := range messages {
		if _, err := w.Write(m); err != nil {
			t.Fatalf("Write: %v", err)
		}

		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}

	return buf.Bytes()
}

// TestStreamingZlibCompressorSingleChunk and
// TestStreamingZlibCompressorArbitraryChunks together exercise invariant 6:
// feeding the same byte stream in arbitrary-sized chunks yields the same
// sequence of inflated messages as feeding it as a single chunk.
func TestStreamingZlibCompressorSingleChunk(t *testing.T) {
	msg1 := []byte(`{"op":0,"s":1,"d":{"a":1},"t":"READY"}`)
	msg2 := []byte(`{"op":0,"s":2,"d":{"a":2},"t":"RESUMED"}`)

	stream := zlibStreamFixture(t, msg1, msg2)

	boundary := findSuffix(stream)

	c, err := NewCompressor("zlib-stream")
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	got1, err := c.Read(stream[:boundary])
	if err != nil {
		t.Fatalf("Read message 1: %v", err)
	}

	if !bytes.Equal(got1, msg1) {
		t.Fatalf("message 1: got %s, want %s", got1, msg1)
	}

	got2, err := c.Read(stream[boundary:])
	if err != nil {
		t.Fatalf("Read message 2: %v", err)
	}

	if !bytes.Equal(got2, msg2) {
		t.Fatalf("message 2: got %s, want %s", got2, msg2)
	}
}

func TestStreamingZlibCompressorArbitraryChunks(t *testing.T) {
	msg1 := []byte(`{"op":0,"s":1,"d":{"a":1},"t":"READY"}`)
	msg2 := []byte(`{"op":0,"s":2,"d":{"a":2},"t":"RESUMED"}`)

	stream := zlibStreamFixture(t, msg1, msg2)

	c, err := NewCompressor("zlib-stream")
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	var got [][]byte

	const chunkSize = 3

	for i := 0; i < len(stream); i += chunkSize {
		end := i + chunkSize
		if end > len(stream) {
			end = len(stream)
		}

		out, err := c.Read(stream[i:end])
		if err != nil {
			t.Fatalf("Read at offset %d: %v", i, err)
		}

		if out != nil {
			got = append(got, out)
		}
	}

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(got), got)
	}

	if !bytes.Equal(got[0], msg1) {
		t.Fatalf("message 1: got %s, want %s", got[0], msg1)
	}

	if !bytes.Equal(got[1], msg2) {
		t.Fatalf("message 2: got %s, want %s", got[1], msg2)
	}
}

// findSuffix returns the offset just past the first occurrence of the
// zlib-stream sync-flush marker.
func findSuffix(stream []byte) int {
	for i := 4; i <= len(stream); i++ {
		if bytes.Equal(stream[i-4:i], zlibStreamSuffix[:]) {
			return i
		}
	}

	return len(stream)
}
