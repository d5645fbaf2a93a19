package filters

import (
	"bytes"
	"compress/flate"
	"context"
	"testing"
)

func TestFlateDecode(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("hello world"))
	w.Close()

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCII85Decode(t *testing.T) {
	dec := NewASCII85Decoder()
	out, err := dec.Decode(context.Background(), []byte("<~87cURD_*#4DfTZ)+T~>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "Hello, World!" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	dec := NewASCIIHexDecoder()
	out, err := dec.Decode(context.Background(), []byte("68656c6c6f20776f726c64>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIHexDecodeOddLength(t *testing.T) {
	dec := NewASCIIHexDecoder()
	out, err := dec.Decode(context.Background(), []byte("4869>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "Hi" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDCTDecodePassthrough(t *testing.T) {
	jpegBytes := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46}
	dec := NewDCTDecoder()
	out, err := dec.Decode(context.Background(), jpegBytes, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, jpegBytes) {
		t.Fatalf("expected verbatim passthrough, got %v", out)
	}
}

func TestPipelineChaining(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("chained"))
	w.Close()

	p := DefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), buf.Bytes(), []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("pipeline decode error: %v", err)
	}
	if string(out) != "chained" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	p := NewPipeline([]Decoder{NewFlateDecoder()}, Limits{})
	_, err := p.Decode(context.Background(), []byte{0x00}, []string{"LZWDecode"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}

func TestPipelineDecompressedSizeLimit(t *testing.T) {
	p := NewPipeline([]Decoder{NewFlateDecoder()}, Limits{MaxDecompressedSize: 2})
	big := make([]byte, 100)
	_, err := p.Decode(context.Background(), big, []string{"FlateDecode"}, nil)
	if err == nil {
		t.Fatalf("expected size-limit error")
	}
}

func TestCompressRoundTrips(t *testing.T) {
	want := []byte("round trip this payload through Compress and back")
	compressed := Compress(want)

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), compressed, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", out, want)
	}
}
