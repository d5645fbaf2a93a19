package fonts

import (
	"golang.org/x/text/encoding/charmap"
)

// Encoding maps single content-stream bytes to Unicode code points for
// text extraction, per §4.6/§4.8's WinAnsiEncoding and MacRomanEncoding.
type Encoding interface {
	Decode(b byte) rune
	Name() string
}

type winAnsiEncoding struct{}

// winAnsiOverrides lists the three bytes whose extracted value is pinned
// here rather than taken from plain cp1252: 0x80 (the same Euro sign,
// made explicit) and the two bytes that decode to plain ASCII for
// extraction (nonbreaking space and soft hyphen).
var winAnsiOverrides = map[byte]rune{
	0x80: 0x20AC, // Euro sign, same as cp1252 but made explicit
	0xA0: 0x0020, // nonbreaking space decodes to ordinary space for extraction
	0xAD: 0x002D, // soft hyphen decodes as a plain hyphen
}

func (winAnsiEncoding) Name() string { return "WinAnsiEncoding" }

func (winAnsiEncoding) Decode(b byte) rune {
	if r, ok := winAnsiOverrides[b]; ok {
		return r
	}
	r := charmap.Windows1252.DecodeByte(b)
	if r == 0 && b != 0 {
		return rune(b) // undefined slot: fall back to the raw byte value
	}
	return r
}

type macRomanEncoding struct{}

func (macRomanEncoding) Name() string { return "MacRomanEncoding" }

func (macRomanEncoding) Decode(b byte) rune {
	r := charmap.Macintosh.DecodeByte(b)
	if r == 0 && b != 0 {
		return rune(b)
	}
	return r
}

var (
	WinAnsiEncoding  Encoding = winAnsiEncoding{}
	MacRomanEncoding Encoding = macRomanEncoding{}
)

// ByName resolves one of the two encodings the parser is required to
// accept; unrecognized names fall back to WinAnsi, the generator's default.
func ByName(name string) Encoding {
	switch name {
	case "MacRomanEncoding":
		return MacRomanEncoding
	default:
		return WinAnsiEncoding
	}
}
