package contentstream

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/yingkitw/pdfrs/assemble"
	"github.com/yingkitw/pdfrs/fonts"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/scanner"
)

// FontInfo is the piece of a page's /Resources /Font entry the extractor
// needs: which single-byte encoding decodes strings shown under that
// font name.
type FontInfo struct {
	Encoding fonts.Encoding
}

// gapThreshold is the magnitude, in thousandths of text space, above
// which a negative TJ adjustment is read as an inserted word space
// rather than ordinary kerning.
const gapThreshold = 200

// ExtractText runs the single-pass operator scan described for the
// content-stream text extractor: it recovers characters in stream order
// and the line breaks implied by Td/TD/T* vertical motion. The only text
// state it keeps is the active font's encoding (from Tf) and the TD
// leading; font size and the text and line matrices are not tracked.
// fontMap maps resource names (as they appear after the leading slash,
// e.g. "F1") to the encoding that resource's font dictionary names.
func ExtractText(content []byte, fontMap map[string]FontInfo) (string, error) {
	sc := scanner.New(bytesReaderAt{bytes.NewReader(content)}, scanner.Config{})

	var buf strings.Builder
	needNewline := false
	var encoding fonts.Encoding = fonts.WinAnsiEncoding
	leading := 0.0

	var operands []interface{}

	emit := func(s string) {
		if needNewline && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		needNewline = false
		buf.WriteString(s)
	}

	decode := func(b []byte) string {
		var out strings.Builder
		for _, c := range b {
			out.WriteRune(encoding.Decode(c))
		}
		return out.String()
	}

	applyTJ := func(arr raw.Array) {
		var run strings.Builder
		for i := 0; i < arr.Len(); i++ {
			item, _ := arr.Get(i)
			switch v := item.(type) {
			case raw.String:
				run.WriteString(decode(v.Value()))
			case raw.Number:
				if v.Float() < -gapThreshold {
					run.WriteByte(' ')
				}
			}
		}
		emit(run.String())
	}

	breakLine := func() {
		if buf.Len() > 0 {
			needNewline = true
		}
	}

	for {
		tok, err := sc.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return buf.String(), err
		}

		switch tok.Type {
		case scanner.TokenArray:
			val, err := assemble.ReadValueFrom(sc, tok)
			if err != nil {
				operands = nil
				continue
			}
			operands = append(operands, val)
			continue
		case scanner.TokenDict:
			// Marked-content/inline-image dictionaries carry no text; skip
			// the assembled value and keep scanning past it.
			if _, err := assemble.ReadValueFrom(sc, tok); err != nil {
				return buf.String(), err
			}
			operands = nil
			continue
		case scanner.TokenName:
			operands = append(operands, tok.Value.(string))
			continue
		case scanner.TokenString:
			operands = append(operands, tok.Value.([]byte))
			continue
		case scanner.TokenNumber:
			switch v := tok.Value.(type) {
			case int64:
				operands = append(operands, float64(v))
			case float64:
				operands = append(operands, v)
			}
			continue
		case scanner.TokenStream, scanner.TokenInlineImage, scanner.TokenBoolean, scanner.TokenNull, scanner.TokenRef:
			operands = nil
			continue
		}

		kw, _ := tok.Value.(string)
		switch kw {
		case "BT":
			// no-op: no text matrix is kept, so there is nothing to reset
		case "ET":
			// no-op: the active encoding carries over to the next text object
		case "Tf":
			if len(operands) >= 2 {
				if name, ok := operands[len(operands)-2].(string); ok {
					if fi, ok := fontMap[name]; ok && fi.Encoding != nil {
						encoding = fi.Encoding
					}
				}
			}
		case "Td":
			if ty, ok := floatOperand(operands, 0); ok && ty < 0 {
				breakLine()
			}
		case "TD":
			if ty, ok := floatOperand(operands, 0); ok {
				leading = -ty
				if ty < 0 {
					breakLine()
				}
			}
		case "T*":
			if leading >= 0 {
				breakLine()
			}
		case "Tm":
			// full six-number form; text placement resets but order of
			// glyphs shown afterward is still sequential in the stream
		case "Tj":
			if s, ok := lastBytes(operands); ok {
				emit(decode(s))
			}
		case "TJ":
			if arr, ok := lastArray(operands); ok {
				applyTJ(arr)
			}
		case "'":
			breakLine()
			if s, ok := lastBytes(operands); ok {
				emit(decode(s))
			}
		case "\"":
			if s, ok := lastBytes(operands); ok {
				breakLine()
				emit(decode(s))
			}
		}
		operands = nil
	}
	return norm.NFKC.String(buf.String()), nil
}

func floatOperand(operands []interface{}, fromEnd int) (float64, bool) {
	idx := len(operands) - 1 - fromEnd
	if idx < 0 || idx >= len(operands) {
		return 0, false
	}
	f, ok := operands[idx].(float64)
	return f, ok
}

func lastBytes(operands []interface{}) ([]byte, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	b, ok := operands[len(operands)-1].([]byte)
	return b, ok
}

func lastArray(operands []interface{}) (raw.Array, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	a, ok := operands[len(operands)-1].(raw.Array)
	return a, ok
}

type bytesReaderAt struct {
	r *bytes.Reader
}

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return b.r.ReadAt(p, off)
}
