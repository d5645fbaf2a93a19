// Package objstm decodes PDF 1.5+ object streams (/Type /ObjStm), which
// pack several non-stream indirect objects into one compressed payload.
package objstm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yingkitw/pdfrs/assemble"
	"github.com/yingkitw/pdfrs/filters"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/scanner"
)

// Decode reads the N-object header of an object stream and returns the
// objects it contains, keyed by their object number. The generation of an
// object-stream member is always 0 per the PDF spec.
func Decode(ctx context.Context, stream raw.Stream, pipeline *filters.Pipeline) (map[int]raw.Object, error) {
	dict := stream.Dictionary()
	typeName, _ := dict.Get(raw.NameLiteral("Type"))
	if n, ok := typeName.(raw.Name); !ok || n.Value() != "ObjStm" {
		return nil, fmt.Errorf("stream is not an ObjStm")
	}

	n, err := intField(dict, "N")
	if err != nil {
		return nil, err
	}
	first, err := intField(dict, "First")
	if err != nil {
		return nil, err
	}

	payload, err := decodeData(ctx, dict, stream.RawData(), pipeline)
	if err != nil {
		return nil, err
	}

	headerScanner := scanner.New(bytes.NewReader(payload), scanner.Config{})
	type pair struct {
		num, offset int
	}
	pairs := make([]pair, 0, n)
	for i := 0; i < n; i++ {
		numTok, err := headerScanner.Next()
		if err != nil {
			return nil, fmt.Errorf("reading objstm header pair %d: %w", i, err)
		}
		offTok, err := headerScanner.Next()
		if err != nil {
			return nil, fmt.Errorf("reading objstm header pair %d: %w", i, err)
		}
		num, ok1 := asInt(numTok)
		off, ok2 := asInt(offTok)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("objstm header pair %d is not numeric", i)
		}
		pairs = append(pairs, pair{num: num, offset: off})
	}

	objects := make(map[int]raw.Object, n)
	for i, p := range pairs {
		start := first + p.offset
		var end int
		if i+1 < len(pairs) {
			end = first + pairs[i+1].offset
		} else {
			end = len(payload)
		}
		if start < 0 || end > len(payload) || start > end {
			return nil, fmt.Errorf("objstm member %d byte range out of bounds", p.num)
		}
		memberScanner := scanner.New(bytes.NewReader(payload[start:end]), scanner.Config{})
		val, err := assemble.ReadValue(memberScanner)
		if err != nil {
			return nil, fmt.Errorf("reading objstm member %d: %w", p.num, err)
		}
		objects[p.num] = val
	}
	return objects, nil
}

func decodeData(ctx context.Context, dict raw.Dictionary, data []byte, pipeline *filters.Pipeline) ([]byte, error) {
	names, params := filters.ExtractFilters(dict)
	if len(names) == 0 {
		return data, nil
	}
	return pipeline.Decode(ctx, data, names, params)
}

func intField(dict raw.Dictionary, key string) (int, error) {
	o, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return 0, fmt.Errorf("missing /%s", key)
	}
	n, ok := o.(raw.Number)
	if !ok {
		return 0, fmt.Errorf("/%s is not a number", key)
	}
	return int(n.Int()), nil
}

func asInt(tok scanner.Token) (int, bool) {
	switch v := tok.Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
