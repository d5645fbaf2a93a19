// Package xref locates and parses a PDF's cross-reference data: classical
// tables, PDF 1.5+ cross-reference streams, and the /Prev chain linking
// incremental updates back to earlier sections.
package xref

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/yingkitw/pdfrs/assemble"
	"github.com/yingkitw/pdfrs/filters"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/recovery"
	"github.com/yingkitw/pdfrs/scanner"
)

// EntryType distinguishes the three xref entry kinds a PDF 1.5+ xref
// stream can carry; classical tables only ever produce Free or InUse.
type EntryType int

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryInObjectStream
)

// Entry is one resolved cross-reference record for a single object number.
type Entry struct {
	Type EntryType

	// Offset is the byte offset of "N G obj" when Type == EntryInUse.
	Offset int64
	Gen    int

	// StreamNum/Index locate the object inside an object stream when
	// Type == EntryInObjectStream.
	StreamNum int
	Index     int
}

// Table is a fully resolved (Prev-chained) set of cross-reference entries
// plus the trailer dictionary governing the newest section.
type Table struct {
	entries map[int]Entry
	trailer raw.Dictionary
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

func (t *Table) Objects() []int {
	nums := make([]int, 0, len(t.entries))
	for n, e := range t.entries {
		if e.Type != EntryFree {
			nums = append(nums, n)
		}
	}
	return nums
}

func (t *Table) Trailer() raw.Dictionary { return t.trailer }

// Resolver locates and parses the xref data reachable from startxref.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (*Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	return &tableResolver{cfg: cfg}
}

type tableResolver struct{ cfg ResolverConfig }

var errNoStartxref = errors.New("startxref not found")

// Resolve walks the full file, finds the last "startxref" occurrence, and
// parses the xref section (and its /Prev chain) it points at. Entries from
// newer sections take precedence over older ones per §4.4.
func (tr *tableResolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	offset, err := lastStartxrefOffset(data)
	if err != nil {
		return nil, err
	}

	merged := make(map[int]Entry)
	var newestTrailer raw.Dictionary
	seen := map[int64]bool{}

	for depth := 0; offset >= 0; depth++ {
		if depth > tr.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref /Prev chain exceeds max depth %d", tr.cfg.MaxXRefDepth)
		}
		if seen[offset] {
			break // cyclic /Prev chain; stop rather than loop forever
		}
		seen[offset] = true

		sec, prev, err := parseSection(data, offset)
		if err != nil {
			if tr.cfg.Recovery.OnError(nil, err, recovery.Location{ByteOffset: offset, Component: "xref"}) == recovery.ActionFail {
				return nil, err
			}
			break
		}
		if newestTrailer == nil {
			newestTrailer = sec.trailer
		}
		for num, e := range sec.entries {
			if _, exists := merged[num]; !exists {
				merged[num] = e
			}
		}
		offset = prev
	}

	if newestTrailer == nil {
		return nil, errors.New("no xref trailer found")
	}
	return &Table{entries: merged, trailer: newestTrailer}, nil
}

func lastStartxrefOffset(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errNoStartxref
	}
	rest := data[idx+len("startxref"):]
	rest = bytes.TrimLeft(rest, " \t\r\n")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, errors.New("startxref has no numeric offset")
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid startxref offset: %w", err)
	}
	return off, nil
}

type section struct {
	entries map[int]Entry
	trailer raw.Dictionary
}

// parseSection parses whichever xref form (classical table or xref stream)
// begins at offset, returning its entries, trailer, and /Prev offset (-1
// if absent).
func parseSection(data []byte, offset int64) (*section, int64, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, -1, fmt.Errorf("xref offset %d out of range", offset)
	}
	probe := bytes.TrimLeft(data[offset:], " \t\r\n")
	if bytes.HasPrefix(probe, []byte("xref")) {
		return parseClassicalTable(data, offset)
	}
	return parseXRefStream(data, offset)
}

func parseClassicalTable(data []byte, offset int64) (*section, int64, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := sc.Seek(offset); err != nil {
		return nil, -1, err
	}

	kw, err := sc.Next()
	if err != nil || kw.Type != scanner.TokenKeyword || kw.Value != "xref" {
		return nil, -1, errors.New("expected 'xref' keyword")
	}

	entries := make(map[int]Entry)
	for {
		peeked, err := sc.Next()
		if err != nil {
			return nil, -1, err
		}
		if peeked.Type == scanner.TokenKeyword && peeked.Value == "trailer" {
			break
		}
		first, ok := asInt(peeked)
		if !ok {
			return nil, -1, errors.New("malformed xref subsection header")
		}
		countTok, err := sc.Next()
		if err != nil {
			return nil, -1, err
		}
		count, ok := asInt(countTok)
		if !ok {
			return nil, -1, errors.New("malformed xref subsection count")
		}
		for i := 0; i < count; i++ {
			offTok, err := sc.Next()
			if err != nil {
				return nil, -1, err
			}
			genTok, err := sc.Next()
			if err != nil {
				return nil, -1, err
			}
			flagTok, err := sc.Next()
			if err != nil {
				return nil, -1, err
			}
			objOff, _ := asInt(offTok)
			gen, _ := asInt(genTok)
			flag, _ := flagTok.Value.(string)
			num := first + i
			if flag == "f" {
				entries[num] = Entry{Type: EntryFree}
			} else {
				entries[num] = Entry{Type: EntryInUse, Offset: int64(objOff), Gen: gen}
			}
		}
	}

	trailerVal, err := assemble.ReadValue(sc)
	if err != nil {
		return nil, -1, fmt.Errorf("reading trailer dictionary: %w", err)
	}
	trailer, ok := trailerVal.(raw.Dictionary)
	if !ok {
		return nil, -1, errors.New("trailer keyword not followed by a dictionary")
	}

	return &section{entries: entries, trailer: trailer}, prevOffset(trailer), nil
}

// parseXRefStream parses a PDF 1.5+ cross-reference stream: an indirect
// object "N G obj <<...>> <stream payload> endobj" whose dict carries
// /Type /XRef, /W, /Index, /Size.
func parseXRefStream(data []byte, offset int64) (*section, int64, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := sc.Seek(offset); err != nil {
		return nil, -1, err
	}

	if _, err := sc.Next(); err != nil { // object number
		return nil, -1, err
	}
	if _, err := sc.Next(); err != nil { // generation
		return nil, -1, err
	}
	objKw, err := sc.Next()
	if err != nil || objKw.Type != scanner.TokenKeyword || objKw.Value != "obj" {
		return nil, -1, errors.New("expected 'obj' at xref stream offset")
	}

	dictVal, err := assemble.ReadValue(sc)
	if err != nil {
		return nil, -1, err
	}
	dict, ok := dictVal.(raw.Dictionary)
	if !ok {
		return nil, -1, errors.New("xref stream object missing dictionary")
	}

	streamTok, err := sc.Next()
	if err != nil || streamTok.Type != scanner.TokenStream {
		return nil, -1, errors.New("expected stream payload after xref stream dictionary")
	}
	payload, _ := streamTok.Value.([]byte)

	widths, err := intArray(dict, "W")
	if err != nil || len(widths) != 3 {
		return nil, -1, errors.New("xref stream missing /W [w1 w2 w3]")
	}
	size, err := intField(dict, "Size")
	if err != nil {
		return nil, -1, errors.New("xref stream missing /Size")
	}
	index, err := intArray(dict, "Index")
	if err != nil || len(index) == 0 {
		index = []int{0, size}
	}

	decoded, err := decodeXRefStreamData(dict, payload)
	if err != nil {
		return nil, -1, err
	}

	entries := make(map[int]Entry)
	w1, w2, w3 := widths[0], widths[1], widths[2]
	rowWidth := w1 + w2 + w3
	pos := 0
	for s := 0; s+1 < len(index); s += 2 {
		first, count := index[s], index[s+1]
		for i := 0; i < count; i++ {
			if pos+rowWidth > len(decoded) {
				break
			}
			row := decoded[pos : pos+rowWidth]
			pos += rowWidth
			typ := beUint(row[:w1])
			f2 := beUint(row[w1 : w1+w2])
			f3 := beUint(row[w1+w2 : rowWidth])
			num := first + i
			switch typ {
			case 0:
				entries[num] = Entry{Type: EntryFree}
			case 1:
				entries[num] = Entry{Type: EntryInUse, Offset: int64(f2), Gen: int(f3)}
			case 2:
				entries[num] = Entry{Type: EntryInObjectStream, StreamNum: int(f2), Index: int(f3)}
			}
		}
	}

	return &section{entries: entries, trailer: dict}, prevOffset(dict), nil
}

func prevOffset(dict raw.Dictionary) int64 {
	if p, ok := dict.Get(raw.NameLiteral("Prev")); ok {
		if n, ok := p.(raw.Number); ok {
			return n.Int()
		}
	}
	return -1
}

// decodeXRefStreamData applies the stream's /Filter (normally just
// FlateDecode) to recover the packed big-endian entry rows.
func decodeXRefStreamData(dict raw.Dictionary, payload []byte) ([]byte, error) {
	filterObj, hasFilter := dict.Get(raw.NameLiteral("Filter"))
	if !hasFilter {
		return payload, nil
	}
	name, ok := filterObj.(raw.Name)
	if !ok {
		return payload, nil
	}
	pipeline := filters.DefaultPipeline(filters.Limits{})
	return pipeline.Decode(context.Background(), payload, []string{name.Value()}, nil)
}

func asInt(tok scanner.Token) (int, bool) {
	switch v := tok.Value.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
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

func intArray(dict raw.Dictionary, key string) ([]int, error) {
	o, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return nil, fmt.Errorf("missing /%s", key)
	}
	arr, ok := o.(raw.Array)
	if !ok {
		return nil, fmt.Errorf("/%s is not an array", key)
	}
	out := make([]int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		item, _ := arr.Get(i)
		n, ok := item.(raw.Number)
		if !ok {
			return nil, fmt.Errorf("/%s element %d is not a number", key, i)
		}
		out[i] = int(n.Int())
	}
	return out, nil
}

func beUint(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	padded := make([]byte, 8)
	copy(padded[8-len(b):], b)
	return binary.BigEndian.Uint64(padded)
}
