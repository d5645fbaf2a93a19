// Package parser ties the tokenizer, xref resolver, object-stream decoder,
// and filter pipeline together into a single parse_pdf entry point,
// producing a fully-resolved raw.Document from file bytes.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yingkitw/pdfrs/assemble"
	"github.com/yingkitw/pdfrs/filters"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/objstm"
	"github.com/yingkitw/pdfrs/pdferr"
	"github.com/yingkitw/pdfrs/recovery"
	"github.com/yingkitw/pdfrs/scanner"
	"github.com/yingkitw/pdfrs/security"
	"github.com/yingkitw/pdfrs/xref"
)

// Config controls parse behavior: resource limits and the recovery
// strategy used when the xref chain or an individual object is malformed.
type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
}

// Parse reads data as a complete PDF file and returns the resolved
// document: every object reachable from the xref table (table or stream
// form, /Prev-chained), decoded filters on stream payloads, and metadata
// lifted from the trailer's /Info dictionary. A trailer /Encrypt entry only
// marks the document Encrypted; Permissions is not populated.
func Parse(ctx context.Context, data []byte, cfg Config) (*raw.Document, error) {
	version, err := detectHeaderVersion(data)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindMalformedHeader, "reading PDF header", err)
	}

	recoveryStrategy := cfg.Recovery
	if recoveryStrategy == nil {
		recoveryStrategy = recovery.NewStrictStrategy()
	}

	table, err := xref.NewResolver(xref.ResolverConfig{Recovery: recoveryStrategy}).Resolve(ctx, data)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindBadXref, "resolving cross-reference table", err)
	}

	pipeline := filters.DefaultPipeline(filters.Limits{
		MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
	})

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: table.Trailer(),
		Version: version,
	}

	objStmCache := make(map[int]map[int]raw.Object)

	for _, num := range table.Objects() {
		entry, _ := table.Lookup(num)
		switch entry.Type {
		case xref.EntryInUse:
			obj, gen, err := readIndirectObject(data, entry.Offset, pipeline)
			if err != nil {
				if recoveryStrategy.OnError(nil, err, recovery.Location{ByteOffset: entry.Offset, ObjectNum: num, Component: "parser"}) == recovery.ActionFail {
					return nil, pdferr.Wrap(pdferr.KindCorruptStream, fmt.Sprintf("reading object %d", num), err)
				}
				continue
			}
			doc.Objects[raw.ObjectRef{Num: num, Gen: gen}] = obj
		case xref.EntryInObjectStream:
			members, ok := objStmCache[entry.StreamNum]
			if !ok {
				members, err = loadObjectStream(ctx, data, table, entry.StreamNum, pipeline)
				if err != nil {
					if recoveryStrategy.OnError(nil, err, recovery.Location{ObjectNum: entry.StreamNum, Component: "objstm"}) == recovery.ActionFail {
						return nil, pdferr.Wrap(pdferr.KindCorruptStream, fmt.Sprintf("decoding object stream %d", entry.StreamNum), err)
					}
					continue
				}
				objStmCache[entry.StreamNum] = members
			}
			if val, ok := members[num]; ok {
				doc.Objects[raw.ObjectRef{Num: num, Gen: 0}] = val
			}
		}
	}

	resolveTrailerMetadata(doc)
	return doc, nil
}

func loadObjectStream(ctx context.Context, data []byte, table *xref.Table, streamNum int, pipeline *filters.Pipeline) (map[int]raw.Object, error) {
	entry, ok := table.Lookup(streamNum)
	if !ok || entry.Type != xref.EntryInUse {
		return nil, fmt.Errorf("object stream %d not in-use in xref table", streamNum)
	}
	obj, _, err := readIndirectObject(data, entry.Offset, pipeline)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(raw.Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not a stream", streamNum)
	}
	return objstm.Decode(ctx, stream, pipeline)
}

// readIndirectObject scans "N G obj <value> endobj" at offset, decoding
// any stream payload's filter chain eagerly so downstream consumers see
// plain bytes.
func readIndirectObject(data []byte, offset int64, pipeline *filters.Pipeline) (raw.Object, int, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := sc.Seek(offset); err != nil {
		return nil, 0, err
	}
	numTok, err := sc.Next()
	if err != nil {
		return nil, 0, err
	}
	num, ok := asInt(numTok)
	if !ok {
		return nil, 0, fmt.Errorf("expected object number at offset %d", offset)
	}
	genTok, err := sc.Next()
	if err != nil {
		return nil, 0, err
	}
	gen, _ := asInt(genTok)

	kw, err := sc.Next()
	if err != nil || kw.Type != scanner.TokenKeyword || kw.Value != "obj" {
		return nil, 0, fmt.Errorf("expected 'obj' keyword at object %d", num)
	}

	val, err := assemble.ReadValue(sc)
	if err != nil {
		return nil, 0, fmt.Errorf("reading value for object %d: %w", num, err)
	}

	dict, isDict := val.(raw.Dictionary)
	if isDict {
		peek, err := sc.Next()
		if err == nil && peek.Type == scanner.TokenStream {
			payload, _ := peek.Value.([]byte)
			decoded, err := decodeStreamPayload(dict, payload, pipeline)
			if err != nil {
				return nil, 0, fmt.Errorf("decoding stream for object %d: %w", num, err)
			}
			return raw.NewStream(dict.(*raw.DictObj), decoded), gen, nil
		}
	}
	return val, gen, nil
}

func decodeStreamPayload(dict raw.Dictionary, payload []byte, pipeline *filters.Pipeline) ([]byte, error) {
	names, params := filters.ExtractFilters(dict)
	if len(names) == 0 {
		return payload, nil
	}
	return pipeline.Decode(context.Background(), payload, names, params)
}

// detectHeaderVersion reads the first bytes of the file looking for the
// "%PDF-1.N" header and returns the version string, e.g. "1.7".
func detectHeaderVersion(data []byte) (string, error) {
	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return "", fmt.Errorf("missing %%PDF- header in first 1024 bytes")
	}
	rest := window[idx+len("%PDF-"):]
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "", fmt.Errorf("malformed PDF version in header")
	}
	return strings.TrimRight(string(rest[:end]), "\r\n"), nil
}

// resolveTrailerMetadata populates doc.Metadata from the trailer's /Info
// dictionary, so parse_pdf callers can read back what
// create_pdf_with_metadata wrote. The presence of /Encrypt sets
// doc.Encrypted; doc.Permissions is left at its zero value.
func resolveTrailerMetadata(doc *raw.Document) {
	if doc.Trailer == nil {
		return
	}
	if infoRef, ok := doc.Trailer.Get(raw.NameLiteral("Info")); ok {
		if ref, ok := infoRef.(raw.Reference); ok {
			if infoObj, ok := doc.Objects[ref.Ref()]; ok {
				if info, ok := infoObj.(raw.Dictionary); ok {
					doc.Metadata = raw.DocumentMetadata{
						Title:    stringValue(info, "Title"),
						Author:   stringValue(info, "Author"),
						Subject:  stringValue(info, "Subject"),
						Creator:  stringValue(info, "Creator"),
						Producer: stringValue(info, "Producer"),
						Keywords: splitKeywords(stringValue(info, "Keywords")),
					}
				}
			}
		}
	}
	if _, hasEncrypt := doc.Trailer.Get(raw.NameLiteral("Encrypt")); hasEncrypt {
		doc.Encrypted = true
	}
}

func stringValue(dict raw.Dictionary, key string) string {
	o, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return ""
	}
	s, ok := o.(raw.String)
	if !ok {
		return ""
	}
	return string(s.Value())
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
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
