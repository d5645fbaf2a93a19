package writer

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/yingkitw/pdfrs/filters"
	"github.com/yingkitw/pdfrs/ir/raw"
)

type impl struct {
	interceptors []Interceptor
}

// Write serializes doc as a complete PDF file: header, every indirect
// object in ascending object-number order, a classical cross-reference
// table, and a trailer pointing back at /Root.
func (w *impl) Write(ctx Context, doc *raw.Document, out WriterAt, cfg Config) error {
	version := cfg.Version
	if version == "" {
		version = PDF14
	}

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	offsets := make(map[int]int64, len(refs))
	maxNum := 0
	for _, ref := range refs {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	for _, ref := range refs {
		obj, ok := doc.Objects[ref]
		if !ok {
			continue
		}
		if err := w.beforeWrite(ctx, obj); err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		body, err := w.SerializeObject(ref, obj)
		if err != nil {
			return fmt.Errorf("serialize object %s: %w", ref, err)
		}
		buf.Write(body)
		if err := w.afterWrite(ctx, obj, int64(len(body))); err != nil {
			return err
		}
	}

	xrefOffset := int64(buf.Len())
	writeXRefTable(&buf, maxNum, offsets)

	trailer := doc.Trailer
	if trailer == nil {
		trailer = raw.Dict()
	}
	writeTrailer(&buf, trailer, maxNum+1, xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

func (w *impl) beforeWrite(ctx Context, obj raw.Object) error {
	for _, ic := range w.interceptors {
		if err := ic.BeforeWrite(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (w *impl) afterWrite(ctx Context, obj raw.Object, n int64) error {
	for _, ic := range w.interceptors {
		if err := ic.AfterWrite(ctx, obj, n); err != nil {
			return err
		}
	}
	return nil
}

// SerializeObject renders a single indirect object as "N G obj ... endobj".
func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if stream, ok := obj.(raw.Stream); ok {
		data, err := encodeStreamData(stream)
		if err != nil {
			return nil, err
		}
		dict := stream.Dictionary()
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
		serializePrimitive(&buf, dict)
		buf.WriteString("\nstream\n")
		buf.Write(data)
		buf.WriteString("\nendstream")
	} else {
		serializePrimitive(&buf, obj)
	}
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// encodeStreamData re-deflates stream payloads the writer itself produced
// (content streams, object streams) unless the stream already carries a
// filter it wants to keep as-is (e.g. an untouched DCTDecode image copy).
func encodeStreamData(stream raw.Stream) ([]byte, error) {
	dict := stream.Dictionary()
	if _, hasFilter := dict.Get(raw.NameLiteral("Filter")); hasFilter {
		return stream.RawData(), nil
	}
	encoded := filters.Compress(stream.RawData())
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	return encoded, nil
}

func serializePrimitive(buf *bytes.Buffer, obj raw.Object) {
	switch v := obj.(type) {
	case raw.NullObj:
		buf.WriteString("null")
	case raw.Boolean:
		if v.Value() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.Number:
		if v.IsInteger() {
			fmt.Fprintf(buf, "%d", v.Int())
		} else {
			fmt.Fprintf(buf, "%g", v.Float())
		}
	case raw.Name:
		buf.WriteByte('/')
		writeEscapedName(buf, v.Value())
	case raw.String:
		if v.IsHex() {
			buf.WriteByte('<')
			fmt.Fprintf(buf, "%x", v.Value())
			buf.WriteByte('>')
		} else {
			buf.WriteByte('(')
			writeEscapedLiteral(buf, v.Value())
			buf.WriteByte(')')
		}
	case raw.Reference:
		fmt.Fprintf(buf, "%s", v.Ref())
	case raw.Array:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(' ')
			}
			item, _ := v.Get(i)
			serializePrimitive(buf, item)
		}
		buf.WriteByte(']')
	case raw.Dictionary:
		buf.WriteString("<<")
		keys := v.Keys()
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.Value()
		}
		sort.Strings(names)
		for _, name := range names {
			buf.WriteByte('/')
			writeEscapedName(buf, name)
			buf.WriteByte(' ')
			val, _ := v.Get(raw.NameLiteral(name))
			serializePrimitive(buf, val)
			buf.WriteByte('\n')
		}
		buf.WriteString(">>")
	default:
		buf.WriteString("null")
	}
}

func writeEscapedName(buf *bytes.Buffer, name string) {
	for _, b := range []byte(name) {
		if b <= 0x20 || b >= 0x7f || b == '#' || b == '/' || b == '(' || b == ')' ||
			b == '<' || b == '>' || b == '[' || b == ']' || b == '{' || b == '}' || b == '%' {
			fmt.Fprintf(buf, "#%02x", b)
			continue
		}
		buf.WriteByte(b)
	}
}

func writeEscapedLiteral(buf *bytes.Buffer, data []byte) {
	for _, b := range data {
		switch b {
		case '(':
			buf.WriteString(`\(`)
		case ')':
			buf.WriteString(`\)`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
}

func writeXRefTable(buf *bytes.Buffer, maxNum int, offsets map[int]int64) {
	fmt.Fprintf(buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		off, ok := offsets[num]
		if !ok {
			buf.WriteString("0000000000 00001 f \n")
			continue
		}
		fmt.Fprintf(buf, "%010d %05d n \n", off, 0)
	}
}

func writeTrailer(buf *bytes.Buffer, trailer raw.Dictionary, size int, xrefOffset int64) {
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	buf.WriteString("trailer\n")
	serializePrimitive(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
}

// DeterministicID derives a stable 16-byte identifier from document content
// alone (version, Info fields, page geometry) so that writing the same
// logical document twice produces byte-identical output regardless of
// wall-clock time, satisfying the determinism requirement on object-id
// assignment and producer/creator strings.
func DeterministicID(doc *raw.Document) []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s",
		doc.Version, doc.Metadata.Title, doc.Metadata.Author,
		doc.Metadata.Producer, doc.Metadata.Creator, doc.Metadata.Subject)
	var pageNums []int
	for ref, obj := range doc.Objects {
		if dict, ok := obj.(raw.Dictionary); ok {
			if t, ok := dict.Get(raw.NameLiteral("Type")); ok {
				if name, ok := t.(raw.Name); ok && name.Value() == "Page" {
					pageNums = append(pageNums, ref.Num)
				}
			}
		}
	}
	sort.Ints(pageNums)
	for _, num := range pageNums {
		fmt.Fprintf(h, "|page:%d", num)
	}
	sum := h.Sum(nil)
	return sum[:16]
}
