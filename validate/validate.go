// Package validate implements the structural validator: the checks of
// §4.7 that every generated or parsed PDF must satisfy, plus a
// supplemented font-usage sweep that warns about resource references
// the page tree never draws.
package validate

import (
	"bytes"
	"fmt"

	"github.com/yingkitw/pdfrs/ir/raw"
)

// Report mirrors the validator's required return shape: a pass/fail
// verdict, the specific errors that caused it, non-blocking warnings,
// and two summary counts a caller typically wants alongside the verdict.
type Report struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	PageCount   int
	ObjectCount int
}

func (r *Report) fail(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateBytes runs the byte-level structural checks (header, %%EOF,
// startxref, obj/endobj and stream/endstream balance) that don't require
// a fully parsed document, then layers the object-graph checks on top
// once doc is available. Pass a nil doc to run only the byte-level
// checks (e.g. when parsing itself already failed).
func ValidateBytes(data []byte, doc *raw.Document) Report {
	r := Report{Valid: true}

	checkHeader(data, &r)
	checkEOF(data, &r)
	checkStartxref(data, &r)
	checkBalance(data, &r)

	if doc == nil {
		r.Valid = len(r.Errors) == 0
		return r
	}

	r.ObjectCount = len(doc.Objects)
	checkTrailer(doc, &r)
	catalog := checkCatalog(doc, &r)
	r.PageCount = checkPagesTree(doc, catalog, &r)
	checkStreamLengths(doc, &r)
	checkFontUsage(doc, &r)

	r.Valid = len(r.Errors) == 0
	return r
}

func checkHeader(data []byte, r *Report) {
	limit := 1024
	if len(data) < limit {
		limit = len(data)
	}
	head := data[:limit]
	idx := bytes.Index(head, []byte("%PDF-1."))
	if idx < 0 {
		r.fail("missing %%PDF-1.x header within the first 1024 bytes")
		return
	}
	digitPos := idx + len("%PDF-1.")
	if digitPos >= len(data) || data[digitPos] < '0' || data[digitPos] > '7' {
		r.fail("header version digit is not in 0-7")
	}
}

func checkEOF(data []byte, r *Report) {
	start := 0
	if len(data) > 1024 {
		start = len(data) - 1024
	}
	if !bytes.Contains(data[start:], []byte("%%EOF")) {
		r.fail("missing %%%%EOF within the last 1024 bytes")
	}
}

func checkStartxref(data []byte, r *Report) (int64, bool) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		r.fail("missing startxref token")
		return 0, false
	}
	rest := data[idx+len("startxref"):]
	var offset int64
	found := false
	for _, b := range rest {
		if b >= '0' && b <= '9' {
			offset = offset*10 + int64(b-'0')
			found = true
			continue
		}
		if found {
			break
		}
		if b == ' ' || b == '\r' || b == '\n' || b == '\t' {
			continue
		}
		break
	}
	if !found || offset < 0 || offset >= int64(len(data)) {
		r.fail("startxref does not yield an offset within the file")
		return 0, false
	}
	return offset, true
}

func checkBalance(data []byte, r *Report) {
	opens := countKeyword(data, "obj")
	closes := countKeyword(data, "endobj")
	if opens != closes {
		r.fail("obj/endobj count mismatch: %d obj vs %d endobj", opens, closes)
	}
	streams := countKeyword(data, "stream")
	// countKeyword only counts whole words, so "endstream" is not counted as "stream".
	endstreams := countKeyword(data, "endstream")
	if streams != endstreams {
		r.fail("stream/endstream count mismatch: %d stream vs %d endstream", streams, endstreams)
	}
}

func countKeyword(data []byte, kw string) int {
	n := 0
	b := []byte(kw)
	for i := 0; ; {
		idx := bytes.Index(data[i:], b)
		if idx < 0 {
			break
		}
		pos := i + idx
		before := pos == 0 || isWordBoundary(data[pos-1])
		after := pos+len(b) >= len(data) || isWordBoundary(data[pos+len(b)])
		if before && after {
			n++
		}
		i = pos + len(b)
	}
	return n
}

func isWordBoundary(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	default:
		return true
	}
}

func checkTrailer(doc *raw.Document, r *Report) {
	if doc.Trailer == nil {
		r.fail("trailer is missing")
		return
	}
	if _, ok := doc.Trailer.Get(raw.NameLiteral("Size")); !ok {
		r.fail("trailer missing /Size")
	}
	if _, ok := doc.Trailer.Get(raw.NameLiteral("Root")); !ok {
		r.fail("trailer missing /Root")
	}
}

func checkCatalog(doc *raw.Document, r *Report) raw.Dictionary {
	if doc.Trailer == nil {
		return nil
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	resolved, ok := doc.Resolve(rootObj)
	if !ok {
		r.fail("/Root does not resolve to an object")
		return nil
	}
	dict, ok := resolved.(raw.Dictionary)
	if !ok {
		r.fail("/Root does not resolve to a dictionary")
		return nil
	}
	if t, ok := dict.Get(raw.NameLiteral("Type")); !ok || !isName(t, "Catalog") {
		r.fail("/Root dictionary is not /Type /Catalog")
	}
	return dict
}

func checkPagesTree(doc *raw.Document, catalog raw.Dictionary, r *Report) int {
	if catalog == nil {
		return 0
	}
	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		r.fail("/Catalog missing /Pages")
		return 0
	}
	resolved, ok := doc.Resolve(pagesObj)
	if !ok {
		r.fail("/Pages does not resolve to an object")
		return 0
	}
	pagesDict, ok := resolved.(raw.Dictionary)
	if !ok || !isName(mustGet(pagesDict, "Type"), "Pages") {
		r.fail("/Pages dictionary is not /Type /Pages")
		return 0
	}

	leaves := countLeaves(doc, pagesDict, r, make(map[raw.Object]bool))

	declared, hasCount := pagesDict.Get(raw.NameLiteral("Count"))
	if !hasCount {
		r.fail("/Pages missing /Count")
		return leaves
	}
	num, ok := declared.(raw.Number)
	if !ok || int(num.Int()) != leaves {
		r.fail("/Pages /Count does not match the number of reachable leaf /Page nodes")
	}
	return leaves
}

func countLeaves(doc *raw.Document, node raw.Dictionary, r *Report, visited map[raw.Object]bool) int {
	if node == nil {
		return 0
	}
	kidsObj, ok := node.Get(raw.NameLiteral("Kids"))
	if !ok {
		if isName(mustGet(node, "Type"), "Page") {
			return 1
		}
		return 0
	}
	resolved, ok := doc.Resolve(kidsObj)
	if !ok {
		return 0
	}
	kids, ok := resolved.(raw.Array)
	if !ok {
		return 0
	}
	total := 0
	for i := 0; i < kids.Len(); i++ {
		child, _ := kids.Get(i)
		resolvedChild, ok := doc.Resolve(child)
		if !ok {
			continue
		}
		if visited[resolvedChild] {
			continue
		}
		visited[resolvedChild] = true
		childDict, ok := resolvedChild.(raw.Dictionary)
		if !ok {
			continue
		}
		total += countLeaves(doc, childDict, r, visited)
	}
	return total
}

func checkStreamLengths(doc *raw.Document, r *Report) {
	for ref, obj := range doc.Objects {
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		declared, ok := stream.Dictionary().Get(raw.NameLiteral("Length"))
		if !ok {
			continue
		}
		num, ok := declared.(raw.Number)
		if !ok {
			continue
		}
		diff := num.Int() - stream.Length()
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
		case diff <= 2:
			r.warn("object %d %d R: /Length off by %d", ref.Num, ref.Gen, diff)
		default:
			r.fail("object %d %d R: /Length %d does not match measured payload length %d", ref.Num, ref.Gen, num.Int(), stream.Length())
		}
	}
}

// checkFontUsage is a supplement to §4.7's required checks: it marks
// every font resource reachable from a page's /Resources /Font and
// warns about any that a content stream never references via Tf. This
// catches dead resource entries left behind by hand-assembled documents
// without treating them as structural errors.
func checkFontUsage(doc *raw.Document, r *Report) {
	for ref, obj := range doc.Objects {
		page, ok := obj.(raw.Dictionary)
		if !ok || !isName(mustGet(page, "Type"), "Page") {
			continue
		}
		resourcesObj, ok := page.Get(raw.NameLiteral("Resources"))
		if !ok {
			continue
		}
		resources, ok := resolveDict(doc, resourcesObj)
		if !ok {
			continue
		}
		fontDictObj, ok := resources.Get(raw.NameLiteral("Font"))
		if !ok {
			continue
		}
		fontDict, ok := resolveDict(doc, fontDictObj)
		if !ok {
			continue
		}
		used := usedFontNames(doc, page)
		for _, key := range fontDict.Keys() {
			if !used[key.Value()] {
				r.warn("page %d %d R: font resource /%s is never shown with Tf", ref.Num, ref.Gen, key.Value())
			}
		}
	}
}

func usedFontNames(doc *raw.Document, page raw.Dictionary) map[string]bool {
	used := make(map[string]bool)
	contentsObj, ok := page.Get(raw.NameLiteral("Contents"))
	if !ok {
		return used
	}
	var streams []raw.Stream
	resolved, ok := doc.Resolve(contentsObj)
	if !ok {
		return used
	}
	switch v := resolved.(type) {
	case raw.Stream:
		streams = append(streams, v)
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			if s, ok := doc.Resolve(item); ok {
				if stream, ok := s.(raw.Stream); ok {
					streams = append(streams, stream)
				}
			}
		}
	}
	for _, s := range streams {
		data := s.RawData()
		for i := 0; i+1 < len(data); i++ {
			if data[i] != '/' {
				continue
			}
			j := i + 1
			for j < len(data) && isNameByte(data[j]) {
				j++
			}
			name := string(data[i+1 : j])
			k := j
			for k < len(data) && (data[k] == ' ' || data[k] == '\t') {
				k++
			}
			if k < len(data) && data[k] == 'T' && k+1 < len(data) && data[k+1] == 'f' {
				used[name] = true
			}
		}
	}
	return used
}

func isNameByte(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '/', '(', ')', '<', '>', '[', ']':
		return false
	default:
		return true
	}
}

func resolveDict(doc *raw.Document, obj raw.Object) (raw.Dictionary, bool) {
	resolved, ok := doc.Resolve(obj)
	if !ok {
		return nil, false
	}
	dict, ok := resolved.(raw.Dictionary)
	return dict, ok
}

func mustGet(dict raw.Dictionary, key string) raw.Object {
	if dict == nil {
		return nil
	}
	v, _ := dict.Get(raw.NameLiteral(key))
	return v
}

func isName(obj raw.Object, want string) bool {
	n, ok := obj.(raw.Name)
	return ok && n.Value() == want
}
