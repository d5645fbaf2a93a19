// Package ops implements the page-level operations: merge, split,
// rotate, reorder, watermark, annotate, and metadata. Every operation
// works at the granularity of whole Page dictionaries; content streams
// are copied or appended to, never re-parsed.
package ops

import (
	"fmt"
	"math"
	"strings"

	"github.com/yingkitw/pdfrs/coords"
	"github.com/yingkitw/pdfrs/fonts"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/pdferr"
)

// pageRefs returns the page object references in document order by
// walking the catalog's /Pages tree depth-first.
func pageRefs(doc *raw.Document) ([]raw.ObjectRef, error) {
	root, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "trailer missing /Root")
	}
	catalogObj, ok := doc.Resolve(root)
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Root does not resolve")
	}
	catalog, ok := catalogObj.(raw.Dictionary)
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Root is not a dictionary")
	}
	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Catalog missing /Pages")
	}
	var refs []raw.ObjectRef
	if err := walkPages(doc, pagesObj, &refs, make(map[raw.ObjectRef]bool)); err != nil {
		return nil, err
	}
	return refs, nil
}

func walkPages(doc *raw.Document, node raw.Object, out *[]raw.ObjectRef, seen map[raw.ObjectRef]bool) error {
	ref, isRef := node.(raw.Reference)
	var nodeRef raw.ObjectRef
	if isRef {
		nodeRef = ref.Ref()
		if seen[nodeRef] {
			return nil
		}
		seen[nodeRef] = true
	}
	resolved, ok := doc.Resolve(node)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "page tree node does not resolve")
	}
	dict, ok := resolved.(raw.Dictionary)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "page tree node is not a dictionary")
	}
	kids, hasKids := dict.Get(raw.NameLiteral("Kids"))
	if !hasKids {
		if isRef {
			*out = append(*out, nodeRef)
		}
		return nil
	}
	arr, ok := doc.Resolve(kids)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "/Kids does not resolve")
	}
	kidsArr, ok := arr.(raw.Array)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "/Kids is not an array")
	}
	for i := 0; i < kidsArr.Len(); i++ {
		child, _ := kidsArr.Get(i)
		if err := walkPages(doc, child, out, seen); err != nil {
			return err
		}
	}
	return nil
}

// closure walks the transitive object closure reachable from a page
// dictionary (excluding /Parent, to avoid pulling in the whole tree).
func closure(doc *raw.Document, start raw.ObjectRef, visited map[raw.ObjectRef]bool, order *[]raw.ObjectRef) {
	if visited[start] {
		return
	}
	visited[start] = true
	*order = append(*order, start)
	obj, ok := doc.Objects[start]
	if !ok {
		return
	}
	walkRefs(doc, obj, visited, order, true)
}

func walkRefs(doc *raw.Document, obj raw.Object, visited map[raw.ObjectRef]bool, order *[]raw.ObjectRef, skipParent bool) {
	switch v := obj.(type) {
	case raw.Reference:
		closure(doc, v.Ref(), visited, order)
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			walkRefs(doc, item, visited, order, false)
		}
	case raw.Dictionary:
		for _, key := range v.Keys() {
			if skipParent && key.Value() == "Parent" {
				continue
			}
			val, _ := v.Get(key)
			walkRefs(doc, val, visited, order, false)
		}
	case raw.Stream:
		walkRefs(doc, v.Dictionary(), visited, order, false)
	}
}

// Merge concatenates the pages of every input document, in order, into
// one output document. Each input's transitive object closure is copied
// with object numbers renumbered to avoid collisions.
func Merge(inputs []*raw.Document) (*raw.Document, error) {
	out := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object), Trailer: raw.Dict(), Version: "1.4"}
	next := 1

	catalogRef := raw.ObjectRef{Num: next, Gen: 0}
	next++
	pagesRef := raw.ObjectRef{Num: next, Gen: 0}
	next++

	var allKids []raw.Object
	for _, in := range inputs {
		refs, err := pageRefs(in)
		if err != nil {
			return nil, err
		}
		remap := make(map[raw.ObjectRef]raw.ObjectRef)
		var order []raw.ObjectRef
		visited := make(map[raw.ObjectRef]bool)
		for _, pr := range refs {
			closure(in, pr, visited, &order)
		}
		for _, old := range order {
			remap[old] = raw.ObjectRef{Num: next, Gen: 0}
			next++
		}
		for _, old := range order {
			out.Objects[remap[old]] = remapObject(in.Objects[old], remap)
		}
		for _, pr := range refs {
			newRef := remap[pr]
			pageDict, _ := out.Objects[newRef].(raw.Dictionary)
			if pageDict != nil {
				pageDict.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))
			}
			allKids = append(allKids, raw.Ref(newRef.Num, newRef.Gen))
		}
	}

	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray(allKids...))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(allKids))))
	out.Objects[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	out.Objects[catalogRef] = catalog
	out.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))

	return out, nil
}

// remapObject deep-copies obj, rewriting every Reference through remap.
// References to objects outside the copied closure (e.g. a dangling
// /Parent that was intentionally excluded) are dropped.
func remapObject(obj raw.Object, remap map[raw.ObjectRef]raw.ObjectRef) raw.Object {
	switch v := obj.(type) {
	case raw.Reference:
		if newRef, ok := remap[v.Ref()]; ok {
			return raw.Ref(newRef.Num, newRef.Gen)
		}
		return raw.NullObj{}
	case raw.Array:
		arr := raw.NewArray()
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			arr.Append(remapObject(item, remap))
		}
		return arr
	case raw.Dictionary:
		dict := raw.Dict()
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			if key.Value() == "Parent" {
				continue
			}
			dict.Set(key, remapObject(val, remap))
		}
		return dict
	case raw.Stream:
		dict := remapObject(v.Dictionary(), remap).(raw.Dictionary)
		concrete, ok := dict.(*raw.DictObj)
		if !ok {
			concrete = raw.Dict()
		}
		return raw.NewStream(concrete, v.RawData())
	default:
		return obj
	}
}

// Split keeps pages [start, end] (1-based inclusive) and drops every
// object not in their transitive closure.
func Split(in *raw.Document, start, end int) (*raw.Document, error) {
	refs, err := pageRefs(in)
	if err != nil {
		return nil, err
	}
	if start < 1 || end < start || end > len(refs) {
		return nil, pdferr.New(pdferr.KindInvalidPageRange, fmt.Sprintf("page range %d-%d is out of bounds for a %d-page document", start, end, len(refs)))
	}
	kept := refs[start-1 : end]
	return Merge([]*raw.Document{subsetDoc(in, kept)})
}

// subsetDoc builds a throwaway document exposing only the given pages in
// order, suitable as Merge's single input.
func subsetDoc(in *raw.Document, pages []raw.ObjectRef) *raw.Document {
	sub := &raw.Document{Objects: in.Objects, Trailer: raw.Dict(), Version: in.Version}
	newCatalog := raw.Dict()
	newCatalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))

	newPages := raw.Dict()
	newPages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	var kids []raw.Object
	for _, p := range pages {
		kids = append(kids, raw.Ref(p.Num, p.Gen))
	}
	newPages.Set(raw.NameLiteral("Kids"), raw.NewArray(kids...))
	newPages.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(kids))))

	objects := make(map[raw.ObjectRef]raw.Object, len(in.Objects)+2)
	for k, v := range in.Objects {
		objects[k] = v
	}
	newPagesRef := raw.ObjectRef{Num: maxObjNum(in) + 1, Gen: 0}
	newCatalogRef := raw.ObjectRef{Num: newPagesRef.Num + 1, Gen: 0}
	objects[newPagesRef] = newPages
	objects[newCatalogRef] = newCatalog
	newCatalog.Set(raw.NameLiteral("Pages"), raw.Ref(newPagesRef.Num, newPagesRef.Gen))
	sub.Objects = objects
	sub.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(newCatalogRef.Num, newCatalogRef.Gen))
	return sub
}

func maxObjNum(doc *raw.Document) int {
	max := 0
	for ref := range doc.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Rotate sets /Rotate on every page; angle must be one of 0, 90, 180, 270.
func Rotate(in *raw.Document, angle int) (*raw.Document, error) {
	switch angle {
	case 0, 90, 180, 270:
	default:
		return nil, pdferr.New(pdferr.KindInvalidPageRange, fmt.Sprintf("rotation angle %d is not one of 0, 90, 180, 270", angle))
	}
	refs, err := pageRefs(in)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		page, ok := in.Objects[ref].(raw.Dictionary)
		if !ok {
			continue
		}
		page.Set(raw.NameLiteral("Rotate"), raw.NumberInt(int64(angle)))
	}
	return in, nil
}

// Reorder rewrites the page tree's /Kids to the given 1-based
// permutation of the current page order. Every index must appear at
// most once and be in range.
func Reorder(in *raw.Document, permutation []int) (*raw.Document, error) {
	refs, err := pageRefs(in)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var newRefs []raw.ObjectRef
	for _, idx := range permutation {
		if idx < 1 || idx > len(refs) {
			return nil, pdferr.New(pdferr.KindInvalidPageRange, fmt.Sprintf("page index %d is out of range for a %d-page document", idx, len(refs)))
		}
		if seen[idx] {
			return nil, pdferr.New(pdferr.KindInvalidPageRange, fmt.Sprintf("page index %d appears more than once in the permutation", idx))
		}
		seen[idx] = true
		newRefs = append(newRefs, refs[idx-1])
	}

	root, _ := in.Trailer.Get(raw.NameLiteral("Root"))
	catalogObj, _ := in.Resolve(root)
	catalog, _ := catalogObj.(raw.Dictionary)
	pagesObj, _ := catalog.Get(raw.NameLiteral("Pages"))
	resolvedPages, _ := in.Resolve(pagesObj)
	pagesDict, ok := resolvedPages.(raw.Dictionary)
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Pages does not resolve to a dictionary")
	}
	var kids []raw.Object
	for _, r := range newRefs {
		kids = append(kids, raw.Ref(r.Num, r.Gen))
	}
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray(kids...))
	return in, nil
}

// Watermark appends a content stream to every page drawing text rotated
// 45 degrees and centered, using an ExtGState for fill alpha so the mark
// composites transparently under conforming viewers.
func Watermark(in *raw.Document, text string, size, opacity float64) (*raw.Document, error) {
	refs, err := pageRefs(in)
	if err != nil {
		return nil, err
	}
	gsRef := raw.ObjectRef{Num: maxObjNum(in) + 1, Gen: 0}
	gs := raw.Dict()
	gs.Set(raw.NameLiteral("Type"), raw.NameLiteral("ExtGState"))
	gs.Set(raw.NameLiteral("ca"), raw.NumberFloat(opacity))
	gs.Set(raw.NameLiteral("CA"), raw.NumberFloat(opacity))
	in.Objects[gsRef] = gs

	fontRef := raw.ObjectRef{Num: gsRef.Num + 1, Gen: 0}
	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(fonts.BaseFontName(fonts.Helvetica, fonts.Bold)))
	font.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	in.Objects[fontRef] = font
	next := fontRef.Num + 1

	for _, ref := range refs {
		page, ok := in.Objects[ref].(raw.Dictionary)
		if !ok {
			continue
		}
		w, h := mediaBoxSize(page)
		tw := fonts.StringWidth(fonts.Helvetica, fonts.Bold, size, text)
		cx, cy := w/2, h/2
		centered := coords.Rotate(math.Pi / 4).Multiply(coords.Translate(cx, cy))
		var buf strings.Builder
		fmt.Fprintf(&buf, "q /GSWatermark gs 0.5 g BT /FWatermark %f Tf 1 0 0 1 0 0 Tm\n", size)
		fmt.Fprintf(&buf, "%f %f %f %f %f %f cm\n", centered[0], centered[1], centered[2], centered[3], centered[4], centered[5])
		fmt.Fprintf(&buf, "%f %f Td (%s) Tj ET Q\n", -tw/2, 0.0, escapeLiteral(text))

		newContentRef := raw.ObjectRef{Num: next, Gen: 0}
		next++
		stream := raw.NewStream(raw.Dict(), []byte(buf.String()))
		stream.Dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(buf.Len())))
		in.Objects[newContentRef] = stream

		contents, _ := page.Get(raw.NameLiteral("Contents"))
		merged := mergeContents(in, contents, newContentRef)
		page.Set(raw.NameLiteral("Contents"), merged)

		resourcesObj, hasRes := page.Get(raw.NameLiteral("Resources"))
		var resources raw.Dictionary
		if hasRes {
			if r, ok := in.Resolve(resourcesObj); ok {
				resources, _ = r.(raw.Dictionary)
			}
		}
		if resources == nil {
			resources = raw.Dict()
			page.Set(raw.NameLiteral("Resources"), resources)
		}
		extGState := raw.Dict()
		extGState.Set(raw.NameLiteral("GSWatermark"), raw.Ref(gsRef.Num, gsRef.Gen))
		resources.Set(raw.NameLiteral("ExtGState"), extGState)

		fontDict := raw.Dict()
		if existingFontObj, ok := resources.Get(raw.NameLiteral("Font")); ok {
			if existingFont, ok := in.Resolve(existingFontObj); ok {
				if fd, ok := existingFont.(raw.Dictionary); ok {
					for _, k := range fd.Keys() {
						v, _ := fd.Get(k)
						fontDict.Set(k, v)
					}
				}
			}
		}
		fontDict.Set(raw.NameLiteral("FWatermark"), raw.Ref(fontRef.Num, fontRef.Gen))
		resources.Set(raw.NameLiteral("Font"), fontDict)
	}
	return in, nil
}

func mergeContents(doc *raw.Document, existing raw.Object, extra raw.ObjectRef) raw.Object {
	ref := raw.Ref(extra.Num, extra.Gen)
	if existing == nil {
		return raw.NewArray(ref)
	}
	resolved, ok := doc.Resolve(existing)
	if !ok {
		return raw.NewArray(ref)
	}
	if arr, ok := resolved.(raw.Array); ok {
		arr.Append(ref)
		if existingRefObj, isRef := existing.(raw.Reference); isRef {
			return raw.Ref(existingRefObj.Ref().Num, existingRefObj.Ref().Gen)
		}
		return arr
	}
	arr := raw.NewArray(existing, ref)
	return arr
}

func mediaBoxSize(page raw.Dictionary) (float64, float64) {
	mb, ok := page.Get(raw.NameLiteral("MediaBox"))
	if !ok {
		return 612, 792
	}
	arr, ok := mb.(raw.Array)
	if !ok || arr.Len() != 4 {
		return 612, 792
	}
	x0, _ := arr.Get(0)
	y0, _ := arr.Get(1)
	x1, _ := arr.Get(2)
	y1, _ := arr.Get(3)
	n0, _ := x0.(raw.Number)
	n1, _ := y0.(raw.Number)
	n2, _ := x1.(raw.Number)
	n3, _ := y1.(raw.Number)
	return n2.Float() - n0.Float(), n3.Float() - n1.Float()
}

func escapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r < 256 {
				b.WriteByte(byte(r))
			}
		}
	}
	return b.String()
}
