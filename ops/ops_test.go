package ops

import (
	"testing"
	"time"

	"github.com/yingkitw/pdfrs/ir/raw"
)

func onePageDoc(pageCount int) *raw.Document {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object), Trailer: raw.Dict(), Version: "1.4"}
	catalogRef := raw.ObjectRef{Num: 1, Gen: 0}
	pagesRef := raw.ObjectRef{Num: 2, Gen: 0}
	next := 3
	var kids []raw.Object
	for i := 0; i < pageCount; i++ {
		ref := raw.ObjectRef{Num: next, Gen: 0}
		next++
		page := raw.Dict()
		page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		page.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))
		page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(raw.NumberFloat(0), raw.NumberFloat(0), raw.NumberFloat(612), raw.NumberFloat(792)))
		doc.Objects[ref] = page
		kids = append(kids, raw.Ref(ref.Num, ref.Gen))
	}
	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(kids...))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(pageCount)))
	doc.Objects[pagesRef] = pages

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	doc.Objects[catalogRef] = catalog
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(next)))
	return doc
}

func TestPageRefsOrder(t *testing.T) {
	doc := onePageDoc(3)
	refs, err := pageRefs(doc)
	if err != nil {
		t.Fatalf("pageRefs: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d refs, want 3", len(refs))
	}
	for i, r := range refs {
		if r.Num != 3+i {
			t.Errorf("page %d: got object number %d, want %d", i, r.Num, 3+i)
		}
	}
}

func TestMergeConcatenatesAllPages(t *testing.T) {
	a := onePageDoc(2)
	b := onePageDoc(3)
	merged, err := Merge([]*raw.Document{a, b})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	refs, err := pageRefs(merged)
	if err != nil {
		t.Fatalf("pageRefs on merged doc: %v", err)
	}
	if len(refs) != 5 {
		t.Fatalf("got %d pages, want 5", len(refs))
	}
	seen := make(map[raw.ObjectRef]bool)
	for _, r := range refs {
		if seen[r] {
			t.Fatalf("duplicate object ref %v in merged document", r)
		}
		seen[r] = true
	}
}

func TestSplitKeepsOnlyRequestedRange(t *testing.T) {
	doc := onePageDoc(5)
	out, err := Split(doc, 2, 4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	refs, err := pageRefs(out)
	if err != nil {
		t.Fatalf("pageRefs: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d pages, want 3", len(refs))
	}
}

func TestSplitRejectsOutOfBoundsRange(t *testing.T) {
	doc := onePageDoc(3)
	if _, err := Split(doc, 2, 5); err == nil {
		t.Fatal("expected an error for an out-of-bounds range")
	}
}

func TestRotateRejectsInvalidAngle(t *testing.T) {
	doc := onePageDoc(1)
	if _, err := Rotate(doc, 45); err == nil {
		t.Fatal("expected an error for a non-multiple-of-90 angle")
	}
}

func TestRotateSetsEveryPage(t *testing.T) {
	doc := onePageDoc(3)
	out, err := Rotate(doc, 90)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	refs, _ := pageRefs(out)
	for _, ref := range refs {
		page := out.Objects[ref].(raw.Dictionary)
		v, ok := page.Get(raw.NameLiteral("Rotate"))
		if !ok {
			t.Fatalf("page %v missing /Rotate", ref)
		}
		n := v.(raw.Number)
		if n.Int() != 90 {
			t.Errorf("page %v: /Rotate = %d, want 90", ref, n.Int())
		}
	}
}

func TestReorderRejectsDuplicateIndex(t *testing.T) {
	doc := onePageDoc(3)
	if _, err := Reorder(doc, []int{1, 1, 2}); err == nil {
		t.Fatal("expected an error for a repeated index")
	}
}

func TestReorderRejectsOutOfRangeIndex(t *testing.T) {
	doc := onePageDoc(3)
	if _, err := Reorder(doc, []int{1, 2, 9}); err == nil {
		t.Fatal("expected an error for an out-of-range index")
	}
}

func TestReorderPermutesKids(t *testing.T) {
	doc := onePageDoc(3)
	before, _ := pageRefs(doc)
	out, err := Reorder(doc, []int{3, 1, 2})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	after, err := pageRefs(out)
	if err != nil {
		t.Fatalf("pageRefs: %v", err)
	}
	want := []raw.ObjectRef{before[2], before[0], before[1]}
	for i, r := range after {
		if r != want[i] {
			t.Errorf("position %d: got %v, want %v", i, r, want[i])
		}
	}
}

func TestWatermarkAddsContentAndResources(t *testing.T) {
	doc := onePageDoc(2)
	out, err := Watermark(doc, "CONFIDENTIAL", 48, 0.3)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	refs, _ := pageRefs(out)
	for _, ref := range refs {
		page := out.Objects[ref].(raw.Dictionary)
		if _, ok := page.Get(raw.NameLiteral("Contents")); !ok {
			t.Errorf("page %v missing /Contents after watermarking", ref)
		}
		resObj, ok := page.Get(raw.NameLiteral("Resources"))
		if !ok {
			t.Fatalf("page %v missing /Resources after watermarking", ref)
		}
		resources := resObj.(raw.Dictionary)
		if _, ok := resources.Get(raw.NameLiteral("ExtGState")); !ok {
			t.Errorf("page %v missing /ExtGState after watermarking", ref)
		}
		if _, ok := resources.Get(raw.NameLiteral("Font")); !ok {
			t.Errorf("page %v missing watermark /Font after watermarking", ref)
		}
	}
}

func TestAddAnnotationLink(t *testing.T) {
	doc := onePageDoc(1)
	refs, _ := pageRefs(doc)
	err := AddAnnotation(doc, refs[0], Annotation{
		Kind: AnnotationLink,
		Rect: [4]float64{10, 10, 100, 30},
		URL:  "https://example.com",
	})
	if err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}
	page := doc.Objects[refs[0]].(raw.Dictionary)
	annotsObj, ok := page.Get(raw.NameLiteral("Annots"))
	if !ok {
		t.Fatal("page missing /Annots after AddAnnotation")
	}
	annots := annotsObj.(raw.Array)
	if annots.Len() != 1 {
		t.Fatalf("got %d annotations, want 1", annots.Len())
	}
}

func TestAddAnnotationHighlightDerivesRect(t *testing.T) {
	doc := onePageDoc(1)
	refs, _ := pageRefs(doc)
	err := AddAnnotation(doc, refs[0], Annotation{
		Kind:       AnnotationHighlight,
		QuadPoints: []float64{10, 20, 50, 20, 10, 10, 50, 10},
	})
	if err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}
	page := doc.Objects[refs[0]].(raw.Dictionary)
	annots := mustAnnots(t, page)
	entry, _ := annots.Get(0)
	dict := entry.(raw.Dictionary)
	rectObj, ok := dict.Get(raw.NameLiteral("Rect"))
	if !ok {
		t.Fatal("highlight annotation missing derived /Rect")
	}
	rect := rectObj.(raw.Array)
	if rect.Len() != 4 {
		t.Fatalf("got %d-element /Rect, want 4", rect.Len())
	}
}

func mustAnnots(t *testing.T, page raw.Dictionary) raw.Array {
	t.Helper()
	annotsObj, ok := page.Get(raw.NameLiteral("Annots"))
	if !ok {
		t.Fatal("page missing /Annots")
	}
	return annotsObj.(raw.Array)
}

func TestSetMetadataStampsDatesOnce(t *testing.T) {
	doc := onePageDoc(1)
	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	if err := SetMetadata(doc, Metadata{Title: "Report"}, now); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	infoObj, ok := doc.Trailer.Get(raw.NameLiteral("Info"))
	if !ok {
		t.Fatal("trailer missing /Info after SetMetadata")
	}
	info, ok := doc.Resolve(infoObj)
	if !ok {
		t.Fatal("/Info does not resolve")
	}
	infoDict := info.(raw.Dictionary)
	if _, ok := infoDict.Get(raw.NameLiteral("CreationDate")); !ok {
		t.Error("missing /CreationDate on first SetMetadata call")
	}
	if _, ok := infoDict.Get(raw.NameLiteral("ModDate")); !ok {
		t.Error("missing /ModDate")
	}
	titleObj, _ := infoDict.Get(raw.NameLiteral("Title"))
	title := titleObj.(raw.String)
	if string(title.Value()) != "Report" {
		t.Errorf("/Title = %q, want %q", title.Value(), "Report")
	}
}

func TestAddOutlineLinksSiblings(t *testing.T) {
	doc := onePageDoc(2)
	refs, _ := pageRefs(doc)
	if err := AddOutline(doc, "Chapter 1", refs[0]); err != nil {
		t.Fatalf("AddOutline: %v", err)
	}
	if err := AddOutline(doc, "Chapter 2", refs[1]); err != nil {
		t.Fatalf("AddOutline: %v", err)
	}
	catalogObj, _ := doc.Resolve(mustRoot(doc))
	catalog := catalogObj.(raw.Dictionary)
	outlinesObj, ok := catalog.Get(raw.NameLiteral("Outlines"))
	if !ok {
		t.Fatal("catalog missing /Outlines after AddOutline")
	}
	outlines, _ := doc.Resolve(outlinesObj)
	outlinesDict := outlines.(raw.Dictionary)
	count, _ := outlinesDict.Get(raw.NameLiteral("Count"))
	if count.(raw.Number).Int() != 2 {
		t.Errorf("/Count = %d, want 2", count.(raw.Number).Int())
	}
}

func mustRoot(doc *raw.Document) raw.Object {
	root, _ := doc.Trailer.Get(raw.NameLiteral("Root"))
	return root
}
