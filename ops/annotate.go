package ops

import (
	"fmt"
	"time"

	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/pdferr"
)

// AnnotationKind selects which of the three annotation subtypes the
// operations layer knows how to construct.
type AnnotationKind int

const (
	AnnotationText AnnotationKind = iota
	AnnotationLink
	AnnotationHighlight
)

// Annotation is the caller-facing description of one annotation to add
// to a page; fields not relevant to Kind are ignored.
type Annotation struct {
	Kind        AnnotationKind
	Rect        [4]float64 // x0 y0 x1 y1, required for Text and Link
	Contents    string     // Text annotation body
	URL         string     // Link annotation target
	QuadPoints  []float64  // Highlight annotation, 8 numbers per quad
}

// AddAnnotation appends one annotation dictionary to the given page's
// /Annots array, creating the array if the page doesn't yet have one.
func AddAnnotation(doc *raw.Document, page raw.ObjectRef, a Annotation) error {
	dict, ok := doc.Objects[page].(raw.Dictionary)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, fmt.Sprintf("object %d %d R is not a page dictionary", page.Num, page.Gen))
	}
	annot := raw.Dict()
	annot.Set(raw.NameLiteral("Type"), raw.NameLiteral("Annot"))
	switch a.Kind {
	case AnnotationText:
		annot.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Text"))
		annot.Set(raw.NameLiteral("Rect"), rectArray(a.Rect))
		annot.Set(raw.NameLiteral("Contents"), raw.Str([]byte(a.Contents)))
	case AnnotationLink:
		annot.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Link"))
		annot.Set(raw.NameLiteral("Rect"), rectArray(a.Rect))
		action := raw.Dict()
		action.Set(raw.NameLiteral("S"), raw.NameLiteral("URI"))
		action.Set(raw.NameLiteral("URI"), raw.Str([]byte(a.URL)))
		annot.Set(raw.NameLiteral("A"), action)
	case AnnotationHighlight:
		annot.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Highlight"))
		quad := raw.NewArray()
		for _, v := range a.QuadPoints {
			quad.Append(raw.NumberFloat(v))
		}
		annot.Set(raw.NameLiteral("QuadPoints"), quad)
		if len(a.QuadPoints) >= 8 {
			annot.Set(raw.NameLiteral("Rect"), quadBoundingRect(a.QuadPoints))
		}
	}

	existing, hasAnnots := dict.Get(raw.NameLiteral("Annots"))
	var arr *raw.ArrayObj
	if hasAnnots {
		if resolved, ok := doc.Resolve(existing); ok {
			if a, ok := resolved.(*raw.ArrayObj); ok {
				arr = a
			}
		}
	}
	if arr == nil {
		arr = raw.NewArray()
		dict.Set(raw.NameLiteral("Annots"), arr)
	}
	arr.Append(annot)
	return nil
}

func rectArray(r [4]float64) *raw.ArrayObj {
	return raw.NewArray(raw.NumberFloat(r[0]), raw.NumberFloat(r[1]), raw.NumberFloat(r[2]), raw.NumberFloat(r[3]))
}

func quadBoundingRect(q []float64) *raw.ArrayObj {
	minX, minY, maxX, maxY := q[0], q[1], q[0], q[1]
	for i := 0; i+1 < len(q); i += 2 {
		if q[i] < minX {
			minX = q[i]
		}
		if q[i] > maxX {
			maxX = q[i]
		}
		if q[i+1] < minY {
			minY = q[i+1]
		}
		if q[i+1] > maxY {
			maxY = q[i+1]
		}
	}
	return raw.NewArray(raw.NumberFloat(minX), raw.NumberFloat(minY), raw.NumberFloat(maxX), raw.NumberFloat(maxY))
}

// Metadata is the subset of the Info dictionary callers may set through
// SetMetadata; empty fields are left untouched on the existing Info object.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

// SetMetadata creates or updates the trailer's /Info indirect object,
// stamping /CreationDate on first write and /ModDate on every write, in
// the PDF date format (D:YYYYMMDDHHmmSS).
func SetMetadata(doc *raw.Document, m Metadata, now time.Time) error {
	infoObj, hasInfo := doc.Trailer.Get(raw.NameLiteral("Info"))
	var infoRef raw.ObjectRef
	var info *raw.DictObj
	if hasInfo {
		if resolved, ok := doc.Resolve(infoObj); ok {
			info, _ = resolved.(*raw.DictObj)
		}
		if ref, ok := infoObj.(raw.Reference); ok {
			infoRef = ref.Ref()
		}
	}
	if info == nil {
		info = raw.Dict()
		infoRef = raw.ObjectRef{Num: maxObjNum(doc) + 1, Gen: 0}
		doc.Objects[infoRef] = info
		doc.Trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoRef.Num, infoRef.Gen))
	}
	if _, hasDate := info.Get(raw.NameLiteral("CreationDate")); !hasDate {
		info.Set(raw.NameLiteral("CreationDate"), raw.Str([]byte(pdfDate(now))))
	}
	if m.Title != "" {
		info.Set(raw.NameLiteral("Title"), raw.Str([]byte(m.Title)))
	}
	if m.Author != "" {
		info.Set(raw.NameLiteral("Author"), raw.Str([]byte(m.Author)))
	}
	if m.Subject != "" {
		info.Set(raw.NameLiteral("Subject"), raw.Str([]byte(m.Subject)))
	}
	if m.Keywords != "" {
		info.Set(raw.NameLiteral("Keywords"), raw.Str([]byte(m.Keywords)))
	}
	if m.Creator != "" {
		info.Set(raw.NameLiteral("Creator"), raw.Str([]byte(m.Creator)))
	}
	info.Set(raw.NameLiteral("Producer"), raw.Str([]byte("pdfrs")))
	info.Set(raw.NameLiteral("ModDate"), raw.Str([]byte(pdfDate(now))))
	return nil
}

func pdfDate(t time.Time) string {
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// AddOutline appends one top-level bookmark to the document's outline
// tree, pointing at the given page with a "fit page" destination. This
// is not required by the core page-level operations but is a natural
// companion to Metadata for callers assembling a finished document.
func AddOutline(doc *raw.Document, title string, page raw.ObjectRef) error {
	root, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "trailer missing /Root")
	}
	resolvedCatalog, ok := doc.Resolve(root)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "/Root does not resolve")
	}
	catalog, ok := resolvedCatalog.(*raw.DictObj)
	if !ok {
		return pdferr.New(pdferr.KindUnresolvedReference, "/Root is not a dictionary")
	}

	outlinesObj, hasOutlines := catalog.Get(raw.NameLiteral("Outlines"))
	var outlinesRef raw.ObjectRef
	var outlines *raw.DictObj
	if hasOutlines {
		if resolved, ok := doc.Resolve(outlinesObj); ok {
			outlines, _ = resolved.(*raw.DictObj)
		}
		if ref, ok := outlinesObj.(raw.Reference); ok {
			outlinesRef = ref.Ref()
		}
	}
	if outlines == nil {
		outlines = raw.Dict()
		outlines.Set(raw.NameLiteral("Type"), raw.NameLiteral("Outlines"))
		outlines.Set(raw.NameLiteral("Count"), raw.NumberInt(0))
		outlinesRef = raw.ObjectRef{Num: maxObjNum(doc) + 1, Gen: 0}
		doc.Objects[outlinesRef] = outlines
		catalog.Set(raw.NameLiteral("Outlines"), raw.Ref(outlinesRef.Num, outlinesRef.Gen))
	}

	itemRef := raw.ObjectRef{Num: maxObjNum(doc) + 1, Gen: 0}
	item := raw.Dict()
	item.Set(raw.NameLiteral("Title"), raw.Str([]byte(title)))
	item.Set(raw.NameLiteral("Parent"), raw.Ref(outlinesRef.Num, outlinesRef.Gen))
	item.Set(raw.NameLiteral("Dest"), raw.NewArray(raw.Ref(page.Num, page.Gen), raw.NameLiteral("Fit")))
	doc.Objects[itemRef] = item

	first, hasFirst := outlines.Get(raw.NameLiteral("First"))
	if !hasFirst {
		outlines.Set(raw.NameLiteral("First"), raw.Ref(itemRef.Num, itemRef.Gen))
	} else if lastRef, ok := outlines.Get(raw.NameLiteral("Last")); ok {
		if resolvedLast, ok := doc.Resolve(lastRef); ok {
			if lastItem, ok := resolvedLast.(*raw.DictObj); ok {
				lastItem.Set(raw.NameLiteral("Next"), raw.Ref(itemRef.Num, itemRef.Gen))
				if ref, ok := lastRef.(raw.Reference); ok {
					item.Set(raw.NameLiteral("Prev"), raw.Ref(ref.Ref().Num, ref.Ref().Gen))
				}
			}
		}
		_ = first
	}
	outlines.Set(raw.NameLiteral("Last"), raw.Ref(itemRef.Num, itemRef.Gen))

	count, _ := outlines.Get(raw.NameLiteral("Count"))
	n, _ := count.(raw.Number)
	outlines.Set(raw.NameLiteral("Count"), raw.NumberInt(n.Int()+1))
	return nil
}
