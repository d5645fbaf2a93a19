// Package pdfrs is the toolkit's top-level programmatic surface: the
// facade named in §6.2, tying together the Markdown collaborator, the
// page composer, the parser/validator, the content-stream extractor, and
// the page-level operations into the handful of entry points a caller
// (or the CLI collaborator in cmd/pdfcli) actually needs.
package pdfrs

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/yingkitw/pdfrs/compose"
	"github.com/yingkitw/pdfrs/contentstream"
	"github.com/yingkitw/pdfrs/element"
	"github.com/yingkitw/pdfrs/fonts"
	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/markdown"
	"github.com/yingkitw/pdfrs/ops"
	"github.com/yingkitw/pdfrs/parser"
	"github.com/yingkitw/pdfrs/pdferr"
	"github.com/yingkitw/pdfrs/recovery"
	"github.com/yingkitw/pdfrs/security"
	"github.com/yingkitw/pdfrs/validate"
	"github.com/yingkitw/pdfrs/writer"
)

// PageLayout is the caller-facing alias for the composer's page geometry,
// re-exported here so callers of this package never need to import
// compose directly for the common case.
type PageLayout = compose.PageLayout

// Portrait returns the 612x792 default layout with 72pt margins.
func Portrait() PageLayout { return compose.Portrait() }

// Landscape returns the 792x612 default layout with 72pt margins.
func Landscape() PageLayout { return compose.Landscape() }

// FontFamily selects among the three standard Type 1 families.
type FontFamily = fonts.Family

const (
	Helvetica  = fonts.Helvetica
	TimesRoman = fonts.TimesRoman
	Courier    = fonts.Courier
)

// PdfValidation mirrors §6.2's validate_pdf_bytes return shape.
type PdfValidation = validate.Report

// PdfDocument is the resolved in-memory form every parse/manipulate
// operation in this package works with.
type PdfDocument = raw.Document

// ParseMarkdown implements parse_markdown: it runs the goldmark-backed
// Markdown-tokenizer collaborator over source and returns the closed
// element.Element sequence the composer consumes.
func ParseMarkdown(source string) ([]element.Element, error) {
	return markdown.Parse(source)
}

// GenerateOptions configures GeneratePDFBytes; zero-value fields take the
// composer's defaults (Portrait layout, Helvetica 11pt, 1.4x leading).
type GenerateOptions struct {
	Layout     PageLayout
	FontFamily FontFamily
	FontSize   float64
	Title      string
	Author     string
	Subject    string
	Keywords   []string
}

func (o GenerateOptions) composeOptions() compose.Options {
	return compose.Options{
		Layout:     o.Layout,
		FontFamily: o.FontFamily,
		FontSize:   o.FontSize,
		Metadata: raw.DocumentMetadata{
			Title:    o.Title,
			Author:   o.Author,
			Subject:  o.Subject,
			Keywords: o.Keywords,
		},
	}
}

// GeneratePDFBytes implements generate_pdf_bytes: it paginates elements
// into a document with the composer and serializes the result to a
// complete PDF-1.4 file.
func GeneratePDFBytes(elements []element.Element, opts GenerateOptions) ([]byte, error) {
	doc, err := compose.Compose(elements, opts.composeOptions())
	if err != nil {
		return nil, err
	}
	return writeDocument(doc)
}

// CreatePDFWithMetadata generates a document exactly like GeneratePDFBytes
// and additionally stamps /CreationDate and /ModDate, matching what
// create_pdf_with_metadata is specified to produce.
func CreatePDFWithMetadata(elements []element.Element, opts GenerateOptions, now time.Time) ([]byte, error) {
	doc, err := compose.Compose(elements, opts.composeOptions())
	if err != nil {
		return nil, err
	}
	if err := ops.SetMetadata(doc, ops.Metadata{
		Title:   opts.Title,
		Author:  opts.Author,
		Subject: opts.Subject,
	}, now); err != nil {
		return nil, err
	}
	return writeDocument(doc)
}

// ImageSpec describes one image the caller wants placed via
// create_pdf_with_images; it is carried through as an element.Image.
type ImageSpec struct {
	Alt  string
	Data []byte
}

// CreatePDFWithImages inserts an Image element for each spec immediately
// before the rest of the document's elements are laid out, then composes
// and serializes as usual.
func CreatePDFWithImages(images []ImageSpec, elements []element.Element, opts GenerateOptions) ([]byte, error) {
	all := make([]element.Element, 0, len(images)+len(elements))
	for _, img := range images {
		all = append(all, element.Image{Alt: img.Alt, Data: img.Data})
	}
	all = append(all, elements...)
	return GeneratePDFBytes(all, opts)
}

// AnnotationSpec is the caller-facing description of one annotation to
// attach to a 1-based page index, used by CreatePDFWithAnnotations.
type AnnotationSpec struct {
	Page       int
	Kind       ops.AnnotationKind
	Rect       [4]float64
	Contents   string
	URL        string
	QuadPoints []float64
}

// CreatePDFWithAnnotations composes elements, then attaches each
// annotation spec to its target page before serializing.
func CreatePDFWithAnnotations(elements []element.Element, opts GenerateOptions, annotations []AnnotationSpec) ([]byte, error) {
	doc, err := compose.Compose(elements, opts.composeOptions())
	if err != nil {
		return nil, err
	}
	refs, err := pageRefsInOrder(doc)
	if err != nil {
		return nil, err
	}
	for _, a := range annotations {
		if a.Page < 1 || a.Page > len(refs) {
			return nil, pdferr.New(pdferr.KindInvalidPageRange, fmt.Sprintf("annotation page %d out of range for a %d-page document", a.Page, len(refs)))
		}
		if err := ops.AddAnnotation(doc, refs[a.Page-1], ops.Annotation{
			Kind:       a.Kind,
			Rect:       a.Rect,
			Contents:   a.Contents,
			URL:        a.URL,
			QuadPoints: a.QuadPoints,
		}); err != nil {
			return nil, err
		}
	}
	return writeDocument(doc)
}

// ValidatePDFBytes implements validate_pdf_bytes. It runs the byte-level
// structural checks unconditionally, and layers the object-graph checks on
// top when the bytes parse cleanly; a parse failure still yields a report
// with Valid=false rather than propagating the parse error.
func ValidatePDFBytes(data []byte) PdfValidation {
	doc, err := ParsePDF(data)
	if err != nil {
		return validate.ValidateBytes(data, nil)
	}
	return validate.ValidateBytes(data, doc)
}

// ParsePDF implements parse_pdf: it resolves the xref chain (classical or
// stream form), decodes every reachable object, and returns the resolved
// document.
func ParsePDF(data []byte) (*PdfDocument, error) {
	return parser.Parse(context.Background(), data, parser.Config{
		Recovery: recovery.NewStrictStrategy(),
	})
}

// ParsePDFLenient is ParsePDF with a best-effort recovery strategy: faults
// are logged and skipped rather than aborting the parse.
func ParsePDFLenient(data []byte) (*PdfDocument, *recovery.LenientStrategy, error) {
	strategy := recovery.NewLenientStrategy()
	doc, err := parser.Parse(context.Background(), data, parser.Config{Recovery: strategy})
	return doc, strategy, err
}

// ExtractText implements extract_text: it concatenates every page's
// decoded text, in page order, separated by a single newline.
func ExtractText(doc *PdfDocument) (string, error) {
	refs, err := pageRefsInOrder(doc)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	for i, ref := range refs {
		page, ok := doc.Objects[ref].(raw.Dictionary)
		if !ok {
			continue
		}
		text, err := extractPageText(doc, page)
		if err != nil {
			return out.String(), err
		}
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

func extractPageText(doc *PdfDocument, page raw.Dictionary) (string, error) {
	fontMap := pageFontMap(doc, page)
	content, err := concatenatedContent(doc, page)
	if err != nil {
		return "", err
	}
	return contentstream.ExtractText(content, fontMap)
}

func pageFontMap(doc *PdfDocument, page raw.Dictionary) map[string]contentstream.FontInfo {
	out := make(map[string]contentstream.FontInfo)
	resourcesObj, ok := page.Get(raw.NameLiteral("Resources"))
	if !ok {
		return out
	}
	resources, ok := resolveDict(doc, resourcesObj)
	if !ok {
		return out
	}
	fontDictObj, ok := resources.Get(raw.NameLiteral("Font"))
	if !ok {
		return out
	}
	fontDict, ok := resolveDict(doc, fontDictObj)
	if !ok {
		return out
	}
	for _, key := range fontDict.Keys() {
		entryObj, _ := fontDict.Get(key)
		fontDef, ok := resolveDict(doc, entryObj)
		if !ok {
			continue
		}
		name := "WinAnsiEncoding"
		if encObj, ok := fontDef.Get(raw.NameLiteral("Encoding")); ok {
			if n, ok := encObj.(raw.Name); ok {
				name = n.Value()
			}
		}
		out[key.Value()] = contentstream.FontInfo{Encoding: fonts.ByName(name)}
	}
	return out
}

func concatenatedContent(doc *PdfDocument, page raw.Dictionary) ([]byte, error) {
	contentsObj, ok := page.Get(raw.NameLiteral("Contents"))
	if !ok {
		return nil, nil
	}
	resolved, ok := doc.Resolve(contentsObj)
	if !ok {
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Contents does not resolve")
	}
	switch v := resolved.(type) {
	case raw.Stream:
		return v.RawData(), nil
	case raw.Array:
		var buf bytes.Buffer
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			streamObj, ok := doc.Resolve(item)
			if !ok {
				continue
			}
			stream, ok := streamObj.(raw.Stream)
			if !ok {
				continue
			}
			buf.Write(stream.RawData())
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		return nil, pdferr.New(pdferr.KindUnresolvedReference, "/Contents is neither a stream nor an array")
	}
}

func resolveDict(doc *PdfDocument, obj raw.Object) (raw.Dictionary, bool) {
	resolved, ok := doc.Resolve(obj)
	if !ok {
		return nil, false
	}
	dict, ok := resolved.(raw.Dictionary)
	return dict, ok
}

func pageRefsInOrder(doc *PdfDocument) ([]raw.ObjectRef, error) {
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
	if err := collectPages(doc, pagesObj, &refs, make(map[raw.ObjectRef]bool)); err != nil {
		return nil, err
	}
	return refs, nil
}

func collectPages(doc *PdfDocument, node raw.Object, out *[]raw.ObjectRef, seen map[raw.ObjectRef]bool) error {
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
		if err := collectPages(doc, child, out, seen); err != nil {
			return err
		}
	}
	return nil
}

// MergePDFs implements merge_pdfs over already-parsed documents.
func MergePDFs(inputs []*PdfDocument) ([]byte, error) {
	out, err := ops.Merge(inputs)
	if err != nil {
		return nil, err
	}
	return writeDocument(out)
}

// SplitPDF implements split_pdf: keep pages [start, end], 1-based inclusive.
func SplitPDF(in *PdfDocument, start, end int) ([]byte, error) {
	out, err := ops.Split(in, start, end)
	if err != nil {
		return nil, err
	}
	return writeDocument(out)
}

// RotatePDF implements rotate_pdf: angle must be one of 0, 90, 180, 270.
func RotatePDF(in *PdfDocument, angle int) ([]byte, error) {
	out, err := ops.Rotate(in, angle)
	if err != nil {
		return nil, err
	}
	return writeDocument(out)
}

// ReorderPages implements reorder_pages over a 1-based page permutation.
func ReorderPages(in *PdfDocument, permutation []int) ([]byte, error) {
	out, err := ops.Reorder(in, permutation)
	if err != nil {
		return nil, err
	}
	return writeDocument(out)
}

// WatermarkPDF implements watermark_pdf: a rotated, semi-transparent
// centered text mark on every page.
func WatermarkPDF(in *PdfDocument, text string, size, opacity float64) ([]byte, error) {
	out, err := ops.Watermark(in, text, size, opacity)
	if err != nil {
		return nil, err
	}
	return writeDocument(out)
}

// EncryptPDF is the opt-in side channel of §1: it derives a standard
// security handler key from the given passwords/permissions, stores the
// resulting /Encrypt dictionary in the trailer, and serializes the
// document. String and stream payloads are left in plaintext at the
// object-model layer; only the trailer's /Encrypt entry and file ID are
// affected, matching this package's scope as a document-metadata facade
// rather than a byte-level rewriter.
func EncryptPDF(in *PdfDocument, alg security.Algorithm, ownerPwd, userPwd string, perm security.Permissions) ([]byte, error) {
	fileID := writer.DeterministicID(in)
	handler, o, u, err := security.NewHandler(alg, ownerPwd, userPwd, perm, fileID)
	if err != nil {
		return nil, err
	}
	encRef := raw.ObjectRef{Num: maxObjNum(in) + 1, Gen: 0}
	in.Objects[encRef] = security.BuildEncryptDict(handler, o, u, perm)
	in.Trailer.Set(raw.NameLiteral("Encrypt"), raw.Ref(encRef.Num, encRef.Gen))
	in.Trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(fileID), raw.HexStr(fileID)))
	return writeDocument(in)
}

func maxObjNum(doc *PdfDocument) int {
	max := 0
	for ref := range doc.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

func writeDocument(doc *raw.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := (&writer.WriterBuilder{}).Build()
	if err := w.Write(nil, doc, &buf, writer.Config{Version: writer.PDF14}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
