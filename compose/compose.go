// Package compose renders a sequence of element.Element values into a
// paginated raw.Document: it is the page composer half of the toolkit,
// the counterpart to the Markdown collaborator that produces the element
// sequence in the first place.
package compose

import (
	"fmt"
	"strings"

	"github.com/yingkitw/pdfrs/element"
	"github.com/yingkitw/pdfrs/fonts"
	"github.com/yingkitw/pdfrs/imagefmt"
	"github.com/yingkitw/pdfrs/ir/raw"
)

// Options configures the composer's default typography and page geometry.
// Individual elements (headings, code blocks) override the family/size as
// their rendering rule requires.
type Options struct {
	Layout     PageLayout
	FontFamily fonts.Family
	FontSize   float64
	LineHeight float64 // multiplier over FontSize; defaults to 1.4
	Metadata   raw.DocumentMetadata
}

func (o Options) withDefaults() Options {
	if o.Layout.Width == 0 {
		o.Layout = Portrait()
	}
	if o.FontSize == 0 {
		o.FontSize = 11
	}
	if o.LineHeight == 0 {
		o.LineHeight = 1.4
	}
	if o.Metadata.Producer == "" {
		o.Metadata.Producer = "pdfrs"
	}
	if o.Metadata.Creator == "" {
		o.Metadata.Creator = "pdfrs"
	}
	return o
}

// textLine is one line of rendered output: a unit of text with its own
// font, size, indentation and vertical rhythm, produced by flattening
// every element into lines before pagination decides where pages break.
type textLine struct {
	text        string
	family      fonts.Family
	style       fonts.Style
	size        float64
	indent      float64
	gray        float64 // 0 = black
	spaceBefore float64
	spaceAfter  float64 // extra leading consumed after this line (e.g. after a heading)
	centered    bool    // center horizontally within the column, per H1's rule
	rule        bool    // draw a horizontal rule instead of text
	pageBreak   bool    // force a page break here, emit nothing
	link        *linkTarget
	codeBG      bool // draw a light background band behind this line
	table       *tableRowChunk
	image       *imageLine
	footnote    *string // deferred to the bottom of the page it first appears on
}

type linkTarget struct {
	url string
}

type imageLine struct {
	data   []byte
	width  float64
	height float64
	alt    string
}

type fontResource struct {
	name string // e.g. "F1"
	ref  raw.ObjectRef
}

// engine accumulates object numbers and resources while building the
// document across both the layout and the emit pass.
type engine struct {
	doc    *raw.Document
	next   int
	fonts  map[string]fontResource // BaseFont name -> resource
	images map[string]raw.ObjectRef
	opts   Options
}

func (e *engine) alloc() raw.ObjectRef {
	e.next++
	return raw.ObjectRef{Num: e.next, Gen: 0}
}

func (e *engine) fontRef(family fonts.Family, style fonts.Style) fontResource {
	base := fonts.BaseFontName(family, style)
	if r, ok := e.fonts[base]; ok {
		return r
	}
	ref := e.alloc()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	e.doc.Objects[ref] = dict
	name := fmt.Sprintf("F%d", len(e.fonts)+1)
	res := fontResource{name: name, ref: ref}
	e.fonts[base] = res
	return res
}

// Compose lays out elements across as many pages as needed and returns a
// fully-formed document: catalog, page tree, font resources, content
// streams and (for Link/Image elements) annotations and XObjects.
func Compose(elements []element.Element, opts Options) (*raw.Document, error) {
	opts = opts.withDefaults()
	doc := &raw.Document{
		Objects:  make(map[raw.ObjectRef]raw.Object),
		Trailer:  raw.Dict(),
		Version:  "1.4",
		Metadata: opts.Metadata,
	}
	e := &engine{doc: doc, fonts: make(map[string]fontResource)}

	lines := flatten(elements, opts)

	catalogRef := e.alloc()
	pagesRef := e.alloc()
	infoRef := e.alloc()

	// Pass one: paginate without knowing the final page count, so the
	// footer text can be resolved once the count is known.
	pages := paginate(lines, opts)
	total := len(pages)

	var kids []raw.Object
	for i, p := range pages {
		pageRef, contentRef, annots := e.emitPage(p, i+1, total, opts)
		page := raw.Dict()
		page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		page.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))
		page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
			raw.NumberFloat(0), raw.NumberFloat(0),
			raw.NumberFloat(opts.Layout.Width), raw.NumberFloat(opts.Layout.Height)))
		page.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
		page.Set(raw.NameLiteral("Resources"), e.resourcesDict())
		if len(annots) > 0 {
			arr := raw.NewArray()
			for _, a := range annots {
				arr.Append(a)
			}
			page.Set(raw.NameLiteral("Annots"), arr)
		}
		doc.Objects[pageRef] = page
		kids = append(kids, raw.Ref(pageRef.Num, pageRef.Gen))
	}

	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	kidsArr := raw.NewArray(kids...)
	pagesDict.Set(raw.NameLiteral("Kids"), kidsArr)
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(total)))
	doc.Objects[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	doc.Objects[catalogRef] = catalog

	info := raw.Dict()
	if opts.Metadata.Title != "" {
		info.Set(raw.NameLiteral("Title"), raw.Str([]byte(opts.Metadata.Title)))
	}
	if opts.Metadata.Author != "" {
		info.Set(raw.NameLiteral("Author"), raw.Str([]byte(opts.Metadata.Author)))
	}
	if opts.Metadata.Subject != "" {
		info.Set(raw.NameLiteral("Subject"), raw.Str([]byte(opts.Metadata.Subject)))
	}
	info.Set(raw.NameLiteral("Producer"), raw.Str([]byte(opts.Metadata.Producer)))
	info.Set(raw.NameLiteral("Creator"), raw.Str([]byte(opts.Metadata.Creator)))
	if len(opts.Metadata.Keywords) > 0 {
		info.Set(raw.NameLiteral("Keywords"), raw.Str([]byte(strings.Join(opts.Metadata.Keywords, ", "))))
	}
	doc.Objects[infoRef] = info

	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoRef.Num, infoRef.Gen))

	return doc, nil
}

type page struct {
	lines     []placedLine
	footnotes []string
}

type placedLine struct {
	line textLine
	y    float64
}

// paginate is the layout pass: it walks the flattened lines once, tracking
// a vertical cursor, and starts a new page whenever content would overrun
// the bottom margin (leaving room for the footer).
func paginate(lines []textLine, opts Options) []page {
	layout := opts.Layout
	top := layout.Height - layout.MarginTop
	bottom := layout.MarginBottom + opts.FontSize*opts.LineHeight // reserve footer row
	var pages []page
	cur := page{}
	y := top

	newPage := func() {
		pages = append(pages, cur)
		cur = page{}
		y = top
	}

	var tableHeader *tableRowChunk

	for _, l := range lines {
		if l.pageBreak {
			newPage()
			tableHeader = nil
			continue
		}
		if l.footnote != nil {
			cur.footnotes = append(cur.footnotes, *l.footnote)
			continue
		}
		if l.table != nil {
			needed := l.table.height
			if y-needed < bottom && len(cur.lines) > 0 {
				newPage()
				// A forced break mid-table re-emits the header row so the
				// continuation page still identifies its columns.
				if tableHeader != nil && !l.table.header {
					cur.lines = append(cur.lines, placedLine{line: textLine{table: tableHeader}, y: y})
					y -= tableHeader.height
				}
			}
			cur.lines = append(cur.lines, placedLine{line: l, y: y})
			y -= needed
			if l.table.header {
				tableHeader = l.table
			}
			continue
		}
		tableHeader = nil
		if l.image != nil {
			if y-l.image.height < bottom && len(cur.lines) > 0 {
				newPage()
			}
			cur.lines = append(cur.lines, placedLine{line: l, y: y})
			y -= l.image.height
			continue
		}
		lh := l.size * opts.LineHeight
		y -= l.spaceBefore
		if y-lh < bottom && len(cur.lines) > 0 {
			newPage()
		}
		cur.lines = append(cur.lines, placedLine{line: l, y: y})
		y -= lh
		y -= l.spaceAfter
	}
	pages = append(pages, cur)
	return pages
}

// emitPage is the second pass: it knows the final page count, so it can
// draw the "Page n of N" footer and write the content-stream operators.
func (e *engine) emitPage(p page, n, total int, opts Options) (raw.ObjectRef, raw.ObjectRef, []raw.Object) {
	var buf strings.Builder
	var annots []raw.Object

	for _, pl := range p.lines {
		l := pl.line
		switch {
		case l.table != nil:
			e.renderTable(&buf, l.table, opts.Layout.MarginLeft, pl.y, opts.FontFamily)
		case l.image != nil:
			name := e.imageXObject(l.image.data)
			x := opts.Layout.MarginLeft
			fmt.Fprintf(&buf, "q %f 0 0 %f %f %f cm /%s Do Q\n",
				l.image.width, l.image.height, x, pl.y-l.image.height, name)
		case l.rule:
			fmt.Fprintf(&buf, "%f G %f %f m %f %f l S\n",
				l.gray, opts.Layout.MarginLeft, pl.y, opts.Layout.Width-opts.Layout.MarginRight, pl.y)
		default:
			if l.codeBG {
				fmt.Fprintf(&buf, "0.92 g %f %f %f %f re f\n",
					opts.Layout.MarginLeft-2, pl.y-l.size*0.25, opts.Layout.columnWidth()+4, l.size*opts.LineHeight)
			}
			fr := e.fontRef(l.family, l.style)
			x := opts.Layout.MarginLeft + l.indent
			if l.centered {
				w := fonts.StringWidth(l.family, l.style, l.size, l.text)
				x = opts.Layout.MarginLeft + (opts.Layout.columnWidth()-w)/2
			}
			fmt.Fprintf(&buf, "q %f g BT /%s %f Tf 1 0 0 1 %f %f Tm (%s) Tj ET Q\n",
				l.gray, fr.name, l.size, x, pl.y, escapeLiteral(l.text))
			if l.link != nil {
				w := fonts.StringWidth(l.family, l.style, l.size, l.text)
				rect := raw.NewArray(
					raw.NumberFloat(x), raw.NumberFloat(pl.y-2),
					raw.NumberFloat(x+w), raw.NumberFloat(pl.y+l.size))
				action := raw.Dict()
				action.Set(raw.NameLiteral("Type"), raw.NameLiteral("Action"))
				action.Set(raw.NameLiteral("S"), raw.NameLiteral("URI"))
				action.Set(raw.NameLiteral("URI"), raw.Str([]byte(l.link.url)))
				annot := raw.Dict()
				annot.Set(raw.NameLiteral("Type"), raw.NameLiteral("Annot"))
				annot.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Link"))
				annot.Set(raw.NameLiteral("Rect"), rect)
				annot.Set(raw.NameLiteral("Border"), raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(0)))
				annot.Set(raw.NameLiteral("A"), action)
				annots = append(annots, annot)
			}
		}
	}

	e.renderFootnotes(&buf, p.footnotes, opts)

	footer := fmt.Sprintf("Page %d of %d", n, total)
	fr := e.fontRef(opts.FontFamily, fonts.Regular)
	fmt.Fprintf(&buf, "q 0.4 g BT /%s %f Tf 1 0 0 1 %f %f Tm (%s) Tj ET Q\n",
		fr.name, 9.0, opts.Layout.Width/2-fonts.StringWidth(opts.FontFamily, fonts.Regular, 9, footer)/2,
		opts.Layout.MarginBottom/2, escapeLiteral(footer))

	contentRef := e.alloc()
	stream := raw.NewStream(raw.Dict(), []byte(buf.String()))
	stream.Dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(buf.String()))))
	e.doc.Objects[contentRef] = stream

	pageRef := e.alloc()
	return pageRef, contentRef, annots
}

// renderTable draws one header or data row: each cell's wrapped lines at
// its column's alignment, followed by a 0.5pt stroked border around every
// cell per §4.8.
func (e *engine) renderTable(buf *strings.Builder, t *tableRowChunk, x0, y0 float64, family fonts.Family) {
	fr := e.fontRef(family, fonts.Regular)
	frBold := e.fontRef(family, fonts.Bold)
	name := fr.name
	style := fonts.Regular
	if t.bold {
		name = frBold.name
		style = fonts.Bold
	}
	lineHeight := t.size * 1.2
	cx := x0
	for c, lines := range t.cells {
		colWidth := t.colWidths[c]
		for li, line := range lines {
			ly := y0 - lineHeight*float64(li+1)
			tw := fonts.StringWidth(family, style, t.size, line)
			tx := cx + 3
			switch alignOf(t.alignments, c) {
			case element.AlignCenter:
				tx = cx + (colWidth-tw)/2
			case element.AlignRight:
				tx = cx + colWidth - tw - 3
			}
			fmt.Fprintf(buf, "q %f g BT /%s %f Tf 1 0 0 1 %f %f Tm (%s) Tj ET Q\n",
				t.gray, name, t.size, tx, ly, escapeLiteral(line))
		}
		fmt.Fprintf(buf, "0.5 w %f %f %f %f re S\n", cx, y0-t.height, colWidth, t.height)
		cx += colWidth
	}
}

func alignOf(alignments []element.Alignment, c int) element.Alignment {
	if c < len(alignments) {
		return alignments[c]
	}
	return element.AlignNone
}

// renderFootnotes draws every footnote collected for this page as a block
// directly above the "Page n of N" footer, in reference order.
func (e *engine) renderFootnotes(buf *strings.Builder, footnotes []string, opts Options) {
	if len(footnotes) == 0 {
		return
	}
	size := opts.FontSize * 0.8
	lineHeight := size * 1.4
	var lines []string
	for _, fn := range footnotes {
		lines = append(lines, wrapText(fn, opts.FontFamily, fonts.Regular, size, opts.Layout.columnWidth())...)
	}
	fr := e.fontRef(opts.FontFamily, fonts.Regular)
	footerY := opts.Layout.MarginBottom / 2
	top := footerY + float64(len(lines))*lineHeight
	for i, line := range lines {
		y := top - float64(i)*lineHeight
		fmt.Fprintf(buf, "q 0.35 g BT /%s %f Tf 1 0 0 1 %f %f Tm (%s) Tj ET Q\n",
			fr.name, size, opts.Layout.MarginLeft, y, escapeLiteral(line))
	}
}

func (e *engine) imageXObject(data []byte) string {
	dims, err := imagefmt.Sniff(data)
	ref := e.alloc()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	if err == nil {
		dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(dims.Width)))
		dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(dims.Height)))
	}
	dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral("DeviceRGB"))
	dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(8))
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("DCTDecode"))
	stream := raw.NewStream(dict, data)
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	e.doc.Objects[ref] = stream
	name := fmt.Sprintf("Im%d", ref.Num)
	if e.images == nil {
		e.images = make(map[string]raw.ObjectRef)
	}
	e.images[name] = ref
	return name
}

func (e *engine) resourcesDict() *raw.DictObj {
	res := raw.Dict()
	fontDict := raw.Dict()
	for _, fr := range e.fonts {
		fontDict.Set(raw.NameLiteral(fr.name), raw.Ref(fr.ref.Num, fr.ref.Gen))
	}
	res.Set(raw.NameLiteral("Font"), fontDict)
	if len(e.images) > 0 {
		xobj := raw.Dict()
		for name, ref := range e.images {
			xobj.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
		res.Set(raw.NameLiteral("XObject"), xobj)
	}
	return res
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
			} else {
				b.WriteByte('?')
			}
		}
	}
	return b.String()
}
