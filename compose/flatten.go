package compose

import (
	"fmt"

	"github.com/yingkitw/pdfrs/element"
	"github.com/yingkitw/pdfrs/fonts"
	"github.com/yingkitw/pdfrs/imagefmt"
)

// headingFactors scales the base font size for each heading level 1..6,
// per §4.8's H1..H6 ratios.
var headingFactors = [6]float64{2.0, 1.6, 1.3, 1.1, 1.0, 0.9}

func headingFactor(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return headingFactors[level-1]
}

// flatten turns the element sequence into a list of textLine/table/image
// render units at a fixed page width, independent of pagination; paginate
// later decides where page breaks fall.
func flatten(elements []element.Element, opts Options) []textLine {
	var out []textLine
	width := opts.Layout.columnWidth()

	var tableGroup []element.TableRow
	flushTable := func() {
		if len(tableGroup) == 0 {
			return
		}
		t := buildTable(tableGroup, opts.FontFamily, 10, width)
		for i, chunk := range tableChunks(t, opts.FontFamily, 10) {
			sb := 0.0
			if i == 0 {
				sb = opts.FontSize
			}
			out = append(out, textLine{table: &chunk, spaceBefore: sb})
		}
		tableGroup = nil
	}

	for _, el := range elements {
		if row, ok := el.(element.TableRow); ok {
			tableGroup = append(tableGroup, row)
			continue
		}
		flushTable()

		switch v := el.(type) {
		case element.Heading:
			size := opts.FontSize * headingFactor(v.Level)
			lines := wrapText(v.Text, opts.FontFamily, fonts.Bold, size, width)
			for i, line := range lines {
				sb := 0.0
				if i == 0 {
					sb = size * 0.6
				}
				sa := 0.0
				if i == len(lines)-1 {
					sa = size * 0.6
				}
				out = append(out, textLine{
					text: line, family: opts.FontFamily, style: fonts.Bold, size: size,
					spaceBefore: sb, spaceAfter: sa, centered: v.Level == 1,
				})
			}

		case element.Paragraph:
			for i, line := range wrapText(v.Text, opts.FontFamily, fonts.Regular, opts.FontSize, width) {
				sb := 0.0
				if i == 0 {
					sb = opts.FontSize * 0.5
				}
				out = append(out, textLine{text: line, family: opts.FontFamily, style: fonts.Regular, size: opts.FontSize, spaceBefore: sb})
			}

		case element.UnorderedListItem:
			out = append(out, listLines("•", v.Text, v.Depth, opts)...)

		case element.OrderedListItem:
			out = append(out, listLines(fmt.Sprintf("%d.", v.Number), v.Text, v.Depth, opts)...)

		case element.TaskListItem:
			box := "[ ]"
			if v.Checked {
				box = "[x]"
			}
			out = append(out, listLines(box, v.Text, 0, opts)...)

		case element.CodeBlock:
			for i, line := range splitLines(v.Code) {
				sb := 0.0
				if i == 0 {
					sb = opts.FontSize * 0.5
				}
				out = append(out, textLine{text: line, family: fonts.Courier, style: fonts.Regular, size: opts.FontSize * 0.9, spaceBefore: sb, codeBG: true})
			}

		case element.InlineCode:
			out = append(out, textLine{text: v.Code, family: fonts.Courier, style: fonts.Regular, size: opts.FontSize, codeBG: true})

		case element.BlockQuote:
			indent := float64(v.Depth+1) * 18
			for i, line := range wrapText(v.Text, opts.FontFamily, fonts.Italic, opts.FontSize, width-indent) {
				sb := 0.0
				if i == 0 {
					sb = opts.FontSize * 0.4
				}
				out = append(out, textLine{text: line, family: opts.FontFamily, style: fonts.Italic, size: opts.FontSize, indent: indent, gray: 0.3, spaceBefore: sb})
			}

		case element.DefinitionItem:
			out = append(out, textLine{text: v.Term, family: opts.FontFamily, style: fonts.Bold, size: opts.FontSize, spaceBefore: opts.FontSize * 0.4})
			for _, line := range wrapText(v.Definition, opts.FontFamily, fonts.Regular, opts.FontSize, width-18) {
				out = append(out, textLine{text: line, family: opts.FontFamily, style: fonts.Regular, size: opts.FontSize, indent: 18})
			}

		case element.Footnote:
			// Footnotes are not flowed in place: they carry no height here
			// and are collected per-page by paginate, then rendered at the
			// bottom of the page on which this marker first appears.
			text := fmt.Sprintf("[%s] %s", v.Label, v.Text)
			out = append(out, textLine{footnote: &text})

		case element.Link:
			out = append(out, textLine{text: v.Text, family: opts.FontFamily, style: fonts.Regular, size: opts.FontSize, link: &linkTarget{url: v.URL}})

		case element.StyledText:
			style := fonts.Regular
			switch {
			case v.Bold && v.Italic:
				style = fonts.BoldItalic
			case v.Bold:
				style = fonts.Bold
			case v.Italic:
				style = fonts.Italic
			}
			for _, line := range wrapText(v.Text, opts.FontFamily, style, opts.FontSize, width) {
				out = append(out, textLine{text: line, family: opts.FontFamily, style: style, size: opts.FontSize})
			}

		case element.Image:
			w, h := v.Width, v.Height
			if w == 0 || h == 0 {
				if dims, err := imagefmt.Sniff(v.Data); err == nil && dims.Width > 0 {
					ratio := float64(dims.Height) / float64(dims.Width)
					w = width
					h = w * ratio
				} else {
					w, h = width, width * 0.6
				}
			}
			if w > width {
				h *= width / w
				w = width
			}
			out = append(out, textLine{image: &imageLine{data: v.Data, width: w, height: h, alt: v.Alt}, spaceBefore: opts.FontSize * 0.5})

		case element.HorizontalRule:
			out = append(out, textLine{rule: true, size: opts.FontSize, gray: 0.6, spaceBefore: opts.FontSize * 0.6})

		case element.PageBreak:
			out = append(out, textLine{pageBreak: true})

		case element.EmptyLine:
			out = append(out, textLine{text: "", family: opts.FontFamily, style: fonts.Regular, size: opts.FontSize})
		}
	}
	flushTable()
	return out
}

func listLines(marker, text string, depth int, opts Options) []textLine {
	indent := 18 + float64(depth)*18
	width := opts.Layout.columnWidth() - indent - 18
	var lines []textLine
	for i, line := range wrapText(text, opts.FontFamily, fonts.Regular, opts.FontSize, width) {
		t := line
		if i == 0 {
			t = marker + " " + line
		}
		lines = append(lines, textLine{text: t, family: opts.FontFamily, style: fonts.Regular, size: opts.FontSize, indent: indent - 18})
	}
	return lines
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
