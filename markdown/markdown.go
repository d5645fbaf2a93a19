// Package markdown implements the Markdown-tokenizer collaborator: it
// walks a goldmark AST and emits the closed element.Element set the page
// composer consumes. Inline markdown (**bold**, *italic*, `code`,
// [text](url), ~~strike~~) is stripped here; the composer never sees it.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/yingkitw/pdfrs/element"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Parse converts source Markdown text into an ordered element.Element
// sequence, per the external Markdown-tokenizer interface of §6.2's
// parse_markdown.
func Parse(source string) ([]element.Element, error) {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var out []element.Element
	var orderedCounters []int // passed to renderList but never filled; each list numbers its own items
	var depth int

	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Heading:
				out = append(out, element.Heading{Level: node.Level, Text: plainText(node, src)})
			case *ast.Paragraph:
				out = append(out, element.Paragraph{Text: plainText(node, src)})
			case *ast.FencedCodeBlock:
				out = append(out, element.CodeBlock{Language: string(node.Language(src)), Code: codeBlockText(node, src)})
			case *ast.CodeBlock:
				out = append(out, element.CodeBlock{Code: codeBlockText(node, src)})
			case *ast.Blockquote:
				text := collectBlockText(node, src)
				out = append(out, element.BlockQuote{Text: text, Depth: depth})
			case *ast.List:
				renderList(node, src, depth, &orderedCounters, walk, &out)
			case *ast.ThematicBreak:
				out = append(out, element.HorizontalRule{})
			case *east.Table:
				renderTable(node, src, &out)
			default:
				walk(c)
			}
		}
	}
	walk(doc)
	return out, nil
}

func renderList(list *ast.List, src []byte, depth int, counters *[]int, walk func(ast.Node), out *[]element.Element) {
	number := 1
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		li, ok := item.(*ast.ListItem)
		if !ok {
			continue
		}
		text := collectBlockText(li, src)
		if task, checked, rest := extractTaskMarker(text); task {
			*out = append(*out, element.TaskListItem{Checked: checked, Text: rest})
		} else if list.IsOrdered() {
			*out = append(*out, element.OrderedListItem{Number: number, Text: text, Depth: depth})
			number++
		} else {
			*out = append(*out, element.UnorderedListItem{Text: text, Depth: depth})
		}
		for sub := li.FirstChild(); sub != nil; sub = sub.NextSibling() {
			if subList, ok := sub.(*ast.List); ok {
				renderList(subList, src, depth+1, counters, walk, out)
			}
		}
	}
}

func extractTaskMarker(text string) (isTask bool, checked bool, rest string) {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "[x] "), strings.HasPrefix(trimmed, "[X] "):
		return true, true, trimmed[4:]
	case strings.HasPrefix(trimmed, "[ ] "):
		return true, false, trimmed[4:]
	default:
		return false, false, text
	}
}

// renderTable emits the header row, a synthetic separator row carrying the
// column alignments (mirroring the "---|---" line goldmark consumes as
// metadata rather than a renderable row), then each data row.
func renderTable(table *east.Table, src []byte, out *[]element.Element) {
	var alignments []element.Alignment
	for _, a := range table.Alignments {
		alignments = append(alignments, alignmentOf(a))
	}
	first := true
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, plainText(cell, src))
		}
		*out = append(*out, element.TableRow{Cells: cells})
		if first {
			*out = append(*out, element.TableRow{IsSeparator: true, Alignments: alignments})
			first = false
		}
	}
}

func alignmentOf(a east.Alignment) element.Alignment {
	switch a {
	case east.AlignLeft:
		return element.AlignLeft
	case east.AlignCenter:
		return element.AlignCenter
	case east.AlignRight:
		return element.AlignRight
	default:
		return element.AlignNone
	}
}

// plainText renders inline children (bold/italic/code/links/strike) as
// stripped plain text, since the core element grammar carries presentation
// hints only via StyledText/InlineCode/Link, not raw markdown syntax.
func plainText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		default:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func collectBlockText(n ast.Node, src []byte) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if _, isList := c.(*ast.List); isList {
			continue
		}
		parts = append(parts, plainText(c, src))
	}
	return strings.Join(parts, " ")
}

func codeBlockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}
