package compose

import (
	"github.com/yingkitw/pdfrs/element"
	"github.com/yingkitw/pdfrs/fonts"
)

// tableLayout is the resolved geometry for one Markdown table: column
// widths sized to content (clamped to the available column width) and
// every row (header included) padded to the widest row's column count, per
// the ragged-row padding rule.
type tableLayout struct {
	headers    []string
	alignments []element.Alignment
	rows       [][]string
	colWidths  []float64
	rowHeight  float64
}

// buildTable expects group in the shape the Markdown collaborator
// produces: a header row, a synthetic separator row carrying column
// alignments, then zero or more data rows.
func buildTable(group []element.TableRow, family fonts.Family, size, available float64) tableLayout {
	var headers []string
	var alignments []element.Alignment
	var rows [][]string
	for _, r := range group {
		if r.IsSeparator {
			alignments = r.Alignments
			continue
		}
		if headers == nil {
			headers = r.Cells
			continue
		}
		rows = append(rows, r.Cells)
	}
	cols := len(headers)
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	headers = padRow(headers, cols)
	for i := range rows {
		rows[i] = padRow(rows[i], cols)
	}
	for len(alignments) < cols {
		alignments = append(alignments, element.AlignNone)
	}

	widths := make([]float64, cols)
	pad := 8.0
	for c := 0; c < cols; c++ {
		w := fonts.StringWidth(family, fonts.Bold, size, headers[c]) + pad
		for _, r := range rows {
			if cw := fonts.StringWidth(family, fonts.Regular, size, r[c]) + pad; cw > w {
				w = cw
			}
		}
		widths[c] = w
	}
	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > available && total > 0 {
		scale := available / total
		for c := range widths {
			widths[c] *= scale
		}
	}

	return tableLayout{
		headers:    headers,
		alignments: alignments,
		rows:       rows,
		colWidths:  widths,
		rowHeight:  size * 1.8,
	}
}

// tableRowChunk is one header or data row, wrapped to its final column
// widths, ready to be placed as an independent unit by paginate so a table
// can split across a page boundary row by row.
type tableRowChunk struct {
	cells      [][]string
	colWidths  []float64
	alignments []element.Alignment
	header     bool
	bold       bool
	gray       float64
	size       float64
	height     float64
}

// tableChunks wraps every cell of t to its column's final width and returns
// one chunk per row, header first, per §4.8's cell-wrapping rule.
func tableChunks(t tableLayout, family fonts.Family, size float64) []tableRowChunk {
	chunk := func(row []string, header bool) tableRowChunk {
		style := fonts.Regular
		if header {
			style = fonts.Bold
		}
		cells := make([][]string, len(row))
		maxLines := 1
		for c, cell := range row {
			w := t.colWidths[c] - 6
			lines := wrapText(cell, family, style, size, w)
			if len(lines) == 0 {
				lines = []string{""}
			}
			cells[c] = lines
			if len(lines) > maxLines {
				maxLines = len(lines)
			}
		}
		gray := 0.0
		if !header {
			gray = 0.1
		}
		return tableRowChunk{
			cells:      cells,
			colWidths:  t.colWidths,
			alignments: t.alignments,
			header:     header,
			bold:       header,
			gray:       gray,
			size:       size,
			height:     float64(maxLines)*size*1.2 + size*0.6,
		}
	}

	out := make([]tableRowChunk, 0, 1+len(t.rows))
	out = append(out, chunk(t.headers, true))
	for _, r := range t.rows {
		out = append(out, chunk(r, false))
	}
	return out
}

// padRow extends a ragged row with empty trailing cells so every row in
// the table carries the same column count as the widest row.
func padRow(row []string, cols int) []string {
	if len(row) >= cols {
		return row
	}
	out := make([]string, cols)
	copy(out, row)
	return out
}
