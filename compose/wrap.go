package compose

import (
	"strings"

	"github.com/yingkitw/pdfrs/fonts"
)

// wrapText greedily breaks text into lines no wider than maxWidth when set
// in (family, style) at size, breaking on whitespace. A single word wider
// than maxWidth is placed on its own line rather than split mid-word.
func wrapText(text string, family fonts.Family, style fonts.Style, size, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var cur []string
	curWidth := 0.0
	spaceWidth := fonts.StringWidth(family, style, size, " ")

	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
			cur = nil
			curWidth = 0
		}
	}
	for _, w := range words {
		ww := fonts.StringWidth(family, style, size, w)
		extra := ww
		if len(cur) > 0 {
			extra += spaceWidth
		}
		if len(cur) > 0 && curWidth+extra > maxWidth {
			flush()
			extra = ww
		}
		cur = append(cur, w)
		curWidth += extra
	}
	flush()
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
