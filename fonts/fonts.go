// Package fonts supplies the standard-14 Type 1 font metrics and the
// WinAnsi/MacRoman single-byte encodings the core references by name; no
// font program is embedded or subset, per the toolkit's font non-goal.
package fonts

// Family is one of the three standard font families the renderer may use.
type Family int

const (
	Helvetica Family = iota
	TimesRoman
	Courier
)

// Style selects among the four standard variants of a family.
type Style int

const (
	Regular Style = iota
	Bold
	Italic
	BoldItalic
)

// BaseFontName returns the canonical PDF /BaseFont name for (family, style),
// e.g. Helvetica+Bold -> "Helvetica-Bold", TimesRoman+Italic -> "Times-Italic".
func BaseFontName(f Family, s Style) string {
	switch f {
	case Helvetica:
		switch s {
		case Regular:
			return "Helvetica"
		case Bold:
			return "Helvetica-Bold"
		case Italic:
			return "Helvetica-Oblique"
		case BoldItalic:
			return "Helvetica-BoldOblique"
		}
	case TimesRoman:
		switch s {
		case Regular:
			return "Times-Roman"
		case Bold:
			return "Times-Bold"
		case Italic:
			return "Times-Italic"
		case BoldItalic:
			return "Times-BoldItalic"
		}
	case Courier:
		switch s {
		case Regular:
			return "Courier"
		case Bold:
			return "Courier-Bold"
		case Italic:
			return "Courier-Oblique"
		case BoldItalic:
			return "Courier-BoldOblique"
		}
	}
	return "Helvetica"
}

// averageAdvance holds the average glyph advance width at size 1, as a
// fraction of the em (0.6 = 600 text space units), per family+style; a
// figure times the point size gives points. Courier is monospace so its
// figure is exact rather than an average.
var averageAdvance = map[string]float64{
	"Helvetica":             0.518,
	"Helvetica-Bold":        0.534,
	"Helvetica-Oblique":     0.518,
	"Helvetica-BoldOblique": 0.534,
	"Times-Roman":           0.478,
	"Times-Bold":            0.497,
	"Times-Italic":          0.459,
	"Times-BoldItalic":      0.476,
	"Courier":               0.600,
	"Courier-Bold":          0.600,
	"Courier-Oblique":       0.600,
	"Courier-BoldOblique":   0.600,
}

// AdvanceWidth returns the approximate width, in points, of a run of n
// characters set in (family, style) at the given point size.
func AdvanceWidth(f Family, s Style, size float64, n int) float64 {
	name := BaseFontName(f, s)
	avg, ok := averageAdvance[name]
	if !ok {
		avg = averageAdvance["Helvetica"]
	}
	return avg * size * float64(n)
}

// StringWidth sums per-rune advance, approximating narrow/wide glyphs with
// the family's flat average; Courier is exact since it is monospace.
func StringWidth(f Family, s Style, size float64, text string) float64 {
	return AdvanceWidth(f, s, size, len([]rune(text)))
}

// IsStandard14 reports whether name is one of the 14 standard Type 1 names
// the renderer and text extractor recognize.
func IsStandard14(name string) bool {
	for _, n := range []string{
		"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
		"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
		"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
		"Symbol", "ZapfDingbats",
	} {
		if n == name {
			return true
		}
	}
	return false
}
