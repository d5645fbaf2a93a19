package compose

// PageLayout describes one page's dimensions and margins, in points.
type PageLayout struct {
	Width, Height                                      float64
	MarginTop, MarginBottom, MarginLeft, MarginRight float64
}

// Portrait returns the US-Letter portrait layout (612x792) with 72pt
// margins on all sides, the generator's default.
func Portrait() PageLayout {
	return PageLayout{Width: 612, Height: 792, MarginTop: 72, MarginBottom: 72, MarginLeft: 72, MarginRight: 72}
}

// Landscape returns the US-Letter landscape layout (792x612) with 72pt
// margins on all sides.
func Landscape() PageLayout {
	return PageLayout{Width: 792, Height: 612, MarginTop: 72, MarginBottom: 72, MarginLeft: 72, MarginRight: 72}
}

func (l PageLayout) columnWidth() float64 {
	return l.Width - l.MarginLeft - l.MarginRight
}
