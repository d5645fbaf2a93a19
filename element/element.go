// Package element defines the closed set of document elements the page
// composer consumes: the output of the Markdown collaborator, or of a
// library caller building a document directly.
package element

// Alignment is a table column's text alignment, taken from the
// separator row in a Markdown table.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Element is implemented by every variant in the closed set below; it
// carries no behavior, only identity, so the composer can switch on
// concrete type.
type Element interface {
	elementTag()
}

type Heading struct {
	Level int // 1..6
	Text  string
}

type Paragraph struct {
	Text string
}

type UnorderedListItem struct {
	Text  string
	Depth int
}

type OrderedListItem struct {
	Number int
	Text   string
	Depth  int
}

type TaskListItem struct {
	Checked bool
	Text    string
}

type CodeBlock struct {
	Language string
	Code     string
}

type InlineCode struct {
	Code string
}

type TableRow struct {
	Cells       []string
	IsSeparator bool
	Alignments  []Alignment
}

type BlockQuote struct {
	Text  string
	Depth int
}

type DefinitionItem struct {
	Term       string
	Definition string
}

type Footnote struct {
	Label string
	Text  string
}

type Link struct {
	Text string
	URL  string
}

// Image carries either a pre-decoded JPEG byte payload or explicit
// dimensions supplied by the caller; the composer itself never decodes
// image formats beyond what imagefmt can sniff.
type Image struct {
	Alt    string
	Path   string
	Data   []byte
	Width  float64
	Height float64
}

type StyledText struct {
	Text   string
	Bold   bool
	Italic bool
}

type HorizontalRule struct{}

type PageBreak struct{}

type EmptyLine struct{}

func (Heading) elementTag()           {}
func (Paragraph) elementTag()         {}
func (UnorderedListItem) elementTag() {}
func (OrderedListItem) elementTag()   {}
func (TaskListItem) elementTag()      {}
func (CodeBlock) elementTag()         {}
func (InlineCode) elementTag()        {}
func (TableRow) elementTag()          {}
func (BlockQuote) elementTag()        {}
func (DefinitionItem) elementTag()    {}
func (Footnote) elementTag()          {}
func (Link) elementTag()              {}
func (Image) elementTag()             {}
func (StyledText) elementTag()        {}
func (HorizontalRule) elementTag()    {}
func (PageBreak) elementTag()         {}
func (EmptyLine) elementTag()         {}
