package writer

import (
	"github.com/yingkitw/pdfrs/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF16 PDFVersion = "1.6"
	PDF17 PDFVersion = "1.7"
)

// ContentFilter selects the stream filter applied to generated content
// streams (page content, not arbitrary embedded data).
type ContentFilter int

const (
	FilterNone ContentFilter = iota
	FilterFlate
	FilterASCIIHex
	FilterASCII85
)

// Config controls how a Document is serialized to bytes.
type Config struct {
	Version       PDFVersion
	ContentFilter ContentFilter
	Incremental   bool
	Deterministic bool
	XRefStreams   bool
	ObjectStreams bool
}

// Writer serializes a raw.Document to PDF file bytes.
type Writer interface {
	Write(ctx Context, doc *raw.Document, w WriterAt, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

type Interceptor interface {
	BeforeWrite(ctx Context, obj raw.Object) error
	AfterWrite(ctx Context, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}

func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

type WriterAt interface {
	Write(p []byte) (n int, err error)
}

type Context interface{ Done() <-chan struct{} }
