package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yingkitw/pdfrs"
	"github.com/yingkitw/pdfrs/element"
)

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	out := fs.String("o", "out.pdf", "output file")
	title := fs.String("title", "", "document title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	elements := []element.Element{
		element.Heading{Level: 1, Text: "Untitled Document"},
		element.EmptyLine{},
	}
	opts := pdfrs.GenerateOptions{Layout: pdfrs.Portrait(), FontFamily: pdfrs.Helvetica, FontSize: 11, Title: *title}
	data, err := pdfrs.GeneratePDFBytes(elements, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func runMdToPdf(args []string, withMeta bool) error {
	fs := flag.NewFlagSet("md-to-pdf", flag.ExitOnError)
	out := fs.String("o", "out.pdf", "output file")
	landscape := fs.Bool("landscape", false, "use landscape layout")
	fontName := fs.String("font", "Helvetica", "base font family (Helvetica, Times-Roman, Courier)")
	fontSize := fs.Float64("font-size", 11, "base font size")
	title := fs.String("title", "", "document title")
	author := fs.String("author", "", "document author")
	subject := fs.String("subject", "", "document subject")
	keywords := fs.String("keywords", "", "comma-separated keywords")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("md-to-pdf: missing source Markdown file")
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	elements, err := pdfrs.ParseMarkdown(string(src))
	if err != nil {
		return err
	}
	layout := pdfrs.Portrait()
	if *landscape {
		layout = pdfrs.Landscape()
	}
	opts := pdfrs.GenerateOptions{
		Layout:     layout,
		FontFamily: parseFontFamily(*fontName),
		FontSize:   *fontSize,
		Title:      *title,
		Author:     *author,
		Subject:    *subject,
		Keywords:   splitCSV(*keywords),
	}

	var data []byte
	if withMeta {
		data, err = pdfrs.CreatePDFWithMetadata(elements, opts, time.Now())
	} else {
		data, err = pdfrs.GeneratePDFBytes(elements, opts)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func parseFontFamily(name string) pdfrs.FontFamily {
	switch strings.ToLower(name) {
	case "times-roman", "times", "timesroman":
		return pdfrs.TimesRoman
	case "courier":
		return pdfrs.Courier
	default:
		return pdfrs.Helvetica
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runPdfToMd(args []string) error {
	fs := flag.NewFlagSet("pdf-to-md", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("pdf-to-md: missing source PDF file")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(data)
	if err != nil {
		return err
	}
	text, err := pdfrs.ExtractText(doc)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runExtract(args []string) error { return runPdfToMd(args) }

func runAddImage(args []string) error {
	fs := flag.NewFlagSet("add-image", flag.ExitOnError)
	out := fs.String("o", "out.pdf", "output file")
	fs.Float64("x", 0, "x position (unused: placement follows document flow)")
	fs.Float64("y", 0, "y position (unused: placement follows document flow)")
	width := fs.Float64("width", 0, "image width hint")
	height := fs.Float64("height", 0, "image height hint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("add-image: usage: add-image SRC.pdf IMG -o OUT.pdf")
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	img, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(src)
	if err != nil {
		return err
	}
	text, err := pdfrs.ExtractText(doc)
	if err != nil {
		return err
	}
	elements := []element.Element{element.Paragraph{Text: text}, element.Image{Data: img, Width: *width, Height: *height}}
	data, err := pdfrs.GeneratePDFBytes(elements, pdfrs.GenerateOptions{})
	if err != nil {
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	out := fs.String("o", "merged.pdf", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("merge: need at least one input PDF")
	}
	var docs []*pdfrs.PdfDocument
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := pdfrs.ParsePDF(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	merged, err := pdfrs.MergePDFs(docs)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, merged, 0o644)
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	out := fs.String("o", "split.pdf", "output file")
	start := fs.Int("start", 1, "first page, 1-based inclusive")
	end := fs.Int("end", 1, "last page, 1-based inclusive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("split: missing source PDF file")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(data)
	if err != nil {
		return err
	}
	result, err := pdfrs.SplitPDF(doc, *start, *end)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, result, 0o644)
}

func runRotate(args []string) error {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	out := fs.String("o", "rotated.pdf", "output file")
	angle := fs.Int("angle", 90, "rotation angle: 0, 90, 180, or 270")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("rotate: missing source PDF file")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(data)
	if err != nil {
		return err
	}
	result, err := pdfrs.RotatePDF(doc, *angle)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, result, 0o644)
}

func runReorder(args []string) error {
	fs := flag.NewFlagSet("reorder", flag.ExitOnError)
	out := fs.String("o", "reordered.pdf", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("reorder: usage: reorder SRC.pdf <order, e.g. 3,1,2> -o OUT.pdf")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	perm, err := parseOrder(fs.Arg(1))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(data)
	if err != nil {
		return err
	}
	result, err := pdfrs.ReorderPages(doc, perm)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, result, 0o644)
}

func parseOrder(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid page index %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func runWatermark(args []string) error {
	fs := flag.NewFlagSet("watermark", flag.ExitOnError)
	out := fs.String("o", "watermarked.pdf", "output file")
	opacity := fs.Float64("opacity", 0.3, "watermark opacity, 0-1")
	size := fs.Float64("size", 48, "watermark font size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("watermark: usage: watermark SRC.pdf TEXT -o OUT.pdf")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := pdfrs.ParsePDF(data)
	if err != nil {
		return err
	}
	result, err := pdfrs.WatermarkPDF(doc, fs.Arg(1), *size, *opacity)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, result, 0o644)
}
