package pdfrs

import (
	"strings"
	"testing"
	"time"

	"github.com/yingkitw/pdfrs/element"
	"github.com/yingkitw/pdfrs/ops"
)

func TestParseMarkdownProducesElements(t *testing.T) {
	elements, err := ParseMarkdown("# Title\n\nSome body text.\n")
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if len(elements) == 0 {
		t.Fatal("expected at least one element")
	}
	heading, ok := elements[0].(element.Heading)
	if !ok {
		t.Fatalf("first element is %T, want element.Heading", elements[0])
	}
	if heading.Level != 1 || heading.Text != "Title" {
		t.Errorf("heading = %+v, want Level=1 Text=%q", heading, "Title")
	}
}

func TestGenerateThenParseThenExtractRoundTrips(t *testing.T) {
	elements := []element.Element{
		element.Heading{Level: 1, Text: "Report"},
		element.Paragraph{Text: "Hello, world."},
	}
	data, err := GeneratePDFBytes(elements, GenerateOptions{Layout: Portrait(), FontFamily: Helvetica, FontSize: 11})
	if err != nil {
		t.Fatalf("GeneratePDFBytes: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty PDF bytes")
	}

	doc, err := ParsePDF(data)
	if err != nil {
		t.Fatalf("ParsePDF: %v", err)
	}

	text, err := ExtractText(doc)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "Hello, world.") {
		t.Errorf("extracted text %q does not contain original paragraph", text)
	}
}

func TestValidatePDFBytesReportsCleanDocument(t *testing.T) {
	elements := []element.Element{element.Paragraph{Text: "valid doc"}}
	data, err := GeneratePDFBytes(elements, GenerateOptions{})
	if err != nil {
		t.Fatalf("GeneratePDFBytes: %v", err)
	}
	report := ValidatePDFBytes(data)
	if !report.Valid {
		t.Errorf("expected a valid report, got errors: %v", report.Errors)
	}
	if report.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", report.PageCount)
	}
}

func TestCreatePDFWithMetadataStampsDates(t *testing.T) {
	elements := []element.Element{element.Paragraph{Text: "dated"}}
	opts := GenerateOptions{Title: "Quarterly Report", Author: "Finance"}
	now := time.Date(2026, 8, 6, 9, 0, 0, 0, time.UTC)
	data, err := CreatePDFWithMetadata(elements, opts, now)
	if err != nil {
		t.Fatalf("CreatePDFWithMetadata: %v", err)
	}
	doc, err := ParsePDF(data)
	if err != nil {
		t.Fatalf("ParsePDF: %v", err)
	}
	if doc.Metadata.Title != "Quarterly Report" {
		t.Errorf("Metadata.Title = %q, want %q", doc.Metadata.Title, "Quarterly Report")
	}
}

func TestMergeSplitRotateWatermarkPipeline(t *testing.T) {
	dataA, err := GeneratePDFBytes([]element.Element{element.Paragraph{Text: "doc a"}}, GenerateOptions{})
	if err != nil {
		t.Fatalf("GeneratePDFBytes a: %v", err)
	}
	dataB, err := GeneratePDFBytes([]element.Element{element.Paragraph{Text: "doc b"}}, GenerateOptions{})
	if err != nil {
		t.Fatalf("GeneratePDFBytes b: %v", err)
	}
	docA, err := ParsePDF(dataA)
	if err != nil {
		t.Fatalf("ParsePDF a: %v", err)
	}
	docB, err := ParsePDF(dataB)
	if err != nil {
		t.Fatalf("ParsePDF b: %v", err)
	}

	mergedBytes, err := MergePDFs([]*PdfDocument{docA, docB})
	if err != nil {
		t.Fatalf("MergePDFs: %v", err)
	}
	merged, err := ParsePDF(mergedBytes)
	if err != nil {
		t.Fatalf("ParsePDF merged: %v", err)
	}

	rotatedBytes, err := RotatePDF(merged, 90)
	if err != nil {
		t.Fatalf("RotatePDF: %v", err)
	}
	rotated, err := ParsePDF(rotatedBytes)
	if err != nil {
		t.Fatalf("ParsePDF rotated: %v", err)
	}

	watermarkedBytes, err := WatermarkPDF(rotated, "DRAFT", 36, 0.25)
	if err != nil {
		t.Fatalf("WatermarkPDF: %v", err)
	}
	if len(watermarkedBytes) == 0 {
		t.Fatal("expected non-empty watermarked bytes")
	}
}

func TestCreatePDFWithAnnotationsRejectsOutOfRangePage(t *testing.T) {
	elements := []element.Element{element.Paragraph{Text: "single page"}}
	_, err := CreatePDFWithAnnotations(elements, GenerateOptions{}, []AnnotationSpec{
		{Page: 5, Kind: ops.AnnotationText, Rect: [4]float64{10, 10, 50, 30}, Contents: "note"},
	})
	if err == nil {
		t.Fatal("expected an error for an out-of-range annotation page")
	}
}
