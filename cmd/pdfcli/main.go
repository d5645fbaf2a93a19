// Command pdfcli is the command-line front-end collaborator of §6.3: it
// parses arguments, reads/writes the files the core operates on as byte
// buffers, and dispatches to the pdfrs package. File I/O and argument
// parsing live here deliberately; the core package never touches a
// filesystem path.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = runCreate(args)
	case "md-to-pdf":
		err = runMdToPdf(args, false)
	case "md-to-pdf-meta":
		err = runMdToPdf(args, true)
	case "pdf-to-md":
		err = runPdfToMd(args)
	case "extract":
		err = runExtract(args)
	case "add-image":
		err = runAddImage(args)
	case "merge":
		err = runMerge(args)
	case "split":
		err = runSplit(args)
	case "rotate":
		err = runRotate(args)
	case "reorder":
		err = runReorder(args)
	case "watermark":
		err = runWatermark(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "pdfcli: unknown subcommand %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfcli: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pdfcli <command> [flags]

commands:
  create                           write a minimal one-page PDF
  md-to-pdf SRC.md -o OUT.pdf      render Markdown to PDF
  md-to-pdf-meta SRC.md -o OUT.pdf --title T --author A --subject S --keywords K
  pdf-to-md SRC.pdf                extract text from a PDF, as plain text
  extract SRC.pdf                  alias for pdf-to-md
  add-image SRC.pdf IMG -o OUT.pdf --x --y --width --height
  merge IN... -o OUT.pdf           concatenate pages of every input
  split SRC.pdf -o OUT.pdf --start N --end N
  rotate SRC.pdf -o OUT.pdf --angle {0,90,180,270}
  reorder SRC.pdf -o OUT.pdf <order, e.g. 3,1,2>
  watermark SRC.pdf TEXT -o OUT.pdf [--opacity 0.3] [--size 48]`)
}
