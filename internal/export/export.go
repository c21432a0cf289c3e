// Package export serializes a final transcript to the supported document
// formats. Pure output; nothing here feeds back into the transcript.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

type Format string

const (
	FormatText Format = "txt"
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "txt", "text":
		return FormatText, nil
	case "word", "doc":
		return FormatWord, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (use txt, word, or pdf)", s)
	}
}

// Write serializes text to path in the given format. The suggested base
// name already carries no extension; Write appends the right one and
// returns the final path.
func Write(text string, basePath string, format Format) (string, error) {
	switch format {
	case FormatText:
		path := basePath + ".txt"
		return path, writeText(text, path)
	case FormatWord:
		path := basePath + ".doc"
		return path, writeWord(text, path)
	case FormatPDF:
		path := basePath + ".pdf"
		return path, writePDF(text, path)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func writeText(text, path string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}

// writeWord emits a Word-compatible HTML document: UTF-8, right-to-left
// body, newlines as breaks. Word opens it as a regular .doc.
const wordHeader = `<html xmlns:o='urn:schemas-microsoft-com:office:office'
xmlns:w='urn:schemas-microsoft-com:office:word'
xmlns='http://www.w3.org/TR/REC-html40'>
<head><meta charset='utf-8'><title>Export Word</title>
<style>
body { font-family: 'Arial', sans-serif; direction: rtl; }
</style>
</head><body>`

const wordFooter = "</body></html>"

func writeWord(text, path string) error {
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(text)
	body := strings.ReplaceAll(escaped, "\n", "<br>")
	return os.WriteFile(path, []byte(wordHeader+body+wordFooter), 0o644)
}

// writePDF produces an A4 page with the transcript wrapped and
// right-aligned.
func writePDF(text, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.CellFormat(0, 10, tr("Transcript"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	width, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.MultiCell(width-left-right, 8, tr(text), "", "R", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
