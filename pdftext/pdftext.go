// Package pdftext extracts plain text from PDF documents using pdfcpu
// for structure-aware parsing. Text is pulled page by page from content
// streams and concatenated in page order; control characters and
// form-feed artifacts from page boundaries are trimmed.
//
// Failures are classified: encrypted documents, unparsable documents,
// and documents with no embedded text layer (scanned-image-only PDFs)
// each surface a distinct ParseError kind instead of a degenerate
// empty success.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrorKind classifies a PDF extraction failure.
type ErrorKind int

const (
	KindCorrupt ErrorKind = iota
	KindEncrypted
	KindEmpty
)

func (k ErrorKind) String() string {
	switch k {
	case KindEncrypted:
		return "encrypted"
	case KindEmpty:
		return "empty content"
	default:
		return "corrupt"
	}
}

// ParseError is a classified PDF extraction failure.
type ParseError struct {
	Kind  ErrorKind
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdftext: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("pdftext: %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Doc is the text content extracted from one PDF.
type Doc struct {
	// Title is a best-effort guess: the first non-empty line.
	Title string
	Text  string
	Pages int
}

// Extract parses PDF bytes and returns the concatenated page text.
func Extract(data []byte) (*Doc, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		if isEncryptedErr(err) {
			return nil, &ParseError{Kind: KindEncrypted, Cause: err}
		}
		return nil, &ParseError{Kind: KindCorrupt, Cause: err}
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if text := extractPageText(ctx, pageNr); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		cause := fmt.Errorf("no embedded text layer in %d page(s)", ctx.PageCount)
		if hasImageStreams(ctx) {
			cause = fmt.Errorf("no embedded text layer in %d page(s); document contains image streams (likely scanned)", ctx.PageCount)
		}
		return nil, &ParseError{Kind: KindEmpty, Cause: cause}
	}

	text := strings.Join(pages, "\n\n")
	return &Doc{
		Title: firstLine(text),
		Text:  text,
		Pages: ctx.PageCount,
	}, nil
}

// extractPageText extracts text from a single page's content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// hasImageStreams checks whether the PDF carries image XObjects,
// distinguishing "scanned images, no text" from "genuinely blank".
func hasImageStreams(ctx *model.Context) bool {
	if ctx.Optimize == nil {
		return false
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
			return true
		}
	}
	return false
}

// isEncryptedErr matches pdfcpu's password/encryption failures.
func isEncryptedErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 200 {
				return line[:200]
			}
			return line
		}
	}
	return ""
}
