// Package source classifies a raw user-supplied reference into the input
// kinds the pipeline knows how to extract: a generic web page, an arXiv
// document, or a local PDF file.
//
// Classification is deterministic on the shape of the input string; the
// only side effect is a filesystem stat to confirm local PDF paths.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidReference is returned when an input matches none of the
// supported reference shapes.
var ErrInvalidReference = errors.New("source: invalid reference")

// Kind identifies the classified input type.
type Kind int

const (
	KindGenericURL Kind = iota
	KindArxiv
	KindLocalPDF
)

func (k Kind) String() string {
	switch k {
	case KindGenericURL:
		return "url"
	case KindArxiv:
		return "arxiv"
	case KindLocalPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Reference is a classified input with its resolved fetch target.
// For arXiv inputs, Target is the direct-PDF URL, never the abstract
// page. For local PDFs, Target is the absolute path.
type Reference struct {
	Raw    string
	Kind   Kind
	Target string
}

// arxivIDPattern matches bare arXiv IDs: "2301.07041", "arXiv:2301.07041",
// "2301.07041v2".
var arxivIDPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// arxivURLPattern matches abstract, HTML, and PDF arXiv URLs. All three
// resolve to the PDF endpoint.
var arxivURLPattern = regexp.MustCompile(`^https?://(?:www\.)?arxiv\.org/(?:abs|html|pdf)/([^?#]+?)(?:\.pdf)?(?:[?#].*)?$`)

const arxivPDFBase = "https://arxiv.org/pdf/"

// statFunc is swapped by tests to control filesystem existence checks.
var statFunc = os.Stat

// Classify determines the kind of a raw reference and resolves the target
// to fetch. Priority: arXiv shapes, then existing local .pdf paths, then
// HTTP(S) URLs. Anything else fails with ErrInvalidReference.
func Classify(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty input", ErrInvalidReference)
	}

	if m := arxivIDPattern.FindStringSubmatch(trimmed); m != nil {
		return Reference{Raw: raw, Kind: KindArxiv, Target: arxivPDFBase + m[1]}, nil
	}
	if m := arxivURLPattern.FindStringSubmatch(trimmed); m != nil {
		return Reference{Raw: raw, Kind: KindArxiv, Target: arxivPDFBase + m[1]}, nil
	}

	if isLocalPDF(trimmed) {
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: %q: %v", ErrInvalidReference, raw, err)
		}
		return Reference{Raw: raw, Kind: KindLocalPDF, Target: abs}, nil
	}

	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return Reference{Raw: raw, Kind: KindGenericURL, Target: trimmed}, nil
	}

	return Reference{}, fmt.Errorf("%w: %q is not a URL, arXiv ID, or local PDF", ErrInvalidReference, raw)
}

// isLocalPDF reports whether the input is an existing regular file with a
// .pdf extension. URLs never reach the stat: they carry a scheme prefix.
func isLocalPDF(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return false
	}
	if !strings.EqualFold(filepath.Ext(s), ".pdf") {
		return false
	}
	info, err := statFunc(s)
	return err == nil && info.Mode().IsRegular()
}
