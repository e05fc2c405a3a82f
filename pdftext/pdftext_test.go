package pdftext

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtract_MultiPageInOrder(t *testing.T) {
	// WHAT: A two-page PDF yields both pages' text, first page first.
	// WHY: Page order must survive concatenation; summaries of shuffled
	// text are useless.
	raw := buildTextPDF("Alpha page one content", "Omega page two content")

	doc, err := Extract(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Pages != 2 {
		t.Errorf("pages: got %d, want 2", doc.Pages)
	}
	first := strings.Index(doc.Text, "Alpha")
	second := strings.Index(doc.Text, "Omega")
	if first < 0 || second < 0 {
		t.Fatalf("missing page text: %q", doc.Text)
	}
	if first > second {
		t.Errorf("page order inverted: %q", doc.Text)
	}
	if doc.Title == "" {
		t.Error("expected best-effort title from first line")
	}
}

func TestExtract_CorruptBytes(t *testing.T) {
	// WHAT: Garbage input fails with KindCorrupt, not a panic or empty doc.
	// WHY: Corrupt documents must be reported distinctly.
	_, err := Extract([]byte("definitely not a pdf"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want ParseError", err)
	}
	if perr.Kind != KindCorrupt {
		t.Errorf("kind: got %v, want corrupt", perr.Kind)
	}
}

func TestExtract_ImageOnlyIsEmptyContent(t *testing.T) {
	// WHAT: A PDF with an image XObject and no text layer fails with KindEmpty.
	// WHY: Scanned-image-only documents are reported, never passed off as an
	// empty success.
	_, err := Extract(buildImageOnlyPDF())
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want ParseError", err)
	}
	if perr.Kind != KindEmpty {
		t.Errorf("kind: got %v, want empty content", perr.Kind)
	}
}

func TestExtractFile_SizeCap(t *testing.T) {
	// WHAT: Files over the 50 MB cap are rejected before parsing.
	// WHY: The cap bounds memory; a sparse-huge file must not be slurped.
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxFileSize + 1); err != nil {
		f.Close()
		t.Skip("filesystem does not support sparse truncate")
	}
	f.Close()

	if _, err := ExtractFile(path); err == nil || !strings.Contains(err.Error(), "limit") {
		t.Errorf("got %v, want size limit error", err)
	}
}

func TestExtractFile_RoundTrip(t *testing.T) {
	// WHAT: ExtractFile reads a fixture from disk and delegates to Extract.
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, buildTextPDF("Hello from disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("extract file: %v", err)
	}
	if !strings.Contains(doc.Text, "Hello from disk") {
		t.Errorf("text: got %q", doc.Text)
	}
}

func TestExtractRemote(t *testing.T) {
	// WHAT: ExtractRemote downloads bytes then delegates to Extract; non-2xx
	// responses fail with the HTTP status.
	// WHY: arXiv references resolve to remote PDF URLs fetched through here.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper.pdf":
			w.Write(buildTextPDF("Remote paper body"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	doc, err := ExtractRemote(context.Background(), srv.URL+"/paper.pdf", nil)
	if err != nil {
		t.Fatalf("extract remote: %v", err)
	}
	if !strings.Contains(doc.Text, "Remote paper body") {
		t.Errorf("text: got %q", doc.Text)
	}

	if _, err := ExtractRemote(context.Background(), srv.URL+"/missing.pdf", nil); err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("got %v, want HTTP 404 error", err)
	}
}

func TestCleanText(t *testing.T) {
	// WHAT: Control characters and form feeds are trimmed; line structure kept.
	got := cleanText("first line\n\fsecond\tline\x00 end\n\n\n")
	if strings.ContainsAny(got, "\f\x00\t") {
		t.Errorf("control characters survived: %q", got)
	}
	if !strings.Contains(got, "first line") || !strings.Contains(got, "second line end") {
		t.Errorf("content mangled: %q", got)
	}
}

func TestStreamEscapedParens(t *testing.T) {
	// WHAT: A literal containing \) keeps its full content; the escaped
	// paren must not terminate the string match early.
	stream := []byte("BT\n(Results \\(n=42\\) follow) Tj\nET\n")
	got := extractTextFromStream(stream)
	if got != "Results (n=42) follow" {
		t.Errorf("extractTextFromStream = %q, want full literal with parens", got)
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct{ in, want string }{
		{`plain`, "plain"},
		{`with \(parens\)`, "with (parens)"},
		{`octal\040space`, "octal space"},
		{`back\\slash`, `back\slash`},
	}
	for _, tt := range tests {
		if got := decodePDFString([]byte(tt.in)); got != tt.want {
			t.Errorf("decode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// buildTextPDF assembles a minimal valid PDF with one page per argument,
// each carrying a single Tj text operation.
func buildTextPDF(pageTexts ...string) []byte {
	n := len(pageTexts)
	// Objects: 1 catalog, 2 pages, then per page [page, content], then font.
	fontObj := 3 + 2*n
	total := fontObj + 1

	var b strings.Builder
	offsets := make([]int, total)
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n)

	for i, text := range pageTexts {
		pageNr := 3 + 2*i
		contentNr := pageNr + 1

		escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
		stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

		offsets[pageNr] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			pageNr, contentNr, fontObj)

		offsets[contentNr] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentNr, len(stream), stream)
	}

	offsets[fontObj] = b.Len()
	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj)

	writeXref(&b, offsets)
	return []byte(b.String())
}

func buildImageOnlyPDF() []byte {
	imgData := "\xff\xd8\xff\xe0"
	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"

	var b strings.Builder
	offsets := make([]int, 6)
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(imgData), imgData)

	offsets[5] = b.Len()
	fmt.Fprintf(&b, "5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(drawStream), drawStream)

	writeXref(&b, offsets)
	return []byte(b.String())
}

func writeXref(b *strings.Builder, offsets []int) {
	xrefOffset := b.Len()
	fmt.Fprintf(b, "xref\n0 %d\n", len(offsets))
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xrefOffset)
}
