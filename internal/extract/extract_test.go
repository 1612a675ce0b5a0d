package extract_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"

	"podforge/internal/extract"
	"podforge/internal/services"
	"podforge/internal/testsupport"
)

func newExtractor(t *testing.T, opts ...extract.Option) *extract.Extractor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return extract.New(cfg, nil, opts...)
}

func TestExtractInlineTextStripsMarkupAndMasksContacts(t *testing.T) {
	e := newExtractor(t)
	text, err := e.Extract(context.Background(), extract.Source{
		Kind: extract.KindText,
		Text: "<p>Call +7 (999) 123-45-67 &amp; write to team@example.com</p>\r\n\r\n\r\n\r\n<b>Second</b>   line",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if strings.Contains(text, "<") || strings.Contains(text, "999") || strings.Contains(text, "example.com") {
		t.Fatalf("markup or personal data leaked: %q", text)
	}
	want := "Call [phone hidden] & write to [contact hidden]\n\nSecond   line"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}
}

func TestExtractDetailedReportsMaskedCounts(t *testing.T) {
	e := newExtractor(t)
	got, err := e.ExtractDetailed(context.Background(), extract.Source{
		Kind: extract.KindText,
		Text: "Reach me at +7 (999) 123-45-67, @newsdesk or desk@example.com.",
	})
	if err != nil {
		t.Fatalf("ExtractDetailed failed: %v", err)
	}
	if got.Phones != 1 || got.Contacts != 2 {
		t.Fatalf("phones=%d contacts=%d, want 1 and 2", got.Phones, got.Contacts)
	}
	if strings.Contains(got.Text, "example.com") {
		t.Fatalf("contact leaked: %q", got.Text)
	}
}

func TestExtractEmptyTextFails(t *testing.T) {
	e := newExtractor(t)
	_, err := e.Extract(context.Background(), extract.Source{Kind: extract.KindText, Text: " <br> \n\t"})
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtractPlainTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("First paragraph.\n\n\n\nSecond paragraph.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err := newExtractor(t).Extract(context.Background(), extract.Source{Kind: extract.KindFile, FilePath: path})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "First paragraph.\n\nSecond paragraph." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractDOCXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText("Opening remarks")
	doc.AddParagraph().AddText("Closing remarks")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	text, err := newExtractor(t).Extract(context.Background(), extract.Source{Kind: extract.KindFile, FilePath: path})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(text, "Opening remarks") || !strings.Contains(text, "Closing remarks") {
		t.Fatalf("unexpected docx text %q", text)
	}
}

func TestExtractRejectsOversizedAndUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(big, []byte(strings.Repeat("a", 2048)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := newExtractor(t, extract.WithMaxBytes(1024))
	if _, err := e.Extract(context.Background(), extract.Source{Kind: extract.KindFile, FilePath: big}); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected size error, got %v", err)
	}

	png := filepath.Join(dir, "image.png")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := newExtractor(t).Extract(context.Background(), extract.Source{Kind: extract.KindFile, FilePath: png})
	if !errors.Is(err, services.ErrExtraction) || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}

	if _, err := newExtractor(t).Extract(context.Background(), extract.Source{Kind: extract.KindFile, FilePath: filepath.Join(dir, "missing.pdf")}); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestExtractURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.UserAgent(), "Mozilla") {
			t.Errorf("expected browser user agent, got %q", r.UserAgent())
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><style>p{}</style><script>var x=1;</script></head>
<body><header>Site header</header><nav>Menu</nav>
<h1>Big news</h1><p>The first <em>paragraph</em>.</p>
<ul><li><p>Nested item</p></li></ul>
<footer>Copyright</footer></body></html>`))
	}))
	defer server.Close()

	text, err := newExtractor(t).Extract(context.Background(), extract.Source{Kind: extract.KindURL, URL: server.URL})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "Big news\n\nThe first paragraph.\n\nNested item" {
		t.Fatalf("unexpected page text %q", text)
	}
}

func TestExtractURLFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := newExtractor(t)
	if _, err := e.Extract(context.Background(), extract.Source{Kind: extract.KindURL, URL: server.URL}); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if _, err := e.Extract(context.Background(), extract.Source{Kind: extract.KindURL, URL: "ftp://example.com/x"}); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected invalid url error, got %v", err)
	}
}

func TestMaskPIICounts(t *testing.T) {
	masked, phones, contacts := extract.MaskPII("ring 8 (912) 345 67 89 or @handle, mail a@b.c")
	if phones != 1 || contacts != 2 {
		t.Fatalf("unexpected counts phones=%d contacts=%d: %q", phones, contacts, masked)
	}
	if strings.Contains(masked, "912") {
		t.Fatalf("phone leaked: %q", masked)
	}
}
