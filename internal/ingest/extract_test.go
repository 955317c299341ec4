package ingest

import (
	"errors"
	"testing"
)

func TestExtractText_Plain(t *testing.T) {
	got, err := ExtractText("notes.txt", "text/plain", []byte("  Line one  \r\n\r\n\r\nLine two\n"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "Line one\n\nLine two" {
		t.Errorf("ExtractText = %q", got)
	}
}

func TestExtractText_HTML(t *testing.T) {
	page := `<html><head><title>Ignored</title><style>p{color:red}</style></head>
<body><h1>Hello</h1><p>World <b>bold</b></p><script>var secret = 1;</script></body></html>`
	for _, tc := range []struct{ name, ct string }{
		{"page.bin", "text/html; charset=utf-8"},
		{"page.html", ""},
	} {
		got, err := ExtractText(tc.name, tc.ct, []byte(page))
		if err != nil {
			t.Fatalf("ExtractText(%s): %v", tc.name, err)
		}
		if got != "Hello\n\nWorld bold" {
			t.Errorf("ExtractText(%s) = %q", tc.name, got)
		}
	}
}

func TestExtractText_Binary(t *testing.T) {
	_, err := ExtractText("blob.bin", "application/octet-stream", []byte{0xff, 0xfe, 0x00, 0x81})
	if !errors.Is(err, ErrUnsupportedContent) {
		t.Errorf("err = %v, want ErrUnsupportedContent", err)
	}
}

func TestExtractText_InvalidPDF(t *testing.T) {
	if _, err := ExtractText("cv.pdf", "", []byte("%PDF-1.4 truncated")); err == nil {
		t.Error("expected error for a broken PDF")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name, ct string
		data     string
		want     string
	}{
		{"a.pdf", "", "", "pdf"},
		{"a", "application/pdf", "", "pdf"},
		{"a", "", "%PDF-1.7", "pdf"},
		{"a.HTM", "", "", "html"},
		{"a.md", "text/markdown", "# hi", "text"},
	}
	for _, tt := range tests {
		if got := kind(tt.name, tt.ct, []byte(tt.data)); got != tt.want {
			t.Errorf("kind(%q, %q) = %q, want %q", tt.name, tt.ct, got, tt.want)
		}
	}
}
