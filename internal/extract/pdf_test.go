package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityCMap maps two-byte codes 0x0020-0x007E to the same Unicode code
// points, the way subset fonts of word processors commonly do.
const identityCMap = `begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<0020> <007E> <0020>
endbfrange
endcmap`

func hexUTF16(s string) string {
	out := ""
	for _, r := range s {
		out += fmt.Sprintf("%04X", r)
	}
	return out
}

func TestExtract_PDFIdentityHFont(t *testing.T) {
	content := fmt.Sprintf("BT /F2 11 Tf 72 720 Td <%s> Tj 0 -14 Td <%s> Tj ET",
		hexUTF16("Priya Nair"), hexUTF16("priya.nair@example.com"))

	data := writePDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F2 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type0 /BaseFont /AAAAAA+Calibri /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>",
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /AAAAAA+Calibri /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /DW 500 >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(identityCMap), identityCMap),
	})

	got, err := newTestExtractor(t).Extract(context.Background(), RawDocument{Name: "resume.pdf", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Priya Nair\npriya.nair@example.com", got)
}

func TestExtract_PDFBlankPages(t *testing.T) {
	data := buildPDF(t, "q 1 0 0 1 0 0 cm Q", "BT /F1 12 Tf 72 720 Td (Only page two) Tj ET")

	got, err := newTestExtractor(t).Extract(context.Background(), RawDocument{Name: "resume.pdf", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Only page two", got)
}

func TestExtract_PDFCancelledBetweenPages(t *testing.T) {
	data := buildPDF(t, "BT /F1 12 Tf 72 720 Td (one) Tj ET")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExtractor(t).extractPDF(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLayoutGlyphs(t *testing.T) {
	glyph := func(s string, x, y, w float64) pdf.Text {
		return pdf.Text{FontSize: 10, X: x, Y: y, W: w, S: s}
	}

	tests := []struct {
		name   string
		glyphs []pdf.Text
		want   string
	}{
		{
			name:   "adjacent glyphs stay together",
			glyphs: []pdf.Text{glyph("G", 72, 700, 7), glyph("o", 79, 700, 5)},
			want:   "Go",
		},
		{
			name:   "word gap becomes a space",
			glyphs: []pdf.Text{glyph("a", 72, 700, 5), glyph("b", 80, 700, 5)},
			want:   "a b",
		},
		{
			name:   "baseline change starts a line",
			glyphs: []pdf.Text{glyph("a", 72, 700, 5), glyph("b", 72, 686, 5)},
			want:   "a\nb",
		},
		{
			name:   "explicit spaces are not doubled",
			glyphs: []pdf.Text{glyph("a", 72, 700, 5), glyph(" ", 77, 700, 3), glyph("b", 90, 700, 5)},
			want:   "a b",
		},
		{
			name:   "line breaks and empty glyphs are ignored",
			glyphs: []pdf.Text{glyph("", 0, 0, 0), glyph("a", 72, 700, 5), glyph("\n", 77, 700, 0), glyph("b", 77, 700, 5)},
			want:   "ab",
		},
		{
			name:   "blank lines are dropped",
			glyphs: []pdf.Text{glyph(" ", 72, 700, 3), glyph("a", 72, 680, 5)},
			want:   "a",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layoutGlyphs(tt.glyphs))
		})
	}
}
