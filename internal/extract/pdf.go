package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

func init() {
	// pdfcpu otherwise writes a config directory under the user's home.
	api.DisableConfigDir()
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// extractPDF checks the document structure with pdfcpu, then decodes the
// shown text page by page. Fonts are decoded through their encodings and
// ToUnicode maps, so CID-keyed fonts come out as readable text.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	pages, err := pdfPageCount(data)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := pageText(r.Page(i))
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	e.logger.Debug("pdf text extracted", zap.Int("pages", pages), zap.Int("pages_with_text", len(texts)))
	return strings.Join(texts, "\n\n"), nil
}

func pdfPageCount(data []byte) (int, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return 0, err
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// pageText lays the glyphs of a page out as lines. The reader panics on
// malformed content streams.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed content: %v", r)
		}
	}()

	if page.V.IsNull() {
		return "", nil
	}
	return layoutGlyphs(page.Content().Text), nil
}

// layoutGlyphs joins positioned glyphs in stream order. A baseline change
// starts a new line; a horizontal gap wider than a fraction of the font size
// becomes a space.
func layoutGlyphs(glyphs []pdf.Text) string {
	var (
		out     strings.Builder
		line    strings.Builder
		started bool
		lastY   float64
		lastEnd float64
		lastX   float64
	)

	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(s)
		}
		line.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}

		size := math.Abs(g.FontSize)
		if size == 0 {
			size = 1
		}

		if started {
			switch {
			case math.Abs(g.Y-lastY) > size/2:
				flush()
			case g.X-lastEnd > size*0.15 || lastX-g.X > size:
				if !strings.HasSuffix(line.String(), " ") {
					line.WriteByte(' ')
				}
			}
		}

		line.WriteString(g.S)
		started = true
		lastY = g.Y
		lastX = g.X
		lastEnd = g.X + g.W
	}
	flush()

	return out.String()
}
