package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/logger"
)

// ErrUnsupportedFormat is returned for documents that are not PDF, DOCX, HTML
// or plain text.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format is a supported résumé document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEHTML = "text/html"
	MIMEText = "text/plain"
)

var (
	mimeFormats = map[string]Format{
		MIMEPDF:  FormatPDF,
		MIMEDOCX: FormatDOCX,
		MIMEHTML: FormatHTML,
		MIMEText: FormatText,
	}

	extFormats = map[string]Format{
		".pdf":      FormatPDF,
		".docx":     FormatDOCX,
		".html":     FormatHTML,
		".htm":      FormatHTML,
		".txt":      FormatText,
		".text":     FormatText,
		".md":       FormatText,
		".markdown": FormatText,
	}

	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// RawDocument is an uploaded résumé before extraction.
type RawDocument struct {
	Name     string
	Data     []byte
	MIMEType string
}

// Extractor turns résumé documents into plain text.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor.
func New(log *zap.Logger) *Extractor {
	return &Extractor{
		logger: logger.WithFields(log, zap.String("component", "extract")),
	}
}

// DetectFormat resolves the document format from its MIME type, then its file
// extension, then the content itself.
func DetectFormat(doc RawDocument) (Format, error) {
	if mt := strings.TrimSpace(doc.MIMEType); mt != "" && mt != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			mt = parsed
		}
		if format, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return format, nil
		}
	}

	if format, ok := extFormats[strings.ToLower(filepath.Ext(doc.Name))]; ok {
		return format, nil
	}

	if len(doc.Data) > 0 {
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(doc.Data))
		if format, ok := mimeFormats[sniffed]; ok {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Name)
}

// Extract returns the normalized plain text of doc.
func (e *Extractor) Extract(ctx context.Context, doc RawDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, err := DetectFormat(doc)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = e.extractPDF(ctx, doc.Data)
	case FormatDOCX:
		text, err = extractDOCX(doc.Data)
	case FormatHTML:
		text, err = htmltomarkdown.ConvertString(string(doc.Data))
	case FormatText:
		text = decodeText(doc.Data)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}

	text = normalize(text)

	e.logger.Debug("document extracted",
		zap.String("format", string(format)),
		zap.Int("input_bytes", len(doc.Data)),
		zap.Int("text_runes", utf8.RuneCountInString(text)),
	)

	return text, nil
}

// ExtractFile reads path and extracts it. mimeType may be empty.
func (e *Extractor) ExtractFile(ctx context.Context, path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return e.Extract(ctx, RawDocument{Name: filepath.Base(path), Data: data, MIMEType: mimeType})
}

func decodeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ToValidUTF8(s, "\uFFFD")
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n"))
}
