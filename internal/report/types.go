// Package report renders duplicate audit results as text, JSON, Markdown,
// HTML and PDF.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// Format represents the report output format
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// Result contains rendered report bytes
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates an unknown output format was requested.
	ErrUnsupportedFormat = errors.New("unsupported report format")
	// ErrPDFDependencyMissing indicates PDF rendering runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("report pdf dependency missing")
)

func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatText, FormatJSON, FormatMarkdown, FormatHTML, FormatPDF:
		return format, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

func (f Format) extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatMarkdown:
		return ".md"
	default:
		return "." + string(f)
	}
}

func (f Format) mimeType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}
