package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"themeaudit/internal/duplicates"
	"themeaudit/internal/store"
)

// Render produces the report in the requested format.
func Render(ctx context.Context, run duplicates.Report, format Format) (*Result, error) {
	doc := NewDocument(run)

	var data []byte
	switch format {
	case FormatText:
		data = renderText(doc)
	case FormatJSON:
		encoded, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		data = append(encoded, '\n')
	case FormatMarkdown:
		markdown, err := renderMarkdown(doc)
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		data = []byte(markdown)
	case FormatHTML:
		html, err := renderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		data = []byte(html)
	case FormatPDF:
		html, err := renderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		pdf, err := exportPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		data = pdf
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &Result{
		Data:     data,
		Filename: Filename(doc, format),
		MimeType: format.mimeType(),
	}, nil
}

// Filename builds "<consultation>-<run>.<ext>" from safe characters only.
func Filename(doc Document, format Format) string {
	base := doc.ConsultationSlug
	if base == "" {
		base = doc.ConsultationTitle
	}
	name := sanitizeFilename(base)
	if doc.RunID != "" {
		name += "-" + sanitizeFilename(doc.RunID)
	}
	return name + format.extension()
}

func renderText(doc Document) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Consultation: %s (%s)\n", doc.ConsultationTitle, doc.ConsultationID)
	if doc.RunID != "" {
		fmt.Fprintf(&buf, "Run: %s\n", doc.RunID)
	}
	fmt.Fprintf(&buf, "Questions checked: %d of %d\n", len(doc.Questions), doc.QuestionCount)
	fmt.Fprintf(&buf, "Duplicate groups: %d\n", doc.DuplicateGroups)
	fmt.Fprintf(&buf, "Flagged mappings: %d\n", doc.FlaggedMappings)

	for _, question := range doc.Questions {
		fmt.Fprintf(&buf, "\nQuestion %d: %d duplicate groups, %d flags\n", question.Number, len(question.DuplicateGroups), len(question.Flags))
		if len(question.Flags) == 0 {
			continue
		}
		w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		for _, flag := range question.Flags {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				flag.MappingID,
				flag.Reason,
				strings.TrimSpace(flag.ThemeName+" "+keySuffix(flag.ThemeKey)),
				store.FormatThemefinderID(flag.ThemefinderRespondentID))
		}
		_ = w.Flush()
	}
	return buf.Bytes()
}

func keySuffix(key string) string {
	if key == "" {
		return ""
	}
	return "(" + key + ")"
}
