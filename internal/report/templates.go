package report

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"themeaudit/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcMap = map[string]any{
	"join":       strings.Join,
	"respondent": store.FormatThemefinderID,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}

var (
	htmlTemplate     = htmltemplate.Must(htmltemplate.New("report.html").Funcs(funcMap).ParseFS(templateFS, "templates/report.html"))
	markdownTemplate = texttemplate.Must(texttemplate.New("report.md").Funcs(funcMap).Parse(markdownSource))
)

const markdownSource = `# Duplicate theme mappings: {{.ConsultationTitle}}

- Run: {{.RunID}}
- Generated: {{formatDate .GeneratedAt "2006-01-02 15:04 MST"}}
- Questions checked: {{len .Questions}} of {{.QuestionCount}}
- Duplicate groups: {{.DuplicateGroups}}
- Flagged mappings: {{.FlaggedMappings}}
{{range .Questions}}
## Question {{.Number}}
{{if .DuplicateGroups}}
| Respondent | Answer | Theme | Count |
|---|---|---|---|
{{range .DuplicateGroups}}| {{respondent .ThemefinderRespondentID}} | {{.AnswerID}} | {{.ThemeName}} ({{.ThemeKey}}) | {{.Count}} |
{{end}}{{end}}
{{if .Flags}}| Mapping | Reason | Theme | Stance | Audited |
|---|---|---|---|---|
{{range .Flags}}| {{.MappingID}} | {{.Reason}} | {{.ThemeName}} | {{.Stance}} | {{.UserAudited}} |
{{end}}{{else}}No concerning theme mappings.
{{end}}{{end}}`

func renderHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderMarkdown(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
