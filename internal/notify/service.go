// Package notify emails a summary of concerning theme mappings over SMTP.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"themeaudit/internal/report"
	"themeaudit/internal/store"
)

var ErrNotConfigured = errors.New("email not configured")

// ErrNoRecipients is returned when a summary has nobody to go to.
var ErrNoRecipients = errors.New("no notification recipients")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendSummary mails the flagged mappings of a run. Runs without flags send
// nothing and report false.
func (s *Service) SendSummary(to []string, doc report.Document) (bool, error) {
	if !s.IsConfigured() {
		return false, ErrNotConfigured
	}
	if len(to) == 0 {
		return false, ErrNoRecipients
	}
	flags := doc.Flags()
	if len(flags) == 0 {
		return false, nil
	}

	html, err := renderSummary(summaryData{Document: doc, Flags: flags})
	if err != nil {
		return false, fmt.Errorf("render summary template: %w", err)
	}
	if err := s.sendHTML(to, Subject(doc), html); err != nil {
		return false, fmt.Errorf("send summary: %w", err)
	}
	return true, nil
}

// Subject names the consultation and the number of flagged mappings.
func Subject(doc report.Document) string {
	title := doc.ConsultationTitle
	if title == "" {
		title = doc.ConsultationID
	}
	noun := "mappings"
	if doc.FlaggedMappings == 1 {
		noun = "mapping"
	}
	return fmt.Sprintf("[Theme Audit] %s: %d concerning theme %s", title, doc.FlaggedMappings, noun)
}

func (s *Service) sendHTML(to []string, subject, htmlBody string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-themeaudit"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", subject)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type summaryData struct {
	Document report.Document
	Flags    []report.Flag
}

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"respondent": store.FormatThemefinderID,
}).Parse(summaryEmailTemplate))

func renderSummary(data summaryData) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Theme Audit: {{.Document.ConsultationTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 720px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        table { border-collapse: collapse; width: 100%; font-size: 13px; }
        th, td { border: 1px solid #ddd; padding: 6px 8px; text-align: left; }
        th { background: #f5f5f5; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Document.ConsultationTitle}}</h1>
    </div>

    <p>Run <code>{{.Document.RunID}}</code> checked {{len .Document.Questions}} of {{.Document.QuestionCount}} questions and found {{.Document.DuplicateGroups}} duplicate theme mapping groups.</p>
    <p>{{.Document.FlaggedMappings}} theme mappings need review:</p>

    <table>
        <tr><th>Question</th><th>Mapping</th><th>Reason</th><th>Respondent</th><th>Theme</th></tr>
        {{range .Flags}}
        <tr><td>{{.QuestionNumber}}</td><td>{{.MappingID}}</td><td>{{.Reason}}</td><td>{{respondent .ThemefinderRespondentID}}</td><td>{{.ThemeName}}{{if .ThemeKey}} ({{.ThemeKey}}){{end}}</td></tr>
        {{end}}
    </table>

    <div class="footer">
        <p>Generated {{.Document.GeneratedAt.Format "2006-01-02 15:04 MST"}} by themeaudit.</p>
    </div>
</body>
</html>`
