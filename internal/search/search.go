// Package search indexes concerning theme mappings in Meilisearch so they
// can be triaged by theme, respondent or reason.
package search

import (
	"strings"

	"themeaudit/internal/report"
)

// ConcernRecord is the data we index for one flag.
type ConcernRecord struct {
	ID                      string `json:"id"`
	RunID                   string `json:"runId"`
	ConsultationID          string `json:"consultationId"`
	ConsultationTitle       string `json:"consultationTitle"`
	QuestionNumber          int    `json:"questionNumber"`
	MappingID               string `json:"mappingId"`
	Reason                  string `json:"reason"`
	AnswerID                string `json:"answerId"`
	ThemefinderRespondentID *int64 `json:"themefinderRespondentId"`
	ThemeID                 string `json:"themeId"`
	ThemeName               string `json:"themeName"`
	ThemeKey                string `json:"themeKey"`
	Stance                  string `json:"stance"`
	UserAudited             bool   `json:"userAudited"`
}

// Query describes a triage search.
type Query struct {
	Text           string
	ConsultationID string
	Reason         string
	Limit          int
	Offset         int
}

// Result is a single search hit.
type Result struct {
	ID             string `json:"id"`
	MappingID      string `json:"mappingId"`
	Reason         string `json:"reason"`
	ThemeName      string `json:"themeName"`
	QuestionNumber int    `json:"questionNumber"`
	ConsultationID string `json:"consultationId"`
	Snippet        string `json:"snippet"`
}

// Records converts a run's flags into index documents. A mapping flagged
// for the same reason twice yields one record.
func Records(doc report.Document) []ConcernRecord {
	seen := make(map[string]struct{})
	records := make([]ConcernRecord, 0)
	for _, flag := range doc.Flags() {
		id := recordID(doc.ConsultationID, flag.MappingID, flag.Reason)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, ConcernRecord{
			ID:                      id,
			RunID:                   doc.RunID,
			ConsultationID:          doc.ConsultationID,
			ConsultationTitle:       doc.ConsultationTitle,
			QuestionNumber:          flag.QuestionNumber,
			MappingID:               flag.MappingID,
			Reason:                  flag.Reason,
			AnswerID:                flag.AnswerID,
			ThemefinderRespondentID: flag.ThemefinderRespondentID,
			ThemeID:                 flag.ThemeID,
			ThemeName:               flag.ThemeName,
			ThemeKey:                flag.ThemeKey,
			Stance:                  flag.Stance,
			UserAudited:             flag.UserAudited,
		})
	}
	return records
}

// recordID builds a Meilisearch document id, which only allows
// alphanumerics, hyphens and underscores.
func recordID(parts ...string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString("__")
		}
		for _, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				b.WriteRune(r)
			default:
				b.WriteRune('-')
			}
		}
	}
	return b.String()
}
