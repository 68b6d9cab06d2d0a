package report

import (
	"time"

	"themeaudit/internal/duplicates"
)

// Document is the serialisable form of a run, shared by the JSON output,
// the snapshot store and the triage index.
type Document struct {
	RunID             string     `json:"runId"`
	ConsultationID    string     `json:"consultationId"`
	ConsultationTitle string     `json:"consultationTitle"`
	ConsultationSlug  string     `json:"consultationSlug"`
	GeneratedAt       time.Time  `json:"generatedAt"`
	QuestionCount     int        `json:"questionCount"`
	DuplicateGroups   int        `json:"duplicateGroups"`
	FlaggedMappings   int        `json:"flaggedMappings"`
	Questions         []Question `json:"questions"`
}

type Question struct {
	Number          int     `json:"number"`
	QuestionID      string  `json:"questionId"`
	DuplicateGroups []Group `json:"duplicateGroups"`
	Flags           []Flag  `json:"flags"`
}

type Group struct {
	AnswerID                string   `json:"answerId"`
	ThemefinderRespondentID *int64   `json:"themefinderRespondentId"`
	ThemeID                 string   `json:"themeId"`
	ThemeName               string   `json:"themeName"`
	ThemeKey                string   `json:"themeKey"`
	Count                   int      `json:"count"`
	MappingIDs              []string `json:"mappingIds"`
}

type Flag struct {
	MappingID               string    `json:"mappingId"`
	Reason                  string    `json:"reason"`
	QuestionNumber          int       `json:"questionNumber"`
	AnswerID                string    `json:"answerId"`
	ThemefinderRespondentID *int64    `json:"themefinderRespondentId"`
	ThemeID                 string    `json:"themeId"`
	ThemeName               string    `json:"themeName"`
	ThemeKey                string    `json:"themeKey"`
	Stance                  string    `json:"stance"`
	UserAudited             bool      `json:"userAudited"`
	CreatedAt               time.Time `json:"createdAt"`
}

// NewDocument flattens a run into its serialisable form.
func NewDocument(run duplicates.Report) Document {
	doc := Document{
		RunID:             run.RunID,
		ConsultationID:    run.Consultation.ID,
		ConsultationTitle: run.Consultation.Title,
		ConsultationSlug:  run.Consultation.Slug,
		GeneratedAt:       run.GeneratedAt,
		QuestionCount:     run.QuestionCount,
		DuplicateGroups:   run.DuplicateGroupCount(),
		FlaggedMappings:   run.FlaggedMappingCount(),
		Questions:         make([]Question, 0, len(run.Questions)),
	}

	for _, result := range run.Questions {
		question := Question{
			Number:          result.Number,
			QuestionID:      result.QuestionID,
			DuplicateGroups: make([]Group, 0, len(result.Groups)),
			Flags:           make([]Flag, 0, len(result.Flags)),
		}
		byMapping := make(map[string]duplicates.Group)
		for _, group := range result.Groups {
			ids := make([]string, 0, len(group.Mappings))
			for _, detail := range group.Mappings {
				ids = append(ids, detail.Mapping.ID)
				byMapping[detail.Mapping.ID] = group
			}
			question.DuplicateGroups = append(question.DuplicateGroups, Group{
				AnswerID:                group.Answer.ID,
				ThemefinderRespondentID: group.Answer.ThemefinderRespondentID,
				ThemeID:                 group.Theme.ID,
				ThemeName:               group.Theme.Name,
				ThemeKey:                group.Theme.Key,
				Count:                   group.Count,
				MappingIDs:              ids,
			})
		}
		for _, flag := range result.Flags {
			group := byMapping[flag.Mapping.ID]
			question.Flags = append(question.Flags, Flag{
				MappingID:               flag.Mapping.ID,
				Reason:                  string(flag.Reason),
				QuestionNumber:          result.Number,
				AnswerID:                flag.Mapping.AnswerID,
				ThemefinderRespondentID: group.Answer.ThemefinderRespondentID,
				ThemeID:                 flag.Mapping.ThemeID,
				ThemeName:               group.Theme.Name,
				ThemeKey:                group.Theme.Key,
				Stance:                  flag.Mapping.Stance,
				UserAudited:             flag.Mapping.UserAudited,
				CreatedAt:               flag.Mapping.CreatedAt,
			})
		}
		doc.Questions = append(doc.Questions, question)
	}
	return doc
}

// Flags returns every flag of the document in question order.
func (d Document) Flags() []Flag {
	var flags []Flag
	for _, question := range d.Questions {
		flags = append(flags, question.Flags...)
	}
	return flags
}
