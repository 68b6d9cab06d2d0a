package store

import (
	"strconv"
	"time"
)

const (
	QuestionTypeFreeText        = "free_text"
	QuestionTypeSingleOption    = "single_option"
	QuestionTypeMultipleOptions = "multiple_options"
)

// History types recorded by the application's audit trail.
const (
	HistoryAddition = "+"
	HistoryChange   = "~"
	HistoryDeletion = "-"
)

type Consultation struct {
	ID        string
	Title     string
	Slug      string
	CreatedAt time.Time
}

type Question struct {
	ID             string
	ConsultationID string
	Number         int
	Text           string
}

type QuestionPart struct {
	ID         string
	QuestionID string
	Type       string
	Number     int
}

// Answer carries the respondent's themefinder id, which is nil when the
// respondent was never imported from themefinder.
type Answer struct {
	ID                      string
	QuestionPartID          string
	RespondentID            string
	ThemefinderRespondentID *int64
}

// FormatThemefinderID renders a themefinder respondent id, or None when the
// respondent has none.
func FormatThemefinderID(id *int64) string {
	if id == nil {
		return "None"
	}
	return strconv.FormatInt(*id, 10)
}

type Theme struct {
	ID   string
	Name string
	Key  string
}

type ThemeMapping struct {
	ID          string
	AnswerID    string
	ThemeID     string
	Stance      string
	UserAudited bool
	CreatedAt   time.Time
}

type HistoryEntry struct {
	HistoryID   int64
	MappingID   string
	HistoryType string
	HistoryDate time.Time
}

// DuplicateGroup is an (answer, theme) pair mapped more than once.
type DuplicateGroup struct {
	AnswerID string
	ThemeID  string
	Count    int
}
