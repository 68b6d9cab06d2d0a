// Package duplicates finds theme mappings recorded more than once for the
// same answer and theme, and flags the ones whose audit metadata looks wrong.
package duplicates

import (
	"time"

	"themeaudit/internal/store"
)

// Reason says why a mapping was flagged.
type Reason string

const (
	ReasonNotUserAudited     Reason = "not_user_audited"
	ReasonMissingStance      Reason = "missing_stance"
	ReasonMultipleHistory    Reason = "multiple_history_entries"
	ReasonNonAdditionHistory Reason = "non_addition_history"
)

// Flag is one entry of the concerning list. A mapping can be flagged more
// than once, once per reason that applies to it.
type Flag struct {
	Mapping store.ThemeMapping
	Reason  Reason
}

// MappingDetail is a mapping of a duplicate group with its history.
type MappingDetail struct {
	Mapping store.ThemeMapping
	History []store.HistoryEntry
}

// Group is one duplicated (answer, theme) pair, mappings oldest first.
type Group struct {
	Answer   store.Answer
	Theme    store.Theme
	Count    int
	Mappings []MappingDetail
}

type QuestionResult struct {
	Number     int
	QuestionID string
	Groups     []Group
	Flags      []Flag
}

// Report is the outcome of a full run over one consultation.
type Report struct {
	RunID         string
	Consultation  store.Consultation
	QuestionCount int
	Questions     []QuestionResult
	GeneratedAt   time.Time
}

// Flags returns every flag of the run in question order.
func (r Report) Flags() []Flag {
	var flags []Flag
	for _, question := range r.Questions {
		flags = append(flags, question.Flags...)
	}
	return flags
}

func (r Report) DuplicateGroupCount() int {
	total := 0
	for _, question := range r.Questions {
		total += len(question.Groups)
	}
	return total
}

// FlaggedMappingCount counts distinct flagged mappings.
func (r Report) FlaggedMappingCount() int {
	seen := make(map[string]struct{})
	for _, flag := range r.Flags() {
		seen[flag.Mapping.ID] = struct{}{}
	}
	return len(seen)
}
