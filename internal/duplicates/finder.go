package duplicates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"themeaudit/internal/store"
)

// DataStore is the read access the finder needs.
type DataStore interface {
	LatestConsultation(ctx context.Context) (store.Consultation, error)
	GetConsultation(ctx context.Context, consultationID string) (store.Consultation, error)
	CountQuestions(ctx context.Context, consultationID string) (int, error)
	GetQuestion(ctx context.Context, consultationID string, number int) (store.Question, error)
	GetFreeTextPart(ctx context.Context, questionID string) (store.QuestionPart, error)
	ListDuplicateGroups(ctx context.Context, questionPartID string) ([]store.DuplicateGroup, error)
	GetAnswer(ctx context.Context, answerID string) (store.Answer, error)
	GetTheme(ctx context.Context, themeID string) (store.Theme, error)
	ListThemeMappings(ctx context.Context, answerID, themeID string) ([]store.ThemeMapping, error)
	ListThemeMappingHistory(ctx context.Context, mappingID string) ([]store.HistoryEntry, error)
}

type Options struct {
	// ConsultationID audits a specific consultation instead of the latest one.
	ConsultationID string
	// IncludeLastQuestion checks questions 1..N instead of 1..N-1.
	IncludeLastQuestion bool
	RunID               string
}

// Finder runs the duplicate analysis and prints its diagnostics to out.
type Finder struct {
	store  DataStore
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time
}

func New(dataStore DataStore, out io.Writer, logger *zap.Logger) *Finder {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{store: dataStore, out: out, logger: logger, now: time.Now}
}

// LatestConsultation returns the most recently created consultation.
func (f *Finder) LatestConsultation(ctx context.Context) (store.Consultation, error) {
	consultation, err := f.store.LatestConsultation(ctx)
	if err != nil {
		return store.Consultation{}, fmt.Errorf("get latest consultation: %w", err)
	}
	return consultation, nil
}

// FindConcerning returns the concerning mappings among the duplicates of one
// question. The list may name the same mapping more than once.
func (f *Finder) FindConcerning(ctx context.Context, consultation store.Consultation, questionNumber int) ([]Flag, error) {
	result, err := f.InspectQuestion(ctx, consultation, questionNumber)
	if err != nil {
		return nil, err
	}
	return result.Flags, nil
}

// InspectQuestion is FindConcerning with the duplicate groups kept.
func (f *Finder) InspectQuestion(ctx context.Context, consultation store.Consultation, questionNumber int) (QuestionResult, error) {
	question, err := f.store.GetQuestion(ctx, consultation.ID, questionNumber)
	if err != nil {
		return QuestionResult{}, fmt.Errorf("question %d: %w", questionNumber, err)
	}
	part, err := f.store.GetFreeTextPart(ctx, question.ID)
	if err != nil {
		return QuestionResult{}, fmt.Errorf("question %d: %w", questionNumber, err)
	}
	duplicates, err := f.store.ListDuplicateGroups(ctx, part.ID)
	if err != nil {
		return QuestionResult{}, fmt.Errorf("question %d: %w", questionNumber, err)
	}

	result := QuestionResult{
		Number:     questionNumber,
		QuestionID: question.ID,
		Groups:     make([]Group, 0, len(duplicates)),
		Flags:      make([]Flag, 0),
	}
	for _, duplicate := range duplicates {
		group, flags, err := f.inspectGroup(ctx, duplicate)
		if err != nil {
			return QuestionResult{}, fmt.Errorf("question %d: %w", questionNumber, err)
		}
		result.Groups = append(result.Groups, group)
		result.Flags = append(result.Flags, flags...)
	}

	f.logger.Debug("inspected question",
		zap.Int("question", questionNumber),
		zap.Int("duplicate_groups", len(result.Groups)),
		zap.Int("flags", len(result.Flags)))
	return result, nil
}

func (f *Finder) inspectGroup(ctx context.Context, duplicate store.DuplicateGroup) (Group, []Flag, error) {
	fmt.Fprintln(f.out, "-----------------")
	answer, err := f.store.GetAnswer(ctx, duplicate.AnswerID)
	if err != nil {
		return Group{}, nil, err
	}
	theme, err := f.store.GetTheme(ctx, duplicate.ThemeID)
	if err != nil {
		return Group{}, nil, err
	}
	fmt.Fprintf(f.out, "Theme finder ID: %s\n", store.FormatThemefinderID(answer.ThemefinderRespondentID))
	fmt.Fprintf(f.out, "Answer: %s\n", duplicate.AnswerID)
	fmt.Fprintf(f.out, "Theme: %s, Theme name: %s, Theme key: %s\n", duplicate.ThemeID, theme.Name, theme.Key)
	fmt.Fprintf(f.out, "Count: %d\n", duplicate.Count)

	mappings, err := f.store.ListThemeMappings(ctx, duplicate.AnswerID, duplicate.ThemeID)
	if err != nil {
		return Group{}, nil, err
	}
	group := Group{Answer: answer, Theme: theme, Count: duplicate.Count, Mappings: make([]MappingDetail, 0, len(mappings))}
	if len(mappings) == 0 {
		// rows vanished between the grouping query and this one
		return group, nil, nil
	}

	var flags []Flag
	first := mappings[0]
	if !first.UserAudited {
		flags = append(flags, Flag{Mapping: first, Reason: ReasonNotUserAudited})
	}
	if first.Stance == "" {
		flags = append(flags, Flag{Mapping: first, Reason: ReasonMissingStance})
	}

	for _, mapping := range mappings {
		fmt.Fprintf(f.out, "Theme mapping ID: %s\n", mapping.ID)
		fmt.Fprintf(f.out, "Theme mapping user audited: %t\n", mapping.UserAudited)

		history, err := f.store.ListThemeMappingHistory(ctx, mapping.ID)
		if err != nil {
			return Group{}, nil, err
		}
		flags = append(flags, historyFlags(mapping, history)...)
		group.Mappings = append(group.Mappings, MappingDetail{Mapping: mapping, History: history})
	}
	return group, flags, nil
}

func historyFlags(mapping store.ThemeMapping, history []store.HistoryEntry) []Flag {
	var flags []Flag
	if len(history) > 1 {
		flags = append(flags, Flag{Mapping: mapping, Reason: ReasonMultipleHistory})
	}
	for _, entry := range history {
		if entry.HistoryType != store.HistoryAddition {
			flags = append(flags, Flag{Mapping: mapping, Reason: ReasonNonAdditionHistory})
			break
		}
	}
	return flags
}

// QuestionNumbers lists the question numbers a run checks for a consultation
// with total questions. The last question is skipped unless includeLast.
func QuestionNumbers(total int, includeLast bool) []int {
	last := total - 1
	if includeLast {
		last = total
	}
	numbers := make([]int, 0)
	for number := 1; number <= last; number++ {
		numbers = append(numbers, number)
	}
	return numbers
}

// Run audits a whole consultation, the latest one unless opts names another.
func (f *Finder) Run(ctx context.Context, opts Options) (Report, error) {
	var consultation store.Consultation
	var err error
	if opts.ConsultationID != "" {
		consultation, err = f.store.GetConsultation(ctx, opts.ConsultationID)
		if err != nil {
			return Report{}, fmt.Errorf("get consultation: %w", err)
		}
	} else {
		consultation, err = f.LatestConsultation(ctx)
		if err != nil {
			return Report{}, err
		}
	}
	fmt.Fprintf(f.out, "Consultation: %s\n", consultation.Title)

	total, err := f.store.CountQuestions(ctx, consultation.ID)
	if err != nil {
		return Report{}, err
	}
	numbers := QuestionNumbers(total, opts.IncludeLastQuestion)
	f.logger.Info("auditing consultation",
		zap.String("consultation", consultation.ID),
		zap.Int("questions", total),
		zap.Int("checked", len(numbers)))

	report := Report{
		RunID:         opts.RunID,
		Consultation:  consultation,
		QuestionCount: total,
		Questions:     make([]QuestionResult, 0, len(numbers)),
	}
	for _, number := range numbers {
		fmt.Fprintln(f.out, "=================")
		fmt.Fprintf(f.out, "Question %d\n", number)
		result, err := f.InspectQuestion(ctx, consultation, number)
		if err != nil {
			return Report{}, err
		}
		fmt.Fprintln(f.out, "concerning theme mappings")
		fmt.Fprintln(f.out, FormatFlags(result.Flags))
		report.Questions = append(report.Questions, result)
	}
	report.GeneratedAt = f.now().UTC()
	return report, nil
}

// FormatFlags renders a concerning list on one line.
func FormatFlags(flags []Flag) string {
	items := make([]string, 0, len(flags))
	for _, flag := range flags {
		items = append(items, fmt.Sprintf("%s (%s)", flag.Mapping.ID, flag.Reason))
	}
	return "[" + strings.Join(items, ", ") + "]"
}
