package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLStore reads the consultation tables. It never writes to them.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) LatestConsultation(ctx context.Context) (Consultation, error) {
	var item Consultation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, created_at
		FROM consultations_consultation
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&item.ID, &item.Title, &item.Slug, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Consultation{}, lookupError("consultation", "latest created_at", ErrNotFound)
	}
	if err != nil {
		return Consultation{}, fmt.Errorf("latest consultation: %w", classify(err))
	}
	return item, nil
}

func (s *SQLStore) GetConsultation(ctx context.Context, consultationID string) (Consultation, error) {
	var item Consultation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, created_at
		FROM consultations_consultation
		WHERE id=$1
	`, consultationID).Scan(&item.ID, &item.Title, &item.Slug, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Consultation{}, lookupError("consultation", "id="+consultationID, ErrNotFound)
	}
	if err != nil {
		return Consultation{}, fmt.Errorf("get consultation: %w", classify(err))
	}
	return item, nil
}

func (s *SQLStore) CountQuestions(ctx context.Context, consultationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM consultations_question WHERE consultation_id=$1
	`, consultationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", classify(err))
	}
	return count, nil
}

// GetQuestion returns the single question with the given number.
func (s *SQLStore) GetQuestion(ctx context.Context, consultationID string, number int) (Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, consultation_id, number, text
		FROM consultations_question
		WHERE consultation_id=$1 AND number=$2
		LIMIT 2
	`, consultationID, number)
	if err != nil {
		return Question{}, fmt.Errorf("get question: %w", classify(err))
	}
	defer rows.Close()

	items := make([]Question, 0, 1)
	for rows.Next() {
		var item Question
		if err := rows.Scan(&item.ID, &item.ConsultationID, &item.Number, &item.Text); err != nil {
			return Question{}, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Question{}, fmt.Errorf("iterate questions: %w", err)
	}
	criteria := fmt.Sprintf("consultation=%s number=%d", consultationID, number)
	switch len(items) {
	case 0:
		return Question{}, lookupError("question", criteria, ErrNotFound)
	case 1:
		return items[0], nil
	default:
		return Question{}, lookupError("question", criteria, ErrMultipleFound)
	}
}

// GetFreeTextPart returns the single free-text part of a question. Questions
// with several free-text parts are reported as ErrMultipleFound.
func (s *SQLStore) GetFreeTextPart(ctx context.Context, questionID string) (QuestionPart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, type, number
		FROM consultations_questionpart
		WHERE question_id=$1 AND type=$2
		LIMIT 2
	`, questionID, QuestionTypeFreeText)
	if err != nil {
		return QuestionPart{}, fmt.Errorf("get question part: %w", classify(err))
	}
	defer rows.Close()

	items := make([]QuestionPart, 0, 1)
	for rows.Next() {
		var item QuestionPart
		if err := rows.Scan(&item.ID, &item.QuestionID, &item.Type, &item.Number); err != nil {
			return QuestionPart{}, fmt.Errorf("scan question part: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return QuestionPart{}, fmt.Errorf("iterate question parts: %w", err)
	}
	criteria := fmt.Sprintf("question=%s type=%s", questionID, QuestionTypeFreeText)
	switch len(items) {
	case 0:
		return QuestionPart{}, lookupError("question part", criteria, ErrNotFound)
	case 1:
		return items[0], nil
	default:
		return QuestionPart{}, lookupError("question part", criteria, ErrMultipleFound)
	}
}

// ListDuplicateGroups groups the theme mappings of a question part's answers
// by (answer, theme) and returns the groups with more than one mapping.
func (s *SQLStore) ListDuplicateGroups(ctx context.Context, questionPartID string) ([]DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.answer_id, tm.theme_id, COUNT(tm.id) AS mapping_count
		FROM consultations_thememapping tm
		JOIN consultations_answer a ON a.id = tm.answer_id
		WHERE a.question_part_id=$1
		GROUP BY tm.answer_id, tm.theme_id
		HAVING COUNT(tm.id) > 1
		ORDER BY tm.answer_id, tm.theme_id
	`, questionPartID)
	if err != nil {
		return nil, fmt.Errorf("list duplicate groups: %w", classify(err))
	}
	defer rows.Close()

	items := make([]DuplicateGroup, 0)
	for rows.Next() {
		var item DuplicateGroup
		if err := rows.Scan(&item.AnswerID, &item.ThemeID, &item.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate groups: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetAnswer(ctx context.Context, answerID string) (Answer, error) {
	var item Answer
	var themefinderID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.question_part_id, a.respondent_id, r.themefinder_respondent_id
		FROM consultations_answer a
		JOIN consultations_respondent r ON r.id = a.respondent_id
		WHERE a.id=$1
	`, answerID).Scan(&item.ID, &item.QuestionPartID, &item.RespondentID, &themefinderID)
	if errors.Is(err, sql.ErrNoRows) {
		return Answer{}, lookupError("answer", "id="+answerID, ErrNotFound)
	}
	if err != nil {
		return Answer{}, fmt.Errorf("get answer: %w", classify(err))
	}
	if themefinderID.Valid {
		id := themefinderID.Int64
		item.ThemefinderRespondentID = &id
	}
	return item, nil
}

func (s *SQLStore) GetTheme(ctx context.Context, themeID string) (Theme, error) {
	var item Theme
	var key sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, key FROM consultations_theme WHERE id=$1
	`, themeID).Scan(&item.ID, &item.Name, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return Theme{}, lookupError("theme", "id="+themeID, ErrNotFound)
	}
	if err != nil {
		return Theme{}, fmt.Errorf("get theme: %w", classify(err))
	}
	item.Key = key.String
	return item, nil
}

// ListThemeMappings returns the mappings of one (answer, theme) pair, oldest first.
func (s *SQLStore) ListThemeMappings(ctx context.Context, answerID, themeID string) ([]ThemeMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, answer_id, theme_id, stance, user_audited, created_at
		FROM consultations_thememapping
		WHERE answer_id=$1 AND theme_id=$2
		ORDER BY created_at ASC, id ASC
	`, answerID, themeID)
	if err != nil {
		return nil, fmt.Errorf("list theme mappings: %w", classify(err))
	}
	defer rows.Close()

	items := make([]ThemeMapping, 0)
	for rows.Next() {
		var item ThemeMapping
		var stance sql.NullString
		if err := rows.Scan(&item.ID, &item.AnswerID, &item.ThemeID, &stance, &item.UserAudited, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan theme mapping: %w", err)
		}
		item.Stance = stance.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme mappings: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListThemeMappingHistory(ctx context.Context, mappingID string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT history_id, id, history_type, history_date
		FROM consultations_historicalthememapping
		WHERE id=$1
		ORDER BY history_date ASC, history_id ASC
	`, mappingID)
	if err != nil {
		return nil, fmt.Errorf("list theme mapping history: %w", classify(err))
	}
	defer rows.Close()

	items := make([]HistoryEntry, 0)
	for rows.Next() {
		var item HistoryEntry
		if err := rows.Scan(&item.HistoryID, &item.MappingID, &item.HistoryType, &item.HistoryDate); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}
	return items, nil
}
