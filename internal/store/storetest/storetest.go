// Package storetest builds throwaway SQLite consultation databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"themeaudit/internal/store"
)

// MigrationsDir returns the repository's db/migrations directory.
func MigrationsDir(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolve storetest source path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "migrations")
}

// Open returns a migrated SQLite database that is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, _ := OpenDSN(t)
	return db
}

// OpenDSN is Open that also returns the data source name, for tests that
// reconnect through configuration.
func OpenDSN(t testing.TB) (*sql.DB, string) {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "consultations.db")
	db, err := store.Open(ctx, store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := store.ApplyMigrations(ctx, db, MigrationsDir(t)); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db, dsn
}

// Fixture inserts consultation rows with sequential ids and a clock that
// advances one minute per insert, so insertion order is creation order.
type Fixture struct {
	t     testing.TB
	db    *sql.DB
	seq   int
	clock time.Time
}

func NewFixture(t testing.TB, db *sql.DB) *Fixture {
	return &Fixture{
		t:     t,
		db:    db,
		clock: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}

// MappingOptions controls the columns of an inserted theme mapping.
type MappingOptions struct {
	Stance      string
	UserAudited bool
	// CreatedAt overrides the fixture clock when set.
	CreatedAt time.Time
}

func (f *Fixture) Consultation(title string) store.Consultation {
	item := store.Consultation{ID: f.nextID("consultation"), Title: title, Slug: f.nextID("slug"), CreatedAt: f.tick()}
	f.exec(`INSERT INTO consultations_consultation (id, title, slug, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Title, item.Slug, item.CreatedAt)
	return item
}

func (f *Fixture) Question(consultationID string, number int) store.Question {
	item := store.Question{ID: f.nextID("question"), ConsultationID: consultationID, Number: number, Text: fmt.Sprintf("Question %d?", number)}
	f.exec(`INSERT INTO consultations_question (id, consultation_id, number, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.ConsultationID, item.Number, item.Text, f.tick())
	return item
}

func (f *Fixture) QuestionPart(questionID, partType string) store.QuestionPart {
	item := store.QuestionPart{ID: f.nextID("part"), QuestionID: questionID, Type: partType, Number: 1}
	f.exec(`INSERT INTO consultations_questionpart (id, question_id, type, number, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.QuestionID, item.Type, item.Number, f.tick())
	return item
}

// FreeTextQuestion inserts a question with one free-text part.
func (f *Fixture) FreeTextQuestion(consultationID string, number int) (store.Question, store.QuestionPart) {
	question := f.Question(consultationID, number)
	return question, f.QuestionPart(question.ID, store.QuestionTypeFreeText)
}

func (f *Fixture) Respondent(consultationID string, themefinderID int64) string {
	id := f.nextID("respondent")
	f.exec(`INSERT INTO consultations_respondent (id, consultation_id, themefinder_respondent_id, created_at) VALUES (?, ?, ?, ?)`,
		id, consultationID, themefinderID, f.tick())
	return id
}

// RespondentWithoutThemefinderID inserts a respondent that was never
// imported from themefinder.
func (f *Fixture) RespondentWithoutThemefinderID(consultationID string) string {
	id := f.nextID("respondent")
	f.exec(`INSERT INTO consultations_respondent (id, consultation_id, themefinder_respondent_id, created_at) VALUES (?, ?, NULL, ?)`,
		id, consultationID, f.tick())
	return id
}

func (f *Fixture) Answer(questionPartID, respondentID string) string {
	id := f.nextID("answer")
	f.exec(`INSERT INTO consultations_answer (id, question_part_id, respondent_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, questionPartID, respondentID, "free text answer", f.tick())
	return id
}

func (f *Fixture) Theme(name, key string) store.Theme {
	item := store.Theme{ID: f.nextID("theme"), Name: name, Key: key}
	f.exec(`INSERT INTO consultations_theme (id, name, key, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Name, item.Key, f.tick())
	return item
}

func (f *Fixture) Mapping(answerID, themeID string, opts MappingOptions) store.ThemeMapping {
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = f.tick()
	}
	item := store.ThemeMapping{
		ID:          f.nextID("mapping"),
		AnswerID:    answerID,
		ThemeID:     themeID,
		Stance:      opts.Stance,
		UserAudited: opts.UserAudited,
		CreatedAt:   createdAt,
	}
	var stance any
	if opts.Stance != "" {
		stance = opts.Stance
	}
	f.exec(`INSERT INTO consultations_thememapping (id, answer_id, theme_id, stance, user_audited, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.AnswerID, item.ThemeID, stance, item.UserAudited, item.CreatedAt)
	return item
}

// History appends one audit-trail row for a mapping.
func (f *Fixture) History(mappingID, historyType string) {
	f.seq++
	f.exec(`INSERT INTO consultations_historicalthememapping (history_id, id, history_date, history_type) VALUES (?, ?, ?, ?)`,
		f.seq, mappingID, f.tick(), historyType)
}

// CleanMapping inserts an audited mapping with a stance and one addition entry.
func (f *Fixture) CleanMapping(answerID, themeID string) store.ThemeMapping {
	item := f.Mapping(answerID, themeID, MappingOptions{Stance: "POSITIVE", UserAudited: true})
	f.History(item.ID, store.HistoryAddition)
	return item
}

func (f *Fixture) exec(query string, args ...any) {
	f.t.Helper()
	if _, err := f.db.Exec(query, args...); err != nil {
		f.t.Fatalf("fixture insert: %v", err)
	}
}

func (f *Fixture) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func (f *Fixture) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}
