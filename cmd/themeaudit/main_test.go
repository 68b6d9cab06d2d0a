package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"themeaudit/internal/store"
	"themeaudit/internal/store/storetest"
)

var sinkEnv = []string{
	"THEMEAUDIT_CONFIG", "REDIS_URL", "MEILI_URL", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"THEMEAUDIT_REPORTS_REPO", "SMTP_HOST", "SMTP_FROM", "THEMEAUDIT_NOTIFY_TO",
}

// seedConsultation creates a consultation with two free-text questions; the
// first has one duplicate group whose earliest mapping was never audited.
func seedConsultation(t *testing.T) (store.Consultation, store.ThemeMapping) {
	t.Helper()
	db, dsn := storetest.OpenDSN(t)
	t.Setenv("THEMEAUDIT_DB_DRIVER", store.DriverSQLite)
	t.Setenv("DATABASE_URL", dsn)
	for _, key := range sinkEnv {
		t.Setenv(key, "")
	}

	f := storetest.NewFixture(t, db)
	consultation := f.Consultation("Energy bills")
	_, part := f.FreeTextQuestion(consultation.ID, 1)
	f.FreeTextQuestion(consultation.ID, 2)

	respondent := f.Respondent(consultation.ID, 42)
	answer := f.Answer(part.ID, respondent)
	theme := f.Theme("Cost of living", "A")
	first := f.Mapping(answer, theme.ID, storetest.MappingOptions{Stance: "POSITIVE"})
	f.History(first.ID, store.HistoryAddition)
	f.CleanMapping(answer, theme.ID)
	return consultation, first
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&cli{logger: zap.NewNop()})
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestRunPrintsDiagnosticsAndFlags(t *testing.T) {
	_, first := seedConsultation(t)

	output, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, output)
	}
	for _, want := range []string{
		"Consultation: Energy bills",
		"Question 1",
		"Theme finder ID: 42",
		"Count: 2",
		"Theme mapping user audited: false",
		first.ID + " (not_user_audited)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "Question 2") {
		t.Errorf("last question should be skipped by default\n%s", output)
	}
}

func TestRootDefaultsToRun(t *testing.T) {
	seedConsultation(t)

	output, err := execute(t, "--include-last-question")
	if err != nil {
		t.Fatalf("root error = %v", err)
	}
	if !strings.Contains(output, "Question 2") {
		t.Fatalf("expected the last question with --include-last-question\n%s", output)
	}
}

func TestRunWritesReportIntoDirectory(t *testing.T) {
	seedConsultation(t)
	dir := t.TempDir()

	output, err := execute(t, "run", "--format", "json", "--output", dir)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one json report, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), `"reason": "not_user_audited"`) {
		t.Fatalf("unexpected report:\n%s", data)
	}
	if !strings.Contains(output, "Report written to "+matches[0]) {
		t.Fatalf("missing report path in output\n%s", output)
	}
}

func TestRunRequiredSinkNotConfigured(t *testing.T) {
	seedConsultation(t)

	_, err := execute(t, "run", "--publish", "snapshot")
	if !errors.Is(err, errSinkNotConfigured) {
		t.Fatalf("expected errSinkNotConfigured, got %v", err)
	}
}

func TestRunSnapshotsAndComparesRuns(t *testing.T) {
	seedConsultation(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	first, err := execute(t, "run", "--publish", "snapshot")
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if !strings.Contains(first, "First recorded run for this consultation") {
		t.Fatalf("unexpected first run output\n%s", first)
	}

	second, err := execute(t, "run", "--publish", "snapshot")
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if !strings.Contains(second, "No change since run run_") {
		t.Fatalf("unexpected second run output\n%s", second)
	}

	history, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if strings.Count(history, "run_") != 2 {
		t.Fatalf("expected two runs in history\n%s", history)
	}
}

func TestRunCommitsReportRepository(t *testing.T) {
	seedConsultation(t)
	t.Setenv("THEMEAUDIT_REPORTS_REPO", filepath.Join(t.TempDir(), "reports"))

	if _, err := execute(t, "run", "--publish", "repo"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	history, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(history, "Audit Energy bills: 1 concerning theme mappings") {
		t.Fatalf("expected commit in history\n%s", history)
	}
}

func TestUnavailableOptionalSinkIsLogged(t *testing.T) {
	seedConsultation(t)
	t.Setenv("MEILI_URL", "http://127.0.0.1:1")

	if _, err := execute(t, "run"); err != nil {
		t.Fatalf("optional sink failure should not fail the run: %v", err)
	}
	if _, err := execute(t, "run", "--publish", "index"); err == nil {
		t.Fatal("expected required index failure")
	}
}

func TestQuestionCommand(t *testing.T) {
	consultation, first := seedConsultation(t)

	output, err := execute(t, "question", "1", "--consultation", consultation.ID)
	if err != nil {
		t.Fatalf("question error = %v", err)
	}
	if !strings.Contains(output, "["+first.ID+" (not_user_audited)]") {
		t.Fatalf("unexpected output\n%s", output)
	}

	output, err = execute(t, "question", "2")
	if err != nil {
		t.Fatalf("question 2 error = %v", err)
	}
	if !strings.Contains(output, "[]") {
		t.Fatalf("expected empty list for question 2\n%s", output)
	}

	if _, err := execute(t, "question", "zero"); err == nil {
		t.Fatal("expected invalid number error")
	}
	if _, err := execute(t, "question", "9"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("THEMEAUDIT_DB_DRIVER", store.DriverSQLite)
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "fresh.db"))
	t.Setenv("THEMEAUDIT_MIGRATIONS_DIR", storetest.MigrationsDir(t))

	output, err := execute(t, "migrate")
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if !strings.Contains(output, "Applied 0001_consultations_schema.up.sql") {
		t.Fatalf("unexpected output\n%s", output)
	}

	output, err = execute(t, "migrate")
	if err != nil {
		t.Fatalf("second migrate error = %v", err)
	}
	if !strings.Contains(output, "No migrations to apply") {
		t.Fatalf("unexpected output\n%s", output)
	}
}

func TestMigrateRefusesApplicationDatabase(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	db, err := store.Open(context.Background(), store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE consultations_consultation (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create application table: %v", err)
	}
	db.Close()

	t.Setenv("THEMEAUDIT_DB_DRIVER", store.DriverSQLite)
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("THEMEAUDIT_MIGRATIONS_DIR", storetest.MigrationsDir(t))

	if _, err := execute(t, "migrate"); !errors.Is(err, store.ErrUnmanagedSchema) {
		t.Fatalf("migrate error = %v, want ErrUnmanagedSchema", err)
	}
}

func TestCommandsRequiringConfiguration(t *testing.T) {
	for _, key := range sinkEnv {
		t.Setenv(key, "")
	}
	if _, err := execute(t, "search", "cost"); err == nil {
		t.Fatal("expected search to require MEILI_URL")
	}
	if _, err := execute(t, "history"); err == nil {
		t.Fatal("expected history to require a sink")
	}
}

func TestConfigFileFlag(t *testing.T) {
	seedConsultation(t)
	dsn := os.Getenv("DATABASE_URL")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("THEMEAUDIT_DB_DRIVER", "")

	path := filepath.Join(t.TempDir(), "themeaudit.yaml")
	contents := "database:\n  driver: sqlite\n  url: " + dsn + "\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := execute(t, "--config", path, "run")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(output, "Consultation: Energy bills") {
		t.Fatalf("unexpected output\n%s", output)
	}

	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "run"); err == nil {
		t.Fatal("expected missing config file error")
	}
}

func TestParseSinks(t *testing.T) {
	required, err := parseSinks([]string{" Snapshot", "repo", ""})
	if err != nil {
		t.Fatalf("parseSinks() error = %v", err)
	}
	if !required[sinkSnapshot] || !required[sinkRepo] || len(required) != 2 {
		t.Fatalf("unexpected sinks: %v", required)
	}
	if _, err := parseSinks([]string{"slack"}); err == nil {
		t.Fatal("expected unknown sink error")
	}
}

func TestRunExitCode(t *testing.T) {
	t.Setenv("THEMEAUDIT_LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"run", "--format", "docx"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}
}
