package reportrepo

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func TestCommitInitialisesRepoOnMain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	svc := New(dir)

	commit, err := svc.Commit("cons-1", "energy-run_1.md", []byte("# Report\n"), "Audit energy")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" || commit.Message != "Audit energy" || commit.Author != "Theme Audit" {
		t.Fatalf("unexpected commit: %+v", commit)
	}
	if _, err := os.Stat(filepath.Join(dir, "cons-1", "energy-run_1.md")); err != nil {
		t.Fatalf("report file missing: %v", err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.Name() != plumbing.NewBranchReferenceName("main") {
		t.Fatalf("HEAD = %s, want refs/heads/main", head.Name())
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := New(t.TempDir())

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := svc.Commit("cons-1", "report.json", []byte(msg), msg); err != nil {
			t.Fatalf("Commit(%s) error = %v", msg, err)
		}
	}

	history, err := svc.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(history))
	}
	if history[0].Message != "third" || history[2].Message != "first" {
		t.Fatalf("unexpected order: %+v", history)
	}

	limited, err := svc.History(2)
	if err != nil {
		t.Fatalf("History(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(limited))
	}
}

func TestHistoryWithoutRepo(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "missing"))
	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}
}

func TestCommitUnchangedReport(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Commit("cons-1", "report.txt", []byte("same"), "first"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	_, err := svc.Commit("cons-1", "report.txt", []byte("same"), "again")
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
}

func TestReadFileAtCommit(t *testing.T) {
	svc := New(t.TempDir())
	first, err := svc.Commit("cons-1", "report.txt", []byte("v1"), "first")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := svc.Commit("cons-1", "report.txt", []byte("v2"), "second"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, err := svc.ReadFile(first.Hash, "cons-1", "report.txt")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("ReadFile() = %q, want v1", got)
	}
}

func TestConcurrentCommits(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := filepath.Base(t.Name()) + string(rune('a'+i)) + ".txt"
			if _, err := svc.Commit("cons-1", name, []byte{byte('a' + i)}, "concurrent"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Commit() error = %v", err)
	}

	history, err := svc.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 commits, got %d", len(history))
	}
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		consultation, filename, want string
	}{
		{"cons-1", "report.md", "cons-1/report.md"},
		{"", "", "consultation/report"},
		{"a/b", "x/y.md", "a-b/x-y.md"},
	}
	for _, tt := range tests {
		if got := RelativePath(tt.consultation, tt.filename); got != tt.want {
			t.Errorf("RelativePath(%q, %q) = %q, want %q", tt.consultation, tt.filename, got, tt.want)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Theme Audit"); got != "theme.audit" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
	if got := sanitizeEmail("!!"); got != "audit" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
}
