// Package reportrepo keeps rendered audit reports in a local git repository
// so that successive runs can be diffed with ordinary git tooling.
package reportrepo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const branchName = "main"

// ErrNoChanges is returned by Commit when the file already holds data.
var ErrNoChanges = errors.New("report unchanged")

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Service struct {
	dir    string
	author string
	mu     sync.Mutex
	now    func() time.Time
}

func New(dir string) *Service {
	return &Service{dir: dir, author: "Theme Audit", now: time.Now}
}

// Commit writes data to <consultationID>/<filename> and commits it on main.
// The repository is created on first use.
func (s *Service) Commit(consultationID, filename string, data []byte, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.openOrInit()
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	rel := RelativePath(consultationID, filename)
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", rel, err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return CommitInfo{}, fmt.Errorf("git add %s: %w", rel, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read status: %w", err)
	}
	if status.IsClean() {
		return CommitInfo{}, ErrNoChanges
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author,
			Email: fmt.Sprintf("%s@themeaudit.local", sanitizeEmail(s.author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit %s: %w", rel, err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists commits on main, newest first. A missing or empty
// repository has no history.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ReadFile returns a report file as it was at the given commit.
func (s *Service) ReadFile(hash, consultationID, filename string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit object: %w", err)
	}
	rel := RelativePath(consultationID, filename)
	file, err := commitObj.File(rel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s contents: %w", rel, err)
	}
	return []byte(contents), nil
}

// RelativePath is the slash separated location of a report in the repository.
func RelativePath(consultationID, filename string) string {
	clean := func(part, fallback string) string {
		part = strings.Trim(strings.ReplaceAll(strings.TrimSpace(part), "/", "-"), ".")
		if part == "" {
			return fallback
		}
		return part
	}
	return path.Join(clean(consultationID, "consultation"), clean(filename, "report"))
}

func (s *Service) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	// The first commit creates main through HEAD.
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "audit"
	}
	return string(runes)
}
