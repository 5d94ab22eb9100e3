package git

import (
	stderrors "errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when no repository encloses the content root.
var ErrNotRepository = git.ErrRepositoryNotExists

// History answers last-modified queries for files inside one repository.
// It is safe for concurrent use.
type History struct {
	repo     *git.Repository
	worktree string

	mu    sync.Mutex
	cache map[string]time.Time
}

// OpenHistory opens the repository enclosing dir, searching parent directories.
func OpenHistory(dir string) (*History, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, classifyGitError(err, "open", dir)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, classifyGitError(err, "open", abs)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, classifyGitError(err, "worktree", abs)
	}
	return &History{
		repo:     repo,
		worktree: wt.Filesystem.Root(),
		cache:    make(map[string]time.Time),
	}, nil
}

// Head returns the commit hash HEAD points at, or "" for an empty repository.
func (h *History) Head() string {
	ref, err := h.repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// LastModified returns the committer time of the newest commit touching the
// file at absPath. ok is false for files that were never committed.
func (h *History) LastModified(absPath string) (time.Time, bool, error) {
	rel, err := filepath.Rel(h.worktree, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return time.Time{}, false, classifyGitError(stderrors.New("file is outside the repository"), "log", absPath)
	}
	rel = filepath.ToSlash(rel)

	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.cache[rel]; ok {
		return t, !t.IsZero(), nil
	}

	iter, err := h.repo.Log(&git.LogOptions{FileName: &rel, Order: git.LogOrderCommitterTime})
	if err != nil {
		// An empty repository has no HEAD to walk from.
		h.cache[rel] = time.Time{}
		return time.Time{}, false, nil //nolint:nilerr // no history is not a failure
	}
	defer iter.Close()

	commit, err := iter.Next()
	if stderrors.Is(err, io.EOF) {
		h.cache[rel] = time.Time{}
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, classifyGitError(err, "log", rel)
	}
	when := committed(commit)
	h.cache[rel] = when
	return when, true, nil
}

func committed(c *object.Commit) time.Time {
	return c.Committer.When.UTC()
}
