// Package vcs keeps the data directory under Git version control, so every
// change to the books is one commit with a meaningful message.
package vcs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

// Repository is a Git repository with thread-safe file operations
type Repository interface {
	// CommitFiles commits with 'message' for files specified by 'paths'. 'prepFiles' is given exclusive access to files during execution
	CommitFiles(prepFiles func() error, message string, paths ...string) error
	// File returns a version-controlled file, capable of writing and committing in one operation
	File(path string) File
}

// Open ensures a Git repo exists at 'path' and returns its Repository
func Open(path string) (Repository, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: false,
	})
	if err == git.ErrRepositoryNotExists {
		repo, err = initRepo(path)
	}
	return &syncRepo{repo: repo}, err
}

type syncRepo struct {
	repo *git.Repository
	mu   sync.Mutex
}

func initRepo(path string) (*git.Repository, error) {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, err
	}
	tree, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := tree.Status()
	if err != nil {
		return nil, err
	}
	added := false
	for file, stat := range status {
		// add any untracked files, excluding hidden and tmp files
		if stat.Worktree == git.Untracked && !strings.HasPrefix(file, ".") && !strings.HasSuffix(file, ".tmp") {
			if _, err := tree.Add(file); err != nil {
				return nil, err
			}
			added = true
		}
	}
	if added {
		if _, err := tree.Commit("Initial commit", &git.CommitOptions{Author: keeperAuthor()}); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func keeperAuthor() *object.Signature {
	return &object.Signature{
		Name: "Keeper",
		When: time.Now(),
	}
}

// CommitFiles resets the repo index, then adds & commits the files at 'paths' with the 'message'
// Gives exclusive lock to 'prepFiles' execution.
func (s *syncRepo) CommitFiles(prepFiles func() error, message string, paths ...string) error {
	if len(paths) == 0 {
		return errors.New("No files to commit")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := prepFiles(); err != nil {
		return err
	}
	tree, err := s.repo.Worktree()
	if err != nil {
		return err
	}
	if _, headErr := s.repo.Head(); headErr != plumbing.ErrReferenceNotFound {
		if headErr != nil {
			return headErr
		}
		// if possible (HEAD exists), unstage all files
		if err := tree.Reset(&git.ResetOptions{}); err != nil {
			return err
		}
	}
	rootPath, err := filepath.Abs(tree.Filesystem.Root())
	if err != nil {
		return err
	}
	for i := range paths {
		abs, err := filepath.Abs(paths[i])
		if err != nil {
			return err
		}
		paths[i], err = filepath.Rel(rootPath, abs)
		if err != nil {
			return err
		}
		if _, err := tree.Add(paths[i]); err != nil {
			return errors.Wrapf(err, "Failed to add %s to the git index", paths[i])
		}
	}
	repoStatus, err := tree.Status()
	if err != nil {
		return err
	}
	shouldCommit := false
	for _, path := range paths {
		status, ok := repoStatus[path]
		if ok && status.Staging != git.Unmodified {
			shouldCommit = true
			break
		}
	}
	if !shouldCommit {
		return nil
	}
	_, err = tree.Commit(message, &git.CommitOptions{Author: keeperAuthor()})
	return err
}
