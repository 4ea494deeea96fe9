package vcs

import (
	"io/ioutil"
	"os"
)

// File is a version-controlled file. Every Write lands as its own commit.
type File interface {
	// Read returns the file's contents. A missing file reads as empty.
	Read() ([]byte, error)
	Write(b []byte) error
}

type file struct {
	path string
	repo Repository
}

func (s *syncRepo) File(path string) File {
	return &file{
		path: path,
		repo: s,
	}
}

func (f *file) Read() ([]byte, error) {
	b, err := ioutil.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func (f *file) Write(b []byte) error {
	return f.repo.CommitFiles(diskWriter(f.path, b), "Update "+f.path, f.path)
}

func diskWriter(path string, b []byte) func() error {
	return func() error {
		return ioutil.WriteFile(path, b, 0750)
	}
}
