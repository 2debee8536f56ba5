// Package store keeps the ledger file on disk. Every save rewrites the
// whole file through a temporary file in the same directory.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"

	"github.com/plenert/ledger"
)

// BackupPath returns where path is backed up for a session.
func BackupPath(path, session string) string {
	return path + "." + session + ".br"
}

// WriteFile replaces path with what write produces. The target is only
// touched when write succeeds.
func WriteFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmp.Name(), info.Mode().Perm())
	} else {
		os.Chmod(tmp.Name(), 0o644)
	}
	return os.Rename(tmp.Name(), path)
}

// Backup writes a brotli compressed copy of path for session. A missing
// file has nothing to back up.
func Backup(path, session string) error {
	in, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteFile(BackupPath(path, session), func(w io.Writer) error {
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		if _, err := io.Copy(bw, in); err != nil {
			return err
		}
		return bw.Close()
	})
}

// Restore replaces path with its backup from session.
func Restore(path, session string) error {
	in, err := os.Open(BackupPath(path, session))
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteFile(path, func(w io.Writer) error {
		_, err := io.Copy(w, brotli.NewReader(in))
		return err
	})
}

// File is a ledger file.
type File struct {
	path     string
	session  string
	columns  int
	backedUp map[string]bool
}

// NewFile returns the ledger file at path. With a session, the first save
// backs up the previous content.
func NewFile(path, session string) *File {
	return &File{
		path:     path,
		session:  session,
		columns:  ledger.DefaultColumns,
		backedUp: make(map[string]bool),
	}
}

// SetColumns sets the width postings are aligned to.
func (f *File) SetColumns(columns int) { f.columns = columns }

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load parses the file. A missing file is an empty ledger.
func (f *File) Load() ([]ledger.Entry, error) {
	entries, err := ledger.ParseLedgerFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

// Backup backs the file up once per session.
func (f *File) Backup(session string) error {
	if f.backedUp[session] {
		return nil
	}
	if err := Backup(f.path, session); err != nil {
		return fmt.Errorf("backup %s: %w", f.path, err)
	}
	f.backedUp[session] = true
	return nil
}

// Save rewrites the file with entries.
func (f *File) Save(entries []ledger.Entry) error {
	if f.session != "" {
		if err := f.Backup(f.session); err != nil {
			return err
		}
	}
	return WriteFile(f.path, func(w io.Writer) error {
		return ledger.WriteLedger(w, entries, f.columns)
	})
}
