package library

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each resource in a text file. Resource names map to file
// names through Files; unmapped names are used as-is. Relative paths resolve
// against Dir.
type FileStore struct {
	Dir   string
	Files map[string]string
	// AtomicRewrite makes OverwriteAll write a temp file and rename it over the
	// target. When false the target is truncated and rewritten in place.
	AtomicRewrite bool
}

// NewFileStore returns a store rooted at dir, creating the directory so
// first-run succeeds.
func NewFileStore(dir string, files map[string]string, atomic bool) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", ErrIO, err)
	}
	return &FileStore{Dir: dir, Files: files, AtomicRewrite: atomic}, nil
}

// Path returns the file that backs res.
func (s *FileStore) Path(res Resource) string {
	name := res.Name
	if mapped, ok := s.Files[name]; ok && mapped != "" {
		name = mapped
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

func (s *FileStore) ReadAll(res Resource) ([]Record, error) {
	f, err := os.Open(s.Path(res))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, res.Name, err)
	}
	defer f.Close()
	return parseRecords(res, f)
}

func (s *FileStore) AppendLine(res Resource, fields Record) error {
	f, err := os.OpenFile(s.Path(res), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, res.Name, err)
	}
	if _, err := f.WriteString(formatLine(fields)); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", ErrIO, res.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

func (s *FileStore) OverwriteAll(res Resource, rows []Record) error {
	if s.AtomicRewrite {
		return s.replace(res, rows)
	}
	f, err := os.Create(s.Path(res))
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, res.Name, err)
	}
	if err := writeRows(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %w", ErrIO, res.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

// replace writes rows next to the target and renames the temp file over it.
func (s *FileStore) replace(res Resource, rows []Record) error {
	target := s.Path(res)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", ErrIO, res.Name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := writeRows(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrIO, res.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrIO, res.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, res.Name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrIO, res.Name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: rename %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

func (s *FileStore) Ensure(res Resource, seed []Record) error {
	_, err := os.Stat(s.Path(res))
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, res.Name, err)
	}
	return s.OverwriteAll(res, seed)
}

// Close is a no-op; files are opened per operation.
func (s *FileStore) Close() error { return nil }

func writeRows(f *os.File, rows []Record) error {
	w := bufio.NewWriter(f)
	for _, row := range rows {
		if _, err := w.WriteString(formatLine(row)); err != nil {
			return err
		}
	}
	return w.Flush()
}
