package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps assets in a directory tree served under publicBase.
type DiskStore struct {
	root       string
	publicBase string
}

// NewDiskStore creates root if it does not exist. publicBase is the URL the
// root directory is served at, e.g. http://localhost:3001/uploads.
func NewDiskStore(root, publicBase string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskStore{root: abs, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Save(ctx context.Context, r io.Reader, originalName string, cat Category) (string, error) {
	if err := cat.Check(originalName); err != nil {
		return "", err
	}
	name := GenerateName(originalName)
	if err := s.write(ctx, r, "", name, cat); err != nil {
		return "", err
	}
	return name, nil
}

func (s *DiskStore) SaveAs(ctx context.Context, r io.Reader, dir, name string, cat Category) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", ErrInvalidName
	}
	if err := cat.Check(clean); err != nil {
		return "", err
	}
	if err := s.write(ctx, r, dir, clean, cat); err != nil {
		return "", err
	}
	return joinKey(dir, clean), nil
}

// write streams into a temp file and renames it into place, so a reader
// never observes a partial asset.
func (s *DiskStore) write(ctx context.Context, r io.Reader, dir, name string, cat Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(joinKey(dir, name))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := limitedCopy(tmp, r, cat); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move asset into place: %w", err)
	}
	return nil
}

func (s *DiskStore) Remove(_ context.Context, storedName string) error {
	target, err := s.resolve(storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func (s *DiskStore) URL(storedName string) string {
	parts := strings.Split(storedName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicBase + "/" + strings.Join(parts, "/")
}

// Open returns the stored file for reading.
func (s *DiskStore) Open(storedName string) (*os.File, error) {
	target, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// resolve maps a stored name to a path, refusing anything outside root.
func (s *DiskStore) resolve(storedName string) (string, error) {
	if storedName == "" {
		return "", ErrInvalidName
	}
	target := filepath.Join(s.root, filepath.FromSlash(storedName))
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidName
	}
	return target, nil
}
