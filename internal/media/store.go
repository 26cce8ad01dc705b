// Package media persists uploaded binary assets under generated names.
// It knows nothing about which doll references a file.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidName     = errors.New("invalid file name")
	ErrNotFound        = errors.New("file not found")
)

const VideosDir = "videos"

// Category is an allow-list of extensions plus a byte ceiling.
type Category struct {
	Name       string
	Extensions []string
	MaxBytes   int64
	// Label is the human readable list used in rejection messages.
	Label string
}

var (
	Model = Category{
		Name:       "model",
		Extensions: []string{".glb", ".gltf"},
		MaxBytes:   50 << 20,
		Label:      "GLB and GLTF",
	}
	Audio = Category{
		Name:       "audio",
		Extensions: []string{".wav", ".mp3", ".m4a", ".webm", ".ogg"},
		MaxBytes:   10 << 20,
		Label:      "audio",
	}
	Video = Category{
		Name:       "video",
		Extensions: []string{".mp4", ".webm", ".mov"},
		MaxBytes:   200 << 20,
		Label:      "video",
	}
)

func (c Category) Allows(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range c.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Check validates the name and returns the error a rejected upload should carry.
func (c Category) Check(name string) error {
	if !c.Allows(name) {
		return fmt.Errorf("%w: only %s files are allowed", ErrUnsupportedType, c.Label)
	}
	return nil
}

func (c Category) MaxMiB() int64 {
	return c.MaxBytes >> 20
}

// Store is implemented by the disk and S3 backends.
type Store interface {
	// Save stores content under a generated name derived from originalName.
	Save(ctx context.Context, r io.Reader, originalName string, cat Category) (string, error)
	// SaveAs stores content under exactly dir/name after sanitizing name.
	SaveAs(ctx context.Context, r io.Reader, dir, name string, cat Category) (string, error)
	// Remove deletes a stored file; a missing file is not an error.
	Remove(ctx context.Context, storedName string) error
	// URL maps a stored name to its public location.
	URL(storedName string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName strips directories and anything outside [A-Za-z0-9._-].
func SanitizeName(name string) string {
	name = path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return ""
	}
	return name
}

// GenerateName prefixes the sanitized original name with a random uuid.
func GenerateName(originalName string) string {
	clean := SanitizeName(originalName)
	if clean == "" {
		clean = "upload"
	}
	return uuid.NewString() + "-" + clean
}

// ContentType derives the served content type from a file extension.
func ContentType(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".glb":
		return "model/gltf-binary"
	case ".gltf":
		return "model/gltf+json"
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

// limitedCopy copies at most cat.MaxBytes and reports ErrTooLarge past it.
func limitedCopy(dst io.Writer, src io.Reader, cat Category) (int64, error) {
	n, err := io.Copy(dst, io.LimitReader(src, cat.MaxBytes+1))
	if err != nil {
		return n, err
	}
	if n > cat.MaxBytes {
		return n, fmt.Errorf("%w: maximum size is %dMB", ErrTooLarge, cat.MaxMiB())
	}
	return n, nil
}

func joinKey(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
