package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	xerrors "ledger-service/shared/utils/errors"
	"ledger-service/shared/utils/id"
)

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".pdf":  true,
}

// Uploads writes proof and identity images under dir/<username>/ and returns their public URL.
type Uploads struct {
	dir     string
	baseURL string
}

func NewUploads(dir, baseURL string) *Uploads {
	return &Uploads{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Allowed reports whether filename has an accepted upload extension.
func Allowed(filename string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(filename))]
}

// Owner is the directory segment that holds username's files.
func (u *Uploads) Owner(username string) string {
	return safeSegment(username)
}

// Open returns a stored file. Names that could leave the owner's directory are ErrNotFound.
func (u *Uploads) Open(owner, name string) (*os.File, error) {
	if owner == "" || safeSegment(owner) != owner || safeSegment(name) != name || !Allowed(name) {
		return nil, xerrors.ErrNotFound
	}
	f, err := os.Open(filepath.Join(u.dir, owner, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return f, nil
}

func (u *Uploads) Save(username, prefix, filename string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !Allowed(filename) {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	owner := safeSegment(username)
	if owner == "" {
		return "", fmt.Errorf("invalid owner %q", username)
	}

	userDir := filepath.Join(u.dir, owner)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := id.GenerateULID(prefix) + ext
	if err := saveFile(src, filepath.Join(userDir, name)); err != nil {
		return "", err
	}
	return path.Join(u.baseURL, owner, name), nil
}

func saveFile(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}

// safeSegment keeps usernames from escaping the upload root.
func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "." || out == ".." {
		return ""
	}
	return out
}
