package imagehost

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalPrefix is the URL path local uploads are served under.
const LocalPrefix = "/uploads"

// Local stores images on disk for development and tests. The router serves
// Dir under LocalPrefix.
type Local struct {
	Dir     string
	BaseURL string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload implements Uploader.
func (l *Local) Upload(ctx context.Context, r io.Reader, folder, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := objectName(folder, filename)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(l.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("close file: %w", err)
	}

	return l.BaseURL + LocalPrefix + "/" + name, nil
}
