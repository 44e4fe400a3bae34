// Package imagehost stores user-supplied images and returns their public URL.
package imagehost

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"expensetracker/internal/uuid"
)

// Folders are the upload folders images may be stored under.
var Folders = map[string]bool{
	"wallets":      true,
	"transactions": true,
	"goals":        true,
	"users":        true,
}

// Uploader stores an image and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, folder, filename string) (string, error)
}

// UploadFile uploads the local file at filePath into folder.
func UploadFile(ctx context.Context, u Uploader, filePath, folder string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()
	return u.Upload(ctx, f, folder, filepath.Base(filePath))
}

// objectName builds a collision-free object key that keeps the original
// extension, e.g. "wallets/0190....png".
func objectName(folder, filename string) (string, error) {
	if !Folders[folder] {
		return "", fmt.Errorf("unknown image folder %q", folder)
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return folder + "/" + uuid.New() + ext, nil
}
