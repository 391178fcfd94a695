package ioutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// WriteFileAtomic writes data to path so that readers never observe a
// partially written file.
//
// The data is written to a uniquely named temporary file in the same
// directory and renamed over path once it is fully flushed. Parent
// directories are created as needed. On failure the temporary file is
// removed and path is left untouched.
//
// Example:
//
//	err := WriteFileAtomic("data/train/abc/0000.jpg", jpegBytes)
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// CopyFile copies src to dst atomically.
//
// The context is checked before the copy starts; the copy itself is not
// interruptible.
//
// Returns an error if:
//   - The context is already cancelled
//   - Source file cannot be read
//   - Destination cannot be written
//
// Example:
//
//	err := CopyFile(ctx, "data/train/abc/0000.jpg", "data/test/abc/0000.jpg")
func CopyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	data, err := io.ReadAll(sourceFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	return WriteFileAtomic(dst, data)
}

// FileExists reports whether path names a regular, non-empty file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// Card identifiers become directory names, so anything a filesystem would
// reject is mapped to an underscore:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("ga/slug:1")  // Returns "ga_slug_1"
//	SanitizeFileName("card...")    // Returns "card"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
