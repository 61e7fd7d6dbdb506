package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultUploadName is used when nothing usable is left of a client filename
const DefaultUploadName = "upload.jpg"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// HasExtension reports whether filename ends in one of exts (case-insensitive)
func HasExtension(filename string, exts []string) bool {
	ext := GetFileExtension(filename)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// IsImageFile checks if a file has an extension the analyzer can read
func IsImageFile(filename string) bool {
	return HasExtension(filename, []string{"jpg", "jpeg", "png", "webp"})
}

// ListImageFiles recursively lists all image files in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// SanitizeFilename reduces a client-supplied name to a safe base name:
// path components are dropped, whitespace becomes underscores and anything
// outside [A-Za-z0-9_.-] is removed.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	if filename == "." || filename == "/" {
		return ""
	}

	result := strings.Join(strings.Fields(filename), "_")
	result = unsafeChars.ReplaceAllString(result, "")

	// Remove leading/trailing underscores and dots
	result = strings.Trim(result, "._")

	return result
}

// MakeUniqueFilename sanitizes name and appends a short random suffix before
// the extension. Extensions outside allowed become .jpg.
func MakeUniqueFilename(name string, allowed []string) string {
	safe := SanitizeFilename(name)
	if safe == "" {
		safe = DefaultUploadName
	}

	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)
	ext = strings.ToLower(ext)
	if ext == "" || !HasExtension(ext, allowed) {
		ext = ".jpg"
	}
	if base == "" {
		base = "upload"
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s__%s%s", base, id[:8], ext)
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
