// Package filex holds filesystem and filename helpers: spool directory
// creation, upload filename sanitizing and content-type presentation hints.
package filex

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultContentType is used when nothing better is known.
const DefaultContentType = "application/octet-stream"

// EnsureSubdDir creates dirName under the working directory (unless it is
// absolute) and returns its path.
func EnsureSubdDir(dirName string) (string, error) {
	dir := dirName
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dirName)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// BaseName strips any client-side directory part from an uploaded filename.
// Both '/' and '\' are treated as separators.
func BaseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// Extension returns the lower-cased extension without the dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ContentType guesses the media type from the filename extension.
func ContentType(name string) string {
	ext := Extension(name)
	if ext == "" {
		return DefaultContentType
	}
	ct := mime.TypeByExtension("." + ext)
	if ct == "" {
		return DefaultContentType
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

type presentation struct {
	prefix string
	icon   string
}

var presentations = map[string]presentation{
	"application/pdf":    {"file/view-pdf/", "fa-file-pdf-o"},
	"image/jpeg":         {"file/view-image/", "fa-file-image-o"},
	"image/png":          {"file/view-image/", "fa-file-image-o"},
	"image/gif":          {"file/view-image/", "fa-file-image-o"},
	"image/svg+xml":      {"file/view-image/", "fa-file-image-o"},
	"text/plain":         {"file/view-text/", "fa-file-text-o"},
	"text/csv":           {"file/view-text/", "fa-file-text-o"},
	"text/html":          {"file/view-text/", "fa-file-code-o"},
	"application/json":   {"file/view-text/", "fa-file-code-o"},
	"application/xml":    {"file/view-text/", "fa-file-code-o"},
	"video/mp4":          {"file/view-video/", "fa-file-video-o"},
	"audio/mpeg":         {"file/view-audio/", "fa-file-audio-o"},
	"application/zip":    {"file/download/", "fa-file-archive-o"},
	"application/msword": {"file/download/", "fa-file-word-o"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {"file/download/", "fa-file-word-o"},
	"application/vnd.ms-excel": {"file/download/", "fa-file-excel-o"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {"file/download/", "fa-file-excel-o"},
}

// LinkPrefix returns the UI route prefix used to preview a file of the
// given content type. Unknown types are offered as plain downloads.
func LinkPrefix(contentType string) string {
	if p, ok := presentations[contentType]; ok {
		return p.prefix
	}
	return "file/download/"
}

// IconClass returns the Font Awesome icon class for the content type.
func IconClass(contentType string) string {
	if p, ok := presentations[contentType]; ok {
		return p.icon
	}
	return "fa-file-o"
}
