// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode"
)

// DefaultMime is the type assigned when neither the filename nor the
// content identifies the payload.
const DefaultMime = "application/octet-stream"

// mediaTypes covers the extensions authoring packages carry. The
// platform mime table is consulted after this one, so entries here
// only need to exist where platform tables are known to disagree or be
// missing (minimal containers often ship no /etc/mime.types).
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".avif": "image/avif",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
	".elp":  "application/zip",
	".woff": "font/woff",
	".ttf":  "font/ttf",
}

// InferMime guesses the mime type of payload: first from the filename
// extension, then by content sniffing. Returned types never carry
// parameters (no "; charset=...").
func InferMime(filename string, payload []byte) string {
	extension := strings.ToLower(path.Ext(filename))
	if extension != "" {
		if known, ok := mediaTypes[extension]; ok {
			return known
		}
		if platform := mime.TypeByExtension(extension); platform != "" {
			return baseMediaType(platform)
		}
	}
	if len(payload) > 0 {
		sniffed := baseMediaType(http.DetectContentType(payload))
		if sniffed != "" {
			return sniffed
		}
	}
	return DefaultMime
}

// preferredExtensions picks one extension per mime type where several
// map to it.
var preferredExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"audio/wav":       ".wav",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"text/plain":      ".txt",
	"text/html":       ".html",
}

// ExtensionForMime returns a filename extension (with leading dot) for
// a mime type, or "" when none is known.
func ExtensionForMime(mediaType string) string {
	mediaType = baseMediaType(mediaType)
	if extension, ok := preferredExtensions[mediaType]; ok {
		return extension
	}
	if extensions, err := mime.ExtensionsByType(mediaType); err == nil && len(extensions) > 0 {
		return extensions[0]
	}
	return ""
}

// IsTextLike reports whether the mime type describes textual content
// that compresses well.
func IsTextLike(mediaType string) bool {
	mediaType = baseMediaType(mediaType)
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "image/svg+xml",
		"application/javascript", "application/x-subrip":
		return true
	}
	return false
}

// IsPrecompressed reports whether the mime type describes a format that
// is already entropy-coded (images, audio, video, archives).
func IsPrecompressed(mediaType string) bool {
	mediaType = baseMediaType(mediaType)
	if mediaType == "image/svg+xml" || mediaType == "image/bmp" {
		return false
	}
	for _, prefix := range []string{"image/", "audio/", "video/"} {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	switch mediaType {
	case "application/zip", "application/gzip", "application/pdf",
		"font/woff", "font/woff2":
		return true
	}
	return false
}

// SanitizeDisplayName reduces a filename to a single path segment that
// can be appended to a reference token: directory components are
// dropped and characters that terminate a token (quotes, whitespace,
// closing parenthesis) become underscores.
func SanitizeDisplayName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '"' || r == ')' || r == '/' || unicode.IsSpace(r):
			return '_'
		}
		return r
	}, name)
}

func baseMediaType(value string) string {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mediaType
}
