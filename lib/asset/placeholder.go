// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Status selects the look of a placeholder graphic.
type Status int

const (
	// StatusLoading marks a reference whose artifact is being fetched.
	StatusLoading Status = iota
	// StatusError marks a reference whose lookup failed.
	StatusError
	// StatusNotFound marks a reference with no local artifact and no
	// fetch in progress.
	StatusNotFound
)

// String returns the status name used in logs and captions.
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusNotFound:
		return "not-found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Placeholder canvas size in SVG user units.
const (
	PlaceholderWidth  = 300
	PlaceholderHeight = 200
)

// PlaceholderPrefix starts every placeholder data URI.
const PlaceholderPrefix = "data:image/svg+xml;base64,"

const maxCaptionRunes = 40

type placeholderStyle struct {
	fill   string
	stroke string
	icon   string
}

var placeholderStyles = map[Status]placeholderStyle{
	StatusLoading:  {fill: "#eff6ff", stroke: "#3b82f6", icon: "\u23f3"},     // hourglass
	StatusError:    {fill: "#fef2f2", stroke: "#ef4444", icon: "\u26a0"},     // warning sign
	StatusNotFound: {fill: "#f3f4f6", stroke: "#9ca3af", icon: "\U0001f4f7"}, // camera
}

// Placeholder renders a status-colored inline SVG for the asset id
// carrying caption and returns it as a base64 data URI, usable
// anywhere an image URL is. The id is embedded in the document so the
// placeholder can be mapped back to its token. The output is
// deterministic for a given id, status, and caption.
func Placeholder(id ID, status Status, caption string) string {
	return PlaceholderPrefix + base64.StdEncoding.EncodeToString([]byte(PlaceholderSVG(id, status, caption)))
}

// PlaceholderSVG returns the raw SVG document for a placeholder.
func PlaceholderSVG(id ID, status Status, caption string) string {
	style, ok := placeholderStyles[status]
	if !ok {
		style = placeholderStyles[StatusError]
	}
	caption = truncateCaption(caption)

	var builder strings.Builder
	fmt.Fprintf(&builder,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[2]d" viewBox="0 0 %[1]d %[2]d" data-asset-id="%[3]s" data-status="%[4]s">`,
		PlaceholderWidth, PlaceholderHeight, html.EscapeString(string(id)), status)
	fmt.Fprintf(&builder,
		`<rect x="1" y="1" width="%d" height="%d" rx="8" fill="%s" stroke="%s" stroke-width="2" stroke-dasharray="6 4"/>`,
		PlaceholderWidth-2, PlaceholderHeight-2, style.fill, style.stroke)
	fmt.Fprintf(&builder,
		`<text x="50%%" y="45%%" font-size="48" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		style.icon)
	fmt.Fprintf(&builder,
		`<text x="50%%" y="78%%" font-family="sans-serif" font-size="14" fill="%s" text-anchor="middle">%s</text>`,
		style.stroke, html.EscapeString(caption))
	builder.WriteString(`</svg>`)
	return builder.String()
}

// IsPlaceholder reports whether s is a placeholder data URI.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, PlaceholderPrefix)
}

var (
	placeholderPattern = regexp.MustCompile(regexp.QuoteMeta(PlaceholderPrefix) + `[A-Za-z0-9+/]+={0,2}`)
	placeholderID      = regexp.MustCompile(`data-asset-id="([a-f0-9-]+)"`)
)

// FindPlaceholders returns every placeholder data URI in text that
// carries an asset id, mapped to that id.
func FindPlaceholders(text string) map[string]ID {
	if !strings.Contains(text, PlaceholderPrefix) {
		return nil
	}
	found := make(map[string]ID)
	for _, uri := range placeholderPattern.FindAllString(text, -1) {
		if id, ok := PlaceholderAssetID(uri); ok {
			found[uri] = id
		}
	}
	return found
}

// PlaceholderAssetID extracts the asset id embedded in a placeholder
// data URI.
func PlaceholderAssetID(uri string) (ID, bool) {
	if !IsPlaceholder(uri) {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, PlaceholderPrefix))
	if err != nil {
		return "", false
	}
	match := placeholderID.FindSubmatch(decoded)
	if match == nil {
		return "", false
	}
	return ID(match[1]), true
}

func truncateCaption(caption string) string {
	if utf8.RuneCountInString(caption) <= maxCaptionRunes {
		return caption
	}
	runes := []rune(caption)
	return string(runes[:maxCaptionRunes-1]) + "…"
}
