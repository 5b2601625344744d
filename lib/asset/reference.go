// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"regexp"
	"strings"
)

// Scheme is the URL scheme of reference tokens embedded in documents.
const Scheme = "asset"

// ReferencePrefix precedes the identifier in every reference token.
const ReferencePrefix = Scheme + "://"

// referencePattern matches asset://<id> with an optional /<display-name>
// tail. The display name stops at a quote, whitespace, or ')', so the
// token ends cleanly inside src='...', src="...", and markdown (...).
var referencePattern = regexp.MustCompile(`asset://([a-f0-9-]+)(?:/([^'"\s)]*))?`)

// Reference is one token occurrence in a text.
type Reference struct {
	// ID is the leading identifier segment, the only part used for
	// lookup.
	ID ID

	// DisplayName is the optional trailing segment. Informational.
	DisplayName string

	// Start and End are byte offsets of the whole token in the text.
	Start, End int
}

// FindReferences returns every token occurrence in text, in order.
func FindReferences(text string) []Reference {
	if !strings.Contains(text, ReferencePrefix) {
		return nil
	}
	matches := referencePattern.FindAllStringSubmatchIndex(text, -1)
	references := make([]Reference, 0, len(matches))
	for _, match := range matches {
		reference := Reference{
			ID:    ID(text[match[2]:match[3]]),
			Start: match[0],
			End:   match[1],
		}
		if match[4] >= 0 {
			reference.DisplayName = text[match[4]:match[5]]
		}
		references = append(references, reference)
	}
	return references
}

// ExtractReferences returns the distinct identifiers referenced in
// text, in order of first appearance.
func ExtractReferences(text string) []ID {
	var ids []ID
	seen := make(map[ID]struct{})
	for _, reference := range FindReferences(text) {
		if _, duplicate := seen[reference.ID]; duplicate {
			continue
		}
		seen[reference.ID] = struct{}{}
		ids = append(ids, reference.ID)
	}
	return ids
}

// ReplaceReferences rewrites every token in text. For each occurrence,
// replace returns the substitute and true, or false to keep the token
// as written.
func ReplaceReferences(text string, replace func(Reference) (string, bool)) string {
	references := FindReferences(text)
	if len(references) == 0 {
		return text
	}
	var builder strings.Builder
	builder.Grow(len(text))
	last := 0
	for _, reference := range references {
		builder.WriteString(text[last:reference.Start])
		if substitute, ok := replace(reference); ok {
			builder.WriteString(substitute)
		} else {
			builder.WriteString(text[reference.Start:reference.End])
		}
		last = reference.End
	}
	builder.WriteString(text[last:])
	return builder.String()
}

// FormatReference builds a token for id, appending displayName when it
// is non-empty. The name is sanitized so the token parses back to the
// same id.
func FormatReference(id ID, displayName string) string {
	displayName = SanitizeDisplayName(displayName)
	if displayName == "" {
		return ReferencePrefix + string(id)
	}
	return ReferencePrefix + string(id) + "/" + displayName
}
