// Path derivation for the draft file hierarchy. A draft's on-disk location
// is a pure function of (projectKey, area-from-summary, title-from-summary,
// id); the rules here are fixed for compatibility with existing stores.
package draftstore

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// Fallback names when derivation yields nothing usable.
const (
	defaultArea  = "General"
	defaultTitle = "untitled"
)

var (
	// folderDelims matches the characters a functional-area directory name
	// must not contain.
	folderDelims = regexp.MustCompile(`[<>:"/\\|?*]`)

	// whitespaceRun matches one or more whitespace characters.
	whitespaceRun = regexp.MustCompile(`\s+`)

	// nonSlug matches everything a slug drops: anything that is not a word
	// character, whitespace, or hyphen.
	nonSlug = regexp.MustCompile(`[^\w\s-]`)

	// hyphenRun matches repeated hyphens left over after collapsing.
	hyphenRun = regexp.MustCompile(`-+`)
)

// ParseSummary splits a draft summary of the form "area | layer | title"
// into its area and title segments. Three or more segments yield the first
// and third; exactly two yield both; anything else falls back to the General
// area with the whole summary as title. Segments are trimmed.
func ParseSummary(summary string) (area, title string) {
	parts := strings.Split(summary, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) >= 3:
		return parts[0], parts[2]
	case len(parts) == 2:
		return parts[0], parts[1]
	default:
		return defaultArea, strings.TrimSpace(summary)
	}
}

// SanitizeFolderName turns a functional-area name into a safe directory
// name: filesystem delimiters become spaces, then whitespace runs collapse
// to single underscores. An empty result falls back to General.
func SanitizeFolderName(name string) string {
	s := folderDelims.ReplaceAllString(name, " ")
	s = strings.TrimSpace(s)
	s = whitespaceRun.ReplaceAllString(s, "_")
	if s == "" {
		return defaultArea
	}
	return s
}

// Slugify turns a draft title into a filename slug: lowercased, non-word
// characters stripped, whitespace collapsed to hyphens, repeated hyphens
// collapsed, leading and trailing hyphens trimmed. An empty result falls
// back to "untitled".
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = nonSlug.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return defaultTitle
	}
	return s
}

// shortID returns the first eight characters of id, or all of it when
// shorter. Filenames embed this prefix so Locate can filter candidates
// without parsing every file.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FileName returns the draft's file name: "{slug}-{id8}.json", or
// "{slug}.json" when the id is empty.
func FileName(slug, id string) string {
	if id == "" {
		return slug + ".json"
	}
	return slug + "-" + shortID(id) + ".json"
}

// draftPath derives the draft's storage path under root.
func draftPath(root string, d *types.Draft) string {
	area, title := ParseSummary(d.Summary)
	return filepath.Join(
		root,
		d.Project(),
		SanitizeFolderName(area),
		FileName(Slugify(title), d.ID),
	)
}
