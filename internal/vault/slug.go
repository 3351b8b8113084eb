package vault

import (
	"regexp"
	"strings"

	"github.com/calegray/voxnote/internal/notes"
)

// maxSlugLen keeps filenames comfortably under filesystem limits even with
// the date prefix.
const maxSlugLen = 80

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// Slug converts a title to a path-safe filename fragment.
// Example: "Plan the Garden Beds" -> "plan-the-garden-beds"
func Slug(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}

	return slug
}

// NoteFilename is the date-prefixed markdown name for a note. Untitled notes
// fall back to the note ID so two untitled notes from the same day cannot
// collide.
func NoteFilename(n notes.VoiceNote) string {
	base := Slug(n.Title)
	if base == "" {
		base = n.ID
	}

	return n.CreatedAt.Format("2006-01-02") + "-" + base + ".md"
}
