package vault_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/vault"
)

func TestSlug(t *testing.T) {
	t.Parallel()

	longTitle := strings.Repeat("word ", 40)
	longWant := strings.TrimSuffix(strings.Repeat("word-", 16), "-")

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Voice CLI Improvements", "voice-cli-improvements"},
		{"punctuation dropped", "Don't forget: buy milk!", "dont-forget-buy-milk"},
		{"slashes dropped", "Meeting 3/5 recap", "meeting-35-recap"},
		{"accents dropped", "Café journal notes", "caf-journal-notes"},
		{"spaces collapse", "a   b", "a-b"},
		{"surrounding whitespace", "  Hello  ", "hello"},
		{"only punctuation", "???", ""},
		{"empty", "", ""},
		{"long title capped", longTitle, longWant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := vault.Slug(tt.title)
			require.Equal(t, tt.want, got)
			require.LessOrEqual(t, len(got), 80)
		})
	}
}

func TestNoteFilename(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	titled := notes.VoiceNote{ID: "abc-123", Title: "Plan the Garden Beds", CreatedAt: created}
	require.Equal(t, "2026-03-05-plan-the-garden-beds.md", vault.NoteFilename(titled))

	untitled := notes.VoiceNote{ID: "abc-123", CreatedAt: created}
	require.Equal(t, "2026-03-05-abc-123.md", vault.NoteFilename(untitled))
}
