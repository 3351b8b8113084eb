package content

import (
	"fmt"
	"strings"
)

// cleanupSystemPrompt instructs the model to edit, not rewrite. The JSON
// contract at the end is what ParseCloudResponse expects back; the Anthropic
// provider gets the same fields through its tool schema instead.
const cleanupSystemPrompt = `You are a transcription editor. Given a raw voice note transcription, you will:
- Remove verbal tics like "um", "uh", "you know", stutters, and false starts
- Fix grammar, punctuation, and sentence breaks
- Preserve the speaker's meaning and wording - never add ideas of your own
- Write a title of five to seven words summarizing the note
- The title must not contain slashes, colons, quotes, or other characters unsafe in file names

Respond with a single JSON object and nothing else:
{"title": "...", "cleanedText": "..."}`

// cleanupUserMessage builds the per-call message: the transcript plus any
// vocabulary the speaker wants spelled their way.
func cleanupUserMessage(req CleanRequest) string {
	if len(req.Vocabulary) == 0 {
		return req.Transcript
	}
	return fmt.Sprintf("%s\n\nVocabulary to preserve: %s",
		req.Transcript, strings.Join(req.Vocabulary, ", "))
}
