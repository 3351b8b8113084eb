// Package vault exports finished notes into the user's markdown vault:
// a front-matter note under Notes/ and a copy of the recording under
// Attachments/. Writes are idempotent so a failed run can be retried.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calegray/voxnote/internal/notes"
)

// Vault layout, relative to the root.
const (
	notesDir       = "Notes"
	attachmentsDir = "Attachments"
)

var (
	// ErrVaultPathMissing reports an unset or nonexistent vault root.
	ErrVaultPathMissing = errors.New("vault path not configured")
	// ErrFileWrite reports a failed write into the vault.
	ErrFileWrite = errors.New("vault write failed")
)

// Writer renders notes into a vault root.
type Writer struct {
	root string

	// DailyBacklink adds a [[YYYY-MM-DD]] link under the front matter so the
	// note shows up in daily-note backlinks.
	DailyBacklink bool
}

// NewWriter creates a writer for the vault at root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write renders n as markdown under Notes/ and copies its recording from
// audioDir into Attachments/. It returns the markdown path relative to the
// vault root. Existing files are overwritten, so retrying a note lands on
// the same paths.
func (w *Writer) Write(ctx context.Context, n notes.VoiceNote, audioDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(w.root) == "" {
		return "", ErrVaultPathMissing
	}
	if strings.TrimSpace(n.CleanedText) == "" {
		return "", fmt.Errorf("note %s has no cleaned text to export", n.ID)
	}
	if _, err := os.Stat(w.root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("vault %s: %w", w.root, ErrVaultPathMissing)
		}
		return "", fmt.Errorf("check vault %s: %w: %w", w.root, ErrFileWrite, err)
	}

	audioName := ""
	if n.AudioFile != "" {
		audioName = filepath.Base(n.AudioFile)
		dstDir := filepath.Join(w.root, attachmentsDir)
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w: %w", dstDir, ErrFileWrite, err)
		}
		src := filepath.Join(audioDir, n.AudioFile)
		if err := copyFile(src, filepath.Join(dstDir, audioName)); err != nil {
			return "", fmt.Errorf("copy recording into vault: %w: %w", ErrFileWrite, err)
		}
	}

	relPath := filepath.Join(notesDir, NoteFilename(n))
	absPath := filepath.Join(w.root, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w: %w", filepath.Dir(absPath), ErrFileWrite, err)
	}
	if err := os.WriteFile(absPath, []byte(w.render(n, audioName)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w: %w", relPath, ErrFileWrite, err)
	}

	return relPath, nil
}

// render produces the markdown document: front matter, optional daily-note
// backlink, then the cleaned text.
func (w *Writer) render(n notes.VoiceNote, audioName string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", n.DisplayTitle())
	fmt.Fprintf(&b, "created: %s\n", n.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "duration: %s\n", formatDuration(n.Duration))
	if n.Provider != "" {
		fmt.Fprintf(&b, "provider: %s\n", n.Provider)
	}
	if n.Model != "" {
		fmt.Fprintf(&b, "model: %s\n", n.Model)
	}
	if audioName != "" {
		fmt.Fprintf(&b, "audio: %q\n", attachmentsDir+"/"+audioName)
	}
	b.WriteString("---\n\n")
	if w.DailyBacklink {
		fmt.Fprintf(&b, "[[%s]]\n\n", n.CreatedAt.Format("2006-01-02"))
	}
	b.WriteString(strings.TrimSpace(n.CleanedText))
	b.WriteString("\n")

	return b.String()
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Second).String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
