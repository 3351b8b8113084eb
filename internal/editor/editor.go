// Package editor shells out to the user's preferred editor for note
// touch-ups.
package editor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Open runs the user's editor on path and waits for it to exit. $EDITOR
// picks the program, falling back to vi.
func Open(path string) error {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}

	slog.Info("opening editor", "editor", editor, "path", path)

	// Editors like "code --wait" arrive as a single EDITOR value.
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open %s: %w", parts[0], err)
	}
	return nil
}

// EditText round-trips text through the editor via a scratch markdown file
// and returns whatever the user saved.
func EditText(name, text string) (string, error) {
	f, err := os.CreateTemp("", "voxnote-"+name+"-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}

	if err := Open(path); err != nil {
		return "", err
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read scratch file back: %w", err)
	}
	return string(edited), nil
}
