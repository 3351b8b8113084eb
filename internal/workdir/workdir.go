// Package workdir manages the on-disk layout of the voxnote data directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root returns the base directory for all voxnote data files.
// An override wins; otherwise the path resolves to:
//
//	$HOME/Documents/Voxnote
func Root(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "Voxnote"), nil
}

// AudioDir returns the directory holding recorded audio artifacts.
func AudioDir(root string) string {
	return filepath.Join(root, "audio")
}

// NotesFile returns the path of the note collection file.
func NotesFile(root string) string {
	return filepath.Join(root, "notes.json")
}

// SettingsFile returns the path of the runtime settings file.
func SettingsFile(root string) string {
	return filepath.Join(root, "settings.json")
}

// Prep ensures the data directory tree exists.
func Prep(root string) error {
	if err := os.MkdirAll(AudioDir(root), 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", root, err)
	}
	return nil
}
