// Command voxnote records short voice notes, runs them through the
// transcribe-and-cleanup pipeline, and manages the resulting collection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/calegray/voxnote/internal/audio"
	"github.com/calegray/voxnote/internal/capture"
	"github.com/calegray/voxnote/internal/config"
	"github.com/calegray/voxnote/internal/content"
	"github.com/calegray/voxnote/internal/editor"
	"github.com/calegray/voxnote/internal/keyring"
	"github.com/calegray/voxnote/internal/logger"
	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/pipeline"
	"github.com/calegray/voxnote/internal/settings"
	"github.com/calegray/voxnote/internal/transcribe"
	"github.com/calegray/voxnote/internal/tui"
	"github.com/calegray/voxnote/internal/vault"
	"github.com/calegray/voxnote/internal/workdir"
)

// CLI defines the voxnote command structure.
type CLI struct {
	// Default command (runs when no subcommand given)
	Record RecordCmd `cmd:"" default:"1" help:"Record a voice note and run it through the pipeline"`

	// Subcommands
	List    ListCmd    `cmd:"" help:"List stored notes"`
	Show    ShowCmd    `cmd:"" help:"Print one note"`
	Delete  DeleteCmd  `cmd:"" help:"Delete a note and its audio recording"`
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
	Vault   VaultCmd   `cmd:"" help:"Vault maintenance"`
}

// app bundles the collaborators every command needs: process config, the
// data directory, the open note collection, and the settings store.
type app struct {
	cfg   *config.Config
	root  string
	repo  *notes.Repository
	store *settings.Store
}

// openApp loads configuration, points logging at stderr, prepares the data
// directory, and opens the note collection.
func openApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetupCLILogger(cfg, os.Stderr)

	root, err := workdir.Root(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := workdir.Prep(root); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	repo, err := notes.NewRepository(workdir.NotesFile(root), notes.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:   cfg,
		root:  root,
		repo:  repo,
		store: settings.NewStore(workdir.SettingsFile(root)),
	}, nil
}

// close drains pending collection writes; a swallowed write failure here
// would silently lose the user's last mutation.
func (a *app) close() error {
	if err := a.repo.Close(); err != nil {
		return fmt.Errorf("note collection flush failed: %w", err)
	}
	return nil
}

// RecordCmd records one voice note through the full pipeline.
type RecordCmd struct {
	MaxDuration time.Duration `flag:"" default:"15m" help:"Max recording duration"`
	MaxBytes    int64         `flag:"" default:"67108864" help:"Max recording size (64MB)"`
}

// Run executes the record command.
func (c *RecordCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // flush failure reported below via flushErr

	secrets := keyring.NewSystem()

	// Transcription always goes through Whisper, regardless of the cleanup
	// provider, so the OpenAI key is required up front.
	openaiKey := resolveKey(secrets, keyring.OpenAI)
	if openaiKey == "" {
		return errors.New("missing OpenAI API key for transcription: " +
			"set OPENAI_API_KEY or run 'voxnote config set-key openai <key>'")
	}

	audioDir := workdir.AudioDir(a.root)

	coord := pipeline.NewCoordinator(pipeline.Deps{
		NewRecorder: func() pipeline.Recorder {
			return capture.NewSession(capture.SessionConfig{
				AudioDir:    audioDir,
				MaxDuration: c.MaxDuration,
				MaxBytes:    c.MaxBytes,
			})
		},
		Transcriber: &recordingTranscriber{apiKey: openaiKey, timeout: a.cfg.TranscribeTimeout},
		Cleaner: content.NewService(a.store, secrets,
			content.DefaultRegistry(a.cfg.OllamaBaseURL, a.cfg.MistralBaseURL)),
		Repo:     a.repo,
		Settings: a.store,
		AudioDir: audioDir,
		NewVaultWriter: func(cfg settings.Settings) pipeline.VaultWriter {
			w := vault.NewWriter(cfg.VaultDir)
			w.DailyBacklink = cfg.DailyNoteBacklink
			return w
		},
	})

	// A terminal signal does not kill an in-flight run outright; the held
	// context grants it a grace window to land the note first.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	runCtx, release := pipeline.Hold(sigCtx, a.cfg.ShutdownGrace)
	defer release()

	events := make(chan pipeline.Event, 16)
	if err := coord.Events(events); err != nil {
		return fmt.Errorf("failed to subscribe to pipeline events: %w", err)
	}
	if err := coord.Run(runCtx); err != nil {
		return err
	}

	// Start before the TUI takes over so device failures stay plain errors
	// instead of a flash of broken UI.
	if err := coord.StartRecording(runCtx); err != nil {
		return err
	}

	prog := tea.NewProgram(tui.New(runCtx, coord, events, c.MaxBytes))
	final, err := prog.Run()
	if err != nil {
		coord.Cancel()
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	// The user may have abandoned the wait; give the run its grace window
	// to finish persisting before the process exits.
	for deadline := time.Now().Add(a.cfg.ShutdownGrace); coord.State().Active(); {
		if time.Now().After(deadline) {
			coord.Cancel()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	flushErr := a.close()

	model, ok := final.(tui.Model)
	if !ok {
		return flushErr
	}
	if res, resolved := model.Result(); resolved && res.Err != nil && !model.Cancelled() {
		// The done screen already explained the failure; the exit code
		// still reflects it.
		return fmt.Errorf("pipeline failed: %w", res.Err)
	}

	return flushErr
}

// recordingTranscriber picks a recognizer per take: short recordings go up
// in one Whisper call, anything longer than a chunk window streams the PCM
// sidecar in windows so a late stall still leaves usable partials.
type recordingTranscriber struct {
	apiKey  string
	timeout time.Duration
}

func (t *recordingTranscriber) Transcribe(ctx context.Context, captured capture.CapturedAudio) (transcribe.Transcript, error) {
	rec := transcribe.Recognizer(transcribe.NewWhisperRecognizer(t.apiKey))
	audioPath := captured.Path

	if captured.PCMPath != "" && captured.Duration > transcribe.DefaultChunkWindow {
		rec = transcribe.NewChunkedRecognizer(transcribe.ChunkedConfig{APIKey: t.apiKey})
		audioPath = captured.PCMPath
	}

	return transcribe.NewEngine(rec, t.timeout).Transcribe(ctx, audioPath)
}

// resolveKey looks a credential up: environment variable first, keychain
// second, empty when neither is set.
func resolveKey(secrets keyring.Store, key keyring.APIKey) string {
	if value := os.Getenv(key.EnvVar()); value != "" {
		return value
	}

	value, err := secrets.Get(key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain lookup failed", "key", key.DisplayName(), "error", err)
	}

	return value
}

// ListCmd lists stored notes one page at a time, newest first.
type ListCmd struct {
	Page int `flag:"" default:"0" help:"Page index (newest first)"`
}

// Run executes the list command.
func (c *ListCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // read-only command

	page, err := a.repo.LoadPage(context.Background(), c.Page)
	if err != nil {
		return err
	}

	if len(page) == 0 {
		if c.Page == 0 {
			fmt.Println("No notes yet. Run 'voxnote' to record one.")
		} else {
			fmt.Printf("No notes on page %d (%d total).\n", c.Page, a.repo.Len())
		}
		return nil
	}

	for _, n := range page {
		fmt.Printf("%s  %s  %5s  %-10s  %s\n",
			n.ID,
			n.CreatedAt.Local().Format("2006-01-02 15:04"),
			formatDuration(n.Duration),
			n.Status(),
			n.DisplayTitle(),
		)
	}
	fmt.Printf("\npage %d, %d of %d notes\n", c.Page, len(page), a.repo.Len())

	return nil
}

// ShowCmd prints one note, optionally opening its text in $EDITOR.
type ShowCmd struct {
	ID   string `arg:"" help:"Note id"`
	Edit bool   `flag:"" help:"Edit the note text in $EDITOR and save the result"`
}

// Run executes the show command.
func (c *ShowCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // flush failure reported via close on the edit path

	n, ok := a.repo.Get(c.ID)
	if !ok {
		return fmt.Errorf("no note with id %s", c.ID)
	}

	if c.Edit {
		edited, err := editor.EditText(n.ID, n.DisplayText())
		if err != nil {
			return err
		}
		if text := strings.TrimSpace(edited); text != "" && text != strings.TrimSpace(n.DisplayText()) {
			n.CleanedText = text
			if err := a.repo.Update(context.Background(), n); err != nil {
				return err
			}
			fmt.Println("note updated")
		}
		return a.close()
	}

	fmt.Printf("Title:    %s\n", n.DisplayTitle())
	fmt.Printf("Created:  %s\n", n.CreatedAt.Local().Format(time.RFC1123))
	fmt.Printf("Length:   %s\n", formatDuration(n.Duration))
	fmt.Printf("Status:   %s\n", n.Status())
	fmt.Printf("Audio:    %s\n", n.AudioFile)
	if n.Provider != "" {
		fmt.Printf("Cleanup:  %s (%s)\n", n.Provider, n.Model)
	}
	if n.VaultPath != "" {
		fmt.Printf("Vault:    %s\n", n.VaultPath)
	}
	if n.LastError != "" {
		fmt.Printf("Error:    %s\n", n.LastError)
	}
	fmt.Printf("\n%s\n", n.DisplayText())

	return nil
}

// DeleteCmd removes a note and its audio recording.
type DeleteCmd struct {
	ID string `arg:"" help:"Note id"`
}

// Run executes the delete command.
func (c *DeleteCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // flush failure reported via final close

	if err := a.repo.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.ID)

	return a.close()
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (c *DevicesCmd) Run() error {
	adev := audio.NewDevice(nil)
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey      SetKeyCmd      `cmd:"" name:"set-key" help:"Store an API key in the system keychain"`
	ListKeys    ListKeysCmd    `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
	SetProvider SetProviderCmd `cmd:"" name:"set-provider" help:"Choose the cleanup provider and model"`
	SetVault    SetVaultCmd    `cmd:"" name:"set-vault" help:"Choose the vault directory for finished notes"`
	Show        ShowConfigCmd  `cmd:"" help:"Print the current settings"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic,mistral" help:"Service name (openai, anthropic, or mistral)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.NewSystem().Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	secrets := keyring.NewSystem()
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		switch {
		case os.Getenv(apiKey.EnvVar()) != "":
			fmt.Printf("%s: configured (%s)\n", apiKey.DisplayName(), apiKey.EnvVar())
		case secrets.IsSet(apiKey):
			fmt.Printf("%s: configured (keychain)\n", apiKey.DisplayName())
		default:
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'voxnote config set-key <service> <key>' to configure.")
	}

	return nil
}

// SetProviderCmd selects the cleanup provider and, optionally, its model.
type SetProviderCmd struct {
	Provider string `arg:"" enum:"ollama,openai,anthropic,mistral" help:"Cleanup provider"`
	Model    string `flag:"" optional:"" help:"Model identifier (provider default when omitted)"`
}

// Run executes the set-provider command. The change applies to the next
// cleanup call; no restart needed.
func (c *SetProviderCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // settings live outside the collection file

	cfg, err := a.store.Load()
	if err != nil {
		return err
	}

	cfg.Provider = c.Provider
	cfg.Model = c.Model
	if err := a.store.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("cleanup provider set to %s (%s)\n", cfg.Provider, cfg.EffectiveModel())

	return nil
}

// SetVaultCmd points the vault export at a directory.
type SetVaultCmd struct {
	Dir           string `arg:"" help:"Vault root directory"`
	DailyBacklink bool   `flag:"" help:"Add a [[YYYY-MM-DD]] daily-note backlink to exported notes"`
}

// Run executes the set-vault command.
func (c *SetVaultCmd) Run() error {
	if _, err := os.Stat(c.Dir); err != nil {
		return fmt.Errorf("vault directory %s: %w", c.Dir, err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // settings live outside the collection file

	cfg, err := a.store.Load()
	if err != nil {
		return err
	}

	cfg.VaultDir = c.Dir
	cfg.DailyNoteBacklink = c.DailyBacklink
	if err := a.store.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("vault set to %s\n", cfg.VaultDir)

	return nil
}

// ShowConfigCmd prints the current runtime settings.
type ShowConfigCmd struct{}

// Run executes the config show command.
func (c *ShowConfigCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // read-only command

	cfg, err := a.store.Load()
	if err != nil {
		return err
	}

	fmt.Printf("provider:   %s\n", cfg.Provider)
	fmt.Printf("model:      %s\n", cfg.EffectiveModel())
	if len(cfg.Vocabulary) > 0 {
		fmt.Printf("vocabulary: %s\n", strings.Join(cfg.Vocabulary, ", "))
	}
	if cfg.VaultDir != "" {
		fmt.Printf("vault:      %s (daily backlink: %t)\n", cfg.VaultDir, cfg.DailyNoteBacklink)
	} else {
		fmt.Println("vault:      not set (notes stay in the local collection)")
	}
	fmt.Printf("data dir:   %s\n", a.root)

	return nil
}

// VaultCmd groups vault maintenance subcommands.
type VaultCmd struct {
	Retry VaultRetryCmd `cmd:"" help:"Re-export notes whose vault write failed"`
}

// VaultRetryCmd retries the vault export for notes that never landed there.
type VaultRetryCmd struct {
	ID string `arg:"" optional:"" help:"Retry a single note (default: every eligible note)"`
}

// Run executes the vault retry command. Vault writes are overwrite-
// idempotent, so retrying a note that partially landed is safe.
func (c *VaultRetryCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck // flush failure reported via final close

	cfg, err := a.store.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.VaultDir) == "" {
		return errors.New("no vault configured: run 'voxnote config set-vault <dir>' first")
	}

	writer := vault.NewWriter(cfg.VaultDir)
	writer.DailyBacklink = cfg.DailyNoteBacklink
	audioDir := workdir.AudioDir(a.root)
	ctx := context.Background()

	candidates, err := c.candidates(ctx, a.repo)
	if err != nil {
		return err
	}

	retried := 0
	for _, n := range candidates {
		relPath, err := writer.Write(ctx, n, audioDir)
		if err != nil {
			return fmt.Errorf("failed to export note %s: %w", n.ID, err)
		}

		n.VaultPath = relPath
		n.LastError = ""
		if err := a.repo.Update(ctx, n); err != nil {
			return err
		}

		fmt.Printf("exported %s -> %s\n", n.ID, relPath)
		retried++
	}

	if retried == 0 {
		fmt.Println("nothing to retry: every finished note is already in the vault")
	}

	return a.close()
}

// candidates selects the notes to export: the one the user named, or every
// cleaned note that has no vault path yet.
func (c *VaultRetryCmd) candidates(ctx context.Context, repo *notes.Repository) ([]notes.VoiceNote, error) {
	if c.ID != "" {
		n, ok := repo.Get(c.ID)
		if !ok {
			return nil, fmt.Errorf("no note with id %s", c.ID)
		}
		if strings.TrimSpace(n.CleanedText) == "" {
			return nil, fmt.Errorf("note %s has no cleaned text to export", n.ID)
		}
		return []notes.VoiceNote{n}, nil
	}

	var eligible []notes.VoiceNote
	for page := 0; ; page++ {
		batch, err := repo.LoadPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, n := range batch {
			if strings.TrimSpace(n.CleanedText) != "" && n.VaultPath == "" {
				eligible = append(eligible, n)
			}
		}
	}

	return eligible, nil
}

func formatDuration(seconds float64) string {
	total := int(seconds)

	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func main() {
	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("voxnote"),
		kong.Description("Voice notes: record, transcribe, clean up, and file away."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
