package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/calegray/voxnote/internal/workdir"
)

// DefaultPageSize is used when NewRepository is given a page size <= 0.
const DefaultPageSize = 20

var (
	// ErrRepositoryIO wraps any storage-level failure of the collection file.
	ErrRepositoryIO = errors.New("repository io failure")
	// ErrDuplicateID reports an Add with an id already in the collection.
	ErrDuplicateID = errors.New("duplicate note id")
	// ErrUnknownID reports an Update for an id not in the collection.
	ErrUnknownID = errors.New("unknown note id")
	// ErrClosed reports a mutation after Close.
	ErrClosed = errors.New("repository closed")
)

// Repository stores the note collection in one JSON array file, rewritten in
// full on every mutation. Mutations update the in-memory collection
// synchronously, so reads always observe prior writes; the disk rewrite is
// queued onto a single background writer and not awaited. The repository
// assumes one logical writer; reads may come from any goroutine.
type Repository struct {
	path     string
	audioDir string
	pageSize int

	mu     sync.RWMutex
	all    []VoiceNote
	cursor int // notes exposed through LoadPage so far
	closed bool

	writes chan []VoiceNote
	done   chan struct{}

	errMu    sync.Mutex
	writeErr error
}

// NewRepository opens (or prepares to create) the collection file at path.
// A corrupt existing file fails the open; a missing file is an empty
// collection. Audio artifacts live next to the collection under audio/.
func NewRepository(path string, pageSize int) (*Repository, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	r := &Repository{
		path:     path,
		audioDir: workdir.AudioDir(filepath.Dir(path)),
		pageSize: pageSize,
		writes:   make(chan []VoiceNote, 64),
		done:     make(chan struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("read note collection: %w: %w", ErrRepositoryIO, err)
	default:
		if err := json.Unmarshal(data, &r.all); err != nil {
			return nil, fmt.Errorf("parse note collection %s: %w: %w", path, ErrRepositoryIO, err)
		}
		// Newest first, stable across restarts.
		sort.SliceStable(r.all, func(i, j int) bool {
			return r.all[i].CreatedAt.After(r.all[j].CreatedAt)
		})
	}

	go r.drainWrites()

	return r, nil
}

// drainWrites is the single writer; mutation order is queue order.
func (r *Repository) drainWrites() {
	defer close(r.done)
	for snapshot := range r.writes {
		if err := writeCollection(r.path, snapshot); err != nil {
			r.errMu.Lock()
			r.writeErr = err
			r.errMu.Unlock()
			slog.Error("note collection write failed", "path", r.path, "error", err)
		}
	}
}

// writeCollection persists atomically: full marshal to a temp file, then
// rename over the collection.
func writeCollection(path string, collection []VoiceNote) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create collection directory: %w: %w", ErrRepositoryIO, err)
	}

	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("encode note collection: %w: %w", ErrRepositoryIO, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write note collection temp file: %w: %w", ErrRepositoryIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persist note collection: %w: %w", ErrRepositoryIO, err)
	}

	return nil
}

// enqueue schedules a full-collection rewrite. Callers hold r.mu.
func (r *Repository) enqueue(ctx context.Context, snapshot []VoiceNote) error {
	select {
	case r.writes <- snapshot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadPage exposes the next window of the collection: notes
// [page*size, (page+1)*size), newest first. Pages past the end are empty,
// not an error. Each call advances the loaded cursor used by Loaded.
func (r *Repository) LoadPage(ctx context.Context, page int) ([]VoiceNote, error) {
	if page < 0 {
		return nil, fmt.Errorf("page index %d must be >= 0", page)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := page * r.pageSize
	if start >= len(r.all) {
		return []VoiceNote{}, nil
	}
	end := min(start+r.pageSize, len(r.all))
	if end > r.cursor {
		r.cursor = end
	}

	return slices.Clone(r.all[start:end]), nil
}

// Loaded returns a copy of every note exposed through LoadPage so far,
// including later mutations to those notes.
func (r *Repository) Loaded() []VoiceNote {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.all[:min(r.cursor, len(r.all))])
}

// Len reports the full collection size, loaded or not.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// Get looks a note up by id across the whole collection.
func (r *Repository) Get(id string) (VoiceNote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.all {
		if n.ID == id {
			return n, true
		}
	}
	return VoiceNote{}, false
}

// Add inserts a new note at the head of the collection.
func (r *Repository) Add(ctx context.Context, n VoiceNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	for _, existing := range r.all {
		if existing.ID == n.ID {
			return fmt.Errorf("add note %s: %w", n.ID, ErrDuplicateID)
		}
	}

	r.all = slices.Insert(r.all, 0, n)
	if r.cursor > 0 {
		r.cursor++
	}

	return r.enqueue(ctx, slices.Clone(r.all))
}

// Update replaces the stored note with the same id.
func (r *Repository) Update(ctx context.Context, n VoiceNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	for i := range r.all {
		if r.all[i].ID == n.ID {
			r.all[i] = n
			return r.enqueue(ctx, slices.Clone(r.all))
		}
	}

	return fmt.Errorf("update note %s: %w", n.ID, ErrUnknownID)
}

// Delete removes a note and its audio artifact. Unknown ids and already
// missing artifacts are tolerated.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	idx := slices.IndexFunc(r.all, func(n VoiceNote) bool { return n.ID == id })
	if idx < 0 {
		return nil
	}

	audioFile := r.all[idx].AudioFile
	r.all = slices.Delete(r.all, idx, idx+1)
	if idx < r.cursor {
		r.cursor--
	}

	if audioFile != "" {
		artifact := filepath.Join(r.audioDir, audioFile)
		if err := os.Remove(artifact); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("audio artifact removal failed", "path", artifact, "error", err)
		}
	}

	return r.enqueue(ctx, slices.Clone(r.all))
}

// Close drains queued writes and reports the last write failure, if any.
func (r *Repository) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.writes)
	}
	r.mu.Unlock()

	<-r.done

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.writeErr
}
