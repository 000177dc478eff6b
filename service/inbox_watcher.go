package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ludo-technologies/astsim/domain"
)

// Inbox subdirectories that receive handled files
const (
	InboxProcessedDir = "processed"
	InboxFailedDir    = "failed"
)

// BatchHandler consumes one batch message
type BatchHandler func(ctx context.Context, msg domain.BatchMessage) error

// InboxWatcher turns JSON files dropped into a directory into batch
// messages. Each file holds one PARSING_COMPLETED message; it is moved to
// processed/ once the handler accepted it and to failed/ otherwise. Writers
// should create files elsewhere and rename them into the inbox so that a
// half-written file is never picked up.
type InboxWatcher struct {
	dir     string
	handler BatchHandler
	logger  *slog.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	inFlight map[string]bool
	done     chan struct{}
}

// NewInboxWatcher creates a watcher for dir; Start begins watching
func NewInboxWatcher(dir string, handler BatchHandler, logger *slog.Logger) *InboxWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{
		dir:      dir,
		handler:  handler,
		logger:   logger.With(slog.String("inbox", dir)),
		inFlight: make(map[string]bool),
	}
}

// Start creates the inbox directories, handles files already present and
// then watches for new ones until ctx is done or Close is called
func (w *InboxWatcher) Start(ctx context.Context) error {
	for _, dir := range []string{w.dir, filepath.Join(w.dir, InboxProcessedDir), filepath.Join(w.dir, InboxFailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher
	w.done = make(chan struct{})

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("read inbox %s: %w", w.dir, err)
	}
	var existing []string
	for _, e := range entries {
		if !e.IsDir() && isInboxFile(e.Name()) {
			existing = append(existing, filepath.Join(w.dir, e.Name()))
		}
	}
	sort.Strings(existing)
	for _, path := range existing {
		_ = w.ProcessFile(ctx, path)
	}

	go w.watchLoop(ctx)
	w.logger.Info("inbox watcher started", slog.Int("pending", len(existing)))
	return nil
}

func isInboxFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json") && !strings.HasPrefix(name, ".")
}

func (w *InboxWatcher) watchLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !isInboxFile(filepath.Base(event.Name)) {
				continue
			}
			_ = w.ProcessFile(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", slog.String("error", err.Error()))
		}
	}
}

// ProcessFile decodes one inbox file, hands it to the handler and moves it
// out of the inbox. A file already being handled is ignored.
func (w *InboxWatcher) ProcessFile(ctx context.Context, path string) error {
	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return nil
	}
	w.inFlight[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inFlight, path)
		w.mu.Unlock()
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	msg, err := decodeInboxMessage(data)
	if err == nil {
		err = w.handler(ctx, msg)
	}
	if err != nil {
		w.logger.Error("inbox message rejected",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()))
		return w.move(path, InboxFailedDir, err)
	}

	w.logger.Info("inbox message accepted",
		slog.String("file", filepath.Base(path)),
		slog.String("group_id", msg.GroupID),
		slog.Int64("assignment_id", msg.AssignmentID))
	return w.move(path, InboxProcessedDir, nil)
}

func decodeInboxMessage(data []byte) (domain.BatchMessage, error) {
	var msg domain.BatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, domain.NewInvalidInputError("malformed batch message", err)
	}
	if msg.MessageType == "" {
		msg.MessageType = domain.MessageParsingCompleted
	}
	if msg.MessageType != domain.MessageParsingCompleted {
		return msg, domain.NewInvalidInputError(fmt.Sprintf("unexpected message type %s", msg.MessageType), nil)
	}
	return msg, msg.Validate()
}

func (w *InboxWatcher) move(path, subdir string, cause error) error {
	target := filepath.Join(w.dir, subdir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("move %s to %s: %w", path, subdir, err)
	}
	return cause
}

// Close stops watching
func (w *InboxWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	w.watcher = nil
	return err
}
